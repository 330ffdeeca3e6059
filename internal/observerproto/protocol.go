// Package observerproto defines the read-only observer stream. It is
// versioned separately from the oracle protocol.
package observerproto

const Version = "0.2"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeState     = "STATE"
)

// SubscribeMsg is the first client message and may be re-sent to change
// settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RateHz          int    `json:"rate_hz"`

	// Optional: only stream agents within Radius of this agent.
	FocusAgentID string  `json:"focus_agent_id,omitempty"`
	Radius       float64 `json:"radius,omitempty"`
}

type BootstrapResponse struct {
	ProtocolVersion    string `json:"protocol_version"`
	WorldID            string `json:"world_id"`
	Tick               uint64 `json:"tick"`
	TickRateHz         int    `json:"tick_rate_hz"`
	DecisionIntervalMS int    `json:"decision_interval_ms"`
}

type AgentState struct {
	ID        string  `json:"id"`
	Archetype string  `json:"archetype"`
	Faction   string  `json:"faction"`
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	Health    float64 `json:"health"`
	Hunger    float64 `json:"hunger"`
	State     string  `json:"state"`
	Stage     string  `json:"stage"`
	Action    string  `json:"action,omitempty"`
	Carrying  string  `json:"carrying,omitempty"`
}

type ItemState struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	CarriedBy string  `json:"carried_by,omitempty"`
}

// StateMsg is pushed whenever the world has advanced since the last one,
// at most RateHz times per second.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`

	Alive     int            `json:"alive"`
	Dead      int            `json:"dead"`
	Stages    map[string]int `json:"stages"`
	Delivered int            `json:"delivered"`

	Agents []AgentState `json:"agents"`
	Items  []ItemState  `json:"items"`
}
