package protocol

import "encoding/json"

// Perception is one agent's view of the world for a single decision batch.
// Field names match the keys behaviour scripts read from their input dict.
type Perception struct {
	MyID        string  `json:"my_id"`
	MyName      string  `json:"my_name"`
	MyArchetype string  `json:"my_archetype"`
	MyFaction   string  `json:"my_faction"`
	MyX         float64 `json:"my_x"`
	MyZ         float64 `json:"my_z"`
	MyState     string  `json:"my_state"`
	SpawnX      float64 `json:"spawn_x"`
	SpawnZ      float64 `json:"spawn_z"`
	HeadingX    float64 `json:"heading_x"`
	HeadingZ    float64 `json:"heading_z"`

	Health float64 `json:"health"`
	Hunger float64 `json:"hunger"`

	DiseaseName        string   `json:"disease_name"`
	InfectionStage     string   `json:"infection_stage"`
	IsContagious       int      `json:"is_contagious"`
	IsImmune           bool     `json:"is_immune"`
	MortalityRate      float64  `json:"mortality_rate"`
	Infectivity        float64  `json:"infectivity"`
	RecoveryRate       float64  `json:"recovery_rate"`
	IncubationPeriod   float64  `json:"incubation_period"`
	ContagiousDuration float64  `json:"contagious_duration"`
	Symptoms           []string `json:"symptoms"`

	CurrentAction     string  `json:"current_action"`
	CurrentActionTime float64 `json:"current_action_time"`

	IsCarrying      int    `json:"is_carrying"`
	CarriedItemID   string `json:"carried_item_id"`
	CurrentTargetID string `json:"current_target_id"`

	VisibleAgents map[string]VisibleAgent `json:"visible_agents"`
	VisibleCount  int                     `json:"visible_count"`
	VisibleFood   map[string]VisibleFood  `json:"visible_food"`
	HeardAgents   map[string]HeardAgent   `json:"heard_agents"`
	HeardCount    int                     `json:"heard_count"`

	// Shared across every perception of the same batch.
	AllAgents map[string]AgentSummary `json:"all_agents"`
	Items     []ItemInfo              `json:"items"`
	Deposits  []DepositInfo           `json:"deposits"`
	Obstacles []ObstacleInfo          `json:"obstacles"`
}

type VisibleAgent struct {
	X                 float64 `json:"x"`
	Z                 float64 `json:"z"`
	Distance          float64 `json:"distance"`
	CurrentAction     string  `json:"current_action"`
	CurrentActionTime float64 `json:"current_action_time"`
	Faction           string  `json:"faction"`
	Archetype         string  `json:"archetype"`
	State             string  `json:"state"`
}

type VisibleFood struct {
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	Distance float64 `json:"distance"`
}

type HeardAgent struct {
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	Distance float64 `json:"distance"`
}

type AgentSummary struct {
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
	IsCarrying      bool    `json:"is_carrying"`
	CurrentTargetID string  `json:"current_target_id"`
}

type ItemInfo struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Z  float64 `json:"z"`
}

type DepositInfo struct {
	ID           string  `json:"id"`
	X            float64 `json:"x"`
	Z            float64 `json:"z"`
	AcceptRadius float64 `json:"accept_radius"`
	Remaining    int     `json:"remaining"`
}

type ObstacleInfo struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Z       float64 `json:"z"`
	Radius  float64 `json:"radius"`
	Dynamic bool    `json:"dynamic"`
}

// PerceptionBatch is the oracle request: agent id -> perception.
type PerceptionBatch map[string]*Perception

// Decision is one agent's answer for a batch.
type Decision struct {
	Movement MovementDirective `json:"movement"`
	Action   ActionDirective   `json:"action"`
}

type MovementDirective struct {
	Type    string  `json:"type"`
	TargetX float64 `json:"target_x"`
	TargetZ float64 `json:"target_z"`
}

type ActionDirective struct {
	Type       string         `json:"type"`
	TargetID   string         `json:"target_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// DecisionBatch is the oracle response: agent id -> decision.
type DecisionBatch map[string]Decision

// HELLO (oracle -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OracleName      string `json:"oracle_name"`
}

// WELCOME (server -> oracle)
type WelcomeMsg struct {
	Type             string `json:"type"`
	ProtocolVersion  string `json:"protocol_version"`
	WorldID          string `json:"world_id"`
	DecisionInterval int    `json:"decision_interval_ms"`
}

// BATCH (server -> oracle)
type BatchMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Seq             uint64          `json:"seq"`
	Perceptions     PerceptionBatch `json:"perceptions"`
}

// DECISIONS (oracle -> server). Decisions stays raw so the server can tell an
// unparsable aggregate apart from a single bad entry.
type DecisionsMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Seq             uint64          `json:"seq"`
	Decisions       json.RawMessage `json:"decisions"`
}
