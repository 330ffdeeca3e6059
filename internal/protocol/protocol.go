package protocol

import "encoding/json"

const Version = "1.0"

// Message types exchanged with a remote oracle.
const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypeBatch     = "BATCH"
	TypeDecisions = "DECISIONS"
)

// Movement directive types.
const (
	MoveWalk = "walk"
	MoveRun  = "run"
	MoveStop = "stop"
	MoveNone = "none"
)

// ActionNone is the no-op action type.
const ActionNone = "none"

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
