package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformed marks oracle output that could not be parsed.
var ErrMalformed = errors.New("malformed oracle response")

// decisionSchema is intentionally loose: unknown and missing fields are
// allowed, only wrong shapes are rejected.
const decisionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "movement": {
      "type": ["object", "null"],
      "properties": {
        "type": {"type": ["string", "null"]},
        "target_x": {"type": ["number", "null"]},
        "target_z": {"type": ["number", "null"]}
      }
    },
    "action": {
      "type": ["object", "null"],
      "properties": {
        "type": {"type": ["string", "null"]},
        "target_id": {"type": ["string", "number", "null"]},
        "parameters": {"type": ["object", "null"]}
      }
    }
  }
}`

var decisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchemaJSON)

// DefaultDecision is the no-op used whenever an agent has no usable decision.
func DefaultDecision() Decision {
	return Decision{
		Movement: MovementDirective{Type: MoveNone},
		Action:   ActionDirective{Type: ActionNone},
	}
}

// DecodeDecisionBatch splits an aggregate oracle response into per-agent
// entries. It fails only when the aggregate itself is unusable.
func DecodeDecisionBatch(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: null response", ErrMalformed)
	}
	return entries, nil
}

// DecodeDecision parses one agent's decision. Missing fields default to
// "none"; a wrong shape returns ErrMalformed together with DefaultDecision.
func DecodeDecision(raw json.RawMessage) (Decision, error) {
	d := DefaultDecision()
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := decisionSchema.Validate(v); err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	obj, _ := v.(map[string]any)

	if mv, ok := obj["movement"].(map[string]any); ok {
		d.Movement.Type = NormalizeMoveType(asString(mv["type"]))
		d.Movement.TargetX = asFloat(mv["target_x"])
		d.Movement.TargetZ = asFloat(mv["target_z"])
	}
	if ac, ok := obj["action"].(map[string]any); ok {
		d.Action.Type = NormalizeActionType(asString(ac["type"]))
		d.Action.TargetID = asID(ac["target_id"])
		if p, ok := ac["parameters"].(map[string]any); ok && len(p) > 0 {
			d.Action.Parameters = p
		}
	}
	return d, nil
}

// NormalizeMoveType maps anything outside walk|run|stop|none to none.
func NormalizeMoveType(s string) string {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case MoveWalk, MoveRun, MoveStop, MoveNone:
		return t
	default:
		return MoveNone
	}
}

// NormalizeActionType lower-cases the action name and folds "pick-up" style
// spellings. Unknown names are kept so the action layer can report them.
func NormalizeActionType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, "-", "_")
	if t == "" {
		return ActionNone
	}
	return t
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func asID(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
