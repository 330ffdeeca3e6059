package actions

import (
	"fmt"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/movement"
)

const (
	KindNone       = "none"
	KindAttack     = "attack"
	KindClaw       = "claw"
	KindBite       = "bite"
	KindKill       = "kill"
	KindSneeze     = "sneeze"
	KindCough      = "cough"
	KindEat        = "eat"
	KindPickUp     = "pick_up"
	KindDropOff    = "drop_off"
	KindAvoid      = "avoid"
	KindQuarantine = "quarantine"
)

var supportedKinds = []string{
	KindNone,
	KindAttack,
	KindClaw,
	KindBite,
	KindKill,
	KindSneeze,
	KindCough,
	KindEat,
	KindPickUp,
	KindDropOff,
	KindAvoid,
	KindQuarantine,
}

// SupportedKinds lists every action name the engine resolves.
func SupportedKinds() []string {
	return append([]string(nil), supportedKinds...)
}

const (
	AttackRange  = 2.0
	ClawRange    = 1.5
	BiteRange    = 1.0
	EatRange     = 1.5
	PickUpRange  = 1.5
	SneezeRadius = 3.0
	CoughRadius  = 5.0

	CoughHalfAngleDeg = 30.0
	AvoidDistance     = 8.0

	MinInfectionChance = 0.05

	// ParamSecondTarget names the optional second avoid target.
	ParamSecondTarget = "target_id_2"
)

// Request is one resolved action directive for an actor.
type Request struct {
	Kind     string
	TargetID string
	Params   map[string]any
}

// Move is the movement an action asked for (avoid, quarantine).
type Move struct {
	Target model.Vec2     `json:"target"`
	Speed  movement.Speed `json:"speed"`
}

// Result reports the outcome of one action. Failures never carry side
// effects; Code is one of the protocol error codes.
type Result struct {
	Action   string `json:"action"`
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id,omitempty"`

	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`

	Damage      float64  `json:"damage,omitempty"`
	Infected    int      `json:"infected,omitempty"`
	InfectedIDs []string `json:"infected_ids,omitempty"`
	Killed      bool     `json:"killed,omitempty"`
	Restored    float64  `json:"restored,omitempty"`
	DepositID   string   `json:"deposit_id,omitempty"`
	Move        *Move    `json:"move,omitempty"`
}

// Rand is the randomness source for damage rolls and transmission draws.
type Rand interface {
	Float64() float64
}

// Mover is the movement primitive used by avoid and quarantine.
type Mover interface {
	MoveTo(a *model.Agent, target model.Vec2, speed movement.Speed) bool
}

type handler func(e *Engine, actor *model.Agent, req Request, now time.Time) Result

func validateDispatchMap[T any](name string, handlers map[string]T, supported []string) error {
	allowed := make(map[string]struct{}, len(supported))
	for _, k := range supported {
		if k == "" {
			return fmt.Errorf("%s: empty supported key", name)
		}
		if _, ok := allowed[k]; ok {
			return fmt.Errorf("%s: duplicate supported key %q", name, k)
		}
		allowed[k] = struct{}{}
	}
	if len(handlers) != len(allowed) {
		return fmt.Errorf("%s size mismatch: got=%d want=%d", name, len(handlers), len(allowed))
	}
	for k := range handlers {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%s has unsupported key %q", name, k)
		}
	}
	for k := range allowed {
		if _, ok := handlers[k]; !ok {
			return fmt.Errorf("%s missing key %q", name, k)
		}
	}
	return nil
}
