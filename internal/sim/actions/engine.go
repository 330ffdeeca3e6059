package actions

import (
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/registry"
)

var dispatch = map[string]handler{
	KindNone:       (*Engine).none,
	KindAttack:     (*Engine).attack,
	KindClaw:       (*Engine).claw,
	KindBite:       (*Engine).bite,
	KindKill:       (*Engine).kill,
	KindSneeze:     (*Engine).sneeze,
	KindCough:      (*Engine).cough,
	KindEat:        (*Engine).eat,
	KindPickUp:     (*Engine).pickUp,
	KindDropOff:    (*Engine).dropOff,
	KindAvoid:      (*Engine).avoid,
	KindQuarantine: (*Engine).quarantine,
}

// Engine validates and applies agent actions against the registries.
// Not safe for concurrent use; the world loop owns it.
type Engine struct {
	reg    *registry.Registries
	mover  Mover
	rng    Rand
	logger *log.Logger
}

// NewEngine wires the engine. rng may be nil (wall-clock seeded math/rand);
// mover may be nil, in which case movement requests are only reported.
func NewEngine(reg *registry.Registries, mover Mover, rng Rand, logger *log.Logger) (*Engine, error) {
	if err := validateDispatchMap("actionDispatch", dispatch, supportedKinds); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{reg: reg, mover: mover, rng: rng, logger: logger}, nil
}

// Apply resolves one action for actor. It never panics on bad input and
// never has side effects on failure.
func (e *Engine) Apply(actor *model.Agent, req Request, now time.Time) Result {
	res := Result{Action: req.Kind, TargetID: req.TargetID}
	if actor == nil {
		return fail(res, protocol.ErrNotFound, "actor not found")
	}
	res.ActorID = actor.ID
	if actor.IsDead() {
		return fail(res, protocol.ErrPrecondition, "agent dead")
	}
	h, ok := dispatch[req.Kind]
	if !ok {
		return fail(res, protocol.ErrBadRequest, "unknown action")
	}
	out := h(e, actor, req, now)
	out.Action = req.Kind
	out.ActorID = actor.ID
	if out.TargetID == "" {
		out.TargetID = req.TargetID
	}
	if out.OK && req.Kind != KindNone && !actor.IsDead() {
		actor.SetAction(req.Kind, now)
	}
	return out
}

func (e *Engine) none(_ *model.Agent, _ Request, _ time.Time) Result {
	return Result{OK: true}
}

func fail(r Result, code, reason string) Result {
	r.OK = false
	r.Code = code
	r.Reason = reason
	return r
}

func failure(code, reason string) Result {
	return Result{Code: code, Reason: reason}
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}
