package actions

import (
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

// damage profile: base * U(minMul, maxMul)
type strike struct {
	rangeMax float64
	base     float64
	minMul   float64
	maxMul   float64
	transmit bool
}

var (
	attackStrike = strike{rangeMax: AttackRange, base: 25, minMul: 1, maxMul: 2}
	clawStrike   = strike{rangeMax: ClawRange, base: 10, minMul: 1, maxMul: 3, transmit: true}
	biteStrike   = strike{rangeMax: BiteRange, base: 30, minMul: 1, maxMul: 3, transmit: true}
)

func (e *Engine) attack(actor *model.Agent, req Request, now time.Time) Result {
	return e.strike(actor, req, attackStrike)
}

func (e *Engine) claw(actor *model.Agent, req Request, now time.Time) Result {
	return e.strike(actor, req, clawStrike)
}

func (e *Engine) bite(actor *model.Agent, req Request, now time.Time) Result {
	return e.strike(actor, req, biteStrike)
}

// combatTarget resolves and validates a live agent other than actor.
func (e *Engine) combatTarget(actor *model.Agent, id string) (*model.Agent, Result, bool) {
	target, ok := e.reg.Agents.Get(id)
	if !ok || id == "" {
		return nil, failure(protocol.ErrNotFound, "target not found"), false
	}
	if target.ID == actor.ID {
		return nil, failure(protocol.ErrPrecondition, "cannot target self"), false
	}
	if target.IsDead() {
		return nil, failure(protocol.ErrPrecondition, "target dead"), false
	}
	return target, Result{}, true
}

func (e *Engine) strike(actor *model.Agent, req Request, s strike) Result {
	target, res, ok := e.combatTarget(actor, req.TargetID)
	if !ok {
		return res
	}
	if model.DistXZ(actor.Pos, target.Pos) > s.rangeMax {
		return failure(protocol.ErrOutOfRange, "target out of range")
	}
	dmg := s.base * e.uniform(s.minMul, s.maxMul)
	out := Result{OK: true, Damage: dmg}
	out.Killed = target.AdjustHealth(-dmg)
	if s.transmit && e.Transmit(actor, target) {
		out.Infected = 1
		out.InfectedIDs = []string{target.ID}
	}
	return out
}

// kill has no range check; the target only has to be another live agent.
func (e *Engine) kill(actor *model.Agent, req Request, now time.Time) Result {
	target, res, ok := e.combatTarget(actor, req.TargetID)
	if !ok {
		return res
	}
	dmg := target.Health
	died := target.Die("killed by " + actor.ID)
	if died {
		target.Health = 0
	}
	return Result{OK: true, Damage: dmg, Killed: died}
}
