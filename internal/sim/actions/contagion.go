package actions

import (
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/perception"
)

// InfectionChance is the probability that one contact infects a target
// with the given health. Lower health means higher susceptibility.
func InfectionChance(infectivity, targetHealth float64) float64 {
	c := infectivity * (1 - targetHealth/model.MaxHealth)
	if c < MinInfectionChance {
		return MinInfectionChance
	}
	if c > 1 {
		return 1
	}
	return c
}

// Transmit makes a single memoryless infection attempt from actor to target.
// It is a silent no-op unless actor is contagious and target is a live,
// healthy, non-immune agent.
func (e *Engine) Transmit(actor, target *model.Agent) bool {
	if actor == nil || target == nil || !actor.Contagious || actor.IsDead() {
		return false
	}
	if target.IsDead() || target.Immune || target.Stage != model.StageHealthy {
		return false
	}
	chance := InfectionChance(actor.Disease.Infectivity, target.Health)
	if e.rng.Float64() > chance {
		return false
	}
	return target.Expose(actor.Disease)
}

func (e *Engine) sneeze(actor *model.Agent, req Request, now time.Time) Result {
	return e.spread(actor, func(o *model.Agent) bool {
		return perception.Within(actor.Pos, o.Pos, SneezeRadius)
	})
}

func (e *Engine) cough(actor *model.Agent, req Request, now time.Time) Result {
	return e.spread(actor, func(o *model.Agent) bool {
		return perception.InCone(actor.Pos, actor.Forward, o.Pos, CoughHalfAngleDeg, CoughRadius)
	})
}

func (e *Engine) spread(actor *model.Agent, inShape func(*model.Agent) bool) Result {
	if !actor.Contagious {
		return failure(protocol.ErrPrecondition, "not contagious")
	}
	out := Result{OK: true}
	for _, o := range e.reg.Agents.All() {
		if o.ID == actor.ID || o.IsDead() || !inShape(o) {
			continue
		}
		if e.Transmit(actor, o) {
			out.Infected++
			out.InfectedIDs = append(out.InfectedIDs, o.ID)
		}
	}
	return out
}
