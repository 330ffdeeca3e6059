package world

import (
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

// systemCarried keeps carried items at their carrier's position.
func (w *World) systemCarried(agents []*model.Agent) {
	for _, a := range agents {
		if !a.Carrying() {
			continue
		}
		it, ok := w.reg.Items.Get(a.CarryingID)
		if !ok {
			a.CarryingID = ""
			continue
		}
		it.Pos = a.Pos
	}
}

// systemHunger drains hunger over time. Robots do not eat.
func (w *World) systemHunger(agents []*model.Agent, secs float64) {
	rate := w.cfg.HungerDecayPerSec
	if rate <= 0 || secs <= 0 {
		return
	}
	for _, a := range agents {
		if a.IsDead() || a.IsRobot() {
			continue
		}
		w.engine.ModifyHunger(a.ID, -rate*secs)
	}
}

// systemSymptoms wears down contagious agents in proportion to the
// disease's mortality rate.
func (w *World) systemSymptoms(agents []*model.Agent, secs float64) {
	rate := w.cfg.SymptomDrainPerSec
	if rate <= 0 || secs <= 0 {
		return
	}
	for _, a := range agents {
		if a.IsDead() || !a.Contagious || a.Disease.MortalityRate <= 0 {
			continue
		}
		if died, _ := w.engine.ModifyHealth(a.ID, -a.Disease.MortalityRate*rate*secs); died {
			a.DeathCause = "disease"
		}
	}
}

// systemDeaths reports agents that died since the last call and cleans up
// what they held.
func (w *World) systemDeaths(agents []*model.Agent) []Death {
	var out []Death
	for _, a := range agents {
		if !a.IsDead() || w.dead[a.ID] {
			continue
		}
		w.dead[a.ID] = true
		w.releaseCarried(a)
		w.mover.Forget(a.ID)
		out = append(out, Death{AgentID: a.ID, Cause: a.DeathCause})
		w.logger.Printf("agent %s died (%s)", a.ID, a.DeathCause)
	}
	return out
}

func (w *World) releaseCarried(a *model.Agent) {
	if !a.Carrying() {
		return
	}
	if it, ok := w.reg.Items.Get(a.CarryingID); ok {
		it.CarriedBy = ""
		it.Pos = model.Vec3{X: a.Pos.X, Z: a.Pos.Z}
	}
	a.CarryingID = ""
}
