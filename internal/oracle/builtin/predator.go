package builtin

import (
	"math"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/actions"
)

const (
	factionPredator = "predator"
	factionPrey     = "prey"

	fleeDistance = 12.0
)

// decidePredatorPrey: predators chase the nearest visible prey and strike
// when close; prey run directly away from the nearest visible predator.
func (b *Brain) decidePredatorPrey(p *protocol.Perception) protocol.Decision {
	switch p.MyFaction {
	case factionPrey:
		if _, threat, ok := closestOf(p, factionPredator); ok {
			dx, dz := p.MyX-threat.X, p.MyZ-threat.Z
			l := math.Hypot(dx, dz)
			if l == 0 {
				dx, dz, l = 1, 0, 1
			}
			return move(protocol.MoveRun, p.MyX+dx/l*fleeDistance, p.MyZ+dz/l*fleeDistance)
		}
		return b.decideWander(p)
	case factionPredator:
		id, prey, ok := closestOf(p, factionPrey)
		if !ok {
			return b.decideWander(p)
		}
		switch {
		case prey.Distance <= actions.BiteRange:
			d := stop()
			d.Action = protocol.ActionDirective{Type: "bite", TargetID: id}
			return d
		case prey.Distance <= actions.AttackRange:
			d := move(protocol.MoveRun, prey.X, prey.Z)
			d.Action = protocol.ActionDirective{Type: "attack", TargetID: id}
			return d
		default:
			return move(protocol.MoveRun, prey.X, prey.Z)
		}
	default:
		return b.decideWander(p)
	}
}

func closestOf(p *protocol.Perception, faction string) (string, protocol.VisibleAgent, bool) {
	var id string
	var best protocol.VisibleAgent
	for vid, v := range p.VisibleAgents {
		if v.Faction != faction || v.State == "dead" {
			continue
		}
		if id == "" || v.Distance < best.Distance || (v.Distance == best.Distance && vid < id) {
			id, best = vid, v
		}
	}
	return id, best, id != ""
}
