package builtin

import (
	"math"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/actions"
)

const (
	noTarget = "0"

	separationRange    = 2.5
	separationStrength = 3.0
	separationMinDist  = 1.2
)

// decideLogistics drives a robot: keep the reserved item while it exists,
// otherwise reserve the nearest unreserved item no free robot is closer
// to; once carrying, head to the nearest deposit and drop it there.
func (b *Brain) decideLogistics(p *protocol.Perception) protocol.Decision {
	targetX, targetZ := p.SpawnX, p.SpawnZ
	targetID := p.CurrentTargetID
	if targetID == "" {
		targetID = noTarget
	}
	action := protocol.ActionNone
	reach := 0.0

	if p.IsCarrying == 1 {
		targetID = noTarget
		if dep, ok := closestDeposit(p); ok {
			targetX, targetZ = dep.X, dep.Z
			reach = dep.AcceptRadius
			action = "drop_off"
		}
	} else if it, ok := b.pickItem(p); ok {
		targetX, targetZ, targetID = it.X, it.Z, it.ID
		reach = actions.PickUpRange
		action = "pick_up"
	} else {
		targetID = noTarget
	}

	dist := math.Hypot(targetX-p.MyX, targetZ-p.MyZ)
	if action != protocol.ActionNone && dist <= reach {
		d := stop()
		d.Action = protocol.ActionDirective{Type: action, TargetID: targetID}
		return d
	}

	sx, sz := 0.0, 0.0
	if dist > separationMinDist {
		for _, o := range p.Obstacles {
			dx, dz := p.MyX-o.X, p.MyZ-o.Z
			d := math.Hypot(dx, dz)
			if d > 0 && d < separationRange {
				s := (separationRange - d) / separationRange * separationStrength
				sx += dx / d * s
				sz += dz / d * s
			}
		}
	}
	d := move(protocol.MoveWalk, targetX+sx, targetZ+sz)
	d.Action.TargetID = targetID
	return d
}

func (b *Brain) pickItem(p *protocol.Perception) (protocol.ItemInfo, bool) {
	for _, it := range p.Items {
		if it.ID == p.CurrentTargetID {
			return it, true
		}
	}

	reserved := map[string]bool{}
	type free struct{ x, z float64 }
	var others []free
	for id, a := range p.AllAgents {
		if a.CurrentTargetID != "" && a.CurrentTargetID != noTarget {
			reserved[a.CurrentTargetID] = true
		} else if !a.IsCarrying && id != p.MyID {
			others = append(others, free{a.X, a.Z})
		}
	}

	// Nearest unreserved item, preferring ones no idle agent is closer to.
	var best, fallback protocol.ItemInfo
	bestD, fallbackD := math.Inf(1), math.Inf(1)
	for _, it := range p.Items {
		if reserved[it.ID] {
			continue
		}
		mine := sq(it.X-p.MyX) + sq(it.Z-p.MyZ)
		if mine < fallbackD || (mine == fallbackD && it.ID < fallback.ID) {
			fallback, fallbackD = it, mine
		}
		closest := true
		for _, o := range others {
			if sq(it.X-o.x)+sq(it.Z-o.z) < mine {
				closest = false
				break
			}
		}
		if closest && (mine < bestD || (mine == bestD && it.ID < best.ID)) {
			best, bestD = it, mine
		}
	}
	if math.IsInf(bestD, 1) {
		return fallback, !math.IsInf(fallbackD, 1)
	}
	return best, true
}

func closestDeposit(p *protocol.Perception) (protocol.DepositInfo, bool) {
	var best protocol.DepositInfo
	bestD := math.Inf(1)
	for _, d := range p.Deposits {
		if d.Remaining == 0 {
			continue
		}
		if dd := sq(d.X-p.MyX) + sq(d.Z-p.MyZ); dd < bestD {
			best, bestD = d, dd
		}
	}
	return best, !math.IsInf(bestD, 1)
}

func sq(v float64) float64 { return v * v }
