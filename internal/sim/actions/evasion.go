package actions

import (
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/movement"
)

// threatPos looks the id up among agents first, then obstacles.
func (e *Engine) threatPos(id string) (model.Vec3, bool) {
	if id == "" {
		return model.Vec3{}, false
	}
	if a, ok := e.reg.Agents.Get(id); ok {
		return a.Pos, true
	}
	if o, ok := e.reg.Obstacles.Get(id); ok {
		return o.Pos, true
	}
	return model.Vec3{}, false
}

// avoid runs away from one or two threats.
func (e *Engine) avoid(actor *model.Agent, req Request, now time.Time) Result {
	first, ok := e.threatPos(req.TargetID)
	if !ok {
		return failure(protocol.ErrNotFound, "target not found")
	}
	self := actor.Pos.XZ()
	away := func(p model.Vec3) model.Vec2 {
		d, ok := self.Sub(p.XZ()).Normalize()
		if !ok {
			d = actor.Forward.Scale(-1)
			if n, ok := d.Normalize(); ok {
				return n
			}
			return model.Vec2{Z: -1}
		}
		return d
	}
	dir := away(first)
	if second, ok := e.threatPos(paramString(req.Params, ParamSecondTarget)); ok {
		sum := dir.Add(away(second))
		if n, ok := sum.Normalize(); ok {
			dir = n
		} else {
			dir = dir.Perp()
		}
	}
	mv := &Move{Target: self.Add(dir.Scale(AvoidDistance)), Speed: movement.Run}
	e.move(actor, mv)
	return Result{OK: true, Move: mv}
}

func (e *Engine) quarantine(actor *model.Agent, req Request, now time.Time) Result {
	var best *model.QuarantineZone
	bestDist := 0.0
	for _, z := range e.reg.Quarantine.All() {
		d := model.DistXZ(actor.Pos, z.Pos)
		if best == nil || d < bestDist {
			best, bestDist = z, d
		}
	}
	if best == nil {
		return failure(protocol.ErrNotFound, "no quarantine zone")
	}
	mv := &Move{Target: best.Pos.XZ(), Speed: movement.Walk}
	e.move(actor, mv)
	return Result{OK: true, TargetID: best.ID, Move: mv}
}

func (e *Engine) move(actor *model.Agent, mv *Move) {
	if e.mover != nil {
		e.mover.MoveTo(actor, mv.Target, mv.Speed)
	}
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	switch v := params[key].(type) {
	case string:
		return v
	case float64:
		return formatID(v)
	default:
		return ""
	}
}
