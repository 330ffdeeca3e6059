package actions

import (
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

func (e *Engine) pickUp(actor *model.Agent, req Request, now time.Time) Result {
	if !actor.IsRobot() {
		return failure(protocol.ErrPrecondition, "only robots can carry items")
	}
	item, ok := e.reg.Items.Get(req.TargetID)
	if !ok {
		return failure(protocol.ErrNotFound, "item not found")
	}
	if item.CarriedBy != "" {
		return failure(protocol.ErrPrecondition, "item already carried")
	}
	if actor.Carrying() {
		return failure(protocol.ErrPrecondition, "already carrying")
	}
	if model.DistXZ(actor.Pos, item.Pos) > PickUpRange {
		return failure(protocol.ErrOutOfRange, "item out of range")
	}
	item.CarriedBy = actor.ID
	item.Pos = actor.Pos
	actor.CarryingID = item.ID
	actor.ReservedTargetID = ""
	return Result{OK: true}
}

// dropOff puts the carried item down and, when a deposit zone with room
// accepts it, credits the zone. The item leaves the world either way.
func (e *Engine) dropOff(actor *model.Agent, req Request, now time.Time) Result {
	if !actor.Carrying() {
		return failure(protocol.ErrPrecondition, "not carrying")
	}
	itemID := actor.CarryingID
	actor.CarryingID = ""
	out := Result{OK: true, TargetID: itemID}
	if item, ok := e.reg.Items.Get(itemID); ok {
		item.CarriedBy = ""
		item.Pos = model.Vec3{X: actor.Pos.X, Z: actor.Pos.Z}
		if zone := e.depositFor(item.Pos); zone != nil {
			zone.Deposited++
			out.DepositID = zone.ID
		}
		e.reg.Items.Unregister(itemID)
	}
	return out
}

func (e *Engine) depositFor(pos model.Vec3) *model.DepositZone {
	var best *model.DepositZone
	bestDist := 0.0
	for _, z := range e.reg.Deposits.All() {
		if !z.HasRoom() {
			continue
		}
		d := model.DistXZ(pos, z.Pos)
		if d > z.AcceptRadius {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = z, d
		}
	}
	return best
}
