package actions

import (
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

func (e *Engine) eat(actor *model.Agent, req Request, now time.Time) Result {
	food, ok := e.reg.Food.Get(req.TargetID)
	if !ok {
		return failure(protocol.ErrNotFound, "food not found")
	}
	if model.DistXZ(actor.Pos, food.Pos) > EatRange {
		return failure(protocol.ErrOutOfRange, "food out of range")
	}
	restored, ok := food.Consume()
	if !ok {
		return failure(protocol.ErrPrecondition, "already empty")
	}
	actor.AdjustHunger(restored)
	return Result{OK: true, Restored: restored}
}
