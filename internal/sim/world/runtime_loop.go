package world

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/decision"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/tuning"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval(w.cfg.TickRateHz))
	defer ticker.Stop()

	var pendingJoins []*model.Agent
	var pendingLeaves []string
	var pendingOutcome *decision.Outcome

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case a := <-w.join:
			pendingJoins = append(pendingJoins, a)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case t := <-w.tuningCh:
			if w.applyTuning(t) {
				ticker.Reset(tickInterval(w.cfg.TickRateHz))
			}
		case out := <-w.outcomes:
			pendingOutcome = &out
		case <-ticker.C:
			w.stepInternal(ctx, pendingJoins, pendingLeaves, pendingOutcome, w.cfg.SyncDecisions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingOutcome = nil
		}
	}
}

func tickInterval(hz int) time.Duration {
	if hz <= 0 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick with the oracle call made
// inline. It is intended for tests and tools; do not mix with Run.
func (w *World) StepOnce(ctx context.Context) uint64 {
	tick := w.tick.Load()
	w.stepInternal(ctx, nil, nil, nil, true)
	return tick
}

// Join queues an agent to enter the world at the next tick boundary.
func (w *World) Join(ctx context.Context, a *model.Agent) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("join: agent id required")
	}
	select {
	case w.join <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave queues an agent removal for the next tick boundary.
func (w *World) Leave(ctx context.Context, id string) error {
	select {
	case w.leave <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateTuning hands a new tuning to the loop. It never blocks; a reload
// arriving while the queue is full is dropped.
func (w *World) UpdateTuning(t tuning.Tuning) bool {
	select {
	case w.tuningCh <- t:
		return true
	default:
		return false
	}
}

// startBatch snapshots synchronously and runs the oracle call in the
// background. The outcome comes back through w.outcomes.
func (w *World) startBatch(ctx context.Context, b *decision.Batch) {
	w.inFlight = true
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Printf("PANIC in batch seq=%d: %v\n%s", b.Seq, r, debug.Stack())
				out := decision.Outcome{Batch: b, Err: fmt.Errorf("batch panic: %v", r)}
				select {
				case w.outcomes <- out:
				case <-ctx.Done():
				}
			}
		}()
		out := w.coord.Call(ctx, b)
		select {
		case w.outcomes <- out:
		case <-ctx.Done():
		}
	}()
}
