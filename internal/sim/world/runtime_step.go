package world

import (
	"context"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/decision"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

const maxStepDt = time.Second

func (w *World) stepInternal(ctx context.Context, joins []*model.Agent, leaves []string, outcome *decision.Outcome, syncBatch bool) {
	stepStart := time.Now()
	now := w.clock.Now()
	nowTick := w.tick.Load()

	dt := time.Duration(0)
	if !w.lastStep.IsZero() {
		dt = now.Sub(w.lastStep)
		if dt < 0 {
			dt = 0
		}
		if dt > maxStepDt {
			dt = maxStepDt
		}
	}
	w.lastStep = now

	entry := TickLogEntry{Tick: nowTick, At: now}

	// Leaves before joins so an id can be recycled within one tick.
	for _, id := range leaves {
		if w.RemoveAgent(id) {
			entry.Leaves = append(entry.Leaves, id)
		}
	}
	for _, a := range joins {
		if err := w.AddAgent(a); err != nil {
			w.logger.Printf("join %s rejected: %v", a.ID, err)
			continue
		}
		entry.Joins = append(entry.Joins, a.ID)
	}

	if outcome != nil {
		w.inFlight = false
		entry.Batch = w.applyOutcome(nowTick, now, *outcome)
	}

	agents := w.reg.Agents.All()
	byID := make(map[string]*model.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}

	// Systems: movement -> carried items -> hunger -> symptoms -> infection -> deaths
	secs := dt.Seconds()
	w.mover.Tick(byID, secs)
	w.systemCarried(agents)
	w.systemHunger(agents, secs)
	w.systemSymptoms(agents, secs)
	entry.Transitions = w.tracker.Tick(now, agents)
	entry.Deaths = w.systemDeaths(agents)

	if syncBatch {
		if b := w.nextBatch(now); b != nil {
			out := w.coord.Call(ctx, b)
			entry.Batch = w.applyOutcome(nowTick, now, out)
			entry.Deaths = append(entry.Deaths, w.systemDeaths(w.reg.Agents.All())...)
		}
	} else if !w.inFlight {
		if b := w.nextBatch(now); b != nil {
			w.startBatch(ctx, b)
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.tick.Add(1)
	w.publish(nowTick+1, stepMS)

	if w.tickLogger != nil && !entry.empty() {
		_ = w.tickLogger.WriteTick(entry)
	}
}

// nextBatch returns a due, non-empty batch or nil.
func (w *World) nextBatch(now time.Time) *decision.Batch {
	if !w.coord.Due(now) {
		return nil
	}
	b := w.coord.Snapshot(now)
	if b == nil || len(b.AgentIDs) == 0 {
		return nil
	}
	return b
}

func (w *World) applyOutcome(nowTick uint64, now time.Time, out decision.Outcome) *BatchLog {
	rep := w.coord.Apply(out, now)
	bl := &BatchLog{
		Seq:        rep.Seq,
		Applied:    rep.Applied,
		Defaulted:  rep.Defaulted,
		Skipped:    rep.Skipped,
		SkippedAll: rep.SkippedAll,
		LatencyMS:  float64(out.Latency.Microseconds()) / 1000.0,
	}
	if out.Batch != nil {
		bl.Leader = out.Batch.Leader
		bl.Agents = len(out.Batch.AgentIDs)
	}
	if rep.Err != nil {
		bl.Error = rep.Err.Error()
	}
	if w.auditLogger != nil {
		for _, r := range rep.Results {
			res := r.Action
			if res.Action == "" || res.Action == "none" {
				continue
			}
			_ = w.auditLogger.WriteAudit(AuditEntry{
				Tick:     nowTick,
				At:       now,
				Seq:      rep.Seq,
				Actor:    r.AgentID,
				Action:   res.Action,
				Target:   res.TargetID,
				OK:       res.OK,
				Code:     res.Code,
				Reason:   res.Reason,
				Damage:   res.Damage,
				Infected: res.InfectedIDs,
				Killed:   res.Killed,
				Restored: res.Restored,
				Deposit:  res.DepositID,
			})
		}
	}
	return bl
}
