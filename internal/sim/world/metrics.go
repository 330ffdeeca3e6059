package world

import "github.com/ShiraishiHope/MultiAgents/internal/sim/model"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Agents   int `json:"agents"`
	Alive    int `json:"alive"`
	Dead     int `json:"dead"`
	Carrying int `json:"carrying"`

	Stages           map[string]int `json:"stages"`
	InfectionTracked int            `json:"infection_tracked"`
	Moving           int            `json:"moving"`

	Items     int `json:"items"`
	Delivered int `json:"delivered"`

	Leader         string  `json:"leader"`
	Batches        uint64  `json:"batches"`
	OracleCalls    uint64  `json:"oracle_calls"`
	OracleFailures uint64  `json:"oracle_failures"`
	LastOracleMS   float64 `json:"last_oracle_ms"`
	InFlight       bool    `json:"in_flight"`

	StepMS float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

// publish stores fresh metrics and read-only copies for other goroutines.
func (w *World) publish(tick uint64, stepMS float64) {
	agents := w.reg.Agents.All()
	m := WorldMetrics{
		Tick:             tick,
		Agents:           len(agents),
		Stages:           map[string]int{},
		InfectionTracked: w.tracker.Tracked(),
		Moving:           w.mover.Active(),
		Items:            w.reg.Items.Len(),
		Batches:          w.coord.Seq(),
		OracleCalls:      w.coord.Calls(),
		OracleFailures:   w.coord.Failures(),
		LastOracleMS:     float64(w.coord.LastLatency().Microseconds()) / 1000.0,
		InFlight:         w.inFlight,
		StepMS:           stepMS,
	}
	m.Leader, _ = w.coord.Leader()

	snap := Snapshot{Tick: tick, Agents: make([]model.Agent, 0, len(agents))}
	for _, a := range agents {
		if a.IsDead() {
			m.Dead++
		} else {
			m.Alive++
		}
		if a.Carrying() {
			m.Carrying++
		}
		m.Stages[a.Stage.String()]++
		snap.Agents = append(snap.Agents, a.Clone())
	}
	for _, it := range w.reg.Items.All() {
		snap.Items = append(snap.Items, *it)
	}
	for _, d := range w.reg.Deposits.All() {
		m.Delivered += d.Deposited
		snap.Deposits = append(snap.Deposits, *d)
	}
	for _, f := range w.reg.Food.All() {
		snap.Food = append(snap.Food, *f)
	}
	w.metrics.Store(m)
	w.view.Store(snap)
}
