package infection

import (
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

// Transition records one stage change made by the tracker.
type Transition struct {
	AgentID string               `json:"agent_id"`
	From    model.InfectionStage `json:"from"`
	To      model.InfectionStage `json:"to"`
	At      time.Time            `json:"at"`
}

// Tracker drives the timed Exposed -> Contagious -> Recovered progression.
// It never kills: death only comes from health or hunger reaching zero.
// Not safe for concurrent use; the world loop owns it.
type Tracker struct {
	started map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{started: map[string]time.Time{}}
}

// Tick advances every tracked agent. Agents that were infected outside the
// tracker start their timer on the first tick that observes them.
func (t *Tracker) Tick(now time.Time, agents []*model.Agent) []Transition {
	var out []Transition
	seen := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		seen[a.ID] = struct{}{}
		if a.IsDead() || !a.Stage.Infected() {
			delete(t.started, a.ID)
			continue
		}
		start, ok := t.started[a.ID]
		if !ok {
			t.started[a.ID] = now
			continue
		}
		elapsed := now.Sub(start)
		switch a.Stage {
		case model.StageExposed:
			if elapsed >= a.Disease.Incubation && a.BecomeContagious() {
				t.started[a.ID] = now
				out = append(out, newTransition(a.ID, model.StageExposed, model.StageContagious, now))
			}
		case model.StageContagious:
			if elapsed >= a.Disease.ContagiousFor && a.Recover() {
				delete(t.started, a.ID)
				out = append(out, newTransition(a.ID, model.StageContagious, model.StageRecovered, now))
			}
		}
	}
	for id := range t.started {
		if _, ok := seen[id]; !ok {
			delete(t.started, id)
		}
	}
	return out
}

func newTransition(id string, from, to model.InfectionStage, at time.Time) Transition {
	return Transition{AgentID: id, From: from, To: to, At: at}
}

// Tracked is the number of live stage timers.
func (t *Tracker) Tracked() int { return len(t.started) }

// Since returns when the current stage timer for id started.
func (t *Tracker) Since(id string) (time.Time, bool) {
	v, ok := t.started[id]
	return v, ok
}
