package infection

import (
	"testing"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

func exposed(id string, incubation, contagious time.Duration) *model.Agent {
	a := model.NewAgent(id, id, model.ArchetypeHuman, model.FactionNeutral, model.Vec3{})
	a.Expose(model.Disease{Name: "flu", Incubation: incubation, ContagiousFor: contagious, Symptoms: []string{"cough"}})
	return a
}

func TestTracker_StageTimers(t *testing.T) {
	t0 := time.Unix(1000, 0)
	a := exposed("A1", 5*time.Second, 10*time.Second)
	tr := NewTracker()
	agents := []*model.Agent{a}

	if got := tr.Tick(t0, agents); len(got) != 0 {
		t.Fatalf("first observation only starts the timer, got %+v", got)
	}
	if tr.Tracked() != 1 {
		t.Fatalf("expected one timer")
	}
	tr.Tick(t0.Add(4999*time.Millisecond), agents)
	if a.Stage != model.StageExposed {
		t.Fatalf("promoted before incubation elapsed")
	}
	got := tr.Tick(t0.Add(5*time.Second), agents)
	if a.Stage != model.StageContagious || !a.Contagious || len(got) != 1 || got[0].To != model.StageContagious {
		t.Fatalf("expected contagious at exactly incubation, got stage=%v transitions=%+v", a.Stage, got)
	}
	since, _ := tr.Since("A1")
	if !since.Equal(t0.Add(5 * time.Second)) {
		t.Fatalf("timer not reset on promotion: %v", since)
	}

	tr.Tick(t0.Add(14*time.Second), agents)
	if a.Stage != model.StageContagious {
		t.Fatalf("recovered early")
	}
	got = tr.Tick(t0.Add(15*time.Second), agents)
	if a.Stage != model.StageRecovered || !a.Immune || a.Contagious || len(got) != 1 {
		t.Fatalf("expected recovered+immune, got %+v", a)
	}
	if tr.Tracked() != 0 {
		t.Fatalf("recovered agent still tracked")
	}
	if a.Expose(a.Disease) {
		t.Fatalf("immunity must be permanent")
	}
}

func TestTracker_DeathAndRemovalStopTracking(t *testing.T) {
	t0 := time.Unix(0, 0)
	a := exposed("A1", time.Second, time.Second)
	b := exposed("B1", time.Second, time.Second)
	tr := NewTracker()
	tr.Tick(t0, []*model.Agent{a, b})
	if tr.Tracked() != 2 {
		t.Fatalf("expected two timers, got %d", tr.Tracked())
	}

	a.Die("bite")
	// b disappears from the world mid-stage.
	got := tr.Tick(t0.Add(2*time.Second), []*model.Agent{a})
	if len(got) != 0 {
		t.Fatalf("tracker must never transition dead agents: %+v", got)
	}
	if a.Stage != model.StageDead {
		t.Fatalf("dead agent stage changed: %v", a.Stage)
	}
	if tr.Tracked() != 0 {
		t.Fatalf("expected all timers pruned, got %d", tr.Tracked())
	}
}

func TestTracker_PicksUpExternalInfection(t *testing.T) {
	t0 := time.Unix(0, 0)
	a := model.NewAgent("A1", "a", model.ArchetypeHuman, model.FactionNeutral, model.Vec3{})
	tr := NewTracker()
	tr.Tick(t0, []*model.Agent{a})
	if tr.Tracked() != 0 {
		t.Fatalf("healthy agents are not tracked")
	}
	a.Expose(model.Disease{Name: "flu", Incubation: time.Second, ContagiousFor: time.Second})
	tr.Tick(t0.Add(10*time.Second), []*model.Agent{a})
	if a.Stage != model.StageExposed {
		t.Fatalf("timer must start when the infection is first observed")
	}
	if since, ok := tr.Since("A1"); !ok || !since.Equal(t0.Add(10*time.Second)) {
		t.Fatalf("unexpected start %v %v", since, ok)
	}
}
