package model

import (
	"testing"
	"time"
)

func TestAgent_HealthAndHungerClamp(t *testing.T) {
	a := NewAgent("A1", "a", ArchetypeHuman, FactionNeutral, Vec3{})
	deltas := []float64{+40, -30, -80, +500, -1, +0.5, -99.5}
	for _, d := range deltas {
		a.AdjustHealth(d)
		a.AdjustHunger(d / 2)
		if a.Health < 0 || a.Health > MaxHealth {
			t.Fatalf("health out of range after %v: %v", d, a.Health)
		}
		if a.Hunger < 0 || a.Hunger > MaxHunger {
			t.Fatalf("hunger out of range after %v: %v", d, a.Hunger)
		}
	}
}

func TestAgent_DeathIsIdempotent(t *testing.T) {
	a := NewAgent("A1", "a", ArchetypeHuman, FactionNeutral, Vec3{})
	if died := a.AdjustHealth(-150); !died {
		t.Fatalf("expected death on first lethal hit")
	}
	if a.Health != 0 || !a.IsDead() {
		t.Fatalf("expected dead at 0 health, got state=%v health=%v", a.State, a.Health)
	}
	if a.AdjustHealth(-10) || a.Die("again") || a.AdjustHunger(-200) {
		t.Fatalf("second death must not be reported")
	}
	if a.DeathCause != "health" {
		t.Fatalf("cause overwritten: %q", a.DeathCause)
	}
	a.AdjustHealth(+50)
	if a.Health != 0 {
		t.Fatalf("dead agent healed: %v", a.Health)
	}
}

func TestAgent_StarvationKills(t *testing.T) {
	a := NewAgent("A1", "a", ArchetypeCreature, FactionPrey, Vec3{})
	if !a.AdjustHunger(-100) {
		t.Fatalf("expected starvation death")
	}
	if a.DeathCause != "starvation" {
		t.Fatalf("cause: %q", a.DeathCause)
	}
}

func TestAgent_InfectionLifecycle(t *testing.T) {
	a := NewAgent("A1", "a", ArchetypeHuman, FactionNeutral, Vec3{})
	flu := Disease{Name: "flu", Infectivity: 0.5, Incubation: time.Second, ContagiousFor: 2 * time.Second, Symptoms: []string{"cough"}}
	if !a.Expose(flu) {
		t.Fatalf("expose healthy agent")
	}
	flu.Symptoms[0] = "mutated"
	if a.Disease.Symptoms[0] != "cough" {
		t.Fatalf("disease profile must be copied")
	}
	if a.Expose(flu) {
		t.Fatalf("already exposed agent re-infected")
	}
	if a.Recover() {
		t.Fatalf("exposed agent skipped contagious stage")
	}
	if !a.BecomeContagious() || !a.Contagious {
		t.Fatalf("expected contagious")
	}
	if !a.Recover() {
		t.Fatalf("expected recovery")
	}
	if !a.Immune || a.Contagious || a.Stage != StageRecovered || a.Disease.Symptoms != nil || a.Disease.Name != "flu" {
		t.Fatalf("unexpected recovered state: %+v", a)
	}
	if a.Expose(flu) {
		t.Fatalf("immune agent re-infected")
	}
}

func TestAgent_DeathWhileInfected(t *testing.T) {
	a := NewAgent("A1", "a", ArchetypeHuman, FactionNeutral, Vec3{})
	a.Expose(Disease{Name: "flu"})
	a.BecomeContagious()
	a.Die("bite")
	if a.Stage != StageDead || a.Contagious {
		t.Fatalf("expected stage dead and not contagious, got %v %v", a.Stage, a.Contagious)
	}

	b := NewAgent("B1", "b", ArchetypeHuman, FactionNeutral, Vec3{})
	b.Die("kill")
	if b.Stage != StageHealthy {
		t.Fatalf("healthy agent stage should not change on death, got %v", b.Stage)
	}
}

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		from, to InfectionStage
		ok       bool
	}{
		{StageHealthy, StageExposed, true},
		{StageExposed, StageContagious, true},
		{StageExposed, StageDead, true},
		{StageContagious, StageRecovered, true},
		{StageRecovered, StageHealthy, false},
		{StageContagious, StageExposed, false},
		{StageHealthy, StageContagious, false},
		{StageDead, StageHealthy, false},
	}
	for _, c := range cases {
		if got := CanAdvance(c.from, c.to); got != c.ok {
			t.Fatalf("CanAdvance(%v,%v)=%v want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestFoodSource_Consume(t *testing.T) {
	f := &FoodSource{ID: "F1", Capacity: 2, Remaining: 2}
	want := []float64{50, 25}
	for i, w := range want {
		got, ok := f.Consume()
		if !ok || got != w {
			t.Fatalf("bite %d: got %v ok=%v want %v", i, got, ok, w)
		}
	}
	if _, ok := f.Consume(); ok {
		t.Fatalf("expected empty source")
	}

	big := &FoodSource{ID: "F2", Capacity: 4, Remaining: 4}
	if got, _ := big.Consume(); got != 25 {
		t.Fatalf("bonus applies only to two-unit sources, got %v", got)
	}
}

func TestAngleDeg(t *testing.T) {
	if got := AngleDeg(Vec2{Z: 1}, Vec2{X: 1}); got < 89.999 || got > 90.001 {
		t.Fatalf("expected 90, got %v", got)
	}
	if got := AngleDeg(Vec2{}, Vec2{X: 1}); got != 0 {
		t.Fatalf("zero vector should give 0, got %v", got)
	}
}
