package actions

import (
	"testing"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/movement"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/registry"
)

// scriptedRand replays fixed draws, repeating the last one.
type scriptedRand struct {
	vals []float64
	i    int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[r.i]
	if r.i < len(r.vals)-1 {
		r.i++
	}
	return v
}

type recordingMover struct {
	calls []Move
}

func (m *recordingMover) MoveTo(a *model.Agent, target model.Vec2, speed movement.Speed) bool {
	m.calls = append(m.calls, Move{Target: target, Speed: speed})
	return true
}

type fixture struct {
	reg   *registry.Registries
	eng   *Engine
	rng   *scriptedRand
	mover *recordingMover
	now   time.Time
}

func newFixture(t *testing.T, draws ...float64) *fixture {
	t.Helper()
	reg := registry.NewRegistries(nil)
	rng := &scriptedRand{vals: draws}
	mover := &recordingMover{}
	eng, err := NewEngine(reg, mover, rng, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &fixture{reg: reg, eng: eng, rng: rng, mover: mover, now: time.Unix(100, 0)}
}

func (f *fixture) agent(t *testing.T, id string, arch model.Archetype, x, z float64) *model.Agent {
	t.Helper()
	a := model.NewAgent(id, id, arch, model.FactionNeutral, model.Vec3{X: x, Z: z})
	if err := f.reg.Agents.Register(a); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return a
}

func contagious(a *model.Agent, infectivity float64) {
	a.Expose(model.Disease{Name: "flu", Infectivity: infectivity, Incubation: time.Second, ContagiousFor: time.Minute})
	a.BecomeContagious()
}

func TestDispatchMapMatchesSupportedKinds(t *testing.T) {
	if err := validateDispatchMap("actionDispatch", dispatch, supportedKinds); err != nil {
		t.Fatalf("dispatch map: %v", err)
	}
	extra := map[string]handler{KindNone: (*Engine).none, "fly": (*Engine).none}
	if err := validateDispatchMap("test", extra, []string{KindNone}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestApply_DeadActorAndUnknownKind(t *testing.T) {
	f := newFixture(t, 0.5)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	f.agent(t, "B", model.ArchetypeHuman, 1, 0)

	res := f.eng.Apply(a, Request{Kind: "teleport"}, f.now)
	if res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("expected bad request, got %+v", res)
	}
	a.Die("test")
	res = f.eng.Apply(a, Request{Kind: KindAttack, TargetID: "B"}, f.now)
	if res.OK || res.Code != protocol.ErrPrecondition || res.Reason != "agent dead" {
		t.Fatalf("expected dead actor rejection, got %+v", res)
	}
	b, _ := f.reg.Agents.Get("B")
	if b.Health != 100 {
		t.Fatalf("dead actor caused damage")
	}
}

func TestAttack_DamageRangeAndDeathOnce(t *testing.T) {
	f := newFixture(t, 0, 1, 0.5)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	b := f.agent(t, "B", model.ArchetypeHuman, 1.5, 0)

	res := f.eng.Apply(a, Request{Kind: KindAttack, TargetID: "B"}, f.now)
	if !res.OK || res.Damage != 25 || b.Health != 75 {
		t.Fatalf("min roll: %+v health=%v", res, b.Health)
	}
	if a.LastAction != KindAttack || !a.LastActionAt.Equal(f.now) {
		t.Fatalf("last action not recorded: %q", a.LastAction)
	}
	res = f.eng.Apply(a, Request{Kind: KindAttack, TargetID: "B"}, f.now)
	if res.Damage != 50 || b.Health != 25 {
		t.Fatalf("max roll: %+v health=%v", res, b.Health)
	}

	deaths := 0
	for i := 0; i < 5; i++ {
		res = f.eng.Apply(a, Request{Kind: KindAttack, TargetID: "B"}, f.now)
		if res.Killed {
			deaths++
		}
		if res.OK && (res.Damage < 25 || res.Damage > 50) {
			t.Fatalf("damage out of range: %v", res.Damage)
		}
	}
	if deaths != 1 || !b.IsDead() || b.Health != 0 {
		t.Fatalf("expected exactly one death, got %d state=%v", deaths, b.State)
	}
	if res.OK || res.Reason != "target dead" {
		t.Fatalf("attacks on the dead must fail, got %+v", res)
	}
}

func TestAttack_Failures(t *testing.T) {
	f := newFixture(t, 0.5)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	f.agent(t, "FAR", model.ArchetypeHuman, 2.5, 0)

	cases := []struct {
		target string
		code   string
	}{
		{"missing", protocol.ErrNotFound},
		{"A", protocol.ErrPrecondition},
		{"FAR", protocol.ErrOutOfRange},
	}
	for _, c := range cases {
		res := f.eng.Apply(a, Request{Kind: KindAttack, TargetID: c.target}, f.now)
		if res.OK || res.Code != c.code {
			t.Fatalf("target %s: expected %s, got %+v", c.target, c.code, res)
		}
	}
	if a.LastAction != "" {
		t.Fatalf("failed actions must not record last action")
	}
}

func TestBite_TransmitsFromContagiousActor(t *testing.T) {
	// Damage roll, then transmission draw.
	f := newFixture(t, 0, 0.01)
	a := f.agent(t, "A", model.ArchetypeCreature, 0, 0)
	b := f.agent(t, "B", model.ArchetypeHuman, 0.5, 0)
	contagious(a, 0.2)

	res := f.eng.Apply(a, Request{Kind: KindBite, TargetID: "B"}, f.now)
	if !res.OK || res.Damage != 30 || res.Infected != 1 {
		t.Fatalf("unexpected bite result %+v", res)
	}
	if b.Stage != model.StageExposed || b.Disease.Name != "flu" {
		t.Fatalf("target not exposed: %+v", b)
	}
}

func TestKill_IgnoresRange(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	b := f.agent(t, "B", model.ArchetypeHuman, 50, 50)
	res := f.eng.Apply(a, Request{Kind: KindKill, TargetID: "B"}, f.now)
	if !res.OK || !res.Killed || !b.IsDead() || b.Health != 0 {
		t.Fatalf("kill failed: %+v", res)
	}
}

func TestKill_RejectsSelf(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	res := f.eng.Apply(a, Request{Kind: KindKill, TargetID: "A"}, f.now)
	if res.OK || res.Code != protocol.ErrPrecondition || res.Killed {
		t.Fatalf("self kill should fail, got %+v", res)
	}
	if a.IsDead() || a.Health != 100 || a.LastAction != "" {
		t.Fatalf("actor changed by failed kill: state=%v health=%v last=%q", a.State, a.Health, a.LastAction)
	}
}

func TestClaw_RangeDamageAndTransmission(t *testing.T) {
	// Min damage roll then transmission draw for B; max damage roll for IMM.
	f := newFixture(t, 0, 0.01, 1, 0)
	a := f.agent(t, "A", model.ArchetypeCreature, 0, 0)
	b := f.agent(t, "B", model.ArchetypeHuman, ClawRange, 0)
	far := f.agent(t, "FAR", model.ArchetypeHuman, 1.6, 0)
	imm := f.agent(t, "IMM", model.ArchetypeHuman, 0, 1)
	imm.Immune = true
	contagious(a, 0.2)

	res := f.eng.Apply(a, Request{Kind: KindClaw, TargetID: "B"}, f.now)
	if !res.OK || res.Damage < 10 || res.Damage > 30 || b.Health != 100-res.Damage {
		t.Fatalf("claw at range edge: %+v health=%v", res, b.Health)
	}
	if res.Infected != 1 || b.Stage != model.StageExposed || b.Disease.Name != "flu" {
		t.Fatalf("healthy target should be exposed: %+v stage=%v", res, b.Stage)
	}

	res = f.eng.Apply(a, Request{Kind: KindClaw, TargetID: "FAR"}, f.now)
	if res.OK || res.Code != protocol.ErrOutOfRange || far.Health != 100 {
		t.Fatalf("claw beyond range: %+v health=%v", res, far.Health)
	}

	res = f.eng.Apply(a, Request{Kind: KindClaw, TargetID: "IMM"}, f.now)
	if !res.OK || res.Damage != 30 || imm.Health != 70 {
		t.Fatalf("max roll: %+v health=%v", res, imm.Health)
	}
	if res.Infected != 0 || imm.Stage != model.StageHealthy {
		t.Fatalf("immune target must not be exposed: %+v stage=%v", res, imm.Stage)
	}
}

func TestInfectionChance(t *testing.T) {
	prev := -1.0
	for h := 100.0; h >= 0; h -= 5 {
		c := InfectionChance(0.6, h)
		if c < MinInfectionChance {
			t.Fatalf("chance below floor at health %v: %v", h, c)
		}
		if c < prev {
			t.Fatalf("chance decreased as health fell: %v -> %v", prev, c)
		}
		prev = c
	}
	if got := InfectionChance(0.6, 100); got != MinInfectionChance {
		t.Fatalf("full health should hit the floor, got %v", got)
	}
	if got := InfectionChance(0.6, 0); got != 0.6 {
		t.Fatalf("zero health should equal infectivity, got %v", got)
	}
}

func TestTransmit_Guards(t *testing.T) {
	f := newFixture(t, 0)
	src := f.agent(t, "SRC", model.ArchetypeHuman, 0, 0)
	immune := f.agent(t, "IMM", model.ArchetypeHuman, 0, 0)
	immune.Immune = true
	sick := f.agent(t, "SICK", model.ArchetypeHuman, 0, 0)
	sick.Expose(model.Disease{Name: "other"})
	dead := f.agent(t, "DEAD", model.ArchetypeHuman, 0, 0)
	dead.Die("test")
	healthy := f.agent(t, "OK", model.ArchetypeHuman, 0, 0)

	if f.eng.Transmit(src, healthy) {
		t.Fatalf("non-contagious source must not transmit")
	}
	contagious(src, 1)
	for _, tgt := range []*model.Agent{immune, sick, dead} {
		before := tgt.Stage
		if f.eng.Transmit(src, tgt) || tgt.Stage != before {
			t.Fatalf("%s must not be infected", tgt.ID)
		}
	}
	if sick.Disease.Name != "other" {
		t.Fatalf("existing infection overwritten")
	}
	if !f.eng.Transmit(src, healthy) {
		t.Fatalf("healthy target with draw 0 must be infected")
	}
}

func TestSneezeAndCough(t *testing.T) {
	f := newFixture(t, 0)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	a.Forward = model.Vec2{Z: 1}
	near := f.agent(t, "NEAR", model.ArchetypeHuman, 0, -2)
	ahead := f.agent(t, "AHEAD", model.ArchetypeHuman, 0, 4.5)
	side := f.agent(t, "SIDE", model.ArchetypeHuman, 4, 0)

	res := f.eng.Apply(a, Request{Kind: KindSneeze}, f.now)
	if res.OK || res.Reason != "not contagious" {
		t.Fatalf("expected not contagious, got %+v", res)
	}
	contagious(a, 1)

	res = f.eng.Apply(a, Request{Kind: KindCough}, f.now)
	if !res.OK || res.Infected != 1 || ahead.Stage != model.StageExposed {
		t.Fatalf("cough should infect only the agent in the cone: %+v", res)
	}
	if near.Stage != model.StageHealthy || side.Stage != model.StageHealthy {
		t.Fatalf("cough leaked outside the cone")
	}

	res = f.eng.Apply(a, Request{Kind: KindSneeze}, f.now)
	if !res.OK || res.Infected != 1 || near.Stage != model.StageExposed || side.Stage != model.StageHealthy {
		t.Fatalf("sneeze should infect only within radius 3: %+v", res)
	}
}

func TestEat_TwoUnitSource(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	a.Hunger = 0.5
	if err := f.reg.Food.Register(&model.FoodSource{ID: "F", Pos: model.Vec3{X: 1}, Capacity: 2, Remaining: 2}); err != nil {
		t.Fatalf("register: %v", err)
	}
	want := []float64{50, 25}
	for i, w := range want {
		res := f.eng.Apply(a, Request{Kind: KindEat, TargetID: "F"}, f.now)
		if !res.OK || res.Restored != w {
			t.Fatalf("bite %d: %+v", i, res)
		}
	}
	if a.Hunger != 75.5 {
		t.Fatalf("hunger=%v", a.Hunger)
	}
	res := f.eng.Apply(a, Request{Kind: KindEat, TargetID: "F"}, f.now)
	if res.OK || res.Reason != "already empty" {
		t.Fatalf("expected already empty, got %+v", res)
	}
	res = f.eng.Apply(a, Request{Kind: KindEat, TargetID: "NOPE"}, f.now)
	if res.Code != protocol.ErrNotFound || res.Reason != "food not found" {
		t.Fatalf("expected food not found, got %+v", res)
	}
}

func TestPickUpAndDropOff(t *testing.T) {
	f := newFixture(t)
	r := f.agent(t, "R", model.ArchetypeRobot, 0, 0)
	r.ReservedTargetID = "I1"
	other := f.agent(t, "R2", model.ArchetypeRobot, 0, 0)
	human := f.agent(t, "H", model.ArchetypeHuman, 0, 0)
	for _, it := range []*model.Item{
		{ID: "I1", Pos: model.Vec3{X: 1}},
		{ID: "I2", Pos: model.Vec3{X: 2}},
	} {
		if err := f.reg.Items.Register(it); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := f.reg.Deposits.Register(&model.DepositZone{ID: "D", Pos: model.Vec3{X: 0.5}, Capacity: 1, AcceptRadius: 3}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if res := f.eng.Apply(human, Request{Kind: KindPickUp, TargetID: "I1"}, f.now); res.OK {
		t.Fatalf("humans cannot carry")
	}
	if res := f.eng.Apply(r, Request{Kind: KindPickUp, TargetID: "I2"}, f.now); res.Code != protocol.ErrOutOfRange {
		t.Fatalf("expected out of range at 2.0, got %+v", res)
	}
	res := f.eng.Apply(r, Request{Kind: KindPickUp, TargetID: "I1"}, f.now)
	if !res.OK || r.CarryingID != "I1" || r.ReservedTargetID != "" {
		t.Fatalf("pick up at 1.0 failed: %+v", res)
	}
	if res := f.eng.Apply(other, Request{Kind: KindPickUp, TargetID: "I1"}, f.now); res.Reason != "item already carried" {
		t.Fatalf("expected item already carried, got %+v", res)
	}
	if res := f.eng.Apply(r, Request{Kind: KindPickUp, TargetID: "I2"}, f.now); res.Reason != "already carrying" {
		t.Fatalf("expected already carrying, got %+v", res)
	}

	r.Pos = model.Vec3{X: 1, Y: 2, Z: 1}
	res = f.eng.Apply(r, Request{Kind: KindDropOff}, f.now)
	if !res.OK || res.DepositID != "D" || r.Carrying() {
		t.Fatalf("drop off failed: %+v", res)
	}
	if _, ok := f.reg.Items.Get("I1"); ok {
		t.Fatalf("delivered item should leave the registry")
	}
	if d, _ := f.reg.Deposits.Get("D"); d.Deposited != 1 {
		t.Fatalf("deposit not credited")
	}
	if res := f.eng.Apply(r, Request{Kind: KindDropOff}, f.now); res.Reason != "not carrying" {
		t.Fatalf("expected not carrying, got %+v", res)
	}
}

func TestAvoid(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	f.agent(t, "E", model.ArchetypeCreature, 0, 2)
	if err := f.reg.Obstacles.Register(&model.Obstacle{ID: "W", Pos: model.Vec3{Z: -2}, Radius: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.agent(t, "N", model.ArchetypeCreature, 2, 0)

	res := f.eng.Apply(a, Request{Kind: KindAvoid, TargetID: "E"}, f.now)
	if !res.OK || res.Move == nil || res.Move.Target != (model.Vec2{Z: -8}) || res.Move.Speed != movement.Run {
		t.Fatalf("single avoid: %+v", res.Move)
	}

	// Opposite threats cancel; fall back to a perpendicular.
	res = f.eng.Apply(a, Request{Kind: KindAvoid, TargetID: "E", Params: map[string]any{ParamSecondTarget: "W"}}, f.now)
	if !res.OK || res.Move.Target.Len() < 7.99 || res.Move.Target.Z != 0 {
		t.Fatalf("cancelled avoid should run sideways: %+v", res.Move)
	}

	res = f.eng.Apply(a, Request{Kind: KindAvoid, TargetID: "E", Params: map[string]any{ParamSecondTarget: "N"}}, f.now)
	if res.Move.Target.X >= 0 || res.Move.Target.Z >= 0 {
		t.Fatalf("two threats should push away from both: %+v", res.Move)
	}
	if len(f.mover.calls) != 3 {
		t.Fatalf("expected the mover to be driven, got %d calls", len(f.mover.calls))
	}
	if res := f.eng.Apply(a, Request{Kind: KindAvoid, TargetID: "ghost"}, f.now); res.Code != protocol.ErrNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
}

func TestQuarantine(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	if res := f.eng.Apply(a, Request{Kind: KindQuarantine}, f.now); res.OK || res.Reason != "no quarantine zone" {
		t.Fatalf("expected failure, got %+v", res)
	}
	for _, q := range []*model.QuarantineZone{
		{ID: "Q1", Pos: model.Vec3{X: 10}},
		{ID: "Q2", Pos: model.Vec3{X: -3}},
	} {
		if err := f.reg.Quarantine.Register(q); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	res := f.eng.Apply(a, Request{Kind: KindQuarantine}, f.now)
	if !res.OK || res.TargetID != "Q2" || res.Move.Target != (model.Vec2{X: -3}) || res.Move.Speed != movement.Walk {
		t.Fatalf("expected walk to nearest zone, got %+v", res)
	}
}

func TestModifyHealthBypassesValidation(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "A", model.ArchetypeHuman, 0, 0)
	if died, found := f.eng.ModifyHealth("A", -40); died || !found || a.Health != 60 {
		t.Fatalf("modify: died=%v found=%v health=%v", died, found, a.Health)
	}
	if died, _ := f.eng.ModifyHealth("A", -100); !died {
		t.Fatalf("expected death")
	}
	if died, _ := f.eng.ModifyHunger("A", -100); died {
		t.Fatalf("death must only be reported once")
	}
	if _, found := f.eng.ModifyHealth("missing", 1); found {
		t.Fatalf("missing agent reported found")
	}
}
