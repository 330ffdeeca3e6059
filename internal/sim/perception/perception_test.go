package perception

import (
	"math"
	"testing"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/registry"
)

func addAgent(t *testing.T, reg *registry.Registries, id string, x, z float64) *model.Agent {
	t.Helper()
	a := model.NewAgent(id, id, model.ArchetypeHuman, model.FactionNeutral, model.Vec3{X: x, Z: z})
	if err := reg.Agents.Register(a); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return a
}

func TestInCone_BoundaryInclusive(t *testing.T) {
	origin := model.Vec3{}
	fwd := model.Vec2{Z: 1}
	// Exactly 45 degrees off +Z at distance 5.
	edge := model.Vec3{X: 5 / math.Sqrt2, Z: 5 / math.Sqrt2}
	if !InCone(origin, fwd, edge, 45, 11) {
		t.Fatalf("target on the 45 degree boundary must be visible")
	}
	outside := model.Vec3{X: 5, Z: 4.9}
	if InCone(origin, fwd, outside, 45, 11) {
		t.Fatalf("target beyond 45 degrees must not be visible")
	}
	if InCone(origin, fwd, model.Vec3{Z: 11.01}, 45, 11) {
		t.Fatalf("target beyond sight distance must not be visible")
	}
	if !InCone(origin, fwd, model.Vec3{Z: 11}, 45, 11) {
		t.Fatalf("target at exactly sight distance must be visible")
	}
}

func TestInCone_DegenerateVectors(t *testing.T) {
	if !InCone(model.Vec3{X: 1, Z: 1}, model.Vec2{X: 1}, model.Vec3{X: 1, Z: 1}, 45, 11) {
		t.Fatalf("co-located target counts as angle 0")
	}
	if !InCone(model.Vec3{}, model.Vec2{}, model.Vec3{Z: 3}, 45, 11) {
		t.Fatalf("zero forward should face +Z")
	}
	if InCone(model.Vec3{}, model.Vec2{}, model.Vec3{Z: -3}, 45, 11) {
		t.Fatalf("zero forward should not see behind")
	}
}

func TestService_VisibleAndAudible(t *testing.T) {
	reg := registry.NewRegistries(nil)
	self := addAgent(t, reg, "SELF", 0, 0)
	self.Forward = model.Vec2{Z: 1}
	ahead := addAgent(t, reg, "AHEAD", 0, 5)
	ahead.LastAction = "cough"
	addAgent(t, reg, "BEHIND", 0, -3)
	addAgent(t, reg, "FAR", 0, 20)
	corpse := addAgent(t, reg, "CORPSE", 1, 8)
	corpse.Die("test")
	if err := reg.Food.Register(&model.FoodSource{ID: "F1", Pos: model.Vec3{X: 1, Z: 2}, Capacity: 2, Remaining: 2}); err != nil {
		t.Fatalf("register food: %v", err)
	}
	if err := reg.Food.Register(&model.FoodSource{ID: "F2", Pos: model.Vec3{X: -4, Z: -4}, Capacity: 2, Remaining: 2}); err != nil {
		t.Fatalf("register food: %v", err)
	}

	svc := New(reg, DefaultConfig())
	vis := svc.Visible(self)
	if len(vis.Agents) != 2 || vis.Agents[0].ID != "AHEAD" || vis.Agents[1].ID != "CORPSE" {
		t.Fatalf("unexpected visible agents: %+v", vis.Agents)
	}
	if vis.Agents[0].Action != "cough" || vis.Agents[0].Distance != 5 {
		t.Fatalf("visible entry missing data: %+v", vis.Agents[0])
	}
	if vis.Agents[1].State != model.StateDead {
		t.Fatalf("dead agents are reported with their state")
	}
	if len(vis.Food) != 1 || vis.Food[0].ID != "F1" {
		t.Fatalf("unexpected visible food: %+v", vis.Food)
	}

	heard := svc.Audible(self)
	ids := map[string]bool{}
	for _, h := range heard {
		ids[h.ID] = true
	}
	if !ids["AHEAD"] || !ids["BEHIND"] || ids["FAR"] || ids["CORPSE"] || ids["SELF"] {
		t.Fatalf("unexpected audible set: %+v", heard)
	}
}

func TestService_SetConfig(t *testing.T) {
	reg := registry.NewRegistries(nil)
	self := addAgent(t, reg, "SELF", 0, 0)
	addAgent(t, reg, "SIDE", 5, 0)
	svc := New(reg, DefaultConfig())
	if len(svc.Visible(self).Agents) != 0 {
		t.Fatalf("side agent should be outside default FOV")
	}
	cfg := svc.Config()
	cfg.FOVDeg = 180
	svc.SetConfig(cfg)
	if len(svc.Visible(self).Agents) != 1 {
		t.Fatalf("side agent should be visible with 180 degree FOV")
	}
}
