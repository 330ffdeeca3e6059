// Package scenario loads the static starting layout of a world: agents,
// diseases, items, deposit zones, obstacles, food and quarantine zones.
package scenario

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

// idSpace namespaces generated ids so the same file always yields the
// same ids.
var idSpace = uuid.MustParse("6f1b3a52-8d0e-4c57-9a55-2b9e1c0d7f43")

type Scenario struct {
	WorldID    string             `yaml:"world_id"`
	Diseases   map[string]Disease `yaml:"diseases"`
	Agents     []AgentSpec        `yaml:"agents"`
	Items      []Point            `yaml:"items"`
	Deposits   []DepositSpec      `yaml:"deposits"`
	Obstacles  []ObstacleSpec     `yaml:"obstacles"`
	Food       []FoodSpec         `yaml:"food"`
	Quarantine []ZoneSpec         `yaml:"quarantine"`
}

// Disease durations are in seconds.
type Disease struct {
	MortalityRate float64  `yaml:"mortality_rate"`
	Infectivity   float64  `yaml:"infectivity"`
	RecoveryRate  float64  `yaml:"recovery_rate"`
	IncubationS   float64  `yaml:"incubation_s"`
	ContagiousS   float64  `yaml:"contagious_s"`
	Symptoms      []string `yaml:"symptoms"`
}

type Point struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Z  float64 `yaml:"z"`
}

// AgentSpec places one agent, or Count agents on a ring of radius Spread.
type AgentSpec struct {
	Point     `yaml:",inline"`
	Name      string   `yaml:"name"`
	Archetype string   `yaml:"archetype"`
	Faction   string   `yaml:"faction"`
	Count     int      `yaml:"count"`
	Spread    float64  `yaml:"spread"`
	Health    *float64 `yaml:"health"`
	Hunger    *float64 `yaml:"hunger"`
	Disease   string   `yaml:"disease"`
	// Stage is exposed or contagious; empty with a disease means exposed.
	Stage   string `yaml:"stage"`
	Immune  bool   `yaml:"immune"`
	Enabled *bool  `yaml:"enabled"`
}

type DepositSpec struct {
	Point        `yaml:",inline"`
	Capacity     int     `yaml:"capacity"`
	AcceptRadius float64 `yaml:"accept_radius"`
}

type ObstacleSpec struct {
	Point   `yaml:",inline"`
	Radius  float64 `yaml:"radius"`
	Dynamic bool    `yaml:"dynamic"`
}

type FoodSpec struct {
	Point `yaml:",inline"`
	Units int `yaml:"units"`
}

type ZoneSpec struct {
	Point  `yaml:",inline"`
	Radius float64 `yaml:"radius"`
}

// Target receives the entities of a scenario. *world.World satisfies it.
type Target interface {
	AddAgent(a *model.Agent) error
	AddItem(it *model.Item) error
	AddDeposit(d *model.DepositZone) error
	AddObstacle(o *model.Obstacle) error
	AddFood(f *model.FoodSource) error
	AddQuarantine(q *model.QuarantineZone) error
}

const defaultAcceptRadius = 2.0

func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("scenario: %w", err)
	}
	return s, nil
}

func (s Scenario) Validate() error {
	names := make([]string, 0, len(s.Diseases))
	for name := range s.Diseases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := s.Diseases[name]
		for _, p := range []float64{d.MortalityRate, d.Infectivity, d.RecoveryRate} {
			if p < 0 || p > 1 {
				return fmt.Errorf("disease %q: rates must be within [0,1]", name)
			}
		}
		if d.IncubationS < 0 || d.ContagiousS < 0 {
			return fmt.Errorf("disease %q: durations must be >= 0", name)
		}
	}
	for i, a := range s.Agents {
		if _, err := model.ParseArchetype(a.Archetype); err != nil {
			return fmt.Errorf("agents[%d]: %w", i, err)
		}
		if _, err := model.ParseFaction(a.Faction); err != nil {
			return fmt.Errorf("agents[%d]: %w", i, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("agents[%d]: negative count", i)
		}
		if a.Disease != "" {
			if _, ok := s.Diseases[a.Disease]; !ok {
				return fmt.Errorf("agents[%d]: unknown disease %q", i, a.Disease)
			}
		}
		switch a.Stage {
		case "", "exposed", "contagious":
		default:
			return fmt.Errorf("agents[%d]: stage must be exposed or contagious: %q", i, a.Stage)
		}
	}
	for i, f := range s.Food {
		if f.Units < 0 {
			return fmt.Errorf("food[%d]: negative units", i)
		}
	}
	return nil
}

// Populate adds every entity of s to t. Ids left empty in the file are
// derived from the world id and the entity's position in the file.
func (s Scenario) Populate(t Target) (int, error) {
	n := 0
	for i, spec := range s.Agents {
		agents, err := s.buildAgents(i, spec)
		if err != nil {
			return n, err
		}
		for _, a := range agents {
			if err := t.AddAgent(a); err != nil {
				return n, fmt.Errorf("agent %s: %w", a.ID, err)
			}
			n++
		}
	}
	for i, p := range s.Items {
		it := &model.Item{ID: s.idFor("item", i, p.ID), Pos: model.Vec3{X: p.X, Z: p.Z}}
		if err := t.AddItem(it); err != nil {
			return n, fmt.Errorf("item %s: %w", it.ID, err)
		}
		n++
	}
	for i, d := range s.Deposits {
		r := d.AcceptRadius
		if r <= 0 {
			r = defaultAcceptRadius
		}
		z := &model.DepositZone{ID: s.idFor("deposit", i, d.ID), Pos: model.Vec3{X: d.X, Z: d.Z}, Capacity: d.Capacity, AcceptRadius: r}
		if err := t.AddDeposit(z); err != nil {
			return n, fmt.Errorf("deposit %s: %w", z.ID, err)
		}
		n++
	}
	for i, o := range s.Obstacles {
		ob := &model.Obstacle{ID: s.idFor("obstacle", i, o.ID), Pos: model.Vec3{X: o.X, Z: o.Z}, Radius: o.Radius, Dynamic: o.Dynamic}
		if err := t.AddObstacle(ob); err != nil {
			return n, fmt.Errorf("obstacle %s: %w", ob.ID, err)
		}
		n++
	}
	for i, f := range s.Food {
		units := f.Units
		if units == 0 {
			units = model.FoodBonusSourceSize
		}
		fs := &model.FoodSource{ID: s.idFor("food", i, f.ID), Pos: model.Vec3{X: f.X, Z: f.Z}, Capacity: units, Remaining: units}
		if err := t.AddFood(fs); err != nil {
			return n, fmt.Errorf("food %s: %w", fs.ID, err)
		}
		n++
	}
	for i, q := range s.Quarantine {
		qz := &model.QuarantineZone{ID: s.idFor("quarantine", i, q.ID), Pos: model.Vec3{X: q.X, Z: q.Z}, Radius: q.Radius}
		if err := t.AddQuarantine(qz); err != nil {
			return n, fmt.Errorf("quarantine %s: %w", qz.ID, err)
		}
		n++
	}
	return n, nil
}

func (s Scenario) buildAgents(idx int, spec AgentSpec) ([]*model.Agent, error) {
	arch, err := model.ParseArchetype(spec.Archetype)
	if err != nil {
		return nil, err
	}
	faction, err := model.ParseFaction(spec.Faction)
	if err != nil {
		return nil, err
	}
	count := spec.Count
	if count == 0 {
		count = 1
	}
	out := make([]*model.Agent, 0, count)
	for k := 0; k < count; k++ {
		id := s.idFor("agent", idx*10000+k, spec.ID)
		name := spec.Name
		if count > 1 {
			if spec.ID != "" {
				id = spec.ID + "-" + strconv.Itoa(k+1)
			}
			if name != "" {
				name = name + " " + strconv.Itoa(k+1)
			}
		}
		if name == "" {
			name = id
		}
		pos := model.Vec3{X: spec.X, Z: spec.Z}
		if count > 1 && spec.Spread > 0 {
			theta := 2 * math.Pi * float64(k) / float64(count)
			pos.X += spec.Spread * math.Cos(theta)
			pos.Z += spec.Spread * math.Sin(theta)
		}

		a := model.NewAgent(id, name, arch, faction, pos)
		if spec.Health != nil {
			a.Health = clamp(*spec.Health, 1, model.MaxHealth)
		}
		if spec.Hunger != nil {
			a.Hunger = clamp(*spec.Hunger, 1, model.MaxHunger)
		}
		if spec.Enabled != nil {
			a.Enabled = *spec.Enabled
		}
		if spec.Disease != "" {
			a.Expose(s.Diseases[spec.Disease].profile(spec.Disease))
			if spec.Stage == "contagious" {
				a.BecomeContagious()
			}
		}
		a.Immune = a.Immune || spec.Immune
		out = append(out, a)
	}
	return out, nil
}

func (d Disease) profile(name string) model.Disease {
	return model.Disease{
		Name:          name,
		MortalityRate: d.MortalityRate,
		Infectivity:   d.Infectivity,
		RecoveryRate:  d.RecoveryRate,
		Incubation:    seconds(d.IncubationS),
		ContagiousFor: seconds(d.ContagiousS),
		Symptoms:      append([]string(nil), d.Symptoms...),
	}
}

// DiseaseProfile returns the named disease as an agent profile.
func (s Scenario) DiseaseProfile(name string) (model.Disease, bool) {
	d, ok := s.Diseases[name]
	if !ok {
		return model.Disease{}, false
	}
	return d.profile(name), true
}

func (s Scenario) idFor(kind string, idx int, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return uuid.NewSHA1(idSpace, []byte(s.WorldID+"/"+kind+"/"+strconv.Itoa(idx))).String()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
