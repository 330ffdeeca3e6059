package perception

import (
	"sync"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/registry"
)

type Config struct {
	FOVDeg          float64 `json:"fov_deg"`
	SightDistance   float64 `json:"sight_distance"`
	HearingDistance float64 `json:"hearing_distance"`
}

func DefaultConfig() Config {
	return Config{FOVDeg: 90, SightDistance: 11, HearingDistance: 6}
}

type SeenAgent struct {
	ID        string
	Pos       model.Vec3
	Distance  float64
	Action    string
	ActionAt  time.Time
	Faction   model.Faction
	Archetype model.Archetype
	State     model.MoveState
}

type SeenFood struct {
	ID       string
	Pos      model.Vec3
	Distance float64
}

type Heard struct {
	ID       string
	Pos      model.Vec3
	Distance float64
}

type Visible struct {
	Agents []SeenAgent
	Food   []SeenFood
}

// Service answers visibility and hearing queries against the live registries.
// Nothing is cached; every call reads the current state.
type Service struct {
	reg *registry.Registries

	mu  sync.RWMutex
	cfg Config
}

func New(reg *registry.Registries, cfg Config) *Service {
	return &Service{reg: reg, cfg: cfg}
}

func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Service) SetConfig(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

const angleEpsilon = 1e-9

// InCone reports whether target lies within maxDist of origin and within
// halfAngleDeg of forward. The boundary is inclusive. A zero forward vector
// faces +Z; a target at the origin is always inside.
func InCone(origin model.Vec3, forward model.Vec2, target model.Vec3, halfAngleDeg, maxDist float64) bool {
	if model.DistXZ(origin, target) > maxDist {
		return false
	}
	if forward.IsZero() {
		forward = model.Vec2{Z: 1}
	}
	dir := target.XZ().Sub(origin.XZ())
	return model.AngleDeg(forward, dir) <= halfAngleDeg+angleEpsilon
}

// Within is the omnidirectional range test.
func Within(origin, target model.Vec3, maxDist float64) bool {
	return model.DistXZ(origin, target) <= maxDist
}

// Visible lists other agents and food sources inside self's field of view.
func (s *Service) Visible(self *model.Agent) Visible {
	cfg := s.Config()
	half := cfg.FOVDeg / 2
	var out Visible
	for _, other := range s.reg.Agents.All() {
		if other.ID == self.ID {
			continue
		}
		if !InCone(self.Pos, self.Forward, other.Pos, half, cfg.SightDistance) {
			continue
		}
		out.Agents = append(out.Agents, SeenAgent{
			ID:        other.ID,
			Pos:       other.Pos,
			Distance:  model.DistXZ(self.Pos, other.Pos),
			Action:    other.LastAction,
			ActionAt:  other.LastActionAt,
			Faction:   other.Faction,
			Archetype: other.Archetype,
			State:     other.State,
		})
	}
	for _, f := range s.reg.Food.All() {
		if !InCone(self.Pos, self.Forward, f.Pos, half, cfg.SightDistance) {
			continue
		}
		out.Food = append(out.Food, SeenFood{ID: f.ID, Pos: f.Pos, Distance: model.DistXZ(self.Pos, f.Pos)})
	}
	return out
}

// Audible lists other agents within hearing distance regardless of heading.
func (s *Service) Audible(self *model.Agent) []Heard {
	cfg := s.Config()
	var out []Heard
	for _, other := range s.reg.Agents.All() {
		if other.ID == self.ID || !Within(self.Pos, other.Pos, cfg.HearingDistance) {
			continue
		}
		out = append(out, Heard{ID: other.ID, Pos: other.Pos, Distance: model.DistXZ(self.Pos, other.Pos)})
	}
	return out
}
