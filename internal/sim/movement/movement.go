package movement

import (
	"sort"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
)

type Speed uint8

const (
	Walk Speed = iota + 1
	Run
)

func (s Speed) String() string {
	switch s {
	case Walk:
		return "walk"
	case Run:
		return "run"
	default:
		return "none"
	}
}

func (s Speed) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Config struct {
	WalkSpeed       float64 `json:"walk_speed"`
	RunSpeed        float64 `json:"run_speed"`
	ArriveTolerance float64 `json:"arrive_tolerance"`
}

func DefaultConfig() Config {
	return Config{WalkSpeed: 2.0, RunSpeed: 5.0, ArriveTolerance: 0.3}
}

// Task is an active move-to order for one agent.
type Task struct {
	Target model.Vec2
	Speed  Speed
}

type Arrival struct {
	AgentID string
	At      model.Vec2
}

// System steps agents toward their targets on the ground plane. It is
// driven from the world goroutine and is not safe for concurrent use.
type System struct {
	cfg   Config
	tasks map[string]Task
}

func New(cfg Config) *System {
	return &System{cfg: cfg, tasks: map[string]Task{}}
}

func (s *System) Config() Config { return s.cfg }
func (s *System) SetConfig(cfg Config) { s.cfg = cfg }

// MoveTo replaces any current task of a. Dead agents are ignored.
func (s *System) MoveTo(a *model.Agent, target model.Vec2, speed Speed) bool {
	if a == nil || a.IsDead() {
		return false
	}
	if speed != Run {
		speed = Walk
	}
	if a.Pos.XZ().Dist(target) <= s.cfg.ArriveTolerance {
		delete(s.tasks, a.ID)
		a.SetState(model.StateIdle)
		return true
	}
	s.tasks[a.ID] = Task{Target: target, Speed: speed}
	if dir, ok := target.Sub(a.Pos.XZ()).Normalize(); ok {
		a.Forward = dir
	}
	if speed == Run {
		a.SetState(model.StateRunning)
	} else {
		a.SetState(model.StateWalking)
	}
	return true
}

func (s *System) Stop(a *model.Agent) {
	if a == nil {
		return
	}
	delete(s.tasks, a.ID)
	if a.State == model.StateWalking || a.State == model.StateRunning {
		a.SetState(model.StateIdle)
	}
}

func (s *System) Target(id string) (Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

func (s *System) Forget(id string) { delete(s.tasks, id) }

func (s *System) Active() int { return len(s.tasks) }

func (s *System) speedOf(sp Speed) float64 {
	if sp == Run {
		return s.cfg.RunSpeed
	}
	return s.cfg.WalkSpeed
}

// Tick advances every active task by dt seconds. Agents missing from
// agents or dead are dropped.
func (s *System) Tick(agents map[string]*model.Agent, dt float64) []Arrival {
	if len(s.tasks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Arrival
	for _, id := range ids {
		task := s.tasks[id]
		a := agents[id]
		if a == nil || a.IsDead() {
			delete(s.tasks, id)
			continue
		}
		pos := a.Pos.XZ()
		delta := task.Target.Sub(pos)
		dist := delta.Len()
		step := s.speedOf(task.Speed) * dt
		if dist <= s.cfg.ArriveTolerance || step >= dist {
			a.Pos = a.Pos.WithXZ(task.Target)
			delete(s.tasks, id)
			a.SetState(model.StateIdle)
			out = append(out, Arrival{AgentID: id, At: task.Target})
			continue
		}
		dir, _ := delta.Normalize()
		a.Forward = dir
		a.Pos = a.Pos.WithXZ(pos.Add(dir.Scale(step)))
	}
	return out
}
