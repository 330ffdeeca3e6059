package model

import "time"

const (
	MaxHealth = 100.0
	MaxHunger = 100.0
)

// Disease is the profile copied onto an agent when it is exposed.
type Disease struct {
	Name          string        `json:"name"`
	MortalityRate float64       `json:"mortality_rate"`
	Infectivity   float64       `json:"infectivity"`
	RecoveryRate  float64       `json:"recovery_rate"`
	Incubation    time.Duration `json:"incubation"`
	ContagiousFor time.Duration `json:"contagious_for"`
	Symptoms      []string      `json:"symptoms"`
}

func (d Disease) clone() Disease {
	out := d
	if d.Symptoms != nil {
		out.Symptoms = append([]string(nil), d.Symptoms...)
	}
	return out
}

// Agent is a simulated human, creature or robot. Agents are owned by the
// world goroutine; other goroutines only ever see value copies.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Archetype Archetype `json:"archetype"`
	Faction   Faction   `json:"faction"`

	Pos     Vec3 `json:"pos"`
	Forward Vec2 `json:"forward"`
	Spawn   Vec3 `json:"spawn"`

	Health float64   `json:"health"`
	Hunger float64   `json:"hunger"`
	State  MoveState `json:"state"`

	Disease    Disease        `json:"disease"`
	Stage      InfectionStage `json:"stage"`
	Contagious bool           `json:"contagious"`
	Immune     bool           `json:"immune"`

	LastAction   string    `json:"last_action"`
	LastActionAt time.Time `json:"last_action_at"`

	CarryingID       string `json:"carrying_id"`
	ReservedTargetID string `json:"reserved_target_id"`

	Enabled bool `json:"enabled"`

	DeathCause string `json:"death_cause"`
}

// NewAgent returns a healthy, idle, enabled agent at full health and hunger.
func NewAgent(id, name string, arch Archetype, faction Faction, pos Vec3) *Agent {
	return &Agent{
		ID:        id,
		Name:      name,
		Archetype: arch,
		Faction:   faction,
		Pos:       pos,
		Spawn:     pos,
		Forward:   Vec2{Z: 1},
		Health:    MaxHealth,
		Hunger:    MaxHunger,
		Enabled:   true,
	}
}

func (a *Agent) EntityID() string { return a.ID }

func (a *Agent) IsDead() bool { return a.State == StateDead }
func (a *Agent) IsRobot() bool { return a.Archetype == ArchetypeRobot }
func (a *Agent) Carrying() bool { return a.CarryingID != "" }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AdjustHealth adds delta and clamps to [0,100]. It reports whether this
// call killed the agent.
func (a *Agent) AdjustHealth(delta float64) bool {
	if a.IsDead() {
		return false
	}
	a.Health = clamp(a.Health+delta, 0, MaxHealth)
	if a.Health <= 0 {
		return a.Die("health")
	}
	return false
}

// AdjustHunger adds delta and clamps to [0,100]. Starving to zero kills.
func (a *Agent) AdjustHunger(delta float64) bool {
	if a.IsDead() {
		return false
	}
	a.Hunger = clamp(a.Hunger+delta, 0, MaxHunger)
	if a.Hunger <= 0 {
		return a.Die("starvation")
	}
	return false
}

// Die is idempotent; only the first call returns true.
func (a *Agent) Die(cause string) bool {
	if a.IsDead() {
		return false
	}
	a.State = StateDead
	a.DeathCause = cause
	a.Contagious = false
	if a.Stage.Infected() {
		a.Stage = StageDead
	}
	return true
}

// Expose infects a healthy, non-immune agent with a copy of d.
func (a *Agent) Expose(d Disease) bool {
	if a.IsDead() || a.Immune || a.Stage != StageHealthy {
		return false
	}
	a.Disease = d.clone()
	a.Stage = StageExposed
	return true
}

func (a *Agent) BecomeContagious() bool {
	if a.IsDead() || !CanAdvance(a.Stage, StageContagious) {
		return false
	}
	a.Stage = StageContagious
	a.Contagious = true
	return true
}

// Recover ends the disease. The name is kept so observers can still tell
// what the agent had.
func (a *Agent) Recover() bool {
	if a.IsDead() || !CanAdvance(a.Stage, StageRecovered) {
		return false
	}
	a.Stage = StageRecovered
	a.Contagious = false
	a.Immune = true
	a.Disease.Symptoms = nil
	return true
}

// SetAction records the last action performed and when it started.
func (a *Agent) SetAction(name string, at time.Time) {
	a.LastAction = name
	a.LastActionAt = at
}

// SetState changes the movement state unless the agent is dead.
func (a *Agent) SetState(s MoveState) {
	if a.IsDead() || s == StateDead {
		return
	}
	a.State = s
}

// Clone returns a deep copy safe to hand to other goroutines.
func (a *Agent) Clone() Agent {
	out := *a
	out.Disease = a.Disease.clone()
	return out
}
