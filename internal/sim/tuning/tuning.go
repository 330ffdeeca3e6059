package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	DecisionIntervalMs int `yaml:"decision_interval_ms" json:"decision_interval_ms"`
	// OracleTimeoutMs of 0 means one decision interval.
	OracleTimeoutMs   int `yaml:"oracle_timeout_ms" json:"oracle_timeout_ms"`
	PerceptionWorkers int `yaml:"perception_workers" json:"perception_workers"`

	Perception Perception `yaml:"perception" json:"perception"`
	Movement   Movement   `yaml:"movement" json:"movement"`
	Survival   Survival   `yaml:"survival" json:"survival"`
}

type Perception struct {
	FOVDeg          float64 `yaml:"fov_deg" json:"fov_deg"`
	SightDistance   float64 `yaml:"sight_distance" json:"sight_distance"`
	HearingDistance float64 `yaml:"hearing_distance" json:"hearing_distance"`
}

type Movement struct {
	WalkSpeed       float64 `yaml:"walk_speed" json:"walk_speed"`
	RunSpeed        float64 `yaml:"run_speed" json:"run_speed"`
	ArriveTolerance float64 `yaml:"arrive_tolerance" json:"arrive_tolerance"`
}

type Survival struct {
	HungerDecayPerSec  float64 `yaml:"hunger_decay_per_sec" json:"hunger_decay_per_sec"`
	SymptomDrainPerSec float64 `yaml:"symptom_drain_per_sec" json:"symptom_drain_per_sec"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         20,
		DecisionIntervalMs: 500,
		PerceptionWorkers:  8,
		Perception:         Perception{FOVDeg: 90, SightDistance: 11, HearingDistance: 6},
		Movement:           Movement{WalkSpeed: 2, RunSpeed: 5, ArriveTolerance: 0.3},
		Survival:           Survival{HungerDecayPerSec: 0.5, SymptomDrainPerSec: 1},
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz < 1 || t.TickRateHz > 120:
		return fmt.Errorf("tick_rate_hz out of range [1,120]: %d", t.TickRateHz)
	case t.DecisionIntervalMs < 500 || t.DecisionIntervalMs > 2000:
		return fmt.Errorf("decision_interval_ms out of range [500,2000]: %d", t.DecisionIntervalMs)
	case t.OracleTimeoutMs < 0 || t.OracleTimeoutMs > 60000:
		return fmt.Errorf("oracle_timeout_ms out of range [0,60000]: %d", t.OracleTimeoutMs)
	case t.PerceptionWorkers < 1:
		return fmt.Errorf("perception_workers must be >= 1: %d", t.PerceptionWorkers)
	case t.Perception.FOVDeg <= 0 || t.Perception.FOVDeg > 360:
		return fmt.Errorf("perception.fov_deg out of range (0,360]: %v", t.Perception.FOVDeg)
	case t.Perception.SightDistance <= 0 || t.Perception.HearingDistance <= 0:
		return fmt.Errorf("perception distances must be positive")
	case t.Movement.WalkSpeed <= 0 || t.Movement.RunSpeed <= 0 || t.Movement.ArriveTolerance < 0:
		return fmt.Errorf("movement speeds must be positive")
	case t.Survival.HungerDecayPerSec < 0 || t.Survival.SymptomDrainPerSec < 0:
		return fmt.Errorf("survival rates must be >= 0")
	}
	return nil
}
