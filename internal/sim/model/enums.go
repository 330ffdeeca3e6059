package model

import (
	"fmt"
	"strings"
)

type Archetype string

const (
	ArchetypeHuman    Archetype = "human"
	ArchetypeCreature Archetype = "creature"
	ArchetypeRobot    Archetype = "robot"
)

func ParseArchetype(s string) (Archetype, error) {
	switch a := Archetype(strings.ToLower(strings.TrimSpace(s))); a {
	case ArchetypeHuman, ArchetypeCreature, ArchetypeRobot:
		return a, nil
	case "":
		return ArchetypeHuman, nil
	default:
		return "", fmt.Errorf("unknown archetype %q", s)
	}
}

type Faction string

const (
	FactionNeutral  Faction = "neutral"
	FactionPredator Faction = "predator"
	FactionPrey     Faction = "prey"
	FactionWorker   Faction = "worker"
)

func ParseFaction(s string) (Faction, error) {
	switch f := Faction(strings.ToLower(strings.TrimSpace(s))); f {
	case FactionNeutral, FactionPredator, FactionPrey, FactionWorker:
		return f, nil
	case "":
		return FactionNeutral, nil
	default:
		return "", fmt.Errorf("unknown faction %q", s)
	}
}

// MoveState is the physical activity of an agent. Dead is terminal.
type MoveState uint8

const (
	StateIdle MoveState = iota
	StateWalking
	StateRunning
	StateBusy
	StateSleeping
	StateDead
)

var moveStateNames = [...]string{"idle", "walking", "running", "busy", "sleeping", "dead"}

func (s MoveState) String() string {
	if int(s) < len(moveStateNames) {
		return moveStateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func ParseMoveState(s string) (MoveState, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return StateIdle, nil
	}
	for i, n := range moveStateNames {
		if n == t {
			return MoveState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown move state %q", s)
}

func (s MoveState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *MoveState) UnmarshalText(b []byte) error {
	v, err := ParseMoveState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type InfectionStage uint8

const (
	StageHealthy InfectionStage = iota
	StageExposed
	StageContagious
	StageRecovered
	StageDead
)

var stageNames = [...]string{"healthy", "exposed", "contagious", "recovered", "dead"}

func (s InfectionStage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func ParseInfectionStage(s string) (InfectionStage, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return StageHealthy, nil
	}
	for i, n := range stageNames {
		if n == t {
			return InfectionStage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown infection stage %q", s)
}

func (s InfectionStage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *InfectionStage) UnmarshalText(b []byte) error {
	v, err := ParseInfectionStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

var stageNext = map[InfectionStage][]InfectionStage{
	StageHealthy:    {StageExposed},
	StageExposed:    {StageContagious, StageDead},
	StageContagious: {StageRecovered, StageDead},
}

// CanAdvance reports whether from -> to is a legal forward transition.
func CanAdvance(from, to InfectionStage) bool {
	for _, n := range stageNext[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Infected is true while the disease is active (Exposed or Contagious).
func (s InfectionStage) Infected() bool {
	return s == StageExposed || s == StageContagious
}
