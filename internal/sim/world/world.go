package world

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/actions"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/decision"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/infection"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/movement"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/perception"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/registry"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	Decision   decision.Config
	Perception perception.Config
	Movement   movement.Config

	HungerDecayPerSec  float64
	SymptomDrainPerSec float64

	// SyncDecisions runs the oracle call inline on the world goroutine
	// instead of in the background.
	SyncDecisions bool
}

func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:         id,
		TickRateHz: t.TickRateHz,
		Decision: decision.Config{
			Interval: time.Duration(t.DecisionIntervalMs) * time.Millisecond,
			Timeout:  time.Duration(t.OracleTimeoutMs) * time.Millisecond,
			Workers:  t.PerceptionWorkers,
		},
		Perception: perception.Config{
			FOVDeg:          t.Perception.FOVDeg,
			SightDistance:   t.Perception.SightDistance,
			HearingDistance: t.Perception.HearingDistance,
		},
		Movement: movement.Config{
			WalkSpeed:       t.Movement.WalkSpeed,
			RunSpeed:        t.Movement.RunSpeed,
			ArriveTolerance: t.Movement.ArriveTolerance,
		},
		HungerDecayPerSec:  t.Survival.HungerDecayPerSec,
		SymptomDrainPerSec: t.Survival.SymptomDrainPerSec,
	}
}

// Clock is the single time source of a world.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

type Option func(*World)

func WithClock(c Clock) Option { return func(w *World) { w.clock = c } }
func WithLogger(l *log.Logger) Option { return func(w *World) { w.logger = l } }
func WithRand(r actions.Rand) Option { return func(w *World) { w.rng = r } }

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick        uint64                 `json:"tick"`
	At          time.Time              `json:"at"`
	Joins       []string               `json:"joins,omitempty"`
	Leaves      []string               `json:"leaves,omitempty"`
	Batch       *BatchLog              `json:"batch,omitempty"`
	Transitions []infection.Transition `json:"transitions,omitempty"`
	Deaths      []Death                `json:"deaths,omitempty"`
}

func (e TickLogEntry) empty() bool {
	return len(e.Joins) == 0 && len(e.Leaves) == 0 && e.Batch == nil && len(e.Transitions) == 0 && len(e.Deaths) == 0
}

type BatchLog struct {
	Seq        uint64  `json:"seq"`
	Leader     string  `json:"leader"`
	Agents     int     `json:"agents"`
	Applied    int     `json:"applied"`
	Defaulted  int     `json:"defaulted"`
	Skipped    int     `json:"skipped"`
	SkippedAll bool    `json:"skipped_all,omitempty"`
	LatencyMS  float64 `json:"latency_ms"`
	Error      string  `json:"error,omitempty"`
}

type Death struct {
	AgentID string `json:"agent_id"`
	Cause   string `json:"cause"`
}

// AuditEntry is one resolved action.
type AuditEntry struct {
	Tick     uint64    `json:"tick"`
	At       time.Time `json:"at"`
	Seq      uint64    `json:"batch_seq"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Target   string    `json:"target,omitempty"`
	OK       bool      `json:"ok"`
	Code     string    `json:"code,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Damage   float64   `json:"damage,omitempty"`
	Infected []string  `json:"infected,omitempty"`
	Killed   bool      `json:"killed,omitempty"`
	Restored float64   `json:"restored,omitempty"`
	Deposit  string    `json:"deposit,omitempty"`
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg    WorldConfig
	clock  Clock
	logger *log.Logger
	rng    actions.Rand

	reg     *registry.Registries
	percep  *perception.Service
	mover   *movement.System
	engine  *actions.Engine
	tracker *infection.Tracker
	coord   *decision.Coordinator

	tick     atomic.Uint64
	lastStep time.Time
	inFlight bool
	dead     map[string]bool

	join     chan *model.Agent
	leave    chan string
	tuningCh chan tuning.Tuning
	outcomes chan decision.Outcome
	stop     chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	metrics atomic.Value
	view    atomic.Value
}

func New(cfg WorldConfig, oracle decision.Oracle, opts ...Option) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be positive: %d", cfg.TickRateHz)
	}
	if cfg.Decision.Interval <= 0 {
		cfg.Decision.Interval = decision.DefaultConfig().Interval
	}
	w := &World{
		cfg:      cfg,
		clock:    wallClock{},
		dead:     map[string]bool{},
		join:     make(chan *model.Agent, 256),
		leave:    make(chan string, 256),
		tuningCh: make(chan tuning.Tuning, 4),
		outcomes: make(chan decision.Outcome, 1),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard, "", 0)
	}

	w.reg = registry.NewRegistries(w.logger)
	w.percep = perception.New(w.reg, cfg.Perception)
	w.mover = movement.New(cfg.Movement)
	eng, err := actions.NewEngine(w.reg, w.mover, w.rng, w.logger)
	if err != nil {
		return nil, err
	}
	w.engine = eng
	w.tracker = infection.NewTracker()
	w.coord = decision.New(cfg.Decision, decision.Deps{
		Registries: w.reg,
		Perception: w.percep,
		Oracle:     oracle,
		Mover:      w.mover,
		Resolver:   w.engine,
		Logger:     w.logger,
	})
	w.publish(0, 0)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

// SetOracle swaps the decision oracle; safe while running.
func (w *World) SetOracle(o decision.Oracle) { w.coord.SetOracle(o) }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) DecisionInterval() time.Duration { return w.coord.Config().Interval }

// AddAgent registers a and enrolls it in the coordinator pool. Call before
// Run; use Join while the loop is running.
func (w *World) AddAgent(a *model.Agent) error {
	if err := w.reg.Agents.Register(a); err != nil {
		return err
	}
	w.coord.Register(a.ID)
	return nil
}

// RemoveAgent unregisters id. Call before Run; use Leave while running.
func (w *World) RemoveAgent(id string) bool {
	a, ok := w.reg.Agents.Get(id)
	if !ok {
		return false
	}
	w.releaseCarried(a)
	w.reg.Agents.Unregister(id)
	w.coord.Unregister(id)
	w.mover.Forget(id)
	delete(w.dead, id)
	return true
}

func (w *World) AddItem(it *model.Item) error { return w.reg.Items.Register(it) }
func (w *World) AddDeposit(d *model.DepositZone) error { return w.reg.Deposits.Register(d) }
func (w *World) AddObstacle(o *model.Obstacle) error { return w.reg.Obstacles.Register(o) }
func (w *World) AddFood(f *model.FoodSource) error { return w.reg.Food.Register(f) }
func (w *World) AddQuarantine(q *model.QuarantineZone) error { return w.reg.Quarantine.Register(q) }

// applyTuning reports whether the tick rate changed.
func (w *World) applyTuning(t tuning.Tuning) bool {
	cfg := ConfigFromTuning(w.cfg.ID, t)
	cfg.SyncDecisions = w.cfg.SyncDecisions
	rateChanged := cfg.TickRateHz != w.cfg.TickRateHz
	w.cfg = cfg
	w.percep.SetConfig(cfg.Perception)
	w.mover.SetConfig(cfg.Movement)
	w.coord.SetConfig(cfg.Decision)
	w.logger.Printf("tuning applied: tick=%dHz interval=%s fov=%.0f", cfg.TickRateHz, cfg.Decision.Interval, cfg.Perception.FOVDeg)
	return rateChanged
}
