// Package builtin holds reference behaviours that run in-process or behind
// cmd/oracle. They read only what a Perception carries, so they exercise
// the same contract a remote oracle sees.
package builtin

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/ShiraishiHope/MultiAgents/internal/oracle"
	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

const (
	ModeWander       = "wander"
	ModeFlu          = "flu"
	ModeHunger       = "hunger"
	ModePredatorPrey = "predator_prey"
	ModeLogistics    = "logistics"
	ModeFlocking     = "flocking"
	ModeMixed        = "mixed"
)

var supportedModes = []string{
	ModeWander,
	ModeFlu,
	ModeHunger,
	ModePredatorPrey,
	ModeLogistics,
	ModeFlocking,
	ModeMixed,
}

func Modes() []string { return append([]string(nil), supportedModes...) }

type behaviour func(b *Brain, p *protocol.Perception) protocol.Decision

// Brain keeps per-agent memory (wander targets, search patterns, flock
// membership) across batches. Calls are serialized.
type Brain struct {
	mode   string
	decide behaviour
	logger *log.Logger

	// Seconds between batches, used to age wander timers.
	interval float64

	mu     sync.Mutex
	rng    *rand.Rand
	wander map[string]*wanderState
	search map[string]*searchState

	// follower -> leader, and each leader's destination.
	groups  map[string]string
	leaders map[string]*flockLeader
}

func New(mode string, seed int64, logger *log.Logger) (*Brain, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	handlers := map[string]behaviour{
		ModeWander:       (*Brain).decideWander,
		ModeFlu:          (*Brain).decideFlu,
		ModeHunger:       (*Brain).decideHunger,
		ModePredatorPrey: (*Brain).decidePredatorPrey,
		ModeLogistics:    (*Brain).decideLogistics,
		ModeFlocking:     (*Brain).decideFlocking,
		ModeMixed:        (*Brain).decideMixed,
	}
	if len(handlers) != len(supportedModes) {
		return nil, fmt.Errorf("builtin: %d handlers for %d modes", len(handlers), len(supportedModes))
	}
	h, ok := handlers[mode]
	if !ok {
		return nil, fmt.Errorf("builtin: unknown mode %q (want one of %v)", mode, supportedModes)
	}
	return &Brain{
		mode:     mode,
		decide:   h,
		logger:   logger,
		interval: 0.5,
		rng:      rand.New(rand.NewSource(seed)),
		wander:   map[string]*wanderState{},
		search:   map[string]*searchState{},
		groups:   map[string]string{},
		leaders:  map[string]*flockLeader{},
	}, nil
}

func (b *Brain) Mode() string { return b.mode }

// SetInterval tells the brain how much time passes between batches.
func (b *Brain) SetInterval(secs float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if secs > 0 {
		b.interval = secs
	}
}

// Decide answers one batch. A behaviour that panics for one agent gives
// that agent stop/none and leaves the rest of the batch intact.
func (b *Brain) Decide(ctx context.Context, batch protocol.PerceptionBatch) (protocol.DecisionBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(protocol.DecisionBatch, len(batch))
	for _, id := range ids {
		out[id] = b.decideOne(id, batch[id])
	}
	b.prune(batch)
	return out, nil
}

func (b *Brain) decideOne(id string, p *protocol.Perception) (d protocol.Decision) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("behaviour %s failed for %s: %v\n%s", b.mode, id, r, debug.Stack())
			d = stop()
		}
	}()
	if p == nil {
		panic("nil perception")
	}
	if p.MyState == "dead" {
		return stop()
	}
	return b.decide(b, p)
}

// prune drops memory of agents that are no longer batched.
func (b *Brain) prune(batch protocol.PerceptionBatch) {
	for id := range b.wander {
		if _, ok := batch[id]; !ok {
			delete(b.wander, id)
		}
	}
	for id := range b.search {
		if _, ok := batch[id]; !ok {
			delete(b.search, id)
		}
	}
	for id, leader := range b.groups {
		if _, ok := batch[id]; !ok {
			delete(b.groups, id)
		} else if _, ok := batch[leader]; !ok {
			delete(b.groups, id)
		}
	}
	for id := range b.leaders {
		if _, ok := batch[id]; !ok {
			delete(b.leaders, id)
		}
	}
}

// Oracle exposes the brain as an in-process oracle.
func (b *Brain) Oracle() oracle.Func { return b.Decide }

func (b *Brain) decideMixed(p *protocol.Perception) protocol.Decision {
	switch {
	case p.MyArchetype == "robot":
		return b.decideLogistics(p)
	case p.MyFaction == factionPredator || p.MyFaction == factionPrey:
		return b.decidePredatorPrey(p)
	case p.Hunger < hungerThreshold:
		return b.decideHunger(p)
	default:
		return b.decideFlu(p)
	}
}

func stop() protocol.Decision {
	return protocol.Decision{
		Movement: protocol.MovementDirective{Type: protocol.MoveStop},
		Action:   protocol.ActionDirective{Type: protocol.ActionNone},
	}
}

func move(kind string, x, z float64) protocol.Decision {
	return protocol.Decision{
		Movement: protocol.MovementDirective{Type: kind, TargetX: x, TargetZ: z},
		Action:   protocol.ActionDirective{Type: protocol.ActionNone},
	}
}

func (b *Brain) uniform(lo, hi float64) float64 {
	return lo + b.rng.Float64()*(hi-lo)
}
