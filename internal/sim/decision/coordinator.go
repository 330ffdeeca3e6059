package decision

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShiraishiHope/MultiAgents/internal/oracle"
	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/actions"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/movement"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/perception"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/registry"
)

const tracerName = "github.com/ShiraishiHope/MultiAgents/internal/sim/decision"

// Oracle maps one batch of perceptions to a raw decision document
// ({agent_id: {movement, action}}).
type Oracle interface {
	DecideBatch(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error)
}

type Mover interface {
	MoveTo(a *model.Agent, target model.Vec2, speed movement.Speed) bool
	Stop(a *model.Agent)
}

type Resolver interface {
	Apply(actor *model.Agent, req actions.Request, now time.Time) actions.Result
}

type Config struct {
	Interval time.Duration
	// Timeout bounds one oracle call. Zero means Interval.
	Timeout time.Duration
	Workers int
}

func DefaultConfig() Config {
	return Config{Interval: 500 * time.Millisecond, Workers: 8}
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	if c.Interval > 0 {
		return c.Interval
	}
	return 500 * time.Millisecond
}

type Deps struct {
	Registries *registry.Registries
	Perception *perception.Service
	Oracle     Oracle
	Mover      Mover
	Resolver   Resolver
	Logger     *log.Logger
}

// Batch is one consistent snapshot sent to the oracle.
type Batch struct {
	Seq         uint64
	At          time.Time
	Leader      string
	AgentIDs    []string
	Perceptions protocol.PerceptionBatch
}

// Outcome is what came back for a batch.
type Outcome struct {
	Batch     *Batch
	Decisions map[string]protocol.Decision
	Invalid   map[string]error
	Err       error
	Malformed bool
	Latency   time.Duration
}

type AgentResult struct {
	AgentID   string
	Decision  protocol.Decision
	Defaulted bool
	Action    actions.Result
}

type Report struct {
	Seq        uint64
	Applied    int
	Defaulted  int
	Skipped    int
	SkippedAll bool
	Results    []AgentResult
	Err        error
}

// Coordinator runs the batched decision cycle: one oracle call per
// interval for every live agent, driven by the elected leader.
type Coordinator struct {
	reg      *registry.Registries
	percep   *perception.Service
	oracle   Oracle
	mover    Mover
	resolver Resolver
	logger   *log.Logger
	tracer   trace.Tracer

	mu        sync.Mutex
	cfg       Config
	members   []string
	leader    string
	lastBatch time.Time
	seq       uint64

	calls       atomic.Uint64
	failures    atomic.Uint64
	lastLatency atomic.Int64
}

func New(cfg Config, d Deps) *Coordinator {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Coordinator{
		cfg:      cfg,
		reg:      d.Registries,
		percep:   d.Perception,
		oracle:   d.Oracle,
		mover:    d.Mover,
		resolver: d.Resolver,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

func (c *Coordinator) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Coordinator) SetConfig(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// SetOracle swaps the oracle used by subsequent calls.
func (c *Coordinator) SetOracle(o Oracle) {
	c.mu.Lock()
	c.oracle = o
	c.mu.Unlock()
}

func (c *Coordinator) Calls() uint64 { return c.calls.Load() }
func (c *Coordinator) Failures() uint64 { return c.failures.Load() }
func (c *Coordinator) LastLatency() time.Duration { return time.Duration(c.lastLatency.Load()) }

func (c *Coordinator) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Due reports whether a new batch should start at now.
func (c *Coordinator) Due(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.leader == "" {
		return false
	}
	return c.lastBatch.IsZero() || now.Sub(c.lastBatch) >= c.cfg.Interval
}

// Step runs one full cycle synchronously if a batch is due.
func (c *Coordinator) Step(ctx context.Context, now time.Time) (Report, bool) {
	if !c.Due(now) {
		return Report{}, false
	}
	b := c.Snapshot(now)
	if b == nil {
		return Report{}, false
	}
	if len(b.AgentIDs) == 0 {
		return Report{Seq: b.Seq}, true
	}
	out := c.Call(ctx, b)
	return c.Apply(out, now), true
}

// Call performs exactly one oracle request for b and parses the reply.
// It never panics, even if the oracle does.
func (c *Coordinator) Call(ctx context.Context, b *Batch) Outcome {
	out := Outcome{Batch: b}
	c.mu.Lock()
	timeout := c.cfg.timeout()
	o := c.oracle
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "oracle.DecideBatch", trace.WithAttributes(
		attribute.Int64("batch.seq", int64(b.Seq)),
		attribute.Int("batch.size", len(b.Perceptions)),
		attribute.String("batch.leader", b.Leader),
	))
	defer span.End()

	start := time.Now()
	raw, err := invoke(ctx, o, b.Perceptions)
	out.Latency = time.Since(start)
	c.calls.Add(1)
	c.lastLatency.Store(int64(out.Latency))
	if err != nil {
		c.failures.Add(1)
		out.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Printf("batch seq=%d: oracle error: %v", b.Seq, err)
		return out
	}

	entries, err := protocol.DecodeDecisionBatch(raw)
	if err != nil {
		c.failures.Add(1)
		out.Err = err
		out.Malformed = true
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response")
		c.logger.Printf("batch seq=%d: %v", b.Seq, err)
		return out
	}
	out.Decisions = make(map[string]protocol.Decision, len(entries))
	for _, id := range b.AgentIDs {
		rawD, ok := entries[id]
		if !ok {
			continue
		}
		d, err := protocol.DecodeDecision(rawD)
		if err != nil {
			if out.Invalid == nil {
				out.Invalid = map[string]error{}
			}
			out.Invalid[id] = err
			continue
		}
		out.Decisions[id] = d
	}
	span.SetAttributes(attribute.Int("batch.decisions", len(out.Decisions)), attribute.Int("batch.invalid", len(out.Invalid)))
	if len(out.Invalid) > 0 {
		c.logger.Printf("batch seq=%d: %d invalid decisions defaulted", b.Seq, len(out.Invalid))
	}
	return out
}

func invoke(ctx context.Context, o Oracle, batch protocol.PerceptionBatch) ([]byte, error) {
	if o == nil {
		return nil, oracle.ErrNoOracle
	}
	type result struct {
		raw []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("oracle panic: %v", r)}
			}
		}()
		raw, err := o.DecideBatch(ctx, batch)
		ch <- result{raw: raw, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("oracle call: %w", ctx.Err())
	case r := <-ch:
		return r.raw, r.err
	}
}

// Apply distributes an outcome: each agent of the batch that is still
// present and alive gets exactly one movement and one action application.
func (c *Coordinator) Apply(out Outcome, now time.Time) Report {
	rep := Report{Err: out.Err}
	if out.Batch == nil {
		return rep
	}
	rep.Seq = out.Batch.Seq
	if out.Malformed {
		rep.SkippedAll = true
		return rep
	}
	rep.Results = make([]AgentResult, 0, len(out.Batch.AgentIDs))
	for _, id := range out.Batch.AgentIDs {
		a, ok := c.reg.Agents.Get(id)
		if !ok || a.IsDead() {
			rep.Skipped++
			continue
		}
		d, ok := out.Decisions[id]
		if !ok {
			d = protocol.DefaultDecision()
			rep.Defaulted++
		}
		if a.IsRobot() && ok {
			c.updateReservation(a, d)
		}
		c.applyMovement(a, d.Movement)
		res := c.applyAction(a, d.Action, now)
		rep.Applied++
		rep.Results = append(rep.Results, AgentResult{AgentID: id, Decision: d, Defaulted: !ok, Action: res})
	}
	if out.Err != nil {
		c.logger.Printf("batch seq=%d: applied defaults to %d agents", rep.Seq, rep.Defaulted)
	}
	return rep
}

func (c *Coordinator) updateReservation(a *model.Agent, d protocol.Decision) {
	if a.Carrying() {
		a.ReservedTargetID = ""
		return
	}
	tid := d.Action.TargetID
	if tid == "0" {
		tid = ""
	}
	a.ReservedTargetID = tid
}

func (c *Coordinator) applyMovement(a *model.Agent, m protocol.MovementDirective) {
	if c.mover == nil {
		return
	}
	target := model.Vec2{X: m.TargetX, Z: m.TargetZ}
	switch m.Type {
	case protocol.MoveWalk:
		c.mover.MoveTo(a, target, movement.Walk)
	case protocol.MoveRun:
		c.mover.MoveTo(a, target, movement.Run)
	case protocol.MoveStop:
		c.mover.Stop(a)
	}
}

func (c *Coordinator) applyAction(a *model.Agent, ad protocol.ActionDirective, now time.Time) actions.Result {
	if c.resolver == nil {
		return actions.Result{Action: ad.Type, ActorID: a.ID, OK: ad.Type == protocol.ActionNone}
	}
	return c.resolver.Apply(a, actions.Request{Kind: ad.Type, TargetID: ad.TargetID, Params: ad.Parameters}, now)
}
