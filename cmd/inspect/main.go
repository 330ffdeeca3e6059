// Command inspect prints what a world recorded: per-tick batch summaries
// from the compressed event logs, resolved actions from the audit logs and,
// when present, aggregates from the sqlite index.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/persistence/indexdb"
	persistlog "github.com/ShiraishiHope/MultiAgents/internal/persistence/log"
	"github.com/ShiraishiHope/MultiAgents/internal/persistence/snapshot"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

type options struct {
	WorldDir string
	FromTick uint64
	ToTick   uint64
	Actor    string
	Audit    bool
	Index    bool
	Quiet    bool
	Snapshot string
}

// errStop ends a log scan early once ToTick is passed.
var errStop = errors.New("stop")

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		worldID = flag.String("world", "", "world id (reads <data>/worlds/<world>)")
		dir     = flag.String("dir", "", "world directory (overrides -data/-world)")
		opts    options
	)
	flag.Uint64Var(&opts.FromTick, "from_tick", 0, "first tick to print (inclusive)")
	flag.Uint64Var(&opts.ToTick, "to_tick", 0, "last tick to print (inclusive, 0 = all)")
	flag.StringVar(&opts.Actor, "actor", "", "only audit lines for this agent")
	flag.BoolVar(&opts.Audit, "audit", false, "print resolved actions")
	flag.BoolVar(&opts.Index, "index", true, "print the sqlite index summary if present")
	flag.BoolVar(&opts.Quiet, "quiet", false, "print totals only")
	flag.StringVar(&opts.Snapshot, "snapshot", "", `view snapshot to summarise ("latest" or a path)`)
	flag.Parse()

	opts.WorldDir = *dir
	if opts.WorldDir == "" {
		if *worldID == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -dir")
			os.Exit(2)
		}
		opts.WorldDir = filepath.Join(*dataDir, "worlds", *worldID)
	}

	if err := inspect(context.Background(), os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}

type totals struct {
	ticks       int
	batches     int
	failed      int
	defaulted   int
	joins       int
	leaves      int
	transitions map[string]int
	deaths      map[string]int
	actions     map[string]int
	actionsFail int
}

func inspect(ctx context.Context, out io.Writer, opts options) error {
	t := totals{transitions: map[string]int{}, deaths: map[string]int{}, actions: map[string]int{}}

	err := persistlog.ReadTicks(opts.WorldDir, func(e world.TickLogEntry) error {
		if e.Tick < opts.FromTick {
			return nil
		}
		if opts.ToTick != 0 && e.Tick > opts.ToTick {
			return errStop
		}
		t.add(e)
		if !opts.Quiet {
			fmt.Fprintln(out, formatTick(e))
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("events: %w", err)
	}

	err = persistlog.ReadAudits(opts.WorldDir, func(e world.AuditEntry) error {
		if e.Tick < opts.FromTick {
			return nil
		}
		if opts.ToTick != 0 && e.Tick > opts.ToTick {
			return errStop
		}
		if opts.Actor != "" && e.Actor != opts.Actor {
			return nil
		}
		t.actions[e.Action]++
		if !e.OK {
			t.actionsFail++
		}
		if opts.Audit && !opts.Quiet {
			fmt.Fprintln(out, formatAudit(e))
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("audit: %w", err)
	}

	t.write(out)

	if err := printSnapshot(out, opts); err != nil {
		return err
	}

	if !opts.Index {
		return nil
	}
	dbPath := filepath.Join(opts.WorldDir, "index", "world.sqlite")
	if _, err := os.Stat(dbPath); err != nil {
		return nil
	}
	db, err := indexdb.OpenReadOnly(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	s, err := indexdb.QuerySummary(ctx, db)
	if err != nil {
		return fmt.Errorf("index summary: %w", err)
	}
	fmt.Fprintf(out, "index world=%s tuning=%s batches=%d failed_calls=%d defaulted=%d failed_actions=%d\n",
		s.WorldID, s.TuningDigest, s.Batches, s.FailedCalls, s.Defaulted, s.FailedActs)
	fmt.Fprintf(out, "index lifecycle %s\n", formatCounts(s.Lifecycle))
	fmt.Fprintf(out, "index actions %s\n", formatCounts(s.Actions))
	return nil
}

func printSnapshot(out io.Writer, opts options) error {
	path := opts.Snapshot
	switch path {
	case "":
		return nil
	case "latest":
		if path = snapshot.Latest(opts.WorldDir); path == "" {
			fmt.Fprintln(out, "snapshot -")
			return nil
		}
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	stages := map[string]int{}
	alive, carrying := 0, 0
	for i := range snap.View.Agents {
		a := &snap.View.Agents[i]
		stages[a.Stage.String()]++
		if !a.IsDead() {
			alive++
		}
		if a.Carrying() {
			carrying++
		}
	}
	delivered := 0
	for _, d := range snap.View.Deposits {
		delivered += d.Deposited
	}
	fmt.Fprintf(out, "snapshot world=%s tick=%d at=%s agents=%d alive=%d carrying=%d items=%d delivered=%d\n",
		snap.Header.WorldID, snap.Header.Tick, snap.Header.At.Format(time.RFC3339), len(snap.View.Agents), alive, carrying, len(snap.View.Items), delivered)
	fmt.Fprintf(out, "snapshot stages %s\n", formatCounts(stages))
	return nil
}

func (t *totals) add(e world.TickLogEntry) {
	t.ticks++
	t.joins += len(e.Joins)
	t.leaves += len(e.Leaves)
	if b := e.Batch; b != nil {
		t.batches++
		t.defaulted += b.Defaulted
		if b.Error != "" {
			t.failed++
		}
	}
	for _, tr := range e.Transitions {
		t.transitions[tr.To.String()]++
	}
	for _, d := range e.Deaths {
		t.deaths[d.Cause]++
	}
}

func (t *totals) write(out io.Writer) {
	fmt.Fprintf(out, "totals ticks=%d batches=%d failed_calls=%d defaulted=%d joins=%d leaves=%d\n",
		t.ticks, t.batches, t.failed, t.defaulted, t.joins, t.leaves)
	fmt.Fprintf(out, "totals transitions %s\n", formatCounts(t.transitions))
	fmt.Fprintf(out, "totals deaths %s\n", formatCounts(t.deaths))
	fmt.Fprintf(out, "totals actions %s failed=%d\n", formatCounts(t.actions), t.actionsFail)
}

func formatTick(e world.TickLogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d", e.Tick)
	if bl := e.Batch; bl != nil {
		fmt.Fprintf(&b, " batch=%d leader=%s agents=%d applied=%d defaulted=%d skipped=%d latency=%.1fms",
			bl.Seq, bl.Leader, bl.Agents, bl.Applied, bl.Defaulted, bl.Skipped, bl.LatencyMS)
		if bl.Error != "" {
			fmt.Fprintf(&b, " error=%q", bl.Error)
		}
	}
	if len(e.Joins) > 0 {
		fmt.Fprintf(&b, " joins=%s", strings.Join(e.Joins, ","))
	}
	if len(e.Leaves) > 0 {
		fmt.Fprintf(&b, " leaves=%s", strings.Join(e.Leaves, ","))
	}
	for _, tr := range e.Transitions {
		fmt.Fprintf(&b, " %s:%s->%s", tr.AgentID, tr.From, tr.To)
	}
	for _, d := range e.Deaths {
		fmt.Fprintf(&b, " died:%s(%s)", d.AgentID, d.Cause)
	}
	return b.String()
}

func formatAudit(e world.AuditEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  tick=%d batch=%d %s %s", e.Tick, e.Seq, e.Actor, e.Action)
	if e.Target != "" {
		fmt.Fprintf(&b, " -> %s", e.Target)
	}
	if e.OK {
		b.WriteString(" ok")
	} else {
		fmt.Fprintf(&b, " %s %q", e.Code, e.Reason)
	}
	if e.Damage > 0 {
		fmt.Fprintf(&b, " damage=%.1f", e.Damage)
	}
	if len(e.Infected) > 0 {
		fmt.Fprintf(&b, " infected=%s", strings.Join(e.Infected, ","))
	}
	if e.Killed {
		b.WriteString(" killed")
	}
	return b.String()
}

func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
