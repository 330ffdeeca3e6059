package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v", files)
	}
	if filepath.Base(files[0]) != "events-2024-05-01-10.jsonl.zst" {
		t.Fatalf("unexpected first file %s", files[0])
	}
	if w.Lines() != 2 {
		t.Fatalf("expected 2 lines, got %d", w.Lines())
	}
}

func TestTickAndAuditLoggers_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	al := NewAuditLogger(dir)
	at := time.Unix(1700000000, 0).UTC()

	for i := uint64(0); i < 3; i++ {
		e := world.TickLogEntry{Tick: i, At: at, Joins: []string{"A"}, Deaths: []world.Death{{AgentID: "B", Cause: "disease"}}}
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	if err := al.WriteAudit(world.AuditEntry{Tick: 2, Seq: 1, Actor: "A", Action: "bite", Target: "B", OK: true, Infected: []string{"B"}}); err != nil {
		t.Fatalf("write audit: %v", err)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var ticks []uint64
	if err := ReadTicks(dir, func(e world.TickLogEntry) error {
		ticks = append(ticks, e.Tick)
		if len(e.Deaths) != 1 || e.Deaths[0].Cause != "disease" {
			t.Fatalf("deaths lost: %+v", e)
		}
		return nil
	}); err != nil {
		t.Fatalf("read ticks: %v", err)
	}
	if len(ticks) != 3 || ticks[2] != 2 {
		t.Fatalf("unexpected ticks %v", ticks)
	}

	var audits []world.AuditEntry
	if err := ReadAudits(dir, func(e world.AuditEntry) error {
		audits = append(audits, e)
		return nil
	}); err != nil {
		t.Fatalf("read audits: %v", err)
	}
	if len(audits) != 1 || audits[0].Action != "bite" || len(audits[0].Infected) != 1 {
		t.Fatalf("unexpected audits %+v", audits)
	}
}

func TestReadFile_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "audit")
	for i := 0; i < 3; i++ {
		if err := w.Write(i); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = w.Close()
	files, _ := ListFiles(dir, "audit")
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}
	stop := errors.New("stop")
	n := 0
	err := ReadFile(files[0], func([]byte) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("expected stop after first line, n=%d err=%v", n, err)
	}
}

func TestListFiles_IgnoresOtherNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"events-2024-01-01-00.jsonl.zst", "audit-2024-01-01-00.jsonl.zst", "events.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "events-dir.jsonl.zst"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected only the events file, got %v", files)
	}
}

type failingTick struct{}

func (failingTick) WriteTick(world.TickLogEntry) error { return errors.New("disk full") }

func TestTeeTick_JoinsErrors(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	defer tl.Close()
	tee := TeeTick{tl, nil, failingTick{}}
	if err := tee.WriteTick(world.TickLogEntry{Tick: 1}); err == nil {
		t.Fatalf("expected joined error")
	}
	if tl.w.Lines() != 1 {
		t.Fatalf("healthy sink should still receive the entry")
	}
}
