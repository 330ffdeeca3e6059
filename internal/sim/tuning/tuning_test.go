package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_RepoConfig(t *testing.T) {
	tune, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.DecisionIntervalMs != 500 || tune.Perception.FOVDeg != 90 {
		t.Fatalf("unexpected tuning: %+v", tune)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("decision_interval_ms: 1000\nperception:\n  fov_deg: 120\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.DecisionIntervalMs != 1000 || tune.Perception.FOVDeg != 120 {
		t.Fatalf("overrides not applied: %+v", tune)
	}
	if tune.TickRateHz != 20 || tune.Perception.SightDistance != 11 || tune.Movement.RunSpeed != 5 {
		t.Fatalf("defaults lost: %+v", tune)
	}
}

func TestValidate(t *testing.T) {
	bad := Defaults()
	bad.DecisionIntervalMs = 100
	if err := bad.Validate(); err == nil {
		t.Fatalf("interval below 500ms must be rejected")
	}
	bad = Defaults()
	bad.Perception.FOVDeg = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("zero FOV must be rejected")
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 20\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Tuning, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(t Tuning) { got <- t })
	}()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("tick_rate_hz: 10\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case tune := <-got:
		if tune.TickRateHz != 10 {
			t.Fatalf("expected reloaded tick rate 10, got %d", tune.TickRateHz)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload observed")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}
