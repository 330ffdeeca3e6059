package main

import (
	"context"
	"log"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/persistence/snapshot"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

type viewSource interface {
	ID() string
	View() world.Snapshot
}

// runSnapshots writes the published view every interval and once more on
// shutdown. Snapshots are for inspection only; the world never reloads them.
func runSnapshots(ctx context.Context, w viewSource, worldDir string, every time.Duration, keep int, logger *log.Logger) error {
	if every <= 0 {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last uint64
	write := func() {
		view := w.View()
		if view.Tick == 0 || view.Tick == last {
			return
		}
		path := snapshot.PathFor(worldDir, view.Tick)
		if err := snapshot.WriteSnapshot(path, snapshot.New(w.ID(), view, time.Now())); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		last = view.Tick
		if _, err := snapshot.Prune(worldDir, keep); err != nil {
			logger.Printf("snapshot prune: %v", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			write()
			return nil
		case <-ticker.C:
			write()
		}
	}
}
