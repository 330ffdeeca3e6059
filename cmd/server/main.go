package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	persistlog "github.com/ShiraishiHope/MultiAgents/internal/persistence/log"
	"github.com/ShiraishiHope/MultiAgents/internal/platform/config"
	simotel "github.com/ShiraishiHope/MultiAgents/internal/platform/otel"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/scenario"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/tuning"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

const defaultWorldID = "world_1"

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	if err := config.LoadDotEnv(); err != nil {
		logger.Printf("%v", err)
	}
	var cfg config.Server
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("server: %v", err)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	flag.StringVar(&cfg.WorldID, "world", cfg.WorldID, "world id (default: scenario world_id, then "+defaultWorldID+")")
	flag.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml (watched for changes)")
	flag.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "path to scenario.yaml (empty for an empty world)")
	flag.StringVar(&cfg.OracleMode, "oracle", cfg.OracleMode, "oracle: builtin|http|process|ws")
	flag.StringVar(&cfg.OracleURL, "oracle_url", cfg.OracleURL, "decision endpoint for -oracle=http")
	flag.StringVar(&cfg.OracleCmd, "oracle_cmd", cfg.OracleCmd, "command line for -oracle=process")
	flag.StringVar(&cfg.Behaviour, "behaviour", cfg.Behaviour, "builtin behaviour mode")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed for builtin behaviours and combat rolls")
	flag.BoolVar(&cfg.DisableIndex, "disable_db", cfg.DisableIndex, "disable the sqlite read-model index")
	flag.BoolVar(&cfg.EnablePprof, "pprof", cfg.EnablePprof, "serve /debug/pprof endpoints")
	flag.DurationVar(&cfg.SnapEvery, "snapshot_every", cfg.SnapEvery, "view snapshot interval (0 disables)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg config.Server, logger *log.Logger) error {
	shutdownTracing, err := simotel.Setup(ctx, "multiagents-server")
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		ctx2, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
		defer cancel()
		if err := shutdownTracing(ctx2); err != nil {
			logger.Printf("otel shutdown: %v", err)
		}
	}()

	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}

	var scn scenario.Scenario
	if p := strings.TrimSpace(cfg.ScenarioPath); p != "" {
		if scn, err = scenario.Load(p); err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
	}
	worldID := firstNonEmpty(cfg.WorldID, scn.WorldID, defaultWorldID)

	worldDir := filepath.Join(cfg.DataDir, "worlds", worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	w, err := world.New(world.ConfigFromTuning(worldID, tune), nil,
		world.WithLogger(log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds)),
		world.WithRand(rand.New(rand.NewSource(cfg.Seed))),
	)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}

	orc, err := buildOracle(cfg, worldID, w.DecisionInterval, log.New(os.Stdout, "[oracle] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		return err
	}
	defer orc.Close()
	w.SetOracle(orc.oracle)
	orc.setInterval(tune)

	n, err := scn.Populate(w)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	logger.Printf("world=%s agents=%d oracle=%s tick_rate=%dHz interval=%s", worldID, n, orc.name, w.TickRateHz(), w.DecisionInterval())

	idx, err := openRuntimeIndex(worldDir, cfg.DisableIndex)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	if idx != nil {
		defer idx.Close()
		if digest, err := idx.UpsertTuning(ctx, worldID, tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		} else {
			logger.Printf("index: tuning digest=%s", digest)
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	ticks := persistlog.TeeTick{tickLog}
	audits := persistlog.TeeAudit{auditLog}
	if idx != nil {
		ticks = append(ticks, idx)
		audits = append(audits, idx)
	}
	w.SetTickLogger(ticks)
	w.SetAuditLogger(audits)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(w, orc, idx, cfg.EnablePprof, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("world stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := tuning.Watch(gctx, cfg.TuningPath, logger, func(t tuning.Tuning) {
			if !w.UpdateTuning(t) {
				logger.Printf("tuning reload dropped: world busy")
				return
			}
			orc.setInterval(t)
			if idx != nil {
				if _, err := idx.UpsertTuning(gctx, worldID, t); err != nil {
					logger.Printf("index: upsert tuning: %v", err)
				}
			}
			logger.Printf("tuning reloaded")
		})
		if err != nil {
			logger.Printf("tuning watch disabled: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		return runSnapshots(gctx, w, worldDir, cfg.SnapEvery, cfg.SnapKeep, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
		defer cancel()
		return srv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
