package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShiraishiHope/MultiAgents/internal/oracle"
	"github.com/ShiraishiHope/MultiAgents/internal/oracle/builtin"
	"github.com/ShiraishiHope/MultiAgents/internal/platform/config"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/decision"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/tuning"
	"github.com/ShiraishiHope/MultiAgents/internal/transport/ws"
)

// oracleRuntime is the decision oracle selected at startup plus the
// handles the HTTP layer and shutdown path need.
type oracleRuntime struct {
	name   string
	oracle decision.Oracle
	brain  *builtin.Brain
	hub    *ws.Hub
	proc   *oracle.Process
}

func buildOracle(cfg config.Server, worldID string, interval func() time.Duration, logger *log.Logger) (*oracleRuntime, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.OracleMode))
	if mode == "" {
		mode = "builtin"
	}

	switch mode {
	case "builtin":
		b, err := builtin.New(cfg.Behaviour, cfg.Seed, logger)
		if err != nil {
			return nil, err
		}
		return &oracleRuntime{name: "builtin:" + b.Mode(), oracle: b.Oracle(), brain: b}, nil
	case "http":
		url := strings.TrimSpace(cfg.OracleURL)
		if url == "" {
			return nil, fmt.Errorf("oracle=http but SIM_ORACLE_URL is empty")
		}
		// The coordinator bounds each call with its own deadline.
		return &oracleRuntime{name: "http", oracle: oracle.NewHTTP(url, 0)}, nil
	case "process":
		argv := strings.Fields(cfg.OracleCmd)
		if len(argv) == 0 {
			return nil, fmt.Errorf("oracle=process but SIM_ORACLE_CMD is empty")
		}
		p := oracle.NewProcess(logger, argv[0], argv[1:]...)
		return &oracleRuntime{name: "process:" + argv[0], oracle: p, proc: p}, nil
	case "ws":
		h := ws.NewHub(worldID, interval, logger)
		return &oracleRuntime{name: "ws", oracle: h, hub: h}, nil
	default:
		return nil, fmt.Errorf("unsupported oracle mode: %s", mode)
	}
}

// setInterval keeps builtin timers in step with the decision interval.
func (o *oracleRuntime) setInterval(t tuning.Tuning) {
	if o.brain == nil {
		return
	}
	o.brain.SetInterval(float64(t.DecisionIntervalMs) / 1000)
}

func (o *oracleRuntime) Close() error {
	if o.proc != nil {
		return o.proc.Close()
	}
	return nil
}
