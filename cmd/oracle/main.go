// Command oracle is a remote decision oracle. It connects to a server started
// with -oracle=ws and answers every BATCH with the builtin behaviours.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShiraishiHope/MultiAgents/internal/oracle/builtin"
	"github.com/ShiraishiHope/MultiAgents/internal/platform/config"
	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

func main() {
	logger := log.New(os.Stdout, "[oracle] ", log.LstdFlags|log.Lmicroseconds)
	if err := config.LoadDotEnv(); err != nil {
		logger.Printf("%v", err)
	}
	var cfg config.Oracle
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("oracle: %v", err)
	}
	flag.StringVar(&cfg.URL, "url", cfg.URL, "server oracle websocket url")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "oracle name sent in HELLO")
	flag.StringVar(&cfg.Behaviour, "behaviour", cfg.Behaviour, "behaviour mode")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "behaviour seed")
	flag.DurationVar(&cfg.Backoff, "reconnect", cfg.Backoff, "delay before reconnecting")
	flag.Parse()

	brain, err := builtin.New(cfg.Behaviour, cfg.Seed, logger)
	if err != nil {
		config.Exitf("oracle: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		err := serve(ctx, cfg.URL, cfg.Name, brain, logger)
		if ctx.Err() != nil {
			return
		}
		logger.Printf("session ended: %v; reconnecting in %s", err, cfg.Backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.Backoff):
		}
	}
}

// serve runs one session: HELLO, WELCOME, then BATCH -> DECISIONS until the
// connection drops or ctx ends.
func serve(ctx context.Context, url, name string, brain *builtin.Brain, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		OracleName:      name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			brain.SetInterval(float64(w.DecisionInterval) / 1000)
			logger.Printf("WELCOME world=%s interval=%dms mode=%s", w.WorldID, w.DecisionInterval, brain.Mode())

		case protocol.TypeBatch:
			var b protocol.BatchMsg
			if err := json.Unmarshal(msg, &b); err != nil {
				logger.Printf("bad BATCH: %v", err)
				continue
			}
			if err := answer(ctx, conn, brain, &b); err != nil {
				return err
			}
		}
	}
}

func answer(ctx context.Context, conn *websocket.Conn, brain *builtin.Brain, b *protocol.BatchMsg) error {
	decisions, err := brain.Decide(ctx, b.Perceptions)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(decisions)
	if err != nil {
		return err
	}
	reply := protocol.DecisionsMsg{
		Type:            protocol.TypeDecisions,
		ProtocolVersion: protocol.Version,
		Seq:             b.Seq,
		Decisions:       raw,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(reply); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return fmt.Errorf("send DECISIONS: %w", err)
	}
	return nil
}
