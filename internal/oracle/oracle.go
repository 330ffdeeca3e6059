// Package oracle holds the transports that carry a perception batch to a
// behaviour oracle and bring the raw decision document back.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

var (
	ErrNoOracle    = errors.New("no oracle connected")
	ErrProcessDead = errors.New("oracle process exited")
)

// Func adapts an in-process decision function.
type Func func(ctx context.Context, batch protocol.PerceptionBatch) (protocol.DecisionBatch, error)

func (f Func) DecideBatch(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error) {
	if f == nil {
		return nil, ErrNoOracle
	}
	decisions, err := f(ctx, batch)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(decisions)
	if err != nil {
		return nil, fmt.Errorf("encode decisions: %w", err)
	}
	return b, nil
}

// Raw adapts a function that already produces the wire document.
type Raw func(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error)

func (f Raw) DecideBatch(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error) {
	if f == nil {
		return nil, ErrNoOracle
	}
	return f(ctx, batch)
}
