package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

const maxResponseBytes = 16 << 20

// HTTP posts each batch as JSON to an external decision service. The
// response body is returned raw for the coordinator to decode.
type HTTP struct {
	URL    string
	Client *http.Client
	Header http.Header
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (h *HTTP) DecideBatch(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error) {
	if h == nil || h.URL == "" {
		return nil, ErrNoOracle
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Protocol-Version", protocol.Version)
	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("oracle http status %d: %s", resp.StatusCode, bytes.TrimSpace(truncate(raw, 256)))
	}
	return raw, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
