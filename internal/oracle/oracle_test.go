package oracle

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

func batchOf(ids ...string) protocol.PerceptionBatch {
	b := protocol.PerceptionBatch{}
	for _, id := range ids {
		b[id] = &protocol.Perception{MyID: id}
	}
	return b
}

func TestFunc_MarshalsDecisions(t *testing.T) {
	f := Func(func(ctx context.Context, batch protocol.PerceptionBatch) (protocol.DecisionBatch, error) {
		out := protocol.DecisionBatch{}
		for id := range batch {
			out[id] = protocol.DefaultDecision()
		}
		return out, nil
	})
	raw, err := f.DecideBatch(context.Background(), batchOf("A"))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	entries, err := protocol.DecodeDecisionBatch(raw)
	if err != nil || len(entries) != 1 {
		t.Fatalf("decode: %v entries=%d", err, len(entries))
	}

	var nilFunc Func
	if _, err := nilFunc.DecideBatch(context.Background(), nil); !errors.Is(err, ErrNoOracle) {
		t.Fatalf("nil func should report ErrNoOracle, got %v", err)
	}
	var nilRaw Raw
	if _, err := nilRaw.DecideBatch(context.Background(), nil); !errors.Is(err, ErrNoOracle) {
		t.Fatalf("nil raw should report ErrNoOracle, got %v", err)
	}
}

func TestHTTP_PostsBatchWithTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var gotTrace, gotVersion string
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		gotTrace = r.Header.Get("traceparent")
		gotVersion = r.Header.Get("X-Protocol-Version")
		var batch protocol.PerceptionBatch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for id := range batch {
			gotIDs = append(gotIDs, id)
		}
		_, _ = io.WriteString(w, `{"A":{"movement":{"type":"stop"}}}`)
	}))
	defer srv.Close()

	ctx, span := tp.Tracer("test").Start(context.Background(), "batch")
	defer span.End()

	h := NewHTTP(srv.URL, time.Second)
	raw, err := h.DecideBatch(ctx, batchOf("A"))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !strings.Contains(string(raw), `"stop"`) {
		t.Fatalf("unexpected body %s", raw)
	}
	if gotTrace == "" {
		t.Fatalf("traceparent header not propagated")
	}
	if gotVersion != protocol.Version || len(gotIDs) != 1 || gotIDs[0] != "A" {
		t.Fatalf("request mismatch: version=%q ids=%v", gotVersion, gotIDs)
	}
}

func TestHTTP_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second).DecideBatch(context.Background(), batchOf("A"))
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
	var empty *HTTP
	if _, err := empty.DecideBatch(context.Background(), nil); !errors.Is(err, ErrNoOracle) {
		t.Fatalf("expected ErrNoOracle, got %v", err)
	}
}

func helperProcess(t *testing.T, mode string) *Process {
	t.Helper()
	p := NewProcess(nil, os.Args[0], "-test.run=TestHelperProcess", "--")
	p.Env = []string{"GO_WANT_HELPER_PROCESS=1", "ORACLE_HELPER_MODE=" + mode}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProcess_RoundTrips(t *testing.T) {
	p := helperProcess(t, "stop")
	for i := 0; i < 3; i++ {
		raw, err := p.DecideBatch(context.Background(), batchOf("A", "B"))
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		entries, err := protocol.DecodeDecisionBatch(raw)
		if err != nil || len(entries) != 2 {
			t.Fatalf("call %d: decode err=%v entries=%d", i, err, len(entries))
		}
	}
}

func TestProcess_ExitReportsDeadThenRestarts(t *testing.T) {
	p := helperProcess(t, "exit")
	if _, err := p.DecideBatch(context.Background(), batchOf("A")); !errors.Is(err, ErrProcessDead) {
		t.Fatalf("expected ErrProcessDead, got %v", err)
	}
	p.Env = []string{"GO_WANT_HELPER_PROCESS=1", "ORACLE_HELPER_MODE=stop"}
	if _, err := p.DecideBatch(context.Background(), batchOf("A")); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestProcess_TimeoutKillsProgram(t *testing.T) {
	p := helperProcess(t, "hang")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := p.DecideBatch(ctx, batchOf("A")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	p.mu.Lock()
	running := p.cmd != nil
	p.mu.Unlock()
	if running {
		t.Fatalf("program should be stopped after an abandoned call")
	}
}

// TestHelperProcess is not a real test: it is the oracle program the
// Process tests start.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	mode := os.Getenv("ORACLE_HELPER_MODE")
	if mode == "exit" {
		os.Exit(3)
	}
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if mode == "hang" {
			time.Sleep(time.Hour)
		}
		var batch protocol.PerceptionBatch
		if err := json.Unmarshal(sc.Bytes(), &batch); err != nil {
			fmt.Fprintln(os.Stderr, "bad batch:", err)
			os.Exit(2)
		}
		out := protocol.DecisionBatch{}
		for id := range batch {
			out[id] = protocol.Decision{
				Movement: protocol.MovementDirective{Type: protocol.MoveStop},
				Action:   protocol.ActionDirective{Type: protocol.ActionNone},
			}
		}
		b, _ := json.Marshal(out)
		fmt.Println(string(b))
	}
	os.Exit(0)
}
