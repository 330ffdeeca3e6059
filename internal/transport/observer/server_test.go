package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShiraishiHope/MultiAgents/internal/observerproto"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/model"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

type fakeSource struct {
	view world.Snapshot
}

func (f *fakeSource) ID() string                      { return "obs-test" }
func (f *fakeSource) TickRateHz() int                 { return 20 }
func (f *fakeSource) DecisionInterval() time.Duration { return 500 * time.Millisecond }
func (f *fakeSource) Metrics() world.WorldMetrics     { return world.WorldMetrics{Tick: f.view.Tick} }
func (f *fakeSource) View() world.Snapshot            { return f.view }

func testSource() *fakeSource {
	return &fakeSource{view: world.Snapshot{
		Tick: 42,
		Agents: []model.Agent{
			{ID: "a", Archetype: model.ArchetypeHuman, Pos: model.Vec3{X: 0, Z: 0}, Health: 100, Hunger: 80},
			{ID: "b", Archetype: model.ArchetypeHuman, Pos: model.Vec3{X: 3, Z: 4}, Health: 50, Stage: model.StageContagious},
			{ID: "c", Archetype: model.ArchetypeRobot, Pos: model.Vec3{X: 30, Z: 0}, CarryingID: "crate"},
			{ID: "d", Archetype: model.ArchetypeHuman, State: model.StateDead, Stage: model.StageDead},
		},
		Items:    []model.Item{{ID: "crate", CarriedBy: "c"}},
		Deposits: []model.DepositZone{{ID: "depot", Deposited: 3}},
	}}
}

func dialObserver(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) observerproto.StateMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var st observerproto.StateMsg
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("read state: %v", err)
	}
	return st
}

func TestWSHandler_StreamsState(t *testing.T) {
	s := NewServer(testSource(), nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dialObserver(t, srv)
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, RateHz: 20}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	st := readState(t, conn)
	if st.Type != observerproto.TypeState || st.WorldID != "obs-test" || st.Tick != 42 {
		t.Fatalf("unexpected header: %+v", st)
	}
	if st.Alive != 3 || st.Dead != 1 || st.Stages["contagious"] != 1 || st.Delivered != 3 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if len(st.Agents) != 4 || len(st.Items) != 1 || st.Items[0].CarriedBy != "c" {
		t.Fatalf("unexpected entities: %+v", st)
	}

	// Focus narrows the agent list but not the counts.
	focus := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, RateHz: 20, FocusAgentID: "a", Radius: 6}
	if err := conn.WriteJSON(focus); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	st = readState(t, conn)
	if len(st.Agents) != 3 || st.Alive != 3 {
		t.Fatalf("focus not applied: %+v", st.Agents)
	}
	for _, a := range st.Agents {
		if a.ID == "c" {
			t.Fatalf("agent c is out of radius")
		}
	}
}

func TestWSHandler_RejectsBadSubscribe(t *testing.T) {
	s := NewServer(testSource(), nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dialObserver(t, srv)
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: "0.1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestBootstrapHandler(t *testing.T) {
	s := NewServer(testSource(), nil)
	srv := httptest.NewServer(s.BootstrapHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.WorldID != "obs-test" || b.Tick != 42 || b.TickRateHz != 20 || b.DecisionIntervalMS != 500 {
		t.Fatalf("unexpected bootstrap: %+v", b)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.3:5000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
