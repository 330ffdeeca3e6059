package observer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShiraishiHope/MultiAgents/internal/observerproto"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

// Source is the read side of a world. *world.World satisfies it.
type Source interface {
	ID() string
	TickRateHz() int
	DecisionInterval() time.Duration
	Metrics() world.WorldMetrics
	View() world.Snapshot
}

type Server struct {
	world Source
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64
}

func NewServer(w Source, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Active is the number of connected observers.
func (s *Server) Active() int64 { return s.active.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion:    observerproto.Version,
			WorldID:            s.world.ID(),
			Tick:               s.world.Metrics().Tick,
			TickRateHz:         s.world.TickRateHz(),
			DecisionIntervalMS: int(s.world.DecisionInterval() / time.Millisecond),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		s.active.Add(1)
		defer s.active.Add(-1)
		s.log.Printf("observer %s subscribed rate=%dHz", sid, sub.RateHz)

		// Reader goroutine: SUBSCRIBE updates, and close detection.
		updates := make(chan observerproto.SubscribeMsg, 1)
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if next, ok := parseSubscribe(msg); ok {
					select {
					case updates <- next:
					default:
						// Drop updates under load; the client may resend.
					}
				}
			}
		}()

		ticker := time.NewTicker(time.Second / time.Duration(sub.RateHz))
		defer ticker.Stop()
		var lastTick uint64
		sent := false
		for {
			select {
			case <-closed:
				s.log.Printf("observer %s left", sid)
				return
			case next := <-updates:
				sub = next
				ticker.Reset(time.Second / time.Duration(sub.RateHz))
				sent = false
			case <-ticker.C:
				view := s.world.View()
				if sent && view.Tick == lastTick {
					continue
				}
				b, err := json.Marshal(buildState(s.world.ID(), view, sub))
				if err != nil {
					s.log.Printf("observer %s: encode: %v", sid, err)
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
				lastTick, sent = view.Tick, true
			}
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.RateHz <= 0 {
		sub.RateHz = 2
	}
	if sub.RateHz > 20 {
		sub.RateHz = 20
	}
	if sub.Radius < 0 {
		sub.Radius = 0
	}
}

func buildState(worldID string, view world.Snapshot, sub observerproto.SubscribeMsg) observerproto.StateMsg {
	out := observerproto.StateMsg{
		Type:            observerproto.TypeState,
		ProtocolVersion: observerproto.Version,
		WorldID:         worldID,
		Tick:            view.Tick,
		Stages:          map[string]int{},
		Agents:          make([]observerproto.AgentState, 0, len(view.Agents)),
		Items:           make([]observerproto.ItemState, 0, len(view.Items)),
	}

	focus, hasFocus := view.Agent(sub.FocusAgentID)
	hasFocus = hasFocus && sub.Radius > 0
	for _, a := range view.Agents {
		if a.IsDead() {
			out.Dead++
		} else {
			out.Alive++
		}
		out.Stages[a.Stage.String()]++
		if hasFocus && math.Hypot(a.Pos.X-focus.Pos.X, a.Pos.Z-focus.Pos.Z) > sub.Radius {
			continue
		}
		out.Agents = append(out.Agents, observerproto.AgentState{
			ID:        a.ID,
			Archetype: string(a.Archetype),
			Faction:   string(a.Faction),
			X:         a.Pos.X,
			Z:         a.Pos.Z,
			Health:    a.Health,
			Hunger:    a.Hunger,
			State:     a.State.String(),
			Stage:     a.Stage.String(),
			Action:    a.LastAction,
			Carrying:  a.CarryingID,
		})
	}
	for _, it := range view.Items {
		out.Items = append(out.Items, observerproto.ItemState{ID: it.ID, X: it.Pos.X, Z: it.Pos.Z, CarriedBy: it.CarriedBy})
	}
	for _, d := range view.Deposits {
		out.Delivered += d.Deposited
	}
	return out
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
