package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShiraishiHope/MultiAgents/internal/oracle"
	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

// Hub lets a remote oracle connect over websocket and serves batches to
// it. At most one oracle is active; a new connection replaces the old one.
type Hub struct {
	worldID  string
	interval func() time.Duration
	log      *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	sess *session

	seq      atomic.Uint64
	sessions atomic.Uint64
}

type session struct {
	name string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending map[uint64]chan json.RawMessage
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func NewHub(worldID string, interval func() time.Duration, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval == nil {
		interval = func() time.Duration { return 500 * time.Millisecond }
	}
	return &Hub{
		worldID:  worldID,
		interval: interval,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Connected reports whether an oracle is attached, and its name.
func (h *Hub) Connected() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess == nil {
		return "", false
	}
	return h.sess.name, true
}

// Sessions counts accepted handshakes since start.
func (h *Hub) Sessions() uint64 { return h.sessions.Load() }

// DecideBatch sends one BATCH and waits for the DECISIONS with the same
// seq. Replies that arrive after ctx expires are dropped.
func (h *Hub) DecideBatch(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error) {
	h.mu.Lock()
	s := h.sess
	h.mu.Unlock()
	if s == nil {
		return nil, oracle.ErrNoOracle
	}

	seq := h.seq.Add(1)
	b, err := json.Marshal(protocol.BatchMsg{
		Type:            protocol.TypeBatch,
		ProtocolVersion: protocol.Version,
		Seq:             seq,
		Perceptions:     batch,
	})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	reply := make(chan json.RawMessage, 1)
	s.mu.Lock()
	s.pending[seq] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, seq)
		s.mu.Unlock()
	}()

	select {
	case s.out <- b:
	case <-s.done:
		return nil, fmt.Errorf("%w: disconnected", oracle.ErrNoOracle)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case raw := <-reply:
		return raw, nil
	case <-s.done:
		return nil, fmt.Errorf("%w: disconnected", oracle.ErrNoOracle)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		s := h.handshake(conn)
		if s == nil {
			_ = conn.Close()
			return
		}
		defer h.detach(s)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-s.done:
					return
				case b := <-s.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						s.close()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeDecisions {
				continue
			}
			var dm protocol.DecisionsMsg
			if err := json.Unmarshal(msg, &dm); err != nil {
				h.log.Printf("oracle %s: bad DECISIONS: %v", s.name, err)
				continue
			}
			if dm.ProtocolVersion != protocol.Version {
				continue
			}
			s.mu.Lock()
			ch, ok := s.pending[dm.Seq]
			s.mu.Unlock()
			if !ok {
				h.log.Printf("oracle %s: late or unknown seq=%d dropped", s.name, dm.Seq)
				continue
			}
			select {
			case ch <- dm.Decisions:
			default:
			}
		}
	}
}

func (h *Hub) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	_ = conn.SetReadDeadline(time.Time{})

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}
	if hello.OracleName == "" {
		hello.OracleName = "oracle"
	}

	welcome := protocol.WelcomeMsg{
		Type:             protocol.TypeWelcome,
		ProtocolVersion:  protocol.Version,
		WorldID:          h.worldID,
		DecisionInterval: int(h.interval() / time.Millisecond),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}

	s := &session{
		name:    hello.OracleName,
		conn:    conn,
		out:     make(chan []byte, 4),
		done:    make(chan struct{}),
		pending: map[uint64]chan json.RawMessage{},
	}
	h.mu.Lock()
	old := h.sess
	h.sess = s
	h.mu.Unlock()
	if old != nil {
		h.log.Printf("oracle %s replaced by %s", old.name, s.name)
		old.close()
	}
	h.sessions.Add(1)
	h.log.Printf("oracle connected: %s", s.name)
	return s
}

func (h *Hub) detach(s *session) {
	s.close()
	h.mu.Lock()
	if h.sess == s {
		h.sess = nil
	}
	h.mu.Unlock()
	h.log.Printf("oracle disconnected: %s", s.name)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
