// Package live pushes session snapshots to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const (
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// SessionSource looks sessions up by id.
type SessionSource interface {
	Get(id string) (*domain.Session, error)
}

// Message is the envelope sent to clients.
type Message struct {
	Type    string           `json:"type"`
	Session *domain.Snapshot `json:"session,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

type clientMessage struct {
	Type string `json:"type"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Message
}

// enqueue never blocks; a slow client misses intermediate snapshots.
func (s *subscriber) enqueue(m Message) bool {
	select {
	case s.send <- m:
		return true
	default:
		return false
	}
}

// Hub tracks websocket subscribers per session.
type Hub struct {
	mu             sync.RWMutex
	subs           map[string]map[*subscriber]struct{}
	sessions       SessionSource
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHub creates a hub. An empty origin list or "*" allows any origin.
func NewHub(sessions SessionSource, allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:           make(map[string]map[*subscriber]struct{}),
		sessions:       sessions,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *Hub) register(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sessionID]; !ok {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.logger.Info("Live subscriber registered", "session_id", sessionID, "subscribers", len(h.subs[sessionID]))
}

func (h *Hub) unregister(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sessionID)
		}
		h.logger.Info("Live subscriber unregistered", "session_id", sessionID)
	}
}

// Subscribers returns how many clients watch a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Publish sends a snapshot to every subscriber of its session.
func (h *Hub) Publish(snap domain.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[snap.ID] {
		s := snap
		if !sub.enqueue(Message{Type: "snapshot", Session: &s}) {
			h.logger.Debug("Live subscriber lagging, snapshot dropped", "session_id", snap.ID)
		}
	}
}

// CloseSession disconnects every subscriber of a removed session. The close
// handshakes run without h.mu held so other sessions are not blocked.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	subs := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()

	for sub := range subs {
		_ = sub.conn.Close(websocket.StatusNormalClosure, "session removed")
	}
}

// ServeHTTP upgrades GET /ws/sessions/{id} and streams snapshots until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "bye"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	sub := &subscriber{conn: ws, send: make(chan Message, sendBuffer)}
	h.register(sessionID, sub)
	defer h.unregister(sessionID, sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap := sess.Snapshot()
	sub.enqueue(Message{Type: "snapshot", Session: &snap})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, sub, sessionID)
	}()

	h.readLoop(ctx, sub, sessionID)
	cancel()
	wg.Wait()
}

func (h *Hub) readLoop(ctx context.Context, sub *subscriber, sessionID string) {
	for {
		_, data, err := sub.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "session_id", sessionID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			sub.enqueue(Message{Type: "pong"})
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, sub *subscriber, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, sub.conn, m)
			cancel()
			if err != nil {
				h.logger.Debug("WebSocket write error", "error", err, "session_id", sessionID)
				return
			}
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 || slices.Contains(h.allowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}
