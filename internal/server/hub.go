package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
	eventsWSBuffer    = 32
)

type subscriber struct {
	send chan workflow.Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans graph and run events out to connected websocket clients.
// Slow clients lose events rather than block the publisher.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
}

type HubOption func(*Hub)

// WithOriginPolicy restricts websocket upgrades to origins p allows.
// Without it the upgrader accepts same-origin handshakes only.
func WithOriginPolicy(p *OriginPolicy) HubOption {
	return func(h *Hub) {
		if p != nil {
			h.upgrader.CheckOrigin = p.Allow
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Publish delivers ev to every subscriber. It never blocks and is safe to
// use as a workflow.Observer.
func (h *Hub) Publish(ev workflow.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.send <- ev:
		default:
			slog.Warn("dropping event for slow subscriber", "type", ev.Type)
		}
	}
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{
		send: make(chan workflow.Event, eventsWSBuffer),
		done: make(chan struct{}),
	}
	h.subs[s] = struct{}{}
	return s, true
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.close()
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		s.close()
	}
}

// ServeHTTP upgrades the connection and streams events as JSON text frames
// until the client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("events ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub, ok := h.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(eventsWSWriteWait))
		return
	}
	defer h.unsubscribe(sub)

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		slog.Warn("events ws set read deadline failed", "err", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	// Reader: inbound frames are ignored, but reading drives pong handling
	// and detects disconnects.
	go func() {
		defer sub.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsWSPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-sub.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(eventsWSWriteWait))
			return
		case ev := <-sub.send:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
