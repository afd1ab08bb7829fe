// Package sidechannel implements the optional lip-sync phoneme-timing
// side channel: a websocket publisher Synthesis feeds and any number of
// reconnecting subscriber clients (a lip-sync renderer) can listen on.
// Publishing here is informational only — a connection failure must never
// affect audio output, matching the side channel's contract.
package sidechannel

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halcyon-labs/vassist/internal/pipeline"
)

// Envelope is the wire shape of one phoneme-timing event.
type Envelope struct {
	Text    string  `json:"text"`
	Seconds float64 `json:"seconds"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans a single stream of phoneme timings out to every subscriber
// currently connected. It implements pipeline.PhonemePublisher.
type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[*websocket.Conn]struct{}),
		logger: logger.With("component", "sidechannel"),
	}
}

// HandleWS upgrades an incoming HTTP request to a websocket connection and
// registers it as a subscriber until the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "err", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go h.drainReads(conn)
}

// drainReads discards inbound frames (subscribers are read-only clients)
// until the connection closes, at which point the conn is unregistered.
func (h *Hub) drainReads(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish satisfies pipeline.PhonemePublisher: it fans t out to every
// connected subscriber, dropping any that error or block past their write
// deadline rather than letting one slow client stall synthesis.
func (h *Hub) Publish(t pipeline.PhonemeTiming) {
	payload, err := json.Marshal(Envelope{Text: t.PhonemeID, Seconds: t.Seconds})
	if err != nil {
		return
	}

	h.mu.Lock()
	dead := make([]*websocket.Conn, 0)
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(h.conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range dead {
		conn.Close()
	}
}

// Close drops every connected subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
