package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"match-predictor/internal/sports"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	EventPerformance  = "performance"
	EventPickRecorded = "pick_recorded"
	EventPickResolved = "pick_resolved"

	writeWait = 5 * time.Second
)

// StreamEvent is one message on the pick stream.
type StreamEvent struct {
	Type        string                     `json:"type"`
	Pick        *sports.HighConfidencePick `json:"pick,omitempty"`
	Performance *sports.PickPerformance    `json:"performance,omitempty"`
	Timestamp   time.Time                  `json:"timestamp"`
}

// Hub fans pick updates out to WebSocket clients. New clients first receive
// a performance snapshot.
type Hub struct {
	upgrader    websocket.Upgrader
	clients     map[*websocket.Conn]bool
	clientsMu   sync.Mutex
	broadcast   chan StreamEvent
	performance func() sports.PickPerformance
}

func NewHub(performance func() sports.PickPerformance) *Hub {
	return &Hub{
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:     make(map[*websocket.Conn]bool),
		broadcast:   make(chan StreamEvent, 100),
		performance: performance,
	}
}

// Publish queues a pick update. It never blocks; updates are dropped when
// the queue is full.
func (h *Hub) Publish(p sports.HighConfidencePick) {
	ev := StreamEvent{Type: EventPickRecorded, Pick: &p, Timestamp: time.Now()}
	if p.Resolved() {
		ev.Type = EventPickResolved
	}

	select {
	case h.broadcast <- ev:
	default:
		log.Warn().Str("pick_id", p.ID.String()).Msg("pick stream queue full, dropping update")
	}
}

// Run broadcasts queued events until ctx is done, then disconnects clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case ev := <-h.broadcast:
			h.broadcastToClients(ev)
		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *Hub) broadcastToClients(ev StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal stream event")
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("dropping stream client")
			client.Close()
			delete(h.clients, client)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The snapshot is written under the lock so it cannot interleave with a
	// broadcast and no event is missed between snapshot and registration.
	perf := h.performance()
	h.clientsMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(StreamEvent{Type: EventPerformance, Performance: &perf, Timestamp: time.Now()})
	if err == nil {
		h.clients[conn] = true
	}
	h.clientsMu.Unlock()
	if err != nil {
		conn.Close()
		return
	}

	// Clients never send; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	conn.Close()
}
