package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the envelope pushed to WebSocket clients. Payload is the event
// exactly as published on the bus; Run names the analysis run for run
// lifecycle events so the hub can serve per-run subscriptions.
type Event struct {
	Type    string          `json:"type"`
	Run     string          `json:"run,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans bus events out to connected WebSocket clients. A client may
// subscribe to a single run; the empty filter receives everything.
type Hub struct {
	clients   map[*websocket.Conn]string
	broadcast chan Event
	mu        sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan Event, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client, filter := range h.clients {
		if filter != "" && filter != event.Run {
			continue
		}
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("websocket broadcast channel full, dropping event")
	}
}

// Register adds a client; runFilter restricts delivery to one run's events,
// "" delivers everything.
func (h *Hub) Register(conn *websocket.Conn, runFilter string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = runFilter
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(conn, r.URL.Query().Get("run"))
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	// Push-only connection; drain reads until the client goes away.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
