package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/realtime"
)

// Hub fans transaction events out to every connected websocket client.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan realtime.Frame

	log zerolog.Logger
	now func() time.Time
}

// NewHub creates a hub. Call Run to start delivering broadcasts.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan realtime.Frame, 100),
		log:       log,
		now:       time.Now,
	}
}

// Publish queues ev for delivery. It never blocks: when the queue is full
// the event is dropped and clients catch up on their next refresh.
func (h *Hub) Publish(ev realtime.Event) {
	frame, err := realtime.NewFrame(ev, h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode event")
		return
	}

	select {
	case h.broadcast <- frame:
	default:
		h.log.Warn().Str("event", string(ev.Kind)).Msg("broadcast channel full, dropping event")
	}
}

// Run delivers queued frames until ctx is cancelled, then closes every
// client connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-h.broadcast:
			data, err := json.Marshal(frame)
			if err != nil {
				h.log.Error().Err(err).Msg("failed to marshal frame")
				continue
			}

			h.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				clients = append(clients, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range clients {
				wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := conn.Write(wctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					h.log.Debug().Err(err).Msg("failed to send to client")
					h.removeClient(conn)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and registers the connection until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.log.Info().Int("clients", count).Msg("client connected")

	// Clients never send anything meaningful; reading detects the close.
	defer h.removeClient(conn)
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.log.Info().Int("clients", count).Msg("client disconnected")
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, conn)
	}
}
