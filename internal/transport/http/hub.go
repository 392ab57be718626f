package httptransport

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const registerWait = 2 * time.Second

// Event tells a dashboard that one of its blocks changed.
type Event struct {
	Type    string `json:"type"`
	BlockID string `json:"id"`
	session string
}

// Hub fans block events out to the websocket clients of the same session.
// Only Run touches the client set.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub loop; it returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case ev := <-h.broadcast:
			for client := range h.clients {
				if client.session != ev.session {
					continue
				}
				select {
				case client.send <- ev:
				default:
					// slow consumer
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Register hands client to the hub. It gives up once the hub has stopped,
// or when the hub doesn't take the client within registerWait.
func (h *Hub) Register(client *Client) bool {
	timer := time.NewTimer(registerWait)
	defer timer.Stop()
	select {
	case h.register <- client:
		return true
	case <-h.done:
	case <-timer.C:
	}
	return false
}

// Unregister never blocks on a stopped hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a block event; it never blocks the caller.
func (h *Hub) Publish(sessionID, blockID string) {
	select {
	case h.broadcast <- Event{Type: "block", BlockID: blockID, session: sessionID}:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event", zap.String("block", blockID))
	}
}
