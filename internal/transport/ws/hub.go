package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/metrics"
)

// relayTimeout bounds a publish so a stalled relay cannot hold up the
// emitting connection.
const relayTimeout = 2 * time.Second

// Relay forwards room emits to other server instances.
type Relay interface {
	Publish(ctx context.Context, room uuid.UUID, data []byte) error
}

// Hub manages all active WebSocket clients and routes room emits.
// A room is either a user's personal room (keyed by user id) or a
// conversation room (keyed by conversation id).
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMsg
	quit       chan struct{}

	relay Relay
}

type roomMsg struct {
	room   uuid.UUID
	data   []byte
	except *Client // optional: skip this connection (e.g. sender)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMsg, 256),
		quit:       make(chan struct{}),
	}
}

// SetRelay sets the cross-instance relay (optional dependency). It must be
// called before Run.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Run starts the Hub's main event loop and returns when ctx is done. Call
// this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.quit)
		for client := range h.clients {
			h.drop(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WSConnections.Inc()
			slog.Debug("ws hub: client connected", "user_id", client.userID, "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				slog.Debug("ws hub: client disconnected", "user_id", client.userID, "total", len(h.clients))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client == msg.except || !client.InRoom(msg.room) {
					continue
				}
				if !client.enqueue(msg.data) {
					// Client buffer full - disconnect
					metrics.WSDropped.WithLabelValues("slow_consumer").Inc()
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
	metrics.WSConnections.Dec()
}

// Register adds a client. It blocks until the hub accepts it and reports
// false when the hub is no longer running.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// EmitToRoom sends an event to every connection in room, locally and, when a
// relay is configured, on other instances.
func (h *Hub) EmitToRoom(room uuid.UUID, event *Event, except *Client) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("ws hub: marshal error", "error", err)
		return
	}
	h.emit(&roomMsg{room: room, data: data, except: except})

	if h.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		if err := h.relay.Publish(ctx, room, data); err != nil {
			metrics.WSDropped.WithLabelValues("relay").Inc()
			slog.Warn("ws hub: relay publish failed", "room", room, "error", err)
		}
	}
}

// DeliverRemote hands an emit received from another instance to local
// connections only.
func (h *Hub) DeliverRemote(room uuid.UUID, data []byte) {
	h.emit(&roomMsg{room: room, data: data})
}

func (h *Hub) emit(msg *roomMsg) {
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

// DeliverMessages emits "message received" for dispatch results. When a
// broadcast fanned out, only the per-recipient copies are delivered; an
// ordinary send delivers its single message. Each message goes to the
// personal room of every participant of its conversation except the sender.
func (h *Hub) DeliverMessages(msgs []*domain.Message) {
	if len(msgs) > 1 {
		msgs = msgs[1:]
	}

	for _, msg := range msgs {
		if msg.Conversation == nil {
			continue
		}
		evt, err := NewEvent(EventTypeMessageReceived, msg)
		if err != nil {
			slog.Error("ws hub: marshal error", "error", err)
			continue
		}
		for _, userID := range msg.Conversation.Participants {
			if userID == msg.SenderID {
				continue
			}
			h.EmitToRoom(userID, evt, nil)
		}
	}
}
