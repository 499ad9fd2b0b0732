package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/metrics"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBufSize    = 256
)

// Client represents a single WebSocket connection of an authenticated user.
type Client struct {
	hub     *Hub
	gateway *Gateway
	conn    *websocket.Conn
	userID  uuid.UUID
	limiter *rate.Limiter

	// rooms tracks which rooms this connection has joined.
	rooms map[uuid.UUID]struct{}
	mu    sync.RWMutex

	send     chan []byte
	sendMu   sync.Mutex
	isClosed bool
}

func newClient(gw *Gateway, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:     gw.hub,
		gateway: gw,
		conn:    conn,
		userID:  userID,
		limiter: rate.NewLimiter(rate.Limit(gw.cfg.EventsPerSecond), gw.cfg.EventBurst),
		rooms:   make(map[uuid.UUID]struct{}),
		send:    make(chan []byte, sendBufSize),
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// InRoom checks if this connection has joined a room.
func (c *Client) InRoom(room uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *Client) Join(room uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *Client) Leave(room uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// enqueue queues data for the write pump. Data for a closed connection is
// discarded; false means the buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.isClosed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.isClosed {
		return
	}
	c.isClosed = true
	close(c.send)
}

// Emit sends an event to this connection only.
func (c *Client) Emit(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		slog.Error("ws: marshal error", "type", eventType, "error", err)
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("ws: marshal error", "type", eventType, "error", err)
		return
	}
	if !c.enqueue(data) {
		metrics.WSDropped.WithLabelValues("buffer_full").Inc()
	}
}

func (c *Client) sendError(code, message string) {
	c.Emit(EventTypeError, ErrorPayload{Code: code, Message: message})
}

// ReadPump reads events from the WebSocket one at a time and hands them to
// the gateway, so events of one connection are handled in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws: client disconnected", "user_id", c.userID)
			} else {
				slog.Debug("ws: read error", "user_id", c.userID, "error", err)
			}
			return
		}

		metrics.WSEvents.WithLabelValues(event.Type).Inc()
		if !c.limiter.Allow() {
			metrics.WSDropped.WithLabelValues("rate_limited").Inc()
			c.sendError("RATE_LIMITED", "Too many events, slow down.")
			continue
		}

		c.gateway.handleEvent(c, &event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("ws: write error", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				slog.Debug("ws: ping error", "user_id", c.userID, "error", err)
				return
			}
		}
	}
}
