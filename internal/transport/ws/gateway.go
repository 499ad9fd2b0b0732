package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
	"github.com/vedran77/chatwave/internal/service"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const eventTimeout = 30 * time.Second

const (
	codeUnavailable = "UNAVAILABLE"
	msgShuttingDown = "Server is shutting down. Try again later."
)

// TokenValidator resolves an access token to the user it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (uuid.UUID, error)
}

// Dispatcher is the message send path used by the gateway.
type Dispatcher interface {
	Submit(ctx context.Context, in service.SendInput) ([]*domain.Message, error)
	Record(ctx context.Context, in service.SendInput) (*domain.Message, error)
}

type Responder interface {
	Respond(ctx context.Context, prompt string, senderID, conversationID uuid.UUID) (*domain.Message, error)
}

type Config struct {
	BotEmailSuffix  string
	EventsPerSecond float64
	EventBurst      int
	Membership      MembershipPolicy
}

// Gateway authenticates connections and turns client events into room
// membership changes, relays and message dispatches.
type Gateway struct {
	hub        *Hub
	auth       TokenValidator
	users      repository.UserRepository
	convs      repository.ConversationRepository
	dispatcher Dispatcher
	responder  Responder
	cfg        Config

	// replies tracks bot responses still being generated. closing is set by
	// Close and guards replies.Add.
	mu      sync.Mutex
	closing bool
	replies sync.WaitGroup
}

func NewGateway(
	hub *Hub,
	auth TokenValidator,
	users repository.UserRepository,
	convs repository.ConversationRepository,
	dispatcher Dispatcher,
	responder Responder,
	cfg Config,
) *Gateway {
	if cfg.Membership == nil {
		cfg.Membership = OpenMembership{}
	}
	if cfg.EventsPerSecond <= 0 {
		cfg.EventsPerSecond = float64(rate.Inf)
	}
	if cfg.EventBurst <= 0 {
		cfg.EventBurst = 1
	}
	return &Gateway{
		hub:        hub,
		auth:       auth,
		users:      users,
		convs:      convs,
		dispatcher: dispatcher,
		responder:  responder,
		cfg:        cfg,
	}
}

// Close stops the gateway from accepting connections and bot messages, then
// blocks until pending bot replies have been delivered.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()

	g.replies.Wait()
}

func (g *Gateway) isClosing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closing
}

// startReply reserves a pending bot reply. It reports false once Close has
// been called.
func (g *Gateway) startReply() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.replies.Add(1)
	return true
}

// ServeWS upgrades an authenticated request to a WebSocket. The token comes
// from the Authorization header or, for browsers that cannot set headers on
// a WebSocket handshake, the ?token= query param.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if g.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	tokenStr := bearerToken(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := g.auth.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	user, err := g.users.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("ws: loading user", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin (dev mode)
	})
	if err != nil {
		slog.Warn("ws: accept error", "error", err)
		return
	}

	client := newClient(g, conn, userID)
	if !g.hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// handleEvent routes an incoming client event.
func (g *Gateway) handleEvent(c *Client, event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch event.Type {
	case EventTypeSetup:
		g.handleSetup(c, event)

	case EventTypeJoinChat:
		room, err := decodeRoom(event.Payload)
		if err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid join chat payload")
			return
		}
		ok, err := g.cfg.Membership.CanJoin(ctx, c.userID, room)
		if err != nil {
			slog.Error("ws: membership check", "user_id", c.userID, "chat_id", room, "error", err)
			c.sendError("INTERNAL", "Something went wrong")
			return
		}
		if !ok {
			c.sendError(string(service.CodeForbidden), service.ErrNotParticipant.Message)
			return
		}
		c.Join(room)

	case EventTypeLeaveChat:
		room, err := decodeRoom(event.Payload)
		if err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid leave chat payload")
			return
		}
		c.Leave(room)

	case EventTypeTyping, EventTypeStopTyping:
		room, err := decodeRoom(event.Payload)
		if err != nil {
			c.sendError("INVALID_PAYLOAD", "conversation id required for typing events")
			return
		}
		userID := c.userID
		evt, err := NewEvent(event.Type, RoomPayload{ChatID: room, UserID: &userID})
		if err != nil {
			return
		}
		g.hub.EmitToRoom(room, evt, c)

	case EventTypeNewMessage:
		g.handleNewMessage(ctx, c, event)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// handleSetup joins the connection to its personal room. A payload identity,
// when given, has to match the authenticated user.
func (g *Gateway) handleSetup(c *Client, event *Event) {
	if len(event.Payload) > 0 && string(event.Payload) != "null" {
		var p SetupPayload
		if err := unmarshalPayload(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid setup payload")
			return
		}
		if p.UserID != uuid.Nil && p.UserID != c.userID {
			c.sendError(string(service.CodeUnauthenticated), "setup identity does not match token")
			return
		}
	}
	c.Join(c.userID)
	c.Emit(EventTypeConnected, nil)
}

func (g *Gateway) handleNewMessage(ctx context.Context, c *Client, event *Event) {
	var p NewMessagePayload
	if err := unmarshalPayload(event.Payload, &p); err != nil {
		c.sendError(string(service.CodeInvalidRequest), service.ErrInvalidData.Message)
		return
	}
	if p.SenderID != uuid.Nil && p.SenderID != c.userID {
		c.sendError(string(service.CodeUnauthenticated), "sender does not match token")
		return
	}

	in := service.SendInput{
		SenderID:       c.userID,
		ConversationID: p.ChatID,
		Content:        p.Content,
		MediaURL:       p.MediaURL,
		MediaType:      p.MediaType,
	}

	bot, err := g.botCounterpart(ctx, p.ChatID, c.userID)
	if err != nil {
		g.emitFailure(c, err)
		return
	}
	if bot != nil {
		g.handleBotMessage(ctx, c, bot, in)
		return
	}

	msgs, err := g.dispatcher.Submit(ctx, in)
	if err != nil {
		g.emitFailure(c, err)
		return
	}

	c.Emit(EventTypeMessageSent, msgs[0])
	g.hub.DeliverMessages(msgs)
}

// botCounterpart returns the bot participant of a two-party conversation
// with userID, or nil when the conversation is not a bot conversation.
func (g *Gateway) botCounterpart(ctx context.Context, convID, userID uuid.UUID) (*domain.User, error) {
	if convID == uuid.Nil || g.cfg.BotEmailSuffix == "" {
		return nil, nil
	}
	conv, err := g.convs.GetByID(ctx, convID)
	if err != nil || conv == nil {
		return nil, err
	}
	if len(conv.Participants) != 2 || !conv.HasParticipant(userID) {
		return nil, nil
	}

	otherID, ok := conv.Counterpart(userID)
	if !ok {
		return nil, nil
	}
	other, err := g.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if !other.IsBot(g.cfg.BotEmailSuffix) {
		return nil, nil
	}
	return other, nil
}

// handleBotMessage stores the user's message without blocking checks and
// answers it asynchronously. The reply goes to this connection only.
func (g *Gateway) handleBotMessage(ctx context.Context, c *Client, bot *domain.User, in service.SendInput) {
	if !g.startReply() {
		c.sendError(codeUnavailable, msgShuttingDown)
		return
	}

	msg, err := g.dispatcher.Record(ctx, in)
	if err != nil {
		g.replies.Done()
		g.emitFailure(c, err)
		return
	}

	c.Emit(EventTypeMessageSent, msg)
	typing := RoomPayload{ChatID: in.ConversationID, UserID: &bot.ID}
	c.Emit(EventTypeTyping, typing)

	prompt := botPrompt(msg)
	go func() {
		defer g.replies.Done()
		defer c.Emit(EventTypeStopTyping, typing)

		reply, err := g.responder.Respond(context.Background(), prompt, c.userID, in.ConversationID)
		if err != nil {
			g.emitFailure(c, err)
			return
		}
		c.Emit(EventTypeMessageReceived, reply)
	}()
}

// botPrompt is the text handed to the responder. Attachments without text
// are described so the generation service never gets an empty turn.
func botPrompt(msg *domain.Message) string {
	if msg.Content != nil && *msg.Content != "" {
		return *msg.Content
	}
	if msg.Media != nil {
		return fmt.Sprintf("[Attachment (%s): %s]", msg.Media.Kind, msg.Media.URL)
	}
	return ""
}

// emitFailure reports err to the initiating connection only.
func (g *Gateway) emitFailure(c *Client, err error) {
	if code := service.CodeOf(err); code != "" {
		c.sendError(string(code), err.Error())
		return
	}
	slog.Error("ws: event failed", "user_id", c.userID, "error", err)
	c.sendError("INTERNAL", "Something went wrong")
}
