package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository/memory"
	"github.com/vedran77/chatwave/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _ []domain.ChatTurn, prompt string, _ int) (string, error) {
	return "echo: " + prompt, nil
}

type testEnv struct {
	t      *testing.T
	store  *memory.Store
	auth   *service.AuthService
	convs  *service.ConversationService
	srv    *httptest.Server
	gw     *Gateway
	tokens map[uuid.UUID]string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.NewStore(), cfg)
}

func newTestEnvWithStore(t *testing.T, store *memory.Store, cfg Config) *testEnv {
	t.Helper()
	auth := service.NewAuthService(store.Users, store.Resets, "test-secret")
	dispatch := service.NewDispatchService(store.Blocks, store.Conversations, store.Messages, store.Users)
	rcfg := service.DefaultResponderConfig()
	rcfg.Retry.Delay = 0
	responder := service.NewResponderService(store.Conversations, store.Messages, store.Users, echoGenerator{}, rcfg)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	if cfg.BotEmailSuffix == "" {
		cfg.BotEmailSuffix = "bot"
	}
	gw := NewGateway(hub, auth, store.Users, store.Conversations, dispatch, responder, cfg)
	srv := httptest.NewServer(http.HandlerFunc(gw.ServeWS))

	t.Cleanup(func() {
		srv.Close()
		gw.Close()
		cancel()
	})

	return &testEnv{
		t:      t,
		store:  store,
		auth:   auth,
		convs:  service.NewConversationService(store.Conversations, store.Messages, store.Users),
		srv:    srv,
		gw:     gw,
		tokens: make(map[uuid.UUID]string),
	}
}

func (e *testEnv) user(name, email string) *domain.User {
	e.t.Helper()
	resp, err := e.auth.Register(context.Background(), service.RegisterInput{Name: name, Email: email, Password: "Secret123"})
	require.NoError(e.t, err)
	e.tokens[resp.User.ID] = resp.Token
	return resp.User
}

func (e *testEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + query
}

// connect dials as u and completes setup.
func (e *testEnv) connect(u *domain.User) *websocket.Conn {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, e.wsURL("?token="+e.tokens[u.ID]), nil)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	send(e.t, conn, EventTypeSetup, SetupPayload{UserID: u.ID})
	expect(e.t, conn, EventTypeConnected)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	evt, err := NewEvent(eventType, payload)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, evt))
}

// expect reads events until one of eventType arrives.
func expect(t *testing.T, conn *websocket.Conn, eventType string) *Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var evt Event
		require.NoError(t, wsjson.Read(ctx, conn, &evt), "waiting for %q", eventType)
		if evt.Type == eventType {
			return &evt
		}
	}
}

func expectMessage(t *testing.T, conn *websocket.Conn, eventType string) domain.Message {
	t.Helper()
	var msg domain.Message
	require.NoError(t, json.Unmarshal(expect(t, conn, eventType).Payload, &msg))
	return msg
}

func TestServeWS_RejectsUnauthenticated(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.wsURL(""), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, env.wsURL("?token=garbage"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_AcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL(""), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + env.tokens[alice.ID]}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	send(t, conn, EventTypeSetup, nil)
	expect(t, conn, EventTypeConnected)
}

func TestSetup_IdentityMismatch(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL("?token="+env.tokens[alice.ID]), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	send(t, conn, EventTypeSetup, SetupPayload{UserID: uuid.New()})
	evt := expect(t, conn, EventTypeError)
	require.Contains(t, string(evt.Payload), "UNAUTHENTICATED")
}

func TestNewMessage_DeliveredToCounterpart(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	bob := env.user("Bob", "bob@example.com")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	aliceConn := env.connect(alice)
	bobConn := env.connect(bob)

	send(t, aliceConn, EventTypeNewMessage, NewMessagePayload{SenderID: alice.ID, ChatID: conv.ID, Content: "hi bob"})

	sent := expectMessage(t, aliceConn, EventTypeMessageSent)
	require.Equal(t, "hi bob", *sent.Content)

	received := expectMessage(t, bobConn, EventTypeMessageReceived)
	require.Equal(t, sent.ID, received.ID)
	require.Equal(t, conv.ID, received.ConversationID)
}

func TestNewMessage_BlockedSenderGetsError(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	bob := env.user("Bob", "bob@example.com")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Blocks.Create(context.Background(), &domain.Block{BlockerID: bob.ID, BlockedID: alice.ID}))

	aliceConn := env.connect(alice)
	send(t, aliceConn, EventTypeNewMessage, NewMessagePayload{ChatID: conv.ID, Content: "hi"})

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, aliceConn, EventTypeError).Payload, &p))
	require.Equal(t, "Bob blocked you.", p.Message)
	require.Zero(t, env.store.Messages.Count())
}

func TestNewMessage_BotConversationBypassesBlocks(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	bot := env.user("Wave", "wave@chatbot")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bot.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Blocks.Create(context.Background(), &domain.Block{BlockerID: bot.ID, BlockedID: alice.ID}))

	conn := env.connect(alice)
	send(t, conn, EventTypeNewMessage, NewMessagePayload{ChatID: conv.ID, Content: "ping"})

	sent := expectMessage(t, conn, EventTypeMessageSent)
	require.Equal(t, "ping", *sent.Content)
	expect(t, conn, EventTypeTyping)

	reply := expectMessage(t, conn, EventTypeMessageReceived)
	require.Equal(t, bot.ID, reply.SenderID)
	require.Equal(t, "echo: ping", *reply.Content)
	expect(t, conn, EventTypeStopTyping)

	require.Zero(t, env.store.Blocks.Lookups())
	require.Equal(t, 2, env.store.Messages.Count())
}

func TestNewMessage_BotMediaOnlyGetsDescriptor(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	bot := env.user("Wave", "wave@chatbot")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bot.ID)
	require.NoError(t, err)

	conn := env.connect(alice)
	send(t, conn, EventTypeNewMessage, NewMessagePayload{
		ChatID: conv.ID, MediaURL: "https://cdn.example.com/cat.png", MediaType: domain.MediaKindImage,
	})

	sent := expectMessage(t, conn, EventTypeMessageSent)
	require.Nil(t, sent.Content)

	reply := expectMessage(t, conn, EventTypeMessageReceived)
	require.Equal(t, "echo: [Attachment (image): https://cdn.example.com/cat.png]", *reply.Content)
}

func TestClose_RejectsBotMessagesAndConnections(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	bot := env.user("Wave", "wave@chatbot")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bot.ID)
	require.NoError(t, err)

	conn := env.connect(alice)
	env.gw.Close()

	send(t, conn, EventTypeNewMessage, NewMessagePayload{ChatID: conv.ID, Content: "ping"})
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, EventTypeError).Payload, &p))
	require.Equal(t, "UNAVAILABLE", p.Code)
	require.Zero(t, env.store.Messages.Count())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, env.wsURL("?token="+env.tokens[alice.ID]), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNewMessage_BroadcastFanout(t *testing.T) {
	env := newTestEnv(t, Config{})
	sam := env.user("Sam", "sam@example.com")
	ann := env.user("Ann", "ann@example.com")
	ben := env.user("Ben", "ben@example.com")
	list, err := env.convs.CreateGroup(context.Background(), sam.ID, service.CreateGroupInput{
		Name: "news", Users: []uuid.UUID{ann.ID, ben.ID}, Broadcast: true,
	})
	require.NoError(t, err)

	samConn := env.connect(sam)
	annConn := env.connect(ann)
	benConn := env.connect(ben)

	send(t, samConn, EventTypeNewMessage, NewMessagePayload{ChatID: list.ID, Content: "hello all"})

	sent := expectMessage(t, samConn, EventTypeMessageSent)
	require.Equal(t, list.ID, sent.ConversationID)

	for _, c := range []*websocket.Conn{annConn, benConn} {
		got := expectMessage(t, c, EventTypeMessageReceived)
		require.Equal(t, "hello all", *got.Content)
		require.NotEqual(t, list.ID, got.ConversationID, "recipients get their one-to-one copy")
		require.NotNil(t, got.Conversation)
		require.False(t, got.Conversation.IsGroup)
	}
}

func TestTyping_RelayedToOtherRoomMembers(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")
	bob := env.user("Bob", "bob@example.com")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	aliceConn := env.connect(alice)
	bobConn := env.connect(bob)
	send(t, aliceConn, EventTypeJoinChat, conv.ID.String())
	send(t, bobConn, EventTypeJoinChat, RoomPayload{ChatID: conv.ID})

	// Joins are handled in order per connection; a round trip on Bob's
	// connection guarantees his join landed before Alice types.
	send(t, bobConn, EventTypeSetup, nil)
	expect(t, bobConn, EventTypeConnected)

	send(t, aliceConn, EventTypeTyping, conv.ID.String())

	var p RoomPayload
	require.NoError(t, json.Unmarshal(expect(t, bobConn, EventTypeTyping).Payload, &p))
	require.Equal(t, conv.ID, p.ChatID)
	require.Equal(t, alice.ID, *p.UserID)
}

func TestJoinChat_StrictMembership(t *testing.T) {
	store := memory.NewStore()
	env := newTestEnvWithStore(t, store, Config{Membership: NewParticipantMembership(store.Conversations)})
	alice := env.user("Alice", "alice@example.com")
	bob := env.user("Bob", "bob@example.com")
	conv, err := env.convs.AccessDirect(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	conn := env.connect(alice)
	send(t, conn, EventTypeJoinChat, uuid.New().String())

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, EventTypeError).Payload, &p))
	require.Equal(t, string(service.CodeForbidden), p.Code)

	send(t, conn, EventTypeJoinChat, conv.ID.String())
	send(t, conn, EventTypeSetup, nil)
	expect(t, conn, EventTypeConnected)

	bobConn := env.connect(bob)
	send(t, bobConn, EventTypeTyping, conv.ID.String())
	expect(t, conn, EventTypeTyping)
}

func TestRateLimit_DropsExcessEvents(t *testing.T) {
	env := newTestEnv(t, Config{EventsPerSecond: 0.001, EventBurst: 1})
	alice := env.user("Alice", "alice@example.com")

	conn := env.connect(alice)
	send(t, conn, EventTypeSetup, nil)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, EventTypeError).Payload, &p))
	require.Equal(t, "RATE_LIMITED", p.Code)
}

func TestUnknownEvent(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice := env.user("Alice", "alice@example.com")

	conn := env.connect(alice)
	send(t, conn, "dance", nil)
	evt := expect(t, conn, EventTypeError)
	require.Contains(t, string(evt.Payload), "UNKNOWN_EVENT")
}
