package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository/memory"
	"github.com/vedran77/chatwave/internal/service"
	"github.com/vedran77/chatwave/internal/transport/http/handlers"
)

type recordingNotifier struct {
	batches [][]*domain.Message
}

func (n *recordingNotifier) NotifyDispatched(msgs []*domain.Message) {
	n.batches = append(n.batches, msgs)
}

type codeMailer struct {
	codes map[string]string
}

func (m *codeMailer) SendOTP(_ context.Context, email, code string, _ time.Duration) error {
	m.codes[email] = code
	return nil
}

type apiEnv struct {
	t        *testing.T
	store    *memory.Store
	handler  http.Handler
	notifier *recordingNotifier
	mailer   *codeMailer
}

func newAPIEnv(t *testing.T) *apiEnv {
	store := memory.NewStore()
	auth := service.NewAuthService(store.Users, store.Resets, "test-secret")
	mailer := &codeMailer{codes: make(map[string]string)}
	auth.SetMailer(mailer)
	blocks := service.NewBlockService(store.Blocks, store.Users)
	convs := service.NewConversationService(store.Conversations, store.Messages, store.Users)
	dispatch := service.NewDispatchService(store.Blocks, store.Conversations, store.Messages, store.Users)
	notifier := &recordingNotifier{}
	dispatch.SetNotifier(notifier)

	h := New(Deps{
		Auth:     auth,
		Accounts: handlers.NewAuthHandler(auth),
		Users:    handlers.NewUserHandler(auth, blocks),
		Chats:    handlers.NewChatHandler(convs),
		Messages: handlers.NewMessageHandler(dispatch, convs),
	})
	return &apiEnv{t: t, store: store, handler: h, notifier: notifier, mailer: mailer}
}

func (e *apiEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) register(name, email string) (*domain.User, string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/user", "", map[string]string{
		"name": name, "email": email, "password": "Secret123",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp service.AuthResponse
	require.NoError(e.t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.User, resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]any](t, rec)
	code, _ := body["error"]["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "chatwave_")
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAPIEnv(t)
	env.register("Alice", "alice@example.com")

	rec := env.do(http.MethodPost, "/api/user", "", map[string]string{
		"name": "Alice again", "email": "ALICE@example.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/api/user/login", "", map[string]string{
		"email": "alice@example.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decode[service.AuthResponse](t, rec).Token)

	rec = env.do(http.MethodPost, "/api/user/login", "", map[string]string{
		"email": "alice@example.com", "password": "Wrong1234",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_ValidationErrors(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodPost, "/api/user", "", map[string]string{"email": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newAPIEnv(t)
	for _, path := range []string{"/api/user", "/api/chat", "/api/message/" + uuid.NewString()} {
		rec := env.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestSearchUsers_ExcludesRequester(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register("Alice", "alice@example.com")
	env.register("Alicia", "alicia@example.com")

	rec := env.do(http.MethodGet, "/api/user?search=ali", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	users := decode[[]domain.User](t, rec)
	require.Len(t, users, 1)
	require.Equal(t, "Alicia", users[0].Name)
}

func TestToggleBlockAndStatus(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register("Alice", "alice@example.com")
	bob, _ := env.register("Bob", "bob@example.com")

	rec := env.do(http.MethodPost, "/api/user/block", token, map[string]string{"userId": bob.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[service.BlockStatus](t, rec).IsBlocked)

	rec = env.do(http.MethodGet, "/api/user/check-block-status?userId="+bob.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[service.BlockStatus](t, rec).IsBlocked)

	rec = env.do(http.MethodPost, "/api/user/block", token, map[string]string{"userId": bob.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[service.BlockStatus](t, rec).IsBlocked)

	rec = env.do(http.MethodGet, "/api/user/check-block-status", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatAccessIsIdempotent(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register("Alice", "alice@example.com")
	bob, bobToken := env.register("Bob", "bob@example.com")

	first := decode[domain.Conversation](t, env.do(http.MethodPost, "/api/chat", token, map[string]string{"userId": bob.ID.String()}))
	rec := env.do(http.MethodPost, "/api/chat", token, map[string]string{"userId": bob.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, first.ID, decode[domain.Conversation](t, rec).ID)

	rec = env.do(http.MethodGet, "/api/chat", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convs := decode[[]domain.Conversation](t, rec)
	require.Len(t, convs, 1)
	require.Equal(t, first.ID, convs[0].ID)
}

func TestCreateGroup(t *testing.T) {
	env := newAPIEnv(t)
	alice, token := env.register("Alice", "alice@example.com")
	bob, _ := env.register("Bob", "bob@example.com")
	carol, _ := env.register("Carol", "carol@example.com")

	rec := env.do(http.MethodPost, "/api/chat/group", token, map[string]any{
		"name": "Team", "users": []uuid.UUID{bob.ID}, "isBroadcast": false,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/api/chat/group", token, map[string]any{
		"name": "Team", "users": []uuid.UUID{bob.ID, carol.ID}, "isBroadcast": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	conv := decode[domain.Conversation](t, rec)
	require.True(t, conv.IsGroup)
	require.True(t, conv.IsBroadcast)
	require.Equal(t, []uuid.UUID{alice.ID, bob.ID, carol.ID}, conv.Participants)
	require.Equal(t, alice.ID, *conv.AdminID)
}

func TestSendAndListMessages(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register("Alice", "alice@example.com")
	bob, bobToken := env.register("Bob", "bob@example.com")
	conv := decode[domain.Conversation](t, env.do(http.MethodPost, "/api/chat", token, map[string]string{"userId": bob.ID.String()}))

	rec := env.do(http.MethodPost, "/api/message", token, map[string]string{
		"content": "hi bob", "chatId": conv.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[[]domain.Message](t, rec)[0]
	require.Equal(t, "hi bob", *sent.Content)
	require.Equal(t, domain.MessageTypeText, sent.Type)
	require.Len(t, env.notifier.batches, 1)

	rec = env.do(http.MethodGet, "/api/message/"+conv.ID.String(), bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[[]domain.Message](t, rec)
	require.Len(t, msgs, 1)
	require.Equal(t, sent.ID, msgs[0].ID)
}

func TestSendMessage_ErrorsMapToStatus(t *testing.T) {
	env := newAPIEnv(t)
	alice, token := env.register("Alice", "alice@example.com")
	bob, bobToken := env.register("Bob", "bob@example.com")
	conv := decode[domain.Conversation](t, env.do(http.MethodPost, "/api/chat", token, map[string]string{"userId": bob.ID.String()}))

	rec := env.do(http.MethodPost, "/api/message", token, map[string]string{"chatId": conv.ID.String()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_REQUEST", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/api/message", token, map[string]string{"content": "x", "chatId": uuid.NewString()})
	require.Equal(t, http.StatusNotFound, rec.Code)

	env.do(http.MethodPost, "/api/user/block", bobToken, map[string]string{"userId": alice.ID.String()})
	rec = env.do(http.MethodPost, "/api/message", token, map[string]string{"content": "x", "chatId": conv.ID.String()})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, env.notifier.batches)
}

func TestListMessages_InvalidID(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register("Alice", "alice@example.com")

	rec := env.do(http.MethodGet, "/api/message/not-a-uuid", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_BroadcastReturnsEveryMessage(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register("Alice", "alice@example.com")
	bob, _ := env.register("Bob", "bob@example.com")
	carol, _ := env.register("Carol", "carol@example.com")

	list := decode[domain.Conversation](t, env.do(http.MethodPost, "/api/chat/group", token, map[string]any{
		"name": "News", "users": []uuid.UUID{bob.ID, carol.ID}, "isBroadcast": true,
	}))

	rec := env.do(http.MethodPost, "/api/message", token, map[string]string{
		"content": "hello all", "chatId": list.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	msgs := decode[[]domain.Message](t, rec)
	require.Len(t, msgs, 3)
	require.Equal(t, list.ID, msgs[0].ConversationID)
	require.NotEqual(t, list.ID, msgs[1].ConversationID)
	require.NotEqual(t, list.ID, msgs[2].ConversationID)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newAPIEnv(t)
	env.register("Alice", "alice@example.com")

	rec := env.do(http.MethodPost, "/api/user/generate-otp", "", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := env.mailer.codes["alice@example.com"]
	require.Len(t, code, 6)

	rec = env.do(http.MethodPost, "/api/user/generate-otp", "", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/api/user/generate-otp", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/user/verify-otp", "", map[string]string{"email": "alice@example.com", "otp": code})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/user/reset-password", "", map[string]string{
		"email": "alice@example.com", "otp": code, "newPassword": "weak",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/api/user/reset-password", "", map[string]string{
		"email": "alice@example.com", "otp": code, "newPassword": "NewSecret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/user/login", "", map[string]string{
		"email": "alice@example.com", "password": "NewSecret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	env := newAPIEnv(t)
	alice, token := env.register("Alice", "alice@example.com")

	rec := env.do(http.MethodPut, "/api/user/updateprofile", token, map[string]string{"pic": "https://cdn.example.com/a.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "https://cdn.example.com/a.png", decode[domain.User](t, rec).Pic)

	stored, err := env.store.Users.GetByID(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.png", stored.Pic)

	rec = env.do(http.MethodPut, "/api/user/updateprofile", token, map[string]string{"pic": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/api/user/updateprofile", "", map[string]string{"pic": "x"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
