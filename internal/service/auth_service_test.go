package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chatwave/internal/repository/memory"
)

func TestRegisterAndLogin(t *testing.T) {
	store := memory.NewStore()
	svc := NewAuthService(store.Users, store.Resets, "test-secret")
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	id, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, id)

	_, err = svc.Register(ctx, RegisterInput{Name: "Other", Email: "ALICE@example.com", Password: "Secret123"})
	require.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123"})
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCreds)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewAuthService(memory.NewUserRepo(), memory.NewPasswordResetRepo(), "test-secret")
	other := NewAuthService(memory.NewUserRepo(), memory.NewPasswordResetRepo(), "another-secret")

	token, err := other.generateToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Equal(t, CodeUnauthenticated, CodeOf(err))

	_, err = svc.ValidateToken("garbage")
	require.Equal(t, CodeUnauthenticated, CodeOf(err))
}

func TestSearch_ExcludesRequester(t *testing.T) {
	store := memory.NewStore()
	alice := newUser(t, store, "Alice", "alice@example.com")
	newUser(t, store, "Alicia", "alicia@example.com")
	newUser(t, store, "Bob", "bob@example.com")
	svc := NewAuthService(store.Users, store.Resets, "test-secret")

	users, err := svc.Search(context.Background(), "ali", alice.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "Alicia", users[0].Name)
}

type captureMailer struct {
	email string
	code  string
	ttl   time.Duration
	err   error
}

func (m *captureMailer) SendOTP(_ context.Context, email, code string, ttl time.Duration) error {
	m.email, m.code, m.ttl = email, code, ttl
	return m.err
}

func newResetEnv(t *testing.T) (*AuthService, *memory.Store, *captureMailer, *time.Time) {
	t.Helper()
	store := memory.NewStore()
	svc := NewAuthService(store.Users, store.Resets, "test-secret")
	mailer := &captureMailer{}
	svc.SetMailer(mailer)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Secret123"})
	require.NoError(t, err)
	return svc, store, mailer, &now
}

func TestPasswordReset(t *testing.T) {
	svc, store, mailer, _ := newResetEnv(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestOTP(ctx, "alice@example.com"))
	require.Equal(t, "alice@example.com", mailer.email)
	require.Len(t, mailer.code, 6)
	require.Equal(t, 10*time.Minute, mailer.ttl)

	user, err := store.Users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	reset, err := store.Resets.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, mailer.code, reset.CodeHash)

	require.ErrorIs(t, svc.VerifyOTP(ctx, "alice@example.com", "000000"), ErrOTPInvalid)
	require.NoError(t, svc.VerifyOTP(ctx, "alice@example.com", mailer.code))

	require.NoError(t, svc.ResetPassword(ctx, "alice@example.com", mailer.code, "NewSecret1"))

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123"})
	require.ErrorIs(t, err, ErrInvalidCreds)
	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "NewSecret1"})
	require.NoError(t, err)

	// The code is single use.
	err = svc.ResetPassword(ctx, "alice@example.com", mailer.code, "Another1")
	require.ErrorIs(t, err, ErrOTPInvalid)
}

func TestRequestOTP_PendingCodeBlocksResend(t *testing.T) {
	svc, _, mailer, now := newResetEnv(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestOTP(ctx, "alice@example.com"))
	first := mailer.code

	require.ErrorIs(t, svc.RequestOTP(ctx, "alice@example.com"), ErrOTPAlreadySent)

	*now = now.Add(10 * time.Minute)
	require.ErrorIs(t, svc.VerifyOTP(ctx, "alice@example.com", first), ErrOTPExpired)

	require.NoError(t, svc.RequestOTP(ctx, "alice@example.com"))
	require.NoError(t, svc.VerifyOTP(ctx, "alice@example.com", mailer.code))
}

func TestRequestOTP_Failures(t *testing.T) {
	svc, store, mailer, _ := newResetEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.RequestOTP(ctx, "nobody@example.com"), ErrUserNotFound)

	mailer.err = errors.New("smtp down")
	err := svc.RequestOTP(ctx, "alice@example.com")
	require.Error(t, err)
	require.Empty(t, CodeOf(err))

	user, err := store.Users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	reset, err := store.Resets.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, reset)
}

func TestUpdateProfile(t *testing.T) {
	store := memory.NewStore()
	alice := newUser(t, store, "Alice", "alice@example.com")
	svc := NewAuthService(store.Users, store.Resets, "test-secret")
	ctx := context.Background()

	user, err := svc.UpdateProfile(ctx, alice.ID, " https://cdn.example.com/a.png ")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.png", user.Pic)

	stored, err := store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.png", stored.Pic)

	_, err = svc.UpdateProfile(ctx, alice.ID, "  ")
	require.ErrorIs(t, err, ErrInvalidData)

	_, err = svc.UpdateProfile(ctx, uuid.New(), "https://cdn.example.com/b.png")
	require.ErrorIs(t, err, ErrUserNotFound)
}
