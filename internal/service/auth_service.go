package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/domain"
	"github.com/vedran77/chatwave/internal/repository"
	"golang.org/x/crypto/argon2"
)

const (
	searchLimit = 20
	otpTTL      = 10 * time.Minute
)

type AuthService struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetRepository
	mailer    Mailer
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, resetRepo repository.PasswordResetRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		resetRepo: resetRepo,
		mailer:    LogMailer{},
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// SetMailer replaces the mailer used to deliver password reset codes.
func (s *AuthService) SetMailer(m Mailer) {
	s.mailer = m
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Pic      string `json:"pic"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := strings.TrimSpace(input.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Pic:          strings.TrimSpace(input.Pic),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	return &AuthResponse{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCreds
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	return &AuthResponse{User: user, Token: token}, nil
}

// ValidateToken verifies an access token and returns the user id it was
// issued for.
func (s *AuthService) ValidateToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

// Search returns users whose name or email contains query, excluding the
// requester.
func (s *AuthService) Search(ctx context.Context, query string, requesterID uuid.UUID) ([]domain.User, error) {
	users, err := s.userRepo.Search(ctx, strings.TrimSpace(query), requesterID, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// UpdateProfile changes the user's profile picture.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, pic string) (*domain.User, error) {
	pic = strings.TrimSpace(pic)
	if pic == "" {
		return nil, ErrInvalidData
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	now := s.now()
	if err := s.userRepo.UpdatePic(ctx, userID, pic, now); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	user.Pic = pic
	user.UpdatedAt = now
	return user, nil
}

// RequestOTP issues a 6-digit password reset code and mails it. While a
// previous code is still valid no new one is issued.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	now := s.now()
	pending, err := s.resetRepo.Get(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("loading reset: %w", err)
	}
	if pending != nil && !pending.Expired(now) {
		return ErrOTPAlreadySent
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generating otp: %w", err)
	}
	reset := &domain.PasswordReset{
		UserID:    user.ID,
		CodeHash:  hashOTP(code),
		ExpiresAt: now.Add(otpTTL),
		CreatedAt: now,
	}
	if err := s.resetRepo.Upsert(ctx, reset); err != nil {
		return fmt.Errorf("storing reset: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, code, otpTTL); err != nil {
		// Let the user ask again right away.
		if derr := s.resetRepo.Delete(ctx, user.ID); derr != nil {
			slog.Warn("auth: discarding unsent reset", "user_id", user.ID, "error", derr)
		}
		return fmt.Errorf("sending otp: %w", err)
	}
	return nil
}

// VerifyOTP checks a reset code without consuming it.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	_, err := s.checkOTP(ctx, email, code)
	return err
}

// ResetPassword sets a new password when code is valid. The code can only
// be used once.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidData
	}
	user, err := s.checkOTP(ctx, email, code)
	if err != nil {
		return err
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if err := s.resetRepo.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("deleting reset: %w", err)
	}
	return nil
}

func (s *AuthService) checkOTP(ctx context.Context, email, code string) (*domain.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidData
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	reset, err := s.resetRepo.Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading reset: %w", err)
	}
	if reset == nil {
		return nil, ErrOTPInvalid
	}
	if reset.Expired(s.now()) {
		return nil, ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(hashOTP(code)), []byte(reset.CodeHash)) != 1 {
		return nil, ErrOTPInvalid
	}
	return user, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) generateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
