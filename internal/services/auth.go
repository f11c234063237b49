package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"massa-backend/internal/models"
	"massa-backend/internal/repository"
	"massa-backend/internal/validator"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"
)

const (
	resetTokenTTL = 30 * time.Minute
	purposeReset  = "reset"
)

// AuthEventType names an auth state change
type AuthEventType string

const (
	AuthSignedIn         AuthEventType = "signed_in"
	AuthSignedOut        AuthEventType = "signed_out"
	AuthPasswordRecovery AuthEventType = "password_recovery"
)

// AuthEvent is published on every auth state change. Name and Handle carry
// the sign-up metadata of the account.
type AuthEvent struct {
	Type      AuthEventType
	UserID    string
	SessionID string
	Name      string
	Handle    string
}

// ResetNotifier delivers a password reset token to the account owner
type ResetNotifier interface {
	NotifyReset(ctx context.Context, account *models.Account, token string) error
}

// LogResetNotifier writes reset tokens to the debug log
type LogResetNotifier struct{}

func (LogResetNotifier) NotifyReset(ctx context.Context, account *models.Account, token string) error {
	log.Debug().Str("user_id", account.ID).Str("token", token).Msg("Password reset requested")
	return nil
}

// SignUpInput is the payload of a new account
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Handle   string `json:"handle"`
}

// AuthResult is returned by a successful sign-in
type AuthResult struct {
	Token   string              `json:"token"`
	Session *models.AuthSession `json:"session"`
	Account *models.Account     `json:"account"`
}

// AuthService handles credentials, auth sessions and tokens
type AuthService struct {
	accounts  repository.AccountRepository
	sessions  repository.SessionRepository
	jwtSecret []byte
	ttl       time.Duration
	notifier  ResetNotifier
	bus       *eventBus[AuthEvent]
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	jwtSecret string,
	ttl time.Duration,
	notifier ResetNotifier,
) *AuthService {
	if notifier == nil {
		notifier = LogResetNotifier{}
	}
	return &AuthService{
		accounts:  accounts,
		sessions:  sessions,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		notifier:  notifier,
		bus:       newEventBus[AuthEvent](),
		now:       time.Now,
	}
}

// Subscribe registers fn for auth state changes
func (s *AuthService) Subscribe(fn func(AuthEvent)) func() {
	return s.bus.Subscribe(fn)
}

// SignUp creates an account and signs it in
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	handle := ""
	if strings.TrimSpace(in.Handle) != "" {
		handle = models.NormalizeHandle(in.Handle)
	}

	errs := validator.ValidateSignUp(email, in.Password, handle)
	if name := strings.TrimSpace(in.Name); name != "" {
		for f, msg := range validator.ValidateName(name) {
			errs.Add(f, msg)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if handle != "" {
		taken, err := s.accounts.HandleTaken(ctx, handle)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrHandleTaken
		}
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         optional(strings.TrimSpace(in.Name)),
		Handle:       optional(handle),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	log.Info().Str("user_id", account.ID).Msg("Account created")

	return s.startSession(ctx, account)
}

// SignIn checks credentials and opens a new auth session
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if err := validator.ValidateSignIn(email, password).Err(); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !verifyPassword(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, account)
}

func (s *AuthService) startSession(ctx context.Context, account *models.Account) (*AuthResult, error) {
	session := &models.AuthSession{
		ID:        uuid.New().String(),
		UserID:    account.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	token, err := s.signToken(jwt.MapClaims{
		"user_id": account.ID,
		"sid":     session.ID,
	}, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.bus.Publish(AuthEvent{
		Type:      AuthSignedIn,
		UserID:    account.ID,
		SessionID: session.ID,
		Name:      deref(account.Name),
		Handle:    deref(account.Handle),
	})

	return &AuthResult{Token: token, Session: session, Account: account}, nil
}

// SignOut revokes the session behind token
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	session, err := s.CurrentSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, session.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}

	log.Info().Str("user_id", session.UserID).Str("session_id", session.ID).Msg("Signed out")

	s.bus.Publish(AuthEvent{Type: AuthSignedOut, UserID: session.UserID, SessionID: session.ID})
	return nil
}

// CurrentSession validates token and returns its live session
func (s *AuthService) CurrentSession(ctx context.Context, token string) (*models.AuthSession, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	if purpose, _ := claims["purpose"].(string); purpose != "" {
		return nil, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	sid, _ := claims["sid"].(string)
	if userID == "" || sid == "" {
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, sid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrInvalidToken
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	return session, nil
}

// RequestPasswordReset sends a reset token when email belongs to an
// account. Unknown emails succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := s.signToken(jwt.MapClaims{
		"user_id": account.ID,
		"purpose": purposeReset,
		"pwv":     passwordVersion(account.PasswordHash),
	}, resetTokenTTL)
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}

	if err := s.notifier.NotifyReset(ctx, account, token); err != nil {
		log.Error().Err(err).Str("user_id", account.ID).Msg("Failed to deliver reset token")
		return fmt.Errorf("delivering reset token: %w", err)
	}

	s.bus.Publish(AuthEvent{Type: AuthPasswordRecovery, UserID: account.ID})
	return nil
}

// ResetPassword sets a new password using a token from
// RequestPasswordReset. A token stops working once the password changed.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return err
	}
	if purpose, _ := claims["purpose"].(string); purpose != purposeReset {
		return ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	version, _ := claims["pwv"].(string)

	if err := validator.ValidatePassword(newPassword).Err(); err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if version != passwordVersion(account.PasswordHash) {
		return ErrInvalidToken
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	log.Info().Str("user_id", account.ID).Msg("Password reset")
	return nil
}

// IdentityOf returns the sign-up metadata of userID. A missing account
// yields an identity with only the id.
func (s *AuthService) IdentityOf(ctx context.Context, userID string) (Identity, error) {
	id := Identity{UserID: userID}
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return id, nil
		}
		return id, err
	}
	id.Name = deref(account.Name)
	id.Handle = deref(account.Handle)
	return id, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims["exp"] = now.Add(ttl).Unix()
	claims["iat"] = now.Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
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

// passwordVersion changes whenever the password hash is replaced
func passwordVersion(encoded string) string {
	salt, _, _ := strings.Cut(encoded, ":")
	return salt
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
