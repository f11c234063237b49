package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"massa-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepo handles database operations for credentials
type AccountRepo struct {
	db *pgxpool.Pool
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{db: db}
}

// Create creates a new account; a duplicate email wraps ErrConflict
func (r *AccountRepo) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, handle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Name, account.Handle, account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves an account by email
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

func (r *AccountRepo) getOne(ctx context.Context, where string, arg string) (*models.Account, error) {
	query := `SELECT id, email, password_hash, name, handle, created_at FROM accounts ` + where
	var a models.Account
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Handle, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// HandleTaken checks both profiles and pending sign-up metadata
func (r *AccountRepo) HandleTaken(ctx context.Context, handle string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE handle = $1)
		OR EXISTS(SELECT 1 FROM accounts WHERE handle = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, handle).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check handle existence: %w", err)
	}
	return exists, nil
}

// UpdatePassword replaces the password hash of an account
func (r *AccountRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %w", ErrNotFound)
	}
	return nil
}

// SessionRepo persists auth sessions so sign-out can revoke tokens
type SessionRepo struct {
	db *pgxpool.Pool
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create records a new session
func (r *SessionRepo) Create(ctx context.Context, s *models.AuthSession) error {
	query := `INSERT INTO auth_sessions (id, user_id, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, s.ID, s.UserID, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.AuthSession, error) {
	query := `SELECT id, user_id, created_at, revoked_at FROM auth_sessions WHERE id = $1`
	var s models.AuthSession
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// Revoke marks a session as signed out
func (r *SessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE auth_sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	if _, err := r.db.Exec(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
