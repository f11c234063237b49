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

// ProfileRepo handles database operations for profile rows
type ProfileRepo struct {
	db *pgxpool.Pool
}

// NewProfileRepo creates a new profile repository
func NewProfileRepo(db *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{db: db}
}

const userColumns = `id, name, handle, avatar, last_handle_update`

// Insert creates a profile unless one already exists for the id.
// It reports whether a row was written; a handle collision wraps ErrConflict.
func (r *ProfileRepo) Insert(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (id, name, handle, avatar, last_handle_update)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query, user.ID, user.Name, user.Handle, user.Avatar, fromMillis(user.LastHandleUpdate))
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("handle %s already taken: %w", user.Handle, ErrConflict)
		}
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByHandle retrieves a profile by its normalized handle
func (r *ProfileRepo) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE handle = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, handle))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by handle: %w", err)
	}
	return user, nil
}

// ListByIDs retrieves the profiles for ids, ordered by name
func (r *ProfileRepo) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY name, id`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Update overwrites name, handle, avatar and last_handle_update
func (r *ProfileRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $1, handle = $2, avatar = $3, last_handle_update = $4
		WHERE id = $5
	`
	result, err := r.db.Exec(ctx, query, user.Name, user.Handle, user.Avatar, fromMillis(user.LastHandleUpdate), user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("handle %s already taken: %w", user.Handle, ErrConflict)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user models.User
		last *time.Time
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Handle, &user.Avatar, &last); err != nil {
		return nil, err
	}
	if last != nil {
		ms := last.UnixMilli()
		user.LastHandleUpdate = &ms
	}
	return &user, nil
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
