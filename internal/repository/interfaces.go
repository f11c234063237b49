package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"massa-backend/internal/models"
)

var (
	// ErrNotFound is wrapped when a row addressed by key does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped when a unique constraint rejects a write
	ErrConflict = errors.New("conflict")
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByHandle(ctx context.Context, handle string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Insert(ctx context.Context, user *models.User) (bool, error)
	Update(ctx context.Context, user *models.User) error
}

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	HandleTaken(ctx context.Context, handle string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.AuthSession) error
	GetByID(ctx context.Context, id string) (*models.AuthSession, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

type PostRepository interface {
	// ListRows returns every post as a raw row, newest first, with the
	// author and replies embedded and likes derived for viewerID.
	ListRows(ctx context.Context, viewerID string) ([]json.RawMessage, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, ownerID string, edit models.PostEdit) error
	Delete(ctx context.Context, ownerID, postID string) error
}

type ReplyRepository interface {
	Create(ctx context.Context, postID string, reply *models.Reply) error
}

// EdgeRepository stores existence-only (actor, target) pairs
type EdgeRepository interface {
	List(ctx context.Context, actorID string) ([]string, error)
	Insert(ctx context.Context, actorID, targetID string) error
	Delete(ctx context.Context, actorID, targetID string) error
}
