// Package mapper decodes backend rows into the view models in package models.
//
// Rows arrive as JSON documents in the storage naming convention
// (user_id, created_at, audio_url, ...) with the author and replies
// relations embedded. Missing optional fields fall back to defaults; rows
// that violate the schema are rejected with a *DecodeError so callers can
// quarantine them.
package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"massa-backend/internal/models"
)

// Placeholder identity used when the author join is missing
const (
	PlaceholderName   = "Anonymous"
	PlaceholderHandle = "@anon"
	PlaceholderAvatar = "https://picsum.photos/seed/anon/100/100"
)

// ErrInvalidRow is wrapped by every DecodeError
var ErrInvalidRow = errors.New("invalid row")

// DecodeError describes why a row was rejected
type DecodeError struct {
	RowID  string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.RowID == "" {
		return fmt.Sprintf("invalid row: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid row %s: %s %s", e.RowID, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrInvalidRow }

// UserRow is a users row as stored
type UserRow struct {
	ID               *string `json:"id"`
	Name             *string `json:"name"`
	Handle           *string `json:"handle"`
	Avatar           *string `json:"avatar"`
	LastHandleUpdate *string `json:"last_handle_update"`
}

// ReplyRow is a replies row as stored
type ReplyRow struct {
	ID        *string `json:"id"`
	UserID    *string `json:"user_id"`
	UserName  *string `json:"user_name"`
	Content   *string `json:"content"`
	CreatedAt *string `json:"created_at"`
}

// PostRow is a posts row with its author and replies embedded
type PostRow struct {
	ID          *string    `json:"id"`
	UserID      *string    `json:"user_id"`
	Type        *string    `json:"type"`
	Duration    *string    `json:"duration"`
	CreatedAt   *string    `json:"created_at"`
	Content     *string    `json:"content"`
	Title       *string    `json:"title"`
	AudioURL    *string    `json:"audio_url"`
	ImageURL    *string    `json:"image_url"`
	Likes       *int64     `json:"likes"`
	HasLiked    *bool      `json:"has_liked"`
	IsPublished *bool      `json:"is_published"`
	Views       *int64     `json:"views"`
	Shares      *int64     `json:"shares"`
	Author      *UserRow   `json:"users"`
	Replies     []ReplyRow `json:"replies"`
}

// Quarantined is a row that failed validation
type Quarantined struct {
	Raw json.RawMessage
	Err error
}

// DecodePosts decodes every raw row, keeping order. Rows that fail are
// returned separately instead of being defaulted.
func DecodePosts(raws []json.RawMessage) ([]models.Post, []Quarantined) {
	posts := make([]models.Post, 0, len(raws))
	var bad []Quarantined
	for _, raw := range raws {
		p, err := DecodePost(raw)
		if err != nil {
			bad = append(bad, Quarantined{Raw: raw, Err: err})
			continue
		}
		posts = append(posts, p)
	}
	return posts, bad
}

// DecodePost unmarshals and maps a single raw row
func DecodePost(raw []byte) (models.Post, error) {
	var row PostRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Post{}, &DecodeError{Field: "row", Reason: err.Error()}
	}
	return MapPost(row)
}

// MapPost converts a row into a Post
func MapPost(row PostRow) (models.Post, error) {
	id := str(row.ID)
	if id == "" {
		return models.Post{}, &DecodeError{Field: "id", Reason: "is required"}
	}
	userID := str(row.UserID)
	if userID == "" {
		return models.Post{}, &DecodeError{RowID: id, Field: "user_id", Reason: "is required"}
	}
	createdAt, err := parseMillis(row.CreatedAt)
	if err != nil {
		return models.Post{}, &DecodeError{RowID: id, Field: "created_at", Reason: err.Error()}
	}

	post := models.Post{
		ID:          id,
		UserID:      userID,
		CreatedAt:   createdAt,
		Content:     row.Content,
		Title:       row.Title,
		AudioURL:    row.AudioURL,
		ImageURL:    row.ImageURL,
		Views:       row.Views,
		Shares:      row.Shares,
		IsPublished: row.IsPublished,
		Replies:     make([]models.Reply, 0, len(row.Replies)),
	}

	if row.Type != nil {
		post.Type = models.PostType(*row.Type)
		if !post.Type.Valid() {
			return models.Post{}, &DecodeError{RowID: id, Field: "type", Reason: fmt.Sprintf("unknown value %q", *row.Type)}
		}
	} else {
		post.Type = models.DerivePostType(present(row.Content), present(row.ImageURL), present(row.AudioURL))
	}

	post.Duration = models.DurationPerm
	if row.Duration != nil {
		post.Duration = models.PostDuration(*row.Duration)
		if !post.Duration.Valid() {
			return models.Post{}, &DecodeError{RowID: id, Field: "duration", Reason: fmt.Sprintf("unknown value %q", *row.Duration)}
		}
	}

	if post.IsPublished == nil {
		published := true
		post.IsPublished = &published
	}

	if row.Likes != nil && *row.Likes > 0 {
		post.Likes = *row.Likes
	}
	if row.HasLiked != nil {
		post.HasLiked = *row.HasLiked
	}

	post.User = mapAuthor(row.Author, userID)

	for i, r := range row.Replies {
		reply, err := mapReply(r)
		if err != nil {
			return models.Post{}, &DecodeError{RowID: id, Field: fmt.Sprintf("replies[%d]", i), Reason: err.Error()}
		}
		post.Replies = append(post.Replies, reply)
	}

	return post, nil
}

// MapUser converts a users row; ok is false when the row has no id
func MapUser(row UserRow) (models.User, bool) {
	id := str(row.ID)
	if id == "" {
		return models.User{}, false
	}
	u := models.User{
		ID:     id,
		Name:   str(row.Name),
		Handle: str(row.Handle),
		Avatar: str(row.Avatar),
	}
	if ms, err := parseMillis(row.LastHandleUpdate); err == nil {
		u.LastHandleUpdate = &ms
	}
	return u, true
}

// Placeholder returns the identity shown for posts whose author is missing
func Placeholder(userID string) models.User {
	return models.User{
		ID:     userID,
		Name:   PlaceholderName,
		Handle: PlaceholderHandle,
		Avatar: PlaceholderAvatar,
	}
}

func mapAuthor(row *UserRow, userID string) models.User {
	if row == nil {
		return Placeholder(userID)
	}
	u, ok := MapUser(*row)
	if !ok {
		return Placeholder(userID)
	}
	return u
}

func mapReply(r ReplyRow) (models.Reply, error) {
	if str(r.ID) == "" {
		return models.Reply{}, errors.New("id is required")
	}
	if str(r.UserID) == "" {
		return models.Reply{}, errors.New("user_id is required")
	}
	createdAt, err := parseMillis(r.CreatedAt)
	if err != nil {
		return models.Reply{}, fmt.Errorf("created_at: %w", err)
	}
	return models.Reply{
		ID:        *r.ID,
		UserID:    *r.UserID,
		UserName:  str(r.UserName),
		Content:   str(r.Content),
		CreatedAt: createdAt,
	}, nil
}

func parseMillis(s *string) (int64, error) {
	if s == nil || *s == "" {
		return 0, errors.New("is required")
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", *s)
	}
	return t.UnixMilli(), nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
