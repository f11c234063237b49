package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"massa-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostRepo handles database operations for posts
type PostRepo struct {
	db *pgxpool.Pool
}

// NewPostRepo creates a new post repository
func NewPostRepo(db *pgxpool.Pool) *PostRepo {
	return &PostRepo{db: db}
}

// listPostsQuery builds one JSON document per post in the storage naming
// convention so the mapper can validate it. $1 is the viewer id ('' when
// anonymous) and only drives has_liked.
const listPostsQuery = `
	SELECT json_build_object(
		'id', p.id,
		'user_id', p.user_id,
		'type', p.type,
		'duration', p.duration,
		'created_at', p.created_at,
		'content', p.content,
		'title', p.title,
		'audio_url', p.audio_url,
		'image_url', p.image_url,
		'is_published', p.is_published,
		'views', p.views,
		'shares', p.shares,
		'likes', (SELECT count(*) FROM post_likes l WHERE l.post_id = p.id),
		'has_liked', EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1),
		'users', (
			SELECT json_build_object(
				'id', u.id, 'name', u.name, 'handle', u.handle,
				'avatar', u.avatar, 'last_handle_update', u.last_handle_update)
			FROM users u WHERE u.id = p.user_id
		),
		'replies', (
			SELECT json_agg(json_build_object(
				'id', r.id, 'user_id', r.user_id, 'user_name', r.user_name,
				'content', r.content, 'created_at', r.created_at)
				ORDER BY r.created_at, r.id)
			FROM replies r WHERE r.post_id = p.id
		)
	)
	FROM posts p
	ORDER BY p.created_at DESC, p.id DESC
`

// ListRows retrieves every post as a raw row, newest first
func (r *PostRepo) ListRows(ctx context.Context, viewerID string) ([]json.RawMessage, error) {
	rows, err := r.db.Query(ctx, listPostsQuery, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return out, nil
}

// Create inserts a post; created_at is assigned by the database
func (r *PostRepo) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, type, duration, content, title, audio_url, image_url, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	published := post.Published()
	_, err := r.db.Exec(ctx, query,
		post.ID, post.UserID, string(post.Type), string(post.Duration),
		post.Content, post.Title, post.AudioURL, post.ImageURL, published,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of a post owned by ownerID.
// Nil fields keep their stored value.
func (r *PostRepo) Update(ctx context.Context, ownerID string, edit models.PostEdit) error {
	query := `
		UPDATE posts
		SET title = COALESCE($1, title),
			content = COALESCE($2, content),
			image_url = COALESCE($3, image_url),
			is_published = COALESCE($4, is_published)
		WHERE id = $5 AND user_id = $6
	`
	result, err := r.db.Exec(ctx, query, edit.Title, edit.Content, edit.ImageURL, edit.IsPublished, edit.ID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("post %s not found: %w", edit.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a post owned by ownerID
func (r *PostRepo) Delete(ctx context.Context, ownerID, postID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, postID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("post %s not found: %w", postID, ErrNotFound)
	}
	return nil
}

// ReplyRepo handles database operations for replies
type ReplyRepo struct {
	db *pgxpool.Pool
}

// NewReplyRepo creates a new reply repository
func NewReplyRepo(db *pgxpool.Pool) *ReplyRepo {
	return &ReplyRepo{db: db}
}

// Create inserts a reply for postID
func (r *ReplyRepo) Create(ctx context.Context, postID string, reply *models.Reply) error {
	query := `
		INSERT INTO replies (id, post_id, user_id, user_name, content)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM posts WHERE id = $2)
	`
	result, err := r.db.Exec(ctx, query, reply.ID, postID, reply.UserID, reply.UserName, reply.Content)
	if err != nil {
		return fmt.Errorf("failed to create reply: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("post %s not found: %w", postID, ErrNotFound)
	}
	return nil
}
