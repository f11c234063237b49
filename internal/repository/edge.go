package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EdgeTable names a join table holding (actor, target) pairs
type EdgeTable struct {
	Name   string
	Actor  string
	Target string
}

var (
	SavedPosts      = EdgeTable{Name: "saved_posts", Actor: "user_id", Target: "post_id"}
	FollowedAuthors = EdgeTable{Name: "followed_authors", Actor: "user_id", Target: "author_id"}
	Connections     = EdgeTable{Name: "connections", Actor: "user_id", Target: "connected_user_id"}
	PostLikes       = EdgeTable{Name: "post_likes", Actor: "user_id", Target: "post_id"}
)

// EdgeRepo handles one join table. Table and column names come from the
// package-level EdgeTable values, never from input.
type EdgeRepo struct {
	db    *pgxpool.Pool
	table EdgeTable
}

// NewEdgeRepo creates a repository for table
func NewEdgeRepo(db *pgxpool.Pool, table EdgeTable) *EdgeRepo {
	return &EdgeRepo{db: db, table: table}
}

// List returns every target the actor points at
func (r *EdgeRepo) List(ctx context.Context, actorID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, r.table.Target, r.table.Name, r.table.Actor)
	rows, err := r.db.Query(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table.Name, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.table.Name, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.table.Name, err)
	}
	return ids, nil
}

// Insert adds the pair; an existing pair is left alone
func (r *EdgeRepo) Insert(ctx context.Context, actorID, targetID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		r.table.Name, r.table.Actor, r.table.Target)
	if _, err := r.db.Exec(ctx, query, actorID, targetID); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", r.table.Name, err)
	}
	return nil
}

// Delete removes the pair if present
func (r *EdgeRepo) Delete(ctx context.Context, actorID, targetID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		r.table.Name, r.table.Actor, r.table.Target)
	if _, err := r.db.Exec(ctx, query, actorID, targetID); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", r.table.Name, err)
	}
	return nil
}
