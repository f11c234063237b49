package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"massa-backend/internal/mapper"
	"massa-backend/internal/models"
	"massa-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PostStore owns the in-memory post list of one session and every
// operation that changes it. Writes go to the database first; the list is
// then reloaded, except for likes which are patched in place.
type PostStore struct {
	posts   repository.PostRepository
	replies repository.ReplyRepository
	likes   repository.EdgeRepository
	actor   Actor
	publish func(Event)

	mu      sync.RWMutex
	list    []models.Post
	issued  uint64
	applied uint64
}

// NewPostStore creates an empty store
func NewPostStore(
	posts repository.PostRepository,
	replies repository.ReplyRepository,
	likes repository.EdgeRepository,
	actor Actor,
	publish func(Event),
) *PostStore {
	if publish == nil {
		publish = func(Event) {}
	}
	return &PostStore{
		posts:   posts,
		replies: replies,
		likes:   likes,
		actor:   actor,
		publish: publish,
		list:    []models.Post{},
	}
}

// Posts returns a copy of the current list, newest first
func (s *PostStore) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, len(s.list))
	copy(out, s.list)
	return out
}

// Get returns the post with id from the current list
func (s *PostStore) Get(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.list {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// LoadAll replaces the list with every post from the database. A reload
// that finishes after a newer reload was applied is dropped.
func (s *PostStore) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	viewerID := ""
	if u := s.actor.CurrentUser(); u != nil {
		viewerID = u.ID
	}

	raws, err := s.posts.ListRows(ctx, viewerID)
	if err != nil {
		log.Error().Err(err).Str("viewer_id", viewerID).Msg("Failed to load posts")
		return fmt.Errorf("failed to load posts: %w", err)
	}

	posts, bad := mapper.DecodePosts(raws)
	for _, q := range bad {
		log.Warn().Err(q.Err).RawJSON("row", q.Raw).Msg("Quarantined post row")
	}

	s.mu.Lock()
	if ticket < s.applied {
		s.mu.Unlock()
		log.Debug().Uint64("ticket", ticket).Msg("Dropped stale post reload")
		return nil
	}
	s.applied = ticket
	s.list = posts
	s.mu.Unlock()

	s.publish(Event{Type: EventPostsReplaced})
	return nil
}

// Create writes a new post for the signed-in user and reloads
func (s *PostStore) Create(ctx context.Context, draft models.PostDraft) (string, error) {
	user := s.actor.CurrentUser()
	if user == nil {
		return "", ErrNotSignedIn
	}

	post, err := newPost(user.ID, draft)
	if err != nil {
		return "", err
	}

	if err := s.posts.Create(ctx, &post); err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID).
			Str("type", string(post.Type)).
			Msg("Failed to create post")
		return "", fmt.Errorf("failed to create post: %w", err)
	}

	log.Info().
		Str("user_id", user.ID).
		Str("post_id", post.ID).
		Str("type", string(post.Type)).
		Msg("Post created")

	return post.ID, s.LoadAll(ctx)
}

func newPost(userID string, draft models.PostDraft) (models.Post, error) {
	duration := draft.Duration
	if duration == "" {
		duration = models.DurationPerm
	}
	if !duration.Valid() {
		return models.Post{}, fmt.Errorf("%w: unknown duration %q", ErrInvalidDraft, draft.Duration)
	}
	if draft.Type != "" && !draft.Type.Valid() {
		return models.Post{}, fmt.Errorf("%w: unknown type %q", ErrInvalidDraft, draft.Type)
	}

	postType := draft.TypeOf()
	if postType == models.PostTypeText && blank(draft.Content) && blank(draft.Title) {
		return models.Post{}, ErrEmptyPost
	}

	published := true
	if draft.IsPublished != nil {
		published = *draft.IsPublished
	}

	return models.Post{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        postType,
		Duration:    duration,
		Content:     draft.Content,
		Title:       draft.Title,
		AudioURL:    draft.AudioURL,
		ImageURL:    draft.ImageURL,
		IsPublished: &published,
	}, nil
}

// Update overwrites the editable fields of one of the user's posts. The
// list is reloaded whether or not the write succeeded.
func (s *PostStore) Update(ctx context.Context, edit models.PostEdit) error {
	var err error
	if user := s.actor.CurrentUser(); user == nil {
		err = ErrNotSignedIn
	} else if err = s.posts.Update(ctx, user.ID, edit); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrPostNotFound, edit.ID)
		}
		log.Error().Err(err).Str("user_id", user.ID).Str("post_id", edit.ID).Msg("Failed to update post")
	}

	if rerr := s.LoadAll(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Delete removes one of the user's posts and reloads
func (s *PostStore) Delete(ctx context.Context, postID string) error {
	var err error
	if user := s.actor.CurrentUser(); user == nil {
		err = ErrNotSignedIn
	} else if err = s.posts.Delete(ctx, user.ID, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrPostNotFound, postID)
		}
		log.Error().Err(err).Str("user_id", user.ID).Str("post_id", postID).Msg("Failed to delete post")
	} else {
		log.Info().Str("user_id", user.ID).Str("post_id", postID).Msg("Post deleted")
	}

	if rerr := s.LoadAll(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// ToggleLike adds or removes the user's like and patches that post locally
func (s *PostStore) ToggleLike(ctx context.Context, postID string) (models.Post, error) {
	user := s.actor.CurrentUser()
	if user == nil {
		return models.Post{}, ErrLoginRequired
	}

	post, ok := s.Get(postID)
	if !ok {
		return models.Post{}, ErrPostNotFound
	}
	liked := post.HasLiked

	var err error
	if liked {
		err = s.likes.Delete(ctx, user.ID, postID)
	} else {
		err = s.likes.Insert(ctx, user.ID, postID)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Str("post_id", postID).Msg("Failed to toggle like")
		return post, fmt.Errorf("failed to toggle like: %w", err)
	}

	s.mu.Lock()
	for i := range s.list {
		p := &s.list[i]
		if p.ID != postID {
			continue
		}
		// A reload that already saw this write leaves nothing to patch.
		if p.HasLiked == liked {
			p.Likes = nextLikes(p.Likes, liked)
			p.HasLiked = !liked
		}
		post = *p
		break
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventPostPatched, PostID: postID})
	return post, nil
}

func nextLikes(likes int64, liked bool) int64 {
	if liked {
		return max(0, likes-1)
	}
	return likes + 1
}

// Reply adds a reply from the signed-in user and reloads
func (s *PostStore) Reply(ctx context.Context, postID, text string) error {
	user := s.actor.CurrentUser()
	if user == nil {
		return ErrLoginRequired
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyReply
	}

	reply := models.Reply{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		UserName: user.Name,
		Content:  text,
	}
	if err := s.replies.Create(ctx, postID, &reply); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrPostNotFound, postID)
		}
		log.Error().Err(err).Str("user_id", user.ID).Str("post_id", postID).Msg("Failed to add reply")
		return err
	}

	return s.LoadAll(ctx)
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
