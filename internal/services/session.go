package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"massa-backend/internal/models"
	"massa-backend/internal/repository"
	"massa-backend/internal/validator"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SessionStatus is the bootstrap state of a session
type SessionStatus string

const (
	StatusAnonymous        SessionStatus = "anonymous"
	StatusResolving        SessionStatus = "resolving"
	StatusAuthenticated    SessionStatus = "authenticated"
	StatusResolutionFailed SessionStatus = "resolution_failed"
)

const (
	suffixLength      = 4
	suffixChars       = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxHandleAttempts = 10
	defaultHandleRune = 5
)

// Identity is what the auth layer knows about a signed-in user.
// Name and Handle come from sign-up metadata and may be empty.
type Identity struct {
	UserID string
	Name   string
	Handle string
}

// ProfileOptions tune profile creation and editing
type ProfileOptions struct {
	DefaultName    string
	HandleCooldown time.Duration
}

// SessionDeps are the stores a session reads and writes
type SessionDeps struct {
	Users     repository.UserRepository
	Posts     repository.PostRepository
	Replies   repository.ReplyRepository
	Likes     repository.EdgeRepository
	Saved     repository.EdgeRepository
	Followed  repository.EdgeRepository
	Connected repository.EdgeRepository
	Profile   ProfileOptions
	Now       func() time.Time
}

// ProfileUpdate carries the profile fields a user may change; nil keeps
// the current value
type ProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Handle *string `json:"handle,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// SessionView is the serializable state of a session
type SessionView struct {
	Status    SessionStatus `json:"status"`
	User      *models.User  `json:"user"`
	Saved     []string      `json:"saved"`
	Followed  []string      `json:"followed"`
	Connected []string      `json:"connected"`
}

// Session is the application state of one user: who is signed in, the
// loaded posts and the relationship sets. All changes go through its
// methods and are announced to subscribers.
type Session struct {
	deps SessionDeps
	bus  *eventBus[Event]

	mu     sync.RWMutex
	status SessionStatus
	user   *models.User

	posts     *PostStore
	relations map[models.EdgeKind]*RelationSet
}

// NewSession creates an anonymous session
func NewSession(deps SessionDeps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Session{
		deps:   deps,
		bus:    newEventBus[Event](),
		status: StatusAnonymous,
	}
	s.posts = NewPostStore(deps.Posts, deps.Replies, deps.Likes, s, s.bus.Publish)
	s.relations = map[models.EdgeKind]*RelationSet{
		models.EdgeSave:    NewRelationSet(models.EdgeSave, deps.Saved, s, s.bus.Publish),
		models.EdgeFollow:  NewRelationSet(models.EdgeFollow, deps.Followed, s, s.bus.Publish),
		models.EdgeConnect: NewRelationSet(models.EdgeConnect, deps.Connected, s, s.bus.Publish),
	}
	return s
}

// CurrentUser returns a copy of the signed-in user, or nil
func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Status returns the bootstrap state
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Posts returns the post store of the session
func (s *Session) Posts() *PostStore {
	return s.posts
}

// Relations returns the set of kind
func (s *Session) Relations(kind models.EdgeKind) (*RelationSet, bool) {
	set, ok := s.relations[kind]
	return set, ok
}

// Subscribe registers fn for every state change of the session
func (s *Session) Subscribe(fn func(Event)) func() {
	return s.bus.Subscribe(fn)
}

// View returns the current state for serialization
func (s *Session) View() SessionView {
	return SessionView{
		Status:    s.Status(),
		User:      s.CurrentUser(),
		Saved:     s.relations[models.EdgeSave].IDs(),
		Followed:  s.relations[models.EdgeFollow].IDs(),
		Connected: s.relations[models.EdgeConnect].IDs(),
	}
}

// SignIn resolves the profile of id, creating it on first sign-in, then
// hydrates the relationship sets and loads posts. Only a failed profile
// resolution is returned as an error; the session then stays without a user.
func (s *Session) SignIn(ctx context.Context, id Identity) error {
	s.setState(StatusResolving, nil)

	user, err := s.resolveProfile(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("user_id", id.UserID).Msg("Failed to resolve profile")
		s.setState(StatusResolutionFailed, nil)
		return fmt.Errorf("failed to resolve profile: %w", err)
	}

	s.setState(StatusAuthenticated, user)
	s.bus.Publish(Event{Type: EventUserChanged})

	var g errgroup.Group
	for _, set := range s.relations {
		set := set
		g.Go(func() error {
			return set.Hydrate(ctx, user.ID)
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Relation sets partially hydrated")
	}

	if err := s.posts.LoadAll(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Initial post load failed")
	}

	log.Info().Str("user_id", user.ID).Str("handle", user.Handle).Msg("Session authenticated")
	return nil
}

// SignOut clears the user and every relationship set
func (s *Session) SignOut() {
	for _, set := range s.relations {
		set.Clear()
	}
	s.setState(StatusAnonymous, nil)
	s.bus.Publish(Event{Type: EventUserChanged})
}

func (s *Session) setState(status SessionStatus, user *models.User) {
	s.mu.Lock()
	s.status = status
	s.user = user
	s.mu.Unlock()
	s.bus.Publish(Event{Type: EventSessionChanged, Status: status})
}

func (s *Session) resolveProfile(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.deps.Users.GetByID(ctx, id.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	profile := defaultProfile(id, s.deps.Profile.DefaultName, s.deps.Now())
	base := profile.Handle
	for attempt := 0; ; attempt++ {
		if attempt == maxHandleAttempts {
			return nil, fmt.Errorf("failed to find a free handle for %s after %d attempts", base, maxHandleAttempts)
		}
		if attempt > 0 {
			profile.Handle = base + "_" + randomSuffix()
		}

		created, err := s.deps.Users.Insert(ctx, &profile)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if created {
			log.Info().Str("user_id", profile.ID).Str("handle", profile.Handle).Msg("Profile created")
		}
		break
	}

	// The stored row wins over what we tried to insert.
	return s.deps.Users.GetByID(ctx, id.UserID)
}

func defaultProfile(id Identity, defaultName string, now time.Time) models.User {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = defaultName
	}

	handle := models.NormalizeHandle(id.Handle)
	if handle == "@" {
		runes := []rune(id.UserID)
		handle = "@user_" + string(runes[:min(defaultHandleRune, len(runes))])
	}

	stamp := now.UnixMilli()
	return models.User{
		ID:               id.UserID,
		Name:             name,
		Handle:           handle,
		Avatar:           "https://picsum.photos/seed/" + id.UserID + "/100/100",
		LastHandleUpdate: &stamp,
	}
}

// randomSuffix generates a random lowercase suffix for a colliding handle
func randomSuffix() string {
	code := make([]byte, suffixLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(suffixChars))))
		code[i] = suffixChars[n.Int64()]
	}
	return string(code)
}

// UpdateProfile changes the signed-in user's name, handle or avatar and
// reloads posts so embedded author snapshots refresh
func (s *Session) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*models.User, error) {
	current := s.CurrentUser()
	if current == nil {
		return nil, ErrNotSignedIn
	}
	next := *current

	errs := make(validator.ValidationErrors)
	if upd.Name != nil {
		for f, msg := range validator.ValidateName(*upd.Name) {
			errs.Add(f, msg)
		}
		next.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Avatar != nil {
		next.Avatar = strings.TrimSpace(*upd.Avatar)
	}
	if upd.Handle != nil {
		next.Handle = models.NormalizeHandle(*upd.Handle)
		for f, msg := range validator.ValidateHandle(next.Handle) {
			errs.Add(f, msg)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if next.Handle != current.Handle {
		now := s.deps.Now()
		if cd := s.deps.Profile.HandleCooldown; cd > 0 && current.LastHandleUpdate != nil {
			if now.Sub(time.UnixMilli(*current.LastHandleUpdate)) < cd {
				return nil, ErrHandleCooldown
			}
		}

		owner, err := s.deps.Users.GetByHandle(ctx, next.Handle)
		switch {
		case err == nil && owner.ID != current.ID:
			return nil, ErrHandleTaken
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("failed to check handle: %w", err)
		}

		stamp := now.UnixMilli()
		next.LastHandleUpdate = &stamp
	}

	if err := s.deps.Users.Update(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrHandleTaken
		}
		log.Error().Err(err).Str("user_id", current.ID).Msg("Failed to update profile")
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == next.ID {
		u := next
		s.user = &u
	}
	s.mu.Unlock()
	s.bus.Publish(Event{Type: EventUserChanged})

	log.Info().Str("user_id", next.ID).Str("handle", next.Handle).Msg("Profile updated")

	if err := s.posts.LoadAll(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", next.ID).Msg("Post reload after profile update failed")
	}
	return &next, nil
}

// Connections returns the profiles in the connected set
func (s *Session) Connections(ctx context.Context) ([]models.User, error) {
	if s.CurrentUser() == nil {
		return nil, ErrLoginRequired
	}
	users, err := s.deps.Users.ListByIDs(ctx, s.relations[models.EdgeConnect].IDs())
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return users, nil
}
