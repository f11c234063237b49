package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"massa-backend/internal/models"
	"massa-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// IdentitySource resolves the sign-up metadata of a user
type IdentitySource interface {
	IdentityOf(ctx context.Context, userID string) (Identity, error)
}

type sessionEntry struct {
	session     *Session
	ready       chan struct{}
	err         error
	unsubscribe func()
	lastUsed    time.Time // guarded by SessionManager.mu
}

// SessionManager owns one Session per signed-in user plus a shared
// anonymous session. Sessions are bootstrapped on sign-in or lazily on the
// first request carrying a valid token, and evicted once idle.
type SessionManager struct {
	deps       SessionDeps
	identities IdentitySource
	bus        *eventBus[UserEvent]

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	anon     *Session
}

// NewSessionManager creates a new session manager
func NewSessionManager(deps SessionDeps, identities IdentitySource) *SessionManager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &SessionManager{
		deps:       deps,
		identities: identities,
		bus:        newEventBus[UserEvent](),
		sessions:   make(map[string]*sessionEntry),
		anon:       NewSession(deps),
	}
}

// Subscribe registers fn for events of every user session
func (m *SessionManager) Subscribe(fn func(UserEvent)) func() {
	return m.bus.Subscribe(fn)
}

// Anonymous returns the shared session used by signed-out readers
func (m *SessionManager) Anonymous() *Session {
	return m.anon
}

// HandleAuthEvent keeps sessions in step with the auth layer
func (m *SessionManager) HandleAuthEvent(ctx context.Context, e AuthEvent) {
	switch e.Type {
	case AuthSignedIn:
		id := Identity{UserID: e.UserID, Name: e.Name, Handle: e.Handle}
		if _, err := m.bootstrap(ctx, id); err != nil {
			log.Error().Err(err).Str("user_id", e.UserID).Msg("Failed to bootstrap session")
		}
	case AuthSignedOut:
		m.Drop(e.UserID)
	}
}

// Get returns the session of userID, bootstrapping it if needed
func (m *SessionManager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	entry, ok := m.sessions[userID]
	if ok {
		entry.lastUsed = m.deps.Now()
	}
	m.mu.Unlock()
	if ok {
		return m.wait(ctx, entry)
	}

	id, err := m.identities.IdentityOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return m.bootstrap(ctx, id)
}

func (m *SessionManager) bootstrap(ctx context.Context, id Identity) (*Session, error) {
	m.mu.Lock()
	if entry, ok := m.sessions[id.UserID]; ok {
		entry.lastUsed = m.deps.Now()
		m.mu.Unlock()
		return m.wait(ctx, entry)
	}
	entry := &sessionEntry{
		session:  NewSession(m.deps),
		ready:    make(chan struct{}),
		lastUsed: m.deps.Now(),
	}
	userID := id.UserID
	entry.unsubscribe = entry.session.Subscribe(func(e Event) {
		m.bus.Publish(UserEvent{UserID: userID, Event: e})
	})
	m.sessions[userID] = entry
	m.mu.Unlock()

	entry.err = entry.session.SignIn(ctx, id)
	close(entry.ready)

	if entry.err != nil {
		m.remove(userID, entry)
		return nil, entry.err
	}
	return entry.session, nil
}

func (m *SessionManager) wait(ctx context.Context, entry *sessionEntry) (*Session, error) {
	select {
	case <-entry.ready:
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drop signs out and forgets the session of userID
func (m *SessionManager) Drop(userID string) {
	m.mu.Lock()
	entry, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return
	}

	<-entry.ready
	if entry.err == nil {
		entry.session.SignOut()
	}
	m.remove(userID, entry)
	log.Info().Str("user_id", userID).Msg("Session dropped")
}

func (m *SessionManager) remove(userID string, entry *sessionEntry) {
	m.mu.Lock()
	if m.sessions[userID] == entry {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	entry.unsubscribe()
}

// EvictIdle forgets every bootstrapped session not used for idle and
// returns how many were dropped. A later Get bootstraps the user again.
func (m *SessionManager) EvictIdle(idle time.Duration) int {
	cutoff := m.deps.Now().Add(-idle)

	m.mu.Lock()
	var evicted []*sessionEntry
	for userID, entry := range m.sessions {
		if !entry.lastUsed.Before(cutoff) {
			continue
		}
		select {
		case <-entry.ready:
		default:
			continue
		}
		delete(m.sessions, userID)
		evicted = append(evicted, entry)
	}
	m.mu.Unlock()

	for _, entry := range evicted {
		entry.unsubscribe()
	}
	if len(evicted) > 0 {
		log.Debug().Int("count", len(evicted)).Msg("Evicted idle sessions")
	}
	return len(evicted)
}

// StartEviction runs EvictIdle every interval until the returned function
// is called
func (m *SessionManager) StartEviction(idle, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.EvictIdle(idle)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// Len returns the number of live user sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ProfileByHandle returns the profile with handle, normalized first
func (m *SessionManager) ProfileByHandle(ctx context.Context, handle string) (*models.User, error) {
	user, err := m.deps.Users.GetByHandle(ctx, models.NormalizeHandle(handle))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return user, nil
}
