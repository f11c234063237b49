package services

import (
	"sync"

	"massa-backend/internal/models"
)

// EventType names a change to session state
type EventType string

const (
	EventPostsReplaced   EventType = "posts_replaced"
	EventPostPatched     EventType = "post_patched"
	EventUserChanged     EventType = "user_changed"
	EventRelationChanged EventType = "relation_changed"
	EventSessionChanged  EventType = "session_changed"
)

// Event is delivered to subscribers after state changed
type Event struct {
	Type     EventType       `json:"type"`
	Status   SessionStatus   `json:"status,omitempty"`
	PostID   string          `json:"post_id,omitempty"`
	Kind     models.EdgeKind `json:"kind,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
	State    EdgeState       `json:"state,omitempty"`
	Member   *bool           `json:"member,omitempty"`
}

// UserEvent is an Event raised in the session of UserID
type UserEvent struct {
	UserID string
	Event
}

// eventBus fans values out to subscribers. Handlers run on the publishing
// goroutine, outside the bus lock.
type eventBus[T any] struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(T)
}

func newEventBus[T any]() *eventBus[T] {
	return &eventBus[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns a function that removes it
func (b *eventBus[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *eventBus[T]) Publish(e T) {
	b.mu.RLock()
	subs := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
