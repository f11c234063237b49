package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"massa-backend/internal/models"
	"massa-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// EdgeState tracks the remote confirmation of one toggled edge
type EdgeState string

const (
	EdgePending   EdgeState = "pending"
	EdgeConfirmed EdgeState = "confirmed"
	EdgeFailed    EdgeState = "failed"
)

// Actor exposes the signed-in user, or nil
type Actor interface {
	CurrentUser() *models.User
}

type edge struct {
	member bool
	state  EdgeState
}

// RelationSet holds the targets the current user saved, follows or is
// connected to. Toggles apply locally first and roll back when the remote
// write fails.
type RelationSet struct {
	kind    models.EdgeKind
	repo    repository.EdgeRepository
	actor   Actor
	publish func(Event)

	mu    sync.Mutex
	edges map[string]*edge
}

// NewRelationSet creates an empty set of kind
func NewRelationSet(kind models.EdgeKind, repo repository.EdgeRepository, actor Actor, publish func(Event)) *RelationSet {
	if publish == nil {
		publish = func(Event) {}
	}
	return &RelationSet{
		kind:    kind,
		repo:    repo,
		actor:   actor,
		publish: publish,
		edges:   make(map[string]*edge),
	}
}

// Kind returns the relationship kind of the set
func (s *RelationSet) Kind() models.EdgeKind {
	return s.kind
}

// Contains reports whether id is currently a member
func (s *RelationSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	return ok && e.member
}

// IDs returns the members in sorted order
func (s *RelationSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.edges))
	for id, e := range s.edges {
		if e.member {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// State returns the confirmation state of the last toggle of id
func (s *RelationSet) State(id string) (EdgeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return "", false
	}
	return e.state, true
}

// Replace swaps the whole set for ids, all confirmed
func (s *RelationSet) Replace(ids []string) {
	edges := make(map[string]*edge, len(ids))
	for _, id := range ids {
		edges[id] = &edge{member: true, state: EdgeConfirmed}
	}
	s.mu.Lock()
	s.edges = edges
	s.mu.Unlock()
}

// Clear empties the set
func (s *RelationSet) Clear() {
	s.Replace(nil)
}

// Hydrate loads the members of userID. On failure the set is left as it was.
func (s *RelationSet) Hydrate(ctx context.Context, userID string) error {
	ids, err := s.repo.List(ctx, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("kind", string(s.kind)).
			Msg("Failed to hydrate relation set")
		return fmt.Errorf("failed to hydrate %s: %w", s.kind, err)
	}
	s.Replace(ids)
	return nil
}

// Toggle flips membership of targetID and returns the resulting membership.
// On remote failure the previous membership is restored and the edge is
// marked failed.
func (s *RelationSet) Toggle(ctx context.Context, targetID string) (bool, error) {
	user := s.actor.CurrentUser()
	if user == nil {
		return false, ErrLoginRequired
	}

	s.mu.Lock()
	prev, exists := s.edges[targetID]
	if exists && prev.state == EdgePending {
		s.mu.Unlock()
		return prev.member, ErrTogglePending
	}
	wasMember := exists && prev.member
	next := &edge{member: !wasMember, state: EdgePending}
	s.edges[targetID] = next
	s.mu.Unlock()

	s.notify(targetID, next.member, EdgePending)

	var err error
	if next.member {
		err = s.repo.Insert(ctx, user.ID, targetID)
	} else {
		err = s.repo.Delete(ctx, user.ID, targetID)
	}

	s.mu.Lock()
	if err != nil {
		next.member = wasMember
		next.state = EdgeFailed
	} else {
		next.state = EdgeConfirmed
	}
	member, state := next.member, next.state
	s.mu.Unlock()

	s.notify(targetID, member, state)

	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID).
			Str("kind", string(s.kind)).
			Str("target_id", targetID).
			Msg("Failed to toggle relation, rolled back")
		return member, fmt.Errorf("failed to toggle %s %s: %w", s.kind, targetID, err)
	}
	return member, nil
}

func (s *RelationSet) notify(targetID string, member bool, state EdgeState) {
	s.publish(Event{
		Type:     EventRelationChanged,
		Kind:     s.kind,
		TargetID: targetID,
		State:    state,
		Member:   &member,
	})
}
