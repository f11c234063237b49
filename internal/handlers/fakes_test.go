package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"massa-backend/internal/models"
	"massa-backend/internal/repository"
)

// memUsers is an in-memory UserRepository
type memUsers struct {
	mu     sync.Mutex
	users  map[string]models.User
	getErr error
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User)}
}

func (m *memUsers) failGets(err error) {
	m.mu.Lock()
	m.getErr = err
	m.mu.Unlock()
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	return &u, nil
}

func (m *memUsers) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Handle == handle {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
}

func (m *memUsers) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) Insert(ctx context.Context, user *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return false, nil
	}
	for _, u := range m.users {
		if u.Handle == user.Handle {
			return false, fmt.Errorf("handle taken: %w", repository.ErrConflict)
		}
	}
	m.users[user.ID] = *user
	return true, nil
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) lookup(id string) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

// memEdges is an in-memory EdgeRepository. A non-nil gate holds writes
// until it is closed.
type memEdges struct {
	mu    sync.Mutex
	edges map[string]map[string]bool
	gate  chan struct{}
}

func newMemEdges() *memEdges {
	return &memEdges{edges: make(map[string]map[string]bool)}
}

func (m *memEdges) hold() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	return m.gate
}

func (m *memEdges) wait() {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (m *memEdges) List(ctx context.Context, actorID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id := range m.edges[actorID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memEdges) Insert(ctx context.Context, actorID, targetID string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edges[actorID] == nil {
		m.edges[actorID] = make(map[string]bool)
	}
	m.edges[actorID][targetID] = true
	return nil
}

func (m *memEdges) Delete(ctx context.Context, actorID, targetID string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges[actorID], targetID)
	return nil
}

func (m *memEdges) has(actorID, targetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[actorID][targetID]
}

func (m *memEdges) count(targetID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, targets := range m.edges {
		if targets[targetID] {
			n++
		}
	}
	return n
}

type memReply struct {
	models.Reply
	at time.Time
}

type memPost struct {
	post    models.Post
	at      time.Time
	replies []memReply
}

// memPosts is an in-memory PostRepository and ReplyRepository serving rows
// in the storage format
type memPosts struct {
	mu      sync.Mutex
	posts   []*memPost
	users   *memUsers
	likes   *memEdges
	clock   time.Time
	listErr error
}

func newMemPosts(users *memUsers, likes *memEdges) *memPosts {
	return &memPosts{
		users: users,
		likes: likes,
		clock: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *memPosts) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memPosts) failLists(err error) {
	m.mu.Lock()
	m.listErr = err
	m.mu.Unlock()
}

func (m *memPosts) seed(p models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Type == "" {
		p.Type = models.PostTypeText
	}
	if p.Duration == "" {
		p.Duration = models.DurationPerm
	}
	m.posts = append(m.posts, &memPost{post: p, at: m.tick()})
}

func (m *memPosts) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(id) != nil
}

func (m *memPosts) find(id string) *memPost {
	for _, mp := range m.posts {
		if mp.post.ID == id {
			return mp
		}
	}
	return nil
}

func (m *memPosts) ListRows(ctx context.Context, viewerID string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	rows := make([]json.RawMessage, 0, len(m.posts))
	for i := len(m.posts) - 1; i >= 0; i-- {
		rows = append(rows, m.row(m.posts[i], viewerID))
	}
	return rows, nil
}

func (m *memPosts) row(mp *memPost, viewerID string) json.RawMessage {
	p := mp.post
	row := map[string]any{
		"id":           p.ID,
		"user_id":      p.UserID,
		"type":         string(p.Type),
		"duration":     string(p.Duration),
		"created_at":   mp.at.Format(time.RFC3339Nano),
		"content":      p.Content,
		"title":        p.Title,
		"image_url":    p.ImageURL,
		"is_published": p.IsPublished,
		"likes":        m.likes.count(p.ID),
		"has_liked":    viewerID != "" && m.likes.has(viewerID, p.ID),
	}
	if u, ok := m.users.lookup(p.UserID); ok {
		row["users"] = map[string]any{"id": u.ID, "name": u.Name, "handle": u.Handle, "avatar": u.Avatar}
	}
	replies := []map[string]any{}
	for _, r := range mp.replies {
		replies = append(replies, map[string]any{
			"id": r.ID, "user_id": r.UserID, "user_name": r.UserName,
			"content": r.Content, "created_at": r.at.Format(time.RFC3339Nano),
		})
	}
	row["replies"] = replies
	data, _ := json.Marshal(row)
	return data
}

func (m *memPosts) Create(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, &memPost{post: *post, at: m.tick()})
	return nil
}

func (m *memPosts) Update(ctx context.Context, ownerID string, edit models.PostEdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp := m.find(edit.ID)
	if mp == nil || mp.post.UserID != ownerID {
		return fmt.Errorf("post %s not found: %w", edit.ID, repository.ErrNotFound)
	}
	if edit.Title != nil {
		mp.post.Title = edit.Title
	}
	if edit.Content != nil {
		mp.post.Content = edit.Content
	}
	if edit.IsPublished != nil {
		mp.post.IsPublished = edit.IsPublished
	}
	return nil
}

func (m *memPosts) Delete(ctx context.Context, ownerID, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mp := range m.posts {
		if mp.post.ID == postID && mp.post.UserID == ownerID {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("post %s not found: %w", postID, repository.ErrNotFound)
}

// memReplies writes into the posts of a memPosts
type memReplies struct {
	posts *memPosts
}

func (m memReplies) Create(ctx context.Context, postID string, reply *models.Reply) error {
	m.posts.mu.Lock()
	defer m.posts.mu.Unlock()
	mp := m.posts.find(postID)
	if mp == nil {
		return fmt.Errorf("post %s not found: %w", postID, repository.ErrNotFound)
	}
	mp.replies = append(mp.replies, memReply{Reply: *reply, at: m.posts.tick()})
	return nil
}

// memAccounts is an in-memory AccountRepository
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]models.Account)}
}

func (m *memAccounts) Create(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("email registered: %w", repository.ErrConflict)
		}
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *memAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", repository.ErrNotFound)
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", repository.ErrNotFound)
}

func (m *memAccounts) HandleTaken(ctx context.Context, handle string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Handle != nil && *a.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %w", repository.ErrNotFound)
	}
	a.PasswordHash = passwordHash
	m.accounts[id] = a
	return nil
}

// memAuthSessions is an in-memory SessionRepository
type memAuthSessions struct {
	mu       sync.Mutex
	sessions map[string]models.AuthSession
}

func newMemAuthSessions() *memAuthSessions {
	return &memAuthSessions{sessions: make(map[string]models.AuthSession)}
}

func (m *memAuthSessions) Create(ctx context.Context, s *models.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memAuthSessions) GetByID(ctx context.Context, id string) (*models.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", repository.ErrNotFound)
	}
	return &s, nil
}

func (m *memAuthSessions) Revoke(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
		m.sessions[id] = s
	}
	return nil
}
