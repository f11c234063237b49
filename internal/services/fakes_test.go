package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"massa-backend/internal/models"
	"massa-backend/internal/repository"
)

var errBoom = errors.New("boom")

type staticActor struct {
	user *models.User
}

func (a staticActor) CurrentUser() *models.User { return a.user }

func strPtr(s string) *string { return &s }

// fakeEdges is an in-memory EdgeRepository
type fakeEdges struct {
	mu      sync.Mutex
	edges   map[string]map[string]bool
	failErr error
	listErr error
	// gate, when set, blocks Insert/Delete until it is closed
	gate chan struct{}
}

func newFakeEdges() *fakeEdges {
	return &fakeEdges{edges: make(map[string]map[string]bool)}
}

func (f *fakeEdges) List(ctx context.Context, actorID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := []string{}
	for id := range f.edges[actorID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeEdges) Insert(ctx context.Context, actorID, targetID string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if f.edges[actorID] == nil {
		f.edges[actorID] = make(map[string]bool)
	}
	f.edges[actorID][targetID] = true
	return nil
}

func (f *fakeEdges) Delete(ctx context.Context, actorID, targetID string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	delete(f.edges[actorID], targetID)
	return nil
}

func (f *fakeEdges) wait() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeEdges) has(actorID, targetID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges[actorID][targetID]
}

func (f *fakeEdges) countTarget(targetID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, targets := range f.edges {
		if targets[targetID] {
			n++
		}
	}
	return n
}

// fakeUsers is an in-memory UserRepository with a unique handle index
type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]models.User
	getErr    error
	inserts   int
	conflicts int // number of upcoming inserts to reject as handle collisions
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	return &u, nil
}

func (f *fakeUsers) lookup(id string) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	return u, ok
}

func (f *fakeUsers) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Handle == handle {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
}

func (f *fakeUsers) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeUsers) Insert(ctx context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.conflicts > 0 {
		f.conflicts--
		return false, fmt.Errorf("handle %s already taken: %w", user.Handle, repository.ErrConflict)
	}
	if _, ok := f.users[user.ID]; ok {
		return false, nil
	}
	for _, u := range f.users {
		if u.Handle == user.Handle {
			return false, fmt.Errorf("handle %s already taken: %w", user.Handle, repository.ErrConflict)
		}
	}
	f.users[user.ID] = *user
	return true, nil
}

func (f *fakeUsers) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	for _, u := range f.users {
		if u.ID != user.ID && u.Handle == user.Handle {
			return fmt.Errorf("handle %s already taken: %w", user.Handle, repository.ErrConflict)
		}
	}
	f.users[user.ID] = *user
	return nil
}

type storedReply struct {
	models.Reply
	at time.Time
}

type storedPost struct {
	post    models.Post
	at      time.Time
	replies []storedReply
}

// fakePosts is an in-memory PostRepository and ReplyRepository that serves
// rows in the storage format, like the SQL gateway
type fakePosts struct {
	mu      sync.Mutex
	posts   []*storedPost
	users   *fakeUsers
	likes   *fakeEdges
	extra   []json.RawMessage
	clock   time.Time
	lists   int
	creates int
	listErr error
	// afterSnapshot runs after a ListRows call built its rows, with the call number
	afterSnapshot func(call int)
}

func newFakePosts(users *fakeUsers, likes *fakeEdges) *fakePosts {
	return &fakePosts{
		users: users,
		likes: likes,
		clock: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *fakePosts) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// seed stores p as if it had been written earlier
func (f *fakePosts) seed(p models.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Duration == "" {
		p.Duration = models.DurationPerm
	}
	if p.Type == "" {
		p.Type = models.PostTypeText
	}
	f.posts = append(f.posts, &storedPost{post: p, at: f.tick()})
}

func (f *fakePosts) ListRows(ctx context.Context, viewerID string) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.lists++
	call := f.lists
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}

	ordered := make([]*storedPost, len(f.posts))
	copy(ordered, f.posts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].at.Equal(ordered[j].at) {
			return ordered[i].at.After(ordered[j].at)
		}
		return ordered[i].post.ID > ordered[j].post.ID
	})

	rows := make([]json.RawMessage, 0, len(ordered)+len(f.extra))
	for _, sp := range ordered {
		rows = append(rows, f.row(sp, viewerID))
	}
	rows = append(rows, f.extra...)
	hook := f.afterSnapshot
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return rows, nil
}

func (f *fakePosts) row(sp *storedPost, viewerID string) json.RawMessage {
	p := sp.post
	row := map[string]any{
		"id":           p.ID,
		"user_id":      p.UserID,
		"type":         string(p.Type),
		"duration":     string(p.Duration),
		"created_at":   sp.at.Format(time.RFC3339Nano),
		"content":      p.Content,
		"title":        p.Title,
		"audio_url":    p.AudioURL,
		"image_url":    p.ImageURL,
		"is_published": p.IsPublished,
		"views":        p.Views,
		"likes":        f.likes.countTarget(p.ID),
		"has_liked":    viewerID != "" && f.likes.has(viewerID, p.ID),
	}
	if u, ok := f.users.lookup(p.UserID); ok {
		row["users"] = map[string]any{
			"id": u.ID, "name": u.Name, "handle": u.Handle, "avatar": u.Avatar,
		}
	}
	replies := []map[string]any{}
	for _, r := range sp.replies {
		replies = append(replies, map[string]any{
			"id": r.ID, "user_id": r.UserID, "user_name": r.UserName,
			"content": r.Content, "created_at": r.at.Format(time.RFC3339Nano),
		})
	}
	row["replies"] = replies
	data, _ := json.Marshal(row)
	return data
}

func (f *fakePosts) Create(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.posts = append(f.posts, &storedPost{post: *post, at: f.tick()})
	return nil
}

func (f *fakePosts) find(id string) *storedPost {
	for _, sp := range f.posts {
		if sp.post.ID == id {
			return sp
		}
	}
	return nil
}

func (f *fakePosts) Update(ctx context.Context, ownerID string, edit models.PostEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp := f.find(edit.ID)
	if sp == nil || sp.post.UserID != ownerID {
		return fmt.Errorf("post %s not found: %w", edit.ID, repository.ErrNotFound)
	}
	if edit.Title != nil {
		sp.post.Title = edit.Title
	}
	if edit.Content != nil {
		sp.post.Content = edit.Content
	}
	if edit.ImageURL != nil {
		sp.post.ImageURL = edit.ImageURL
	}
	if edit.IsPublished != nil {
		sp.post.IsPublished = edit.IsPublished
	}
	return nil
}

func (f *fakePosts) Delete(ctx context.Context, ownerID, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sp := range f.posts {
		if sp.post.ID == postID && sp.post.UserID == ownerID {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("post %s not found: %w", postID, repository.ErrNotFound)
}

// fakeReplies writes into the posts of a fakePosts
type fakeReplies struct {
	posts *fakePosts
}

func (f fakeReplies) Create(ctx context.Context, postID string, reply *models.Reply) error {
	f.posts.mu.Lock()
	defer f.posts.mu.Unlock()
	sp := f.posts.find(postID)
	if sp == nil {
		return fmt.Errorf("post %s not found: %w", postID, repository.ErrNotFound)
	}
	sp.replies = append(sp.replies, storedReply{Reply: *reply, at: f.posts.tick()})
	return nil
}

func (f *fakePosts) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// fakeAccounts is an in-memory AccountRepository
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	users    *fakeUsers
}

func newFakeAccounts(users *fakeUsers) *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]*models.Account), users: users}
}

func (f *fakeAccounts) Create(ctx context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("email already registered: %w", repository.ErrConflict)
		}
	}
	cp := *a
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", repository.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", repository.ErrNotFound)
}

func (f *fakeAccounts) HandleTaken(ctx context.Context, handle string) (bool, error) {
	if f.users != nil {
		if _, err := f.users.GetByHandle(ctx, handle); err == nil {
			return true, nil
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Handle != nil && *a.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccounts) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %w", repository.ErrNotFound)
	}
	a.PasswordHash = passwordHash
	return nil
}

// fakeAuthSessions is an in-memory SessionRepository
type fakeAuthSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.AuthSession
}

func newFakeAuthSessions() *fakeAuthSessions {
	return &fakeAuthSessions{sessions: make(map[string]*models.AuthSession)}
}

func (f *fakeAuthSessions) Create(ctx context.Context, s *models.AuthSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeAuthSessions) GetByID(ctx context.Context, id string) (*models.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", repository.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeAuthSessions) Revoke(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
	}
	return nil
}

// world wires a full set of fakes
type world struct {
	users     *fakeUsers
	posts     *fakePosts
	likes     *fakeEdges
	saved     *fakeEdges
	followed  *fakeEdges
	connected *fakeEdges
	now       time.Time
}

func newWorld(users ...models.User) *world {
	w := &world{
		users:     newFakeUsers(users...),
		likes:     newFakeEdges(),
		saved:     newFakeEdges(),
		followed:  newFakeEdges(),
		connected: newFakeEdges(),
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	w.posts = newFakePosts(w.users, w.likes)
	return w
}

func (w *world) deps() SessionDeps {
	return SessionDeps{
		Users:     w.users,
		Posts:     w.posts,
		Replies:   fakeReplies{posts: w.posts},
		Likes:     w.likes,
		Saved:     w.saved,
		Followed:  w.followed,
		Connected: w.connected,
		Profile:   ProfileOptions{DefaultName: "New User"},
		Now:       func() time.Time { return w.now },
	}
}

func (w *world) store(actor Actor) *PostStore {
	return NewPostStore(w.posts, fakeReplies{posts: w.posts}, w.likes, actor, nil)
}
