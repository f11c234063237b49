package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"massa-backend/internal/models"
	"massa-backend/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInExistingProfile(t *testing.T) {
	w := newWorld(alice, bob)
	w.posts.seed(models.Post{ID: "p1", UserID: bob.ID, Content: strPtr("hi")})
	require.NoError(t, w.saved.Insert(context.Background(), alice.ID, "p1"))
	require.NoError(t, w.followed.Insert(context.Background(), alice.ID, bob.ID))
	require.NoError(t, w.connected.Insert(context.Background(), alice.ID, bob.ID))

	s := NewSession(w.deps())
	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: alice.ID}))

	assert.Equal(t, StatusAuthenticated, s.Status())
	assert.Equal(t, &alice, s.CurrentUser())
	assert.Equal(t, 0, w.users.inserts)

	view := s.View()
	assert.Equal(t, []string{"p1"}, view.Saved)
	assert.Equal(t, []string{bob.ID}, view.Followed)
	assert.Equal(t, []string{bob.ID}, view.Connected)
	assert.Len(t, s.Posts().Posts(), 1)
}

func TestSignInCreatesDefaultProfile(t *testing.T) {
	tests := []struct {
		name       string
		identity   Identity
		wantName   string
		wantHandle string
	}{
		{
			name:       "from sign-up metadata",
			identity:   Identity{UserID: "carol-id", Name: " Carol ", Handle: " @Carol Smith "},
			wantName:   "Carol",
			wantHandle: "@carolsmith",
		},
		{
			name:       "without metadata",
			identity:   Identity{UserID: "abcdef-123"},
			wantName:   "New User",
			wantHandle: "@user_abcde",
		},
		{
			name:       "short id",
			identity:   Identity{UserID: "xy"},
			wantName:   "New User",
			wantHandle: "@user_xy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld()
			s := NewSession(w.deps())

			require.NoError(t, s.SignIn(context.Background(), tt.identity))

			user := s.CurrentUser()
			require.NotNil(t, user)
			assert.Equal(t, tt.identity.UserID, user.ID)
			assert.Equal(t, tt.wantName, user.Name)
			assert.Equal(t, tt.wantHandle, user.Handle)
			assert.Equal(t, "https://picsum.photos/seed/"+tt.identity.UserID+"/100/100", user.Avatar)
			require.NotNil(t, user.LastHandleUpdate)
			assert.Equal(t, w.now.UnixMilli(), *user.LastHandleUpdate)
			assert.Equal(t, 1, w.users.inserts)
		})
	}
}

func TestSignInHandleCollisionRetries(t *testing.T) {
	w := newWorld(bob)
	s := NewSession(w.deps())

	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: "bob2-id", Handle: "bob"}))

	user := s.CurrentUser()
	require.NotNil(t, user)
	assert.Regexp(t, regexp.MustCompile(`^@bob_[a-z0-9]{4}$`), user.Handle)
	assert.Equal(t, 2, w.users.inserts)
}

func TestSignInGivesUpOnHandleCollisions(t *testing.T) {
	w := newWorld()
	w.users.conflicts = 100
	s := NewSession(w.deps())

	err := s.SignIn(context.Background(), Identity{UserID: "dave-id"})

	require.Error(t, err)
	assert.Equal(t, maxHandleAttempts, w.users.inserts)
	assert.Equal(t, StatusResolutionFailed, s.Status())
}

func TestSignInResolutionFailure(t *testing.T) {
	w := newWorld(alice)
	w.users.getErr = errBoom
	s := NewSession(w.deps())

	err := s.SignIn(context.Background(), Identity{UserID: alice.ID})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StatusResolutionFailed, s.Status())
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, 0, w.posts.listCount())

	_, err = s.Posts().Create(context.Background(), models.PostDraft{Content: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestSignInPartialHydration(t *testing.T) {
	w := newWorld(alice, bob)
	w.saved.listErr = errBoom
	require.NoError(t, w.followed.Insert(context.Background(), alice.ID, bob.ID))
	s := NewSession(w.deps())
	set, _ := s.Relations(models.EdgeSave)
	set.Replace([]string{"stale"})

	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: alice.ID}))

	assert.Equal(t, StatusAuthenticated, s.Status())
	assert.Equal(t, []string{"stale"}, set.IDs())
	followed, _ := s.Relations(models.EdgeFollow)
	assert.Equal(t, []string{bob.ID}, followed.IDs())
}

func TestSignOutClearsState(t *testing.T) {
	w := newWorld(alice, bob)
	require.NoError(t, w.followed.Insert(context.Background(), alice.ID, bob.ID))
	s := NewSession(w.deps())
	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: alice.ID}))

	s.SignOut()

	assert.Equal(t, StatusAnonymous, s.Status())
	assert.Nil(t, s.CurrentUser())
	view := s.View()
	assert.Empty(t, view.Saved)
	assert.Empty(t, view.Followed)
	assert.Empty(t, view.Connected)
}

func TestSessionPublishesStatusChanges(t *testing.T) {
	w := newWorld(alice)
	s := NewSession(w.deps())

	var statuses []SessionStatus
	unsubscribe := s.Subscribe(func(e Event) {
		if e.Type == EventSessionChanged {
			statuses = append(statuses, e.Status)
		}
	})

	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: alice.ID}))
	s.SignOut()
	unsubscribe()
	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: alice.ID}))

	assert.Equal(t, []SessionStatus{StatusResolving, StatusAuthenticated, StatusAnonymous}, statuses)
}

func TestUpdateProfile(t *testing.T) {
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	me := models.User{ID: "me", Name: "Me", Handle: "@me_here", Avatar: "m.png", LastHandleUpdate: &stamp}

	t.Run("name only keeps handle stamp", func(t *testing.T) {
		w := newWorld(me)
		s := NewSession(w.deps())
		require.NoError(t, s.SignIn(context.Background(), Identity{UserID: me.ID}))

		user, err := s.UpdateProfile(context.Background(), ProfileUpdate{Name: strPtr("  New Me ")})
		require.NoError(t, err)
		assert.Equal(t, "New Me", user.Name)
		assert.Equal(t, stamp, *user.LastHandleUpdate)
		assert.Equal(t, "New Me", s.CurrentUser().Name)
	})

	t.Run("handle change stamps and reloads", func(t *testing.T) {
		w := newWorld(me)
		w.posts.seed(models.Post{ID: "p1", UserID: me.ID, Content: strPtr("x")})
		s := NewSession(w.deps())
		require.NoError(t, s.SignIn(context.Background(), Identity{UserID: me.ID}))
		loads := w.posts.listCount()

		user, err := s.UpdateProfile(context.Background(), ProfileUpdate{Handle: strPtr("Fresh.Handle")})
		require.NoError(t, err)
		assert.Equal(t, "@fresh.handle", user.Handle)
		assert.Equal(t, w.now.UnixMilli(), *user.LastHandleUpdate)
		assert.Equal(t, loads+1, w.posts.listCount())

		post, _ := s.Posts().Get("p1")
		assert.Equal(t, "@fresh.handle", post.User.Handle)
	})

	t.Run("handle taken", func(t *testing.T) {
		w := newWorld(me, bob)
		s := NewSession(w.deps())
		require.NoError(t, s.SignIn(context.Background(), Identity{UserID: me.ID}))

		_, err := s.UpdateProfile(context.Background(), ProfileUpdate{Handle: strPtr("@BOB")})
		assert.ErrorIs(t, err, ErrHandleTaken)
		assert.Equal(t, "@me_here", s.CurrentUser().Handle)
	})

	t.Run("cooldown", func(t *testing.T) {
		w := newWorld(me)
		deps := w.deps()
		deps.Profile.HandleCooldown = 30 * 24 * time.Hour
		deps.Now = func() time.Time { return time.UnixMilli(stamp).Add(time.Hour) }
		s := NewSession(deps)
		require.NoError(t, s.SignIn(context.Background(), Identity{UserID: me.ID}))

		_, err := s.UpdateProfile(context.Background(), ProfileUpdate{Handle: strPtr("other")})
		assert.ErrorIs(t, err, ErrHandleCooldown)

		_, err = s.UpdateProfile(context.Background(), ProfileUpdate{Handle: strPtr("@me_here"), Name: strPtr("Same Handle")})
		assert.NoError(t, err, "keeping the handle is not a change")
	})

	t.Run("invalid input", func(t *testing.T) {
		w := newWorld(me)
		s := NewSession(w.deps())
		require.NoError(t, s.SignIn(context.Background(), Identity{UserID: me.ID}))

		_, err := s.UpdateProfile(context.Background(), ProfileUpdate{Handle: strPtr("ab"), Name: strPtr(" ")})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "handle")
		assert.Contains(t, verrs, "name")
	})

	t.Run("signed out", func(t *testing.T) {
		s := NewSession(newWorld().deps())
		_, err := s.UpdateProfile(context.Background(), ProfileUpdate{Name: strPtr("x")})
		assert.ErrorIs(t, err, ErrNotSignedIn)
	})
}

func TestConnections(t *testing.T) {
	carol := models.User{ID: "carol-id", Name: "Carol", Handle: "@carol"}
	w := newWorld(alice, bob, carol)
	require.NoError(t, w.connected.Insert(context.Background(), alice.ID, carol.ID))
	require.NoError(t, w.connected.Insert(context.Background(), alice.ID, bob.ID))
	s := NewSession(w.deps())

	_, err := s.Connections(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)

	require.NoError(t, s.SignIn(context.Background(), Identity{UserID: alice.ID}))
	users, err := s.Connections(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bob", users[0].Name)
	assert.Equal(t, "Carol", users[1].Name)
}
