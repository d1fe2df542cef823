package settings

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
	"github.com/mattermost/mattermost-plugin-tunnel/server/settings/mocks"
)

func newIdleController() *Controller {
	return NewController(Options{Logger: nopLogger{}, DiagnosticsDir: "/data/log"})
}

func TestRegistry_Open(t *testing.T) {
	r := NewRegistry(nopLogger{}, SessionTTL)
	defer r.Stop()

	t.Run("rejects invalid input", func(t *testing.T) {
		assert.Error(t, r.Open("user1", nil))
		assert.Error(t, r.Open("", newIdleController()))
		assert.Equal(t, 0, r.Count())
	})

	t.Run("replaces and closes previous session", func(t *testing.T) {
		first := newIdleController()
		second := newIdleController()

		require.NoError(t, r.Open("user1", first))
		require.NoError(t, r.Open("user1", second))

		assert.Same(t, second, r.Get("user1"))
		assert.Equal(t, 1, r.Count())
		assert.ErrorIs(t, first.Open(), ErrClosed)
	})

	t.Run("sessions are per user", func(t *testing.T) {
		other := newIdleController()
		require.NoError(t, r.Open("user2", other))

		assert.Same(t, other, r.Get("user2"))
		assert.Nil(t, r.Get("user3"))
	})
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(nopLogger{}, SessionTTL)
	defer r.Stop()

	session := newIdleController()
	require.NoError(t, r.Open("user1", session))

	require.NoError(t, r.Close("user1"))
	assert.Nil(t, r.Get("user1"))
	assert.ErrorIs(t, session.Resume(), ErrClosed)

	assert.Error(t, r.Close("user1"))
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(nopLogger{}, SessionTTL)
	defer r.Stop()

	a, b := newIdleController(), newIdleController()
	require.NoError(t, r.Open("a", a))
	require.NoError(t, r.Open("b", b))

	r.CloseAll()

	assert.Equal(t, 0, r.Count())
	assert.ErrorIs(t, a.Open(), ErrClosed)
	assert.ErrorIs(t, b.Open(), ErrClosed)
}

func TestRegistry_Cleanup(t *testing.T) {
	t.Run("closes sessions idle past the ttl", func(t *testing.T) {
		r := NewRegistry(nopLogger{}, time.Minute)
		defer r.Stop()

		stale := newIdleController()
		fresh := newIdleController()
		require.NoError(t, r.Open("stale", stale))
		require.NoError(t, r.Open("fresh", fresh))

		r.cleanup(stale.LastActive().Add(2 * time.Minute))

		// Both were created at roughly the same time, so both are expired.
		assert.Equal(t, 0, r.Count())

		another := newIdleController()
		require.NoError(t, r.Open("another", another))
		r.cleanup(another.LastActive().Add(30 * time.Second))
		assert.Same(t, another, r.Get("another"))
	})

	t.Run("keeps busy sessions", func(t *testing.T) {
		r := NewRegistry(nopLogger{}, time.Minute)
		defer r.Stop()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockConfigStore(ctrl)
		c := NewController(Options{Store: store, Logger: nopLogger{}, DiagnosticsDir: "/data/log"})
		require.NoError(t, r.Open("user1", c))

		store.EXPECT().Get().Return(validConfig, nil)
		require.NoError(t, c.Open())
		c.Wait()

		release := make(chan struct{})
		store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_, _, _, _ string) (account.Config, error) {
				<-release
				return account.Config{}, nil
			})
		require.NoError(t, c.Save())

		r.cleanup(time.Now().Add(time.Hour))
		assert.Same(t, c, r.Get("user1"))

		close(release)
		c.Wait()

		r.cleanup(time.Now().Add(time.Hour))
		assert.Nil(t, r.Get("user1"))
	})
}

func TestRegistry_StopIsIdempotent(t *testing.T) {
	r := NewRegistry(nopLogger{}, SessionTTL)
	r.Stop()
	r.Stop()
}
