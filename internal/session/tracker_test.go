package session

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, grace time.Duration) (*Tracker, *clock.Mock) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mock := clock.NewMock()

	return NewTracker(logger, mock, grace), mock
}

func TestTracker_Connect(t *testing.T) {
	t.Run("First connect creates the session", func(t *testing.T) {
		tracker, _ := newTestTracker(t, 10*time.Second)

		sess := tracker.Connect("player-1")

		assert.Equal(t, "player-1", sess.ID)
		assert.True(t, sess.Connected)
		assert.False(t, sess.InMatch())
	})

	t.Run("Reconnect keeps the match binding", func(t *testing.T) {
		// Given: a player bound to a match who dropped
		tracker, _ := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")

		// When: the same identity connects again
		sess := tracker.Connect("player-1")

		// Then: the session still references the match
		assert.Equal(t, "match-1", sess.MatchID)
		assert.True(t, sess.Connected)
	})
}

func TestTracker_CanRejoin(t *testing.T) {
	t.Run("Connected player in the match may rejoin", func(t *testing.T) {
		tracker, _ := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")

		assert.True(t, tracker.CanRejoin("player-1", "match-1"))
	})

	t.Run("Unknown player may not rejoin", func(t *testing.T) {
		tracker, _ := newTestTracker(t, 10*time.Second)

		assert.False(t, tracker.CanRejoin("stranger", "match-1"))
	})

	t.Run("Mismatched match id is rejected", func(t *testing.T) {
		tracker, _ := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")

		assert.False(t, tracker.CanRejoin("player-1", "match-2"))
	})

	t.Run("Rejoin inside the grace window is allowed", func(t *testing.T) {
		// Given: a disconnected player with a live match binding
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")

		// When: less than the grace window has passed
		mock.Add(9 * time.Second)

		// Then: the rejoin is still allowed
		assert.True(t, tracker.CanRejoin("player-1", "match-1"))
	})

	t.Run("Rejoin after the grace window is rejected", func(t *testing.T) {
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")

		mock.Add(11 * time.Second)

		assert.False(t, tracker.CanRejoin("player-1", "match-1"))
	})

	t.Run("Reconnecting the transport does not reset the grace window", func(t *testing.T) {
		// Given: a player who dropped and only reconnected after the window
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")

		mock.Add(11 * time.Second)

		// When: a fresh connection comes up under the same identity
		tracker.Connect("player-1")

		// Then: the rejoin is still measured from the original drop and denied
		assert.False(t, tracker.CanRejoin("player-1", "match-1"))
		assert.ErrorIs(t, tracker.Rejoin("player-1", "match-1"), apperror.ErrRejoinDenied)
	})

	t.Run("Rejoin clears the pending grace window", func(t *testing.T) {
		// Given: a player who dropped, reconnected and rejoined in time
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")

		mock.Add(5 * time.Second)
		tracker.Connect("player-1")
		require.NoError(t, tracker.Rejoin("player-1", "match-1"))

		// When: time passes well beyond the original window
		mock.Add(time.Minute)

		// Then: no stale window lingers against the resumed session
		assert.True(t, tracker.CanRejoin("player-1", "match-1"))
	})

	t.Run("Terminated match is unrejoinable regardless of timing", func(t *testing.T) {
		// Given: a connected player whose match just ended
		tracker, _ := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")

		// When: the match turns terminal
		tracker.OnMatchTerminal("match-1")

		// Then: even a connected player cannot rejoin it
		assert.False(t, tracker.CanRejoin("player-1", "match-1"))

		sess, err := tracker.Get("player-1")
		require.NoError(t, err)
		assert.False(t, sess.InMatch())
	})
}

func TestTracker_Rejoin(t *testing.T) {
	t.Run("Rejoin resumes the session", func(t *testing.T) {
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")
		mock.Add(5 * time.Second)

		require.NoError(t, tracker.Rejoin("player-1", "match-1"))

		sess, err := tracker.Get("player-1")
		require.NoError(t, err)
		assert.True(t, sess.Connected)
	})

	t.Run("Denied rejoin reports the sentinel", func(t *testing.T) {
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("player-1")
		tracker.OnJoin("player-1", "match-1")
		tracker.OnDisconnect("player-1")
		mock.Add(time.Minute)

		err := tracker.Rejoin("player-1", "match-1")
		assert.ErrorIs(t, err, apperror.ErrRejoinDenied)
	})
}

func TestTracker_SweepInactive(t *testing.T) {
	t.Run("Idle sessions are removed, live ones survive", func(t *testing.T) {
		// Given: an idle session, a connected one and one bound to a match
		tracker, mock := newTestTracker(t, 10*time.Second)
		tracker.Connect("idle")
		tracker.OnDisconnect("idle")
		tracker.Connect("connected")
		tracker.Connect("playing")
		tracker.OnJoin("playing", "match-1")
		tracker.OnDisconnect("playing")

		// When: the sweep runs after the idle horizon
		mock.Add(25 * time.Hour)
		removed := tracker.SweepInactive(24 * time.Hour)

		// Then: only the idle unbound session is gone
		assert.Equal(t, 1, removed)

		_, err := tracker.Get("idle")
		assert.ErrorIs(t, err, apperror.ErrPlayerNotFound)

		_, err = tracker.Get("connected")
		require.NoError(t, err)

		_, err = tracker.Get("playing")
		require.NoError(t, err)
	})
}
