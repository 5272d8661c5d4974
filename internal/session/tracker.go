package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
	"github.com/rocketscienceinc/matchengine-backend/internal/entity"
)

// Tracker maps player identity to an active-match reference and decides
// whether a rejoin attempt is allowed. Once a match turns terminal it is
// evicted from every session before the termination broadcast goes out, so
// rejoining a finished match is impossible even when the request races it.
type Tracker struct {
	logger *slog.Logger
	clock  clock.Clock
	grace  time.Duration

	mu       sync.Mutex
	sessions map[string]*entity.PlayerSession

	// disconnectedAt pins the start of each pending grace window. It is
	// cleared by a successful Rejoin or a new match, never by a bare
	// reconnect, so the window is measured from the original drop.
	disconnectedAt map[string]time.Time
}

func NewTracker(logger *slog.Logger, clk clock.Clock, grace time.Duration) *Tracker {
	return &Tracker{
		logger: logger.With("component", "session-tracker"),
		clock:  clk,
		grace:  grace,

		sessions:       make(map[string]*entity.PlayerSession),
		disconnectedAt: make(map[string]time.Time),
	}
}

// Connect creates the session on first connect and marks it connected.
func (that *Tracker) Connect(playerID string) entity.PlayerSession {
	that.mu.Lock()
	defer that.mu.Unlock()

	sess, ok := that.sessions[playerID]
	if !ok {
		sess = &entity.PlayerSession{ID: playerID}
		that.sessions[playerID] = sess
	}

	sess.Connected = true
	sess.LastSeen = that.clock.Now()

	return *sess
}

// Get returns a copy of the player's session.
func (that *Tracker) Get(playerID string) (entity.PlayerSession, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sess, ok := that.sessions[playerID]
	if !ok {
		return entity.PlayerSession{}, fmt.Errorf("%w: player id %s", apperror.ErrPlayerNotFound, playerID)
	}

	return *sess, nil
}

// OnJoin binds the player to their new match.
func (that *Tracker) OnJoin(playerID, matchID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sess, ok := that.sessions[playerID]
	if !ok {
		sess = &entity.PlayerSession{ID: playerID, Connected: true}
		that.sessions[playerID] = sess
	}

	sess.MatchID = matchID
	sess.LastSeen = that.clock.Now()
	delete(that.disconnectedAt, playerID)
}

// OnDisconnect marks the session disconnected and stamps the start of the
// grace window.
func (that *Tracker) OnDisconnect(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sess, ok := that.sessions[playerID]
	if !ok {
		return
	}

	sess.Connected = false
	sess.LastSeen = that.clock.Now()

	if _, ok = that.disconnectedAt[playerID]; !ok {
		that.disconnectedAt[playerID] = sess.LastSeen
	}
}

// OnMatchTerminal evicts the match from every session referencing it.
func (that *Tracker) OnMatchTerminal(matchID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, sess := range that.sessions {
		if sess.MatchID == matchID {
			sess.MatchID = ""
		}
	}
}

// CanRejoin reports whether the player may resume the given match. False
// for any terminal or unknown match, unconditionally, and false once the
// disconnect grace window has elapsed - even if the player has already
// reconnected their transport in the meantime.
func (that *Tracker) CanRejoin(playerID, matchID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.canRejoinLocked(playerID, matchID)
}

func (that *Tracker) canRejoinLocked(playerID, matchID string) bool {
	sess, ok := that.sessions[playerID]
	if !ok || matchID == "" || sess.MatchID != matchID {
		return false
	}

	since, dropped := that.disconnectedAt[playerID]
	if !dropped {
		return true
	}

	return that.clock.Now().Sub(since) <= that.grace
}

// Rejoin resumes the session inside the match or rejects the attempt.
func (that *Tracker) Rejoin(playerID, matchID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.canRejoinLocked(playerID, matchID) {
		return fmt.Errorf("%w: player id %s, match id %s", apperror.ErrRejoinDenied, playerID, matchID)
	}

	sess := that.sessions[playerID]
	sess.Connected = true
	sess.LastSeen = that.clock.Now()
	delete(that.disconnectedAt, playerID)

	return nil
}

// Remove destroys the session on logout.
func (that *Tracker) Remove(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, playerID)
	delete(that.disconnectedAt, playerID)
}

// SweepInactive destroys sessions idle for longer than maxIdle that are no
// longer bound to a match. It returns how many were removed.
func (that *Tracker) SweepInactive(maxIdle time.Duration) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.clock.Now()
	removed := 0

	for id, sess := range that.sessions {
		if sess.Connected || sess.InMatch() {
			continue
		}

		if now.Sub(sess.LastSeen) > maxIdle {
			delete(that.sessions, id)
			delete(that.disconnectedAt, id)
			removed++
		}
	}

	if removed > 0 {
		that.logger.Info("swept inactive sessions", "count", removed)
	}

	return removed
}
