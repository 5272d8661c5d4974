package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
	"github.com/rocketscienceinc/matchengine-backend/internal/engine"
	"github.com/rocketscienceinc/matchengine-backend/internal/entity"
	"github.com/rocketscienceinc/matchengine-backend/internal/matchmaking"
	"github.com/rocketscienceinc/matchengine-backend/internal/session"
)

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.PlayerSession) error
	DeleteByID(ctx context.Context, id string) error
}

type matchRepo interface {
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	DeleteByID(ctx context.Context, id string) error
}

// MatchManager translates inbound events into engine operations: it owns
// the glue between the waiting pool, the match registry, the session
// tracker and the persistence layer.
type MatchManager struct {
	logger *slog.Logger
	clock  clock.Clock
	conf   engine.Config

	sessionRepo sessionRepo
	matchRepo   matchRepo
	registry    *engine.Registry
	tracker     *session.Tracker
	pool        *matchmaking.Pool
	sink        engine.Sink
}

func NewMatchManager(
	logger *slog.Logger,
	clk clock.Clock,
	conf engine.Config,
	sessionRepo sessionRepo,
	matchRepo matchRepo,
	registry *engine.Registry,
	tracker *session.Tracker,
	pool *matchmaking.Pool,
	sink engine.Sink,
) *MatchManager {
	return &MatchManager{
		logger: logger,
		clock:  clk,
		conf:   conf,

		sessionRepo: sessionRepo,
		matchRepo:   matchRepo,
		registry:    registry,
		tracker:     tracker,
		pool:        pool,
		sink:        sink,
	}
}

// Connect registers the player's session, creating one on first connect.
// The transport resumes any active match afterwards via Rejoin, once the
// connection is registered to receive the resync snapshot.
func (that *MatchManager) Connect(ctx context.Context, playerID string) (entity.PlayerSession, error) {
	if playerID == "" {
		playerID = uuid.NewString()
	}

	sess := that.tracker.Connect(playerID)

	if err := that.sessionRepo.CreateOrUpdate(ctx, &sess); err != nil {
		return entity.PlayerSession{}, fmt.Errorf("failed to update session: %w", err)
	}

	return sess, nil
}

// QueueForMatch puts the player into the waiting pool.
func (that *MatchManager) QueueForMatch(ctx context.Context, playerID string) error {
	sess, err := that.tracker.Get(playerID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if sess.InMatch() {
		return fmt.Errorf("%w: player id %s", apperror.ErrAlreadyInMatch, playerID)
	}

	if err = that.pool.Enqueue(playerID); err != nil {
		return fmt.Errorf("failed to enqueue player: %w", err)
	}

	return nil
}

// CancelMatchmaking removes the player from the waiting pool. Canceling a
// player who is not waiting is a no-op.
func (that *MatchManager) CancelMatchmaking(_ context.Context, playerID string) bool {
	return that.pool.Cancel(playerID)
}

// SubmitMove forwards a move to the runner owning the player's match.
func (that *MatchManager) SubmitMove(ctx context.Context, playerID string, cell int) error {
	sess, err := that.tracker.Get(playerID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if !sess.InMatch() {
		return fmt.Errorf("%w: player id %s has no active match", apperror.ErrMatchNotFound, playerID)
	}

	runner, err := that.registry.Get(sess.MatchID)
	if err != nil {
		return fmt.Errorf("failed to get match: %w", err)
	}

	if err = runner.SubmitMove(ctx, playerID, cell); err != nil {
		return fmt.Errorf("failed to make move: %w", err)
	}

	return nil
}

// Disconnect starts the player's grace window. A waiting pool entry is
// removed outright; there is nothing to resume in matchmaking.
func (that *MatchManager) Disconnect(ctx context.Context, playerID string) {
	log := that.logger.With("method", "Disconnect", "playerID", playerID)

	that.pool.Cancel(playerID)
	that.tracker.OnDisconnect(playerID)

	sess, err := that.tracker.Get(playerID)
	if err != nil {
		return
	}

	if err = that.sessionRepo.CreateOrUpdate(ctx, &sess); err != nil {
		log.Error("failed to update session", "error", err)
	}

	if !sess.InMatch() {
		return
	}

	runner, err := that.registry.Get(sess.MatchID)
	if err != nil {
		log.Error("failed to get match", "error", err)
		return
	}

	runner.Disconnect(playerID)
}

// Rejoin resumes a disconnected player's seat in their match.
func (that *MatchManager) Rejoin(ctx context.Context, playerID, matchID string) error {
	if err := that.tracker.Rejoin(playerID, matchID); err != nil {
		return fmt.Errorf("failed to rejoin: %w", err)
	}

	runner, err := that.registry.Get(matchID)
	if err != nil {
		return fmt.Errorf("failed to get match: %w", err)
	}

	if err = runner.Reconnect(ctx, playerID); err != nil {
		return fmt.Errorf("failed to resume seat: %w", err)
	}

	return nil
}

// StartMatch seats a grouped pair and launches the match runner. It is the
// batcher's start hook: the first player becomes seat0.
func (that *MatchManager) StartMatch(ctx context.Context, players [2]string) error {
	match := entity.NewMatch(uuid.NewString())

	for _, playerID := range players {
		if _, err := match.AddPlayer(playerID); err != nil {
			return fmt.Errorf("failed to seat player: %w", err)
		}
	}

	if err := that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return fmt.Errorf("failed to persist match: %w", err)
	}

	for _, playerID := range players {
		that.tracker.OnJoin(playerID, match.ID)

		sess, err := that.tracker.Get(playerID)
		if err == nil {
			if err = that.sessionRepo.CreateOrUpdate(ctx, &sess); err != nil {
				that.logger.Error("failed to update session", "playerID", playerID, "error", err)
			}
		}
	}

	runner := engine.NewRunner(that.logger, that.clock, that.conf, match, that.sink, that.onMatchTerminal)

	if err := that.registry.Insert(match.ID, runner); err != nil {
		return fmt.Errorf("failed to register match: %w", err)
	}

	go runner.Run(ctx)

	return nil
}

// onMatchTerminal runs inside the runner loop on the transition into a
// terminal phase, before the termination broadcast: the rejoin set is
// already evicted by the time any client sees the result.
func (that *MatchManager) onMatchTerminal(match *entity.Match) {
	log := that.logger.With("method", "onMatchTerminal", "matchID", match.ID)

	that.tracker.OnMatchTerminal(match.ID)
	that.registry.Retire(match.ID)

	if err := that.matchRepo.CreateOrUpdate(context.Background(), match); err != nil {
		log.Error("failed to persist terminal match", "error", err)
	}
}

// OnMatchRetired frees the persisted record once the retire grace elapses.
func (that *MatchManager) OnMatchRetired(matchID string) {
	if err := that.matchRepo.DeleteByID(context.Background(), matchID); err != nil {
		that.logger.Error("failed to delete match record", "matchID", matchID, "error", err)
	}
}
