package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
	"github.com/rocketscienceinc/matchengine-backend/internal/entity"
)

// Sink receives the engine's outbound messages. Implementations must not
// block: a slow or disconnected recipient must never stall the match loop.
type Sink interface {
	SendSnapshot(playerID string, snapshot entity.Snapshot)
	MatchStarted(matchID string, seats [2]string)
	MatchEnded(matchID string, seats [2]string, phase string, winner entity.Seat)
}

// Config carries the timing parameters of a single match.
type Config struct {
	TurnDeadline    time.Duration
	TickInterval    time.Duration
	DisconnectGrace time.Duration
	ForfeitWins     bool
}

type moveCommand struct {
	playerID string
	cell     int
	reply    chan error
}

type disconnectCommand struct {
	playerID string
}

type reconnectCommand struct {
	playerID string
	reply    chan error
}

// Runner owns one match. All mutation goes through its loop goroutine, so
// concurrent moves from both seats are linearized: the first valid move for
// a turn is accepted, the second is rejected.
type Runner struct {
	logger *slog.Logger
	clock  clock.Clock
	conf   Config

	match      *entity.Match
	sink       Sink
	onTerminal func(match *entity.Match)

	cmds     chan any
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once
	terminal atomic.Bool

	ticker         *clock.Ticker
	disconnectedAt map[entity.Seat]time.Time
}

func NewRunner(logger *slog.Logger, clk clock.Clock, conf Config, match *entity.Match, sink Sink, onTerminal func(match *entity.Match)) *Runner {
	return &Runner{
		logger: logger.With("component", "match", "matchID", match.ID),
		clock:  clk,
		conf:   conf,

		match:      match,
		sink:       sink,
		onTerminal: onTerminal,

		cmds: make(chan any),
		quit: make(chan struct{}),
		done: make(chan struct{}),

		disconnectedAt: make(map[entity.Seat]time.Time),
	}
}

// Run drives the match until it is retired or the context is canceled. It
// announces the match, arms the first deadline and then serves commands and
// clock ticks.
func (that *Runner) Run(ctx context.Context) {
	defer close(that.done)

	that.match.Deadline = that.clock.Now().Add(that.conf.TurnDeadline)
	that.sink.MatchStarted(that.match.ID, that.match.Seats)
	that.broadcast()

	that.ticker = that.clock.Ticker(that.conf.TickInterval)
	defer that.ticker.Stop()

	that.logger.Info("match started", "seat0", that.match.Seats[0], "seat1", that.match.Seats[1])

	for {
		select {
		case <-ctx.Done():
			return
		case <-that.quit:
			return
		case cmd := <-that.cmds:
			that.handleCommand(cmd)
		case <-that.ticker.C:
			that.handleTick()
		}
	}
}

// Close stops the loop. Called by the registry once the post-terminal grace
// period elapses.
func (that *Runner) Close() {
	that.closing.Do(func() {
		close(that.quit)
	})
}

// Terminal reports whether the match has reached a terminal phase.
func (that *Runner) Terminal() bool {
	return that.terminal.Load()
}

// SubmitMove asks the loop to apply a move for the given player.
func (that *Runner) SubmitMove(ctx context.Context, playerID string, cell int) error {
	return that.send(ctx, moveCommand{playerID: playerID, cell: cell, reply: make(chan error, 1)})
}

// Disconnect marks the player's seat disconnected, starting the grace window.
func (that *Runner) Disconnect(playerID string) {
	select {
	case that.cmds <- disconnectCommand{playerID: playerID}:
	case <-that.done:
	}
}

// Reconnect resumes the player's seat and resyncs them with a fresh snapshot.
func (that *Runner) Reconnect(ctx context.Context, playerID string) error {
	return that.send(ctx, reconnectCommand{playerID: playerID, reply: make(chan error, 1)})
}

func (that *Runner) send(ctx context.Context, cmd any) error {
	var reply chan error

	switch c := cmd.(type) {
	case moveCommand:
		reply = c.reply
	case reconnectCommand:
		reply = c.reply
	}

	select {
	case that.cmds <- cmd:
	case <-that.done:
		return apperror.ErrMatchNotFound
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-that.done:
		return apperror.ErrMatchNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (that *Runner) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case moveCommand:
		c.reply <- that.applyMove(c.playerID, c.cell)
	case disconnectCommand:
		that.markDisconnected(c.playerID)
	case reconnectCommand:
		c.reply <- that.resumeSeat(c.playerID)
	}
}

func (that *Runner) applyMove(playerID string, cell int) error {
	seat := that.match.SeatOf(playerID)
	if seat == entity.SeatNone {
		return apperror.ErrPlayerNotFound
	}

	now := that.clock.Now()
	if err := that.match.MakeMove(seat, cell, now.Add(that.conf.TurnDeadline)); err != nil {
		return err
	}

	if that.match.IsTerminal() {
		that.finish()
		return nil
	}

	that.broadcast()

	return nil
}

func (that *Runner) markDisconnected(playerID string) {
	seat := that.match.SeatOf(playerID)
	if seat == entity.SeatNone || that.match.IsTerminal() {
		return
	}

	if _, ok := that.disconnectedAt[seat]; !ok {
		that.disconnectedAt[seat] = that.clock.Now()
		that.logger.Info("player disconnected, grace window started", "playerID", playerID, "seat", seat.String())
	}
}

func (that *Runner) resumeSeat(playerID string) error {
	if that.match.IsTerminal() {
		return apperror.ErrRejoinDenied
	}

	seat := that.match.SeatOf(playerID)
	if seat == entity.SeatNone {
		return apperror.ErrRejoinDenied
	}

	delete(that.disconnectedAt, seat)
	that.sink.SendSnapshot(playerID, entity.BuildSnapshot(that.match, seat, that.clock.Now()))

	that.logger.Info("player resumed seat", "playerID", playerID, "seat", seat.String())

	return nil
}

// handleTick re-evaluates the deadline and disconnect grace windows and
// pushes countdown snapshots. The checks are idempotent, so no timer
// cancellation is needed anywhere.
func (that *Runner) handleTick() {
	if that.match.IsTerminal() {
		return
	}

	now := that.clock.Now()

	if that.match.DeadlineExpired(now) {
		expired := that.match.ActiveSeat
		that.logger.Info("turn deadline expired", "seat", expired.String())
		that.match.Abandon(expired, that.conf.ForfeitWins)
		that.finish()
		return
	}

	for seat, since := range that.disconnectedAt {
		if now.Sub(since) < that.conf.DisconnectGrace {
			continue
		}

		that.logger.Info("disconnect grace window elapsed", "seat", seat.String())
		that.match.Abandon(seat, that.conf.ForfeitWins)
		that.finish()
		return
	}

	that.broadcast()
}

// finish runs exactly once, on the transition into a terminal phase: the
// tracker and registry are notified before the termination broadcast so a
// rejoin attempt can never race past a finished match.
func (that *Runner) finish() {
	that.terminal.Store(true)
	that.ticker.Stop()

	if that.onTerminal != nil {
		that.onTerminal(that.match)
	}

	that.broadcast()
	that.sink.MatchEnded(that.match.ID, that.match.Seats, that.match.Phase, that.match.Winner)

	that.logger.Info("match ended", "phase", that.match.Phase, "winner", that.match.Winner.String())
}

func (that *Runner) broadcast() {
	now := that.clock.Now()

	for seat, playerID := range that.match.Seats {
		if playerID == "" {
			continue
		}

		that.sink.SendSnapshot(playerID, entity.BuildSnapshot(that.match, entity.Seat(seat), now))
	}
}
