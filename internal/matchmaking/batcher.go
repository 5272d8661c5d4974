package matchmaking

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// StartMatchFunc hands a grouped pair off to the engine. The players are
// ordered by request time; the first becomes seat0.
type StartMatchFunc func(ctx context.Context, players [2]string) error

// Batcher drains the waiting pool on a fixed cadence and groups players
// two-at-a-time into matches.
type Batcher struct {
	logger   *slog.Logger
	clock    clock.Clock
	interval time.Duration

	pool  *Pool
	start StartMatchFunc
}

func NewBatcher(logger *slog.Logger, clk clock.Clock, interval time.Duration, pool *Pool, start StartMatchFunc) *Batcher {
	return &Batcher{
		logger:   logger.With("component", "matchmaking"),
		clock:    clk,
		interval: interval,

		pool:  pool,
		start: start,
	}
}

// Run drives the cadence until the context is canceled.
func (that *Batcher) Run(ctx context.Context) {
	ticker := that.clock.Ticker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cadence drain.
func (that *Batcher) RunOnce(ctx context.Context) {
	pairs := that.pool.DrainPairs()
	if len(pairs) == 0 {
		return
	}

	for _, pair := range pairs {
		players := [2]string{pair[0].PlayerID, pair[1].PlayerID}

		if err := that.start(ctx, players); err != nil {
			that.logger.Error("failed to start match", "seat0", players[0], "seat1", players[1], "error", err)
			continue
		}

		that.logger.Info("players grouped into match", "seat0", players[0], "seat1", players[1])
	}
}
