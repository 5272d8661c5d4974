package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
)

var ErrMatchAlreadyExists = errors.New("match already exists")

// Registry is the explicit home of every live match runner. Runners are
// inserted on creation and removed after a grace period following
// termination; nothing else in the process holds match state.
type Registry struct {
	logger    *slog.Logger
	clock     clock.Clock
	retainFor time.Duration
	onRetire  func(matchID string)

	mu      sync.RWMutex
	runners map[string]*Runner
}

// NewRegistry builds a registry that retires terminated matches retainFor
// after termination. onRetire, if not nil, runs after a match id is removed.
func NewRegistry(logger *slog.Logger, clk clock.Clock, retainFor time.Duration, onRetire func(matchID string)) *Registry {
	return &Registry{
		logger:    logger.With("component", "registry"),
		clock:     clk,
		retainFor: retainFor,
		onRetire:  onRetire,

		runners: make(map[string]*Runner),
	}
}

func (that *Registry) Insert(matchID string, runner *Runner) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.runners[matchID]; ok {
		return fmt.Errorf("%w: match id %s", ErrMatchAlreadyExists, matchID)
	}

	that.runners[matchID] = runner

	return nil
}

func (that *Registry) Get(matchID string) (*Runner, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	runner, ok := that.runners[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: match id %s", apperror.ErrMatchNotFound, matchID)
	}

	return runner, nil
}

// Retire schedules a terminated match for removal once the retain grace
// period elapses, then stops its runner and retires the id.
func (that *Registry) Retire(matchID string) {
	that.clock.AfterFunc(that.retainFor, func() {
		that.mu.Lock()
		runner, ok := that.runners[matchID]
		delete(that.runners, matchID)
		that.mu.Unlock()

		if ok {
			runner.Close()
		}

		if that.onRetire != nil {
			that.onRetire(matchID)
		}

		that.logger.Info("match retired", "matchID", matchID)
	})
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.runners)
}
