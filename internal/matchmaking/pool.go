package matchmaking

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
)

// Entry is one waiting player, ordered by request time.
type Entry struct {
	PlayerID    string
	RequestedAt time.Time
}

// Pool is the mutex-guarded waiting pool shared between join requests and
// the batcher's cadence drain. A drain always sees a consistent snapshot.
type Pool struct {
	clock clock.Clock

	mu      sync.Mutex
	entries []Entry
	queued  map[string]struct{}
}

func NewPool(clk clock.Clock) *Pool {
	return &Pool{
		clock:  clk,
		queued: make(map[string]struct{}),
	}
}

// Enqueue adds a player to the pool. A player can wait at most once.
func (that *Pool) Enqueue(playerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.queued[playerID]; ok {
		return fmt.Errorf("%w: player id %s", apperror.ErrAlreadyQueued, playerID)
	}

	that.queued[playerID] = struct{}{}
	that.entries = append(that.entries, Entry{
		PlayerID:    playerID,
		RequestedAt: that.clock.Now(),
	})

	return nil
}

// Cancel removes a waiting player before they are grouped. It reports
// whether the player was actually waiting.
func (that *Pool) Cancel(playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.queued[playerID]; !ok {
		return false
	}

	delete(that.queued, playerID)

	for i, entry := range that.entries {
		if entry.PlayerID == playerID {
			that.entries = append(that.entries[:i], that.entries[i+1:]...)
			break
		}
	}

	return true
}

func (that *Pool) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.entries)
}

// DrainPairs removes players two-at-a-time in FIFO order. An odd remainder
// stays in the pool for the next cadence. An empty pool drains to nothing.
func (that *Pool) DrainPairs() [][2]Entry {
	that.mu.Lock()
	defer that.mu.Unlock()

	var pairs [][2]Entry

	for len(that.entries) >= 2 {
		first, second := that.entries[0], that.entries[1]
		that.entries = that.entries[2:]
		delete(that.queued, first.PlayerID)
		delete(that.queued, second.PlayerID)

		pairs = append(pairs, [2]Entry{first, second})
	}

	return pairs
}
