package entity

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedMatch(t *testing.T) *Match {
	t.Helper()

	match := NewMatch("match-1")

	seat, err := match.AddPlayer("p1")
	require.NoError(t, err)
	require.Equal(t, Seat0, seat)

	seat, err = match.AddPlayer("p2")
	require.NoError(t, err)
	require.Equal(t, Seat1, seat)

	return match
}

func TestMatch_AddPlayer(t *testing.T) {
	t.Run("Seats players deterministically by join order", func(t *testing.T) {
		// Given: a fresh match
		match := NewMatch("match-1")

		// When: two players join in order
		first, err := match.AddPlayer("p1")
		require.NoError(t, err)
		second, err := match.AddPlayer("p2")
		require.NoError(t, err)

		// Then: the first joiner is seat0, the second seat1, and the match is in progress
		assert.Equal(t, Seat0, first)
		assert.Equal(t, Seat1, second)
		assert.Equal(t, PhaseInProgress, match.Phase)
	})

	t.Run("Rejects a third joiner with ErrMatchFull", func(t *testing.T) {
		// Given: a match with both seats filled
		match := startedMatch(t)

		// When: a third player tries to join
		seat, err := match.AddPlayer("p3")

		// Then: the join is rejected and no seat is assigned
		assert.ErrorIs(t, err, apperror.ErrMatchFull)
		assert.Equal(t, SeatNone, seat)
	})

	t.Run("Stays waiting with a single player", func(t *testing.T) {
		// Given: a fresh match
		match := NewMatch("match-1")

		// When: only one player joins
		_, err := match.AddPlayer("p1")
		require.NoError(t, err)

		// Then: the match is still waiting for players
		assert.Equal(t, PhaseWaiting, match.Phase)
	})
}

func TestMatch_MakeMove(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 12, 0, 10, 0, time.UTC)

	t.Run("Accepted move marks the cell and alternates the turn", func(t *testing.T) {
		// Given: an in-progress match with seat0 on turn
		match := startedMatch(t)

		// When: seat0 claims the center cell
		err := match.MakeMove(Seat0, 4, deadline)

		// Then: the cell belongs to seat0, the turn passes to seat1 and the deadline is re-armed
		require.NoError(t, err)
		assert.Equal(t, Seat0, match.Board[4])
		assert.Equal(t, Seat1, match.ActiveSeat)
		assert.Equal(t, deadline, match.Deadline)
	})

	t.Run("Rejects a move from the seat not on turn", func(t *testing.T) {
		// Given: an in-progress match with seat0 on turn
		match := startedMatch(t)
		before := match.Board

		// When: seat1 tries to move
		err := match.MakeMove(Seat1, 0, deadline)

		// Then: the move is rejected and the board is unchanged
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, before, match.Board)
		assert.Equal(t, Seat0, match.ActiveSeat)
	})

	t.Run("Rejects a move into an occupied cell", func(t *testing.T) {
		// Given: a match where cell 4 is already marked
		match := startedMatch(t)
		require.NoError(t, match.MakeMove(Seat0, 4, deadline))
		before := match.Board

		// When: seat1 targets the same cell
		err := match.MakeMove(Seat1, 4, deadline)

		// Then: the move is rejected and the board is unchanged
		assert.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, before, match.Board)
	})

	t.Run("Rejects an out-of-range cell", func(t *testing.T) {
		// Given: an in-progress match
		match := startedMatch(t)

		// When: seat0 targets a cell outside the board
		err := match.MakeMove(Seat0, BoardSize, deadline)

		// Then: the move is rejected
		assert.ErrorIs(t, err, ErrInvalidCell)
	})

	t.Run("Rejects moves before the match starts", func(t *testing.T) {
		// Given: a match with a single seated player
		match := NewMatch("match-1")
		_, err := match.AddPlayer("p1")
		require.NoError(t, err)

		// When: the seated player tries to move
		err = match.MakeMove(Seat0, 0, deadline)

		// Then: the move is rejected
		assert.ErrorIs(t, err, apperror.ErrMatchNotStarted)
	})

	t.Run("Completing a row wins the match", func(t *testing.T) {
		// Given: seat0 about to complete the top row, seat1 interleaving elsewhere
		match := startedMatch(t)
		require.NoError(t, match.MakeMove(Seat0, 0, deadline))
		require.NoError(t, match.MakeMove(Seat1, 3, deadline))
		require.NoError(t, match.MakeMove(Seat0, 1, deadline))
		require.NoError(t, match.MakeMove(Seat1, 4, deadline))

		// When: seat0 completes the row
		err := match.MakeMove(Seat0, 2, deadline)

		// Then: the match is won by seat0 and no turn remains
		require.NoError(t, err)
		assert.Equal(t, PhaseWon, match.Phase)
		assert.Equal(t, Seat0, match.Winner)
		assert.Equal(t, SeatNone, match.ActiveSeat)
	})

	t.Run("Filling the board without a line is a draw", func(t *testing.T) {
		// Given: a sequence that fills the board with no winning line
		match := startedMatch(t)
		for _, cell := range []int{4, 0, 8, 2, 1, 7, 6, 5} {
			require.NoError(t, match.MakeMove(match.ActiveSeat, cell, deadline))
		}

		// When: the last empty cell is claimed
		err := match.MakeMove(match.ActiveSeat, 3, deadline)

		// Then: the match ends in a draw with no winner
		require.NoError(t, err)
		assert.Equal(t, PhaseDraw, match.Phase)
		assert.Equal(t, SeatNone, match.Winner)
	})

	t.Run("Rejects any move after termination", func(t *testing.T) {
		// Given: a match won by seat0
		match := startedMatch(t)
		require.NoError(t, match.MakeMove(Seat0, 0, deadline))
		require.NoError(t, match.MakeMove(Seat1, 3, deadline))
		require.NoError(t, match.MakeMove(Seat0, 1, deadline))
		require.NoError(t, match.MakeMove(Seat1, 4, deadline))
		require.NoError(t, match.MakeMove(Seat0, 2, deadline))
		before := match.Board

		// When: seat1 tries to keep playing
		err := match.MakeMove(Seat1, 5, deadline)

		// Then: the move is rejected and the board stays frozen
		assert.ErrorIs(t, err, apperror.ErrMatchOver)
		assert.Equal(t, before, match.Board)
	})
}

func TestMatch_Abandon(t *testing.T) {
	t.Run("Forfeit awards the win to the opposing seat", func(t *testing.T) {
		// Given: an in-progress match with seat0 on turn
		match := startedMatch(t)

		// When: seat0 is forfeited with forfeit-as-loss policy
		match.Abandon(Seat0, true)

		// Then: the match is abandoned in favor of seat1
		assert.Equal(t, PhaseAbandoned, match.Phase)
		assert.Equal(t, Seat1, match.Winner)
		assert.Equal(t, SeatNone, match.ActiveSeat)
	})

	t.Run("Without forfeit policy the match ends with no winner", func(t *testing.T) {
		// Given: an in-progress match
		match := startedMatch(t)

		// When: seat0 is abandoned without awarding a win
		match.Abandon(Seat0, false)

		// Then: the match is abandoned with no declared winner
		assert.Equal(t, PhaseAbandoned, match.Phase)
		assert.Equal(t, SeatNone, match.Winner)
	})

	t.Run("Abandoning a terminal match changes nothing", func(t *testing.T) {
		// Given: a match already won by seat0
		match := startedMatch(t)
		deadline := time.Date(2025, 1, 1, 12, 0, 10, 0, time.UTC)
		require.NoError(t, match.MakeMove(Seat0, 0, deadline))
		require.NoError(t, match.MakeMove(Seat1, 3, deadline))
		require.NoError(t, match.MakeMove(Seat0, 1, deadline))
		require.NoError(t, match.MakeMove(Seat1, 4, deadline))
		require.NoError(t, match.MakeMove(Seat0, 2, deadline))

		// When: a late abandon races the finished match
		match.Abandon(Seat1, true)

		// Then: the original result stands
		assert.Equal(t, PhaseWon, match.Phase)
		assert.Equal(t, Seat0, match.Winner)
	})
}

func TestMatch_DeadlineExpired(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 12, 0, 10, 0, time.UTC)

	t.Run("Reports expiry once the deadline passes", func(t *testing.T) {
		// Given: an in-progress match with an armed deadline
		match := startedMatch(t)
		match.Deadline = deadline

		// Then: the deadline is not expired before it, and expired at and after it
		assert.False(t, match.DeadlineExpired(deadline.Add(-time.Second)))
		assert.True(t, match.DeadlineExpired(deadline))
		assert.True(t, match.DeadlineExpired(deadline.Add(time.Second)))
	})

	t.Run("Never reports expiry for a terminal match", func(t *testing.T) {
		// Given: an abandoned match with a stale deadline
		match := startedMatch(t)
		match.Deadline = deadline
		match.Abandon(Seat0, true)

		// Then: the stale deadline no longer counts as expired
		assert.False(t, match.DeadlineExpired(deadline.Add(time.Hour)))
	})
}
