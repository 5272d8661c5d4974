package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/matchengine-backend/internal/apperror"
)

const (
	PhaseWaiting    = "waiting"
	PhaseInProgress = "in_progress"
	PhaseWon        = "won"
	PhaseDraw       = "draw"
	PhaseAbandoned  = "abandoned"
)

const BoardSize = 9

var (
	ErrInvalidCell = errors.New("invalid cell index")

	winLines = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Cell holds the seat that marked it, SeatNone for an empty cell.
type Cell = Seat

// Match is the authoritative state of a single two-player match. It carries
// no synchronization of its own: the engine.Runner owning it serializes all
// mutation.
type Match struct {
	ID         string          `json:"id"`
	Board      [BoardSize]Cell `json:"board"`
	Seats      [2]string       `json:"seats"`
	ActiveSeat Seat            `json:"active_seat"`
	Phase      string          `json:"phase"`
	Deadline   time.Time       `json:"deadline"`
	Winner     Seat            `json:"winner"`
}

func NewMatch(id string) *Match {
	match := &Match{
		ID:         id,
		ActiveSeat: Seat0,
		Phase:      PhaseWaiting,
		Winner:     SeatNone,
	}

	for i := range match.Board {
		match.Board[i] = SeatNone
	}

	return match
}

// AddPlayer seats a joining player, first joiner to Seat0. The match moves
// to in-progress as soon as both seats are filled.
func (that *Match) AddPlayer(playerID string) (Seat, error) {
	switch {
	case that.Seats[Seat0] == "":
		that.Seats[Seat0] = playerID
		return Seat0, nil
	case that.Seats[Seat1] == "":
		that.Seats[Seat1] = playerID
		that.Phase = PhaseInProgress
		return Seat1, nil
	default:
		return SeatNone, fmt.Errorf("%w: match id %s", apperror.ErrMatchFull, that.ID)
	}
}

// SeatOf reports the seat a player occupies, SeatNone if they are not seated.
func (that *Match) SeatOf(playerID string) Seat {
	for seat, id := range that.Seats {
		if id != "" && id == playerID {
			return Seat(seat)
		}
	}

	return SeatNone
}

// MakeMove applies a move from the given seat into the given cell and, when
// the move is accepted, advances the turn and arms the next deadline.
func (that *Match) MakeMove(seat Seat, cell int, nextDeadline time.Time) error {
	if that.IsTerminal() {
		return apperror.ErrMatchOver
	}

	if that.Phase == PhaseWaiting {
		return apperror.ErrMatchNotStarted
	}

	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if seat != that.ActiveSeat {
		return apperror.ErrNotYourTurn
	}

	if that.Board[cell] != SeatNone {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = seat

	if winner := that.findWinner(); winner.IsPlayer() {
		that.Winner = winner
		that.Phase = PhaseWon
		that.ActiveSeat = SeatNone
		return nil
	}

	if that.boardFull() {
		that.Phase = PhaseDraw
		that.ActiveSeat = SeatNone
		return nil
	}

	that.ActiveSeat = seat.Other()
	that.Deadline = nextDeadline

	return nil
}

// Abandon terminates the match because the given seat timed out or stayed
// disconnected past the grace window. With forfeitWins the opposing seat is
// declared the winner, otherwise the match ends without one.
func (that *Match) Abandon(seat Seat, forfeitWins bool) {
	if that.IsTerminal() {
		return
	}

	that.Phase = PhaseAbandoned
	that.ActiveSeat = SeatNone

	if forfeitWins && seat.IsPlayer() {
		that.Winner = seat.Other()
	}
}

func (that *Match) IsTerminal() bool {
	switch that.Phase {
	case PhaseWon, PhaseDraw, PhaseAbandoned:
		return true
	default:
		return false
	}
}

func (that *Match) IsInProgress() bool {
	return that.Phase == PhaseInProgress
}

// DeadlineExpired reports whether the active seat has run out of time.
func (that *Match) DeadlineExpired(now time.Time) bool {
	return that.IsInProgress() && !that.Deadline.IsZero() && !now.Before(that.Deadline)
}

func (that *Match) findWinner() Seat {
	for _, line := range winLines {
		a, b, c := that.Board[line[0]], that.Board[line[1]], that.Board[line[2]]
		if a.IsPlayer() && a == b && b == c {
			return a
		}
	}

	return SeatNone
}

func (that *Match) boardFull() bool {
	for _, cell := range that.Board {
		if cell == SeatNone {
			return false
		}
	}

	return true
}
