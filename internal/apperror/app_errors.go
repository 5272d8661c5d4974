package apperror

import "errors"

var (
	ErrMatchOver       = errors.New("match is already over")
	ErrMatchNotStarted = errors.New("match is not started")
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrMatchFull       = errors.New("match is already full")
	ErrMatchNotFound   = errors.New("match not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrRejoinDenied    = errors.New("rejoin denied")
	ErrAlreadyInMatch  = errors.New("player is already in an active match")
	ErrAlreadyQueued   = errors.New("player is already queued for matchmaking")
)
