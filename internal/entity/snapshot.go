package entity

import "time"

// Snapshot is a recipient-specific, point-in-time projection of a match.
// The You field always carries a definite value - seat0, seat1, or the
// explicit none sentinel for a spectator - and is never omitted, so a
// consumer can never confuse "no value" with "seat 0".
type Snapshot struct {
	MatchID     string          `json:"match_id"`
	Board       [BoardSize]Cell `json:"board"`
	ActiveSeat  Seat            `json:"active_seat"`
	You         Seat            `json:"you"`
	YourTurn    bool            `json:"your_turn"`
	Phase       string          `json:"phase"`
	Winner      Seat            `json:"winner"`
	RemainingMS int64           `json:"remaining_ms"`
}

// BuildSnapshot projects the match for a single recipient. It never mutates
// the match; a fresh value is built per broadcast.
func BuildSnapshot(match *Match, recipient Seat, now time.Time) Snapshot {
	snapshot := Snapshot{
		MatchID:    match.ID,
		Board:      match.Board,
		ActiveSeat: match.ActiveSeat,
		You:        recipient,
		YourTurn:   match.IsInProgress() && recipient.IsPlayer() && recipient == match.ActiveSeat,
		Phase:      match.Phase,
		Winner:     match.Winner,
	}

	if match.IsInProgress() && !match.Deadline.IsZero() {
		if remaining := match.Deadline.Sub(now); remaining > 0 {
			snapshot.RemainingMS = remaining.Milliseconds()
		}
	}

	return snapshot
}
