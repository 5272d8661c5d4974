package entity

import "time"

// PlayerSession maps a player to their active match, if any. A session
// references at most one non-terminal match at a time.
type PlayerSession struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id,omitempty"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

func (that *PlayerSession) InMatch() bool {
	return that.MatchID != ""
}
