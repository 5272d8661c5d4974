package entity

import (
	"errors"
	"fmt"
)

var ErrUnknownSeat = errors.New("unknown seat value")

// Seat is a fixed role inside a match. It always serializes to one of
// "seat0", "seat1" or "none" - an occupied seat must never be encoded as an
// absent field, so Seat deliberately has no omitempty-friendly zero value.
type Seat int8

const (
	SeatNone Seat = iota - 1
	Seat0
	Seat1
)

func (that Seat) String() string {
	switch that {
	case Seat0:
		return "seat0"
	case Seat1:
		return "seat1"
	default:
		return "none"
	}
}

// Other returns the opposing seat. SeatNone has no opponent.
func (that Seat) Other() Seat {
	switch that {
	case Seat0:
		return Seat1
	case Seat1:
		return Seat0
	default:
		return SeatNone
	}
}

func (that Seat) IsPlayer() bool {
	return that == Seat0 || that == Seat1
}

func (that Seat) MarshalJSON() ([]byte, error) {
	return []byte(`"` + that.String() + `"`), nil
}

func (that *Seat) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"seat0"`:
		*that = Seat0
	case `"seat1"`:
		*that = Seat1
	case `"none"`:
		*that = SeatNone
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSeat, data)
	}

	return nil
}
