package flow

import (
	"fmt"
	"strings"
)

// Overflow selects what an emitter does when a subscriber's queue is full.
type Overflow int

const (
	// Suspend blocks the emitter until the subscriber takes a value,
	// closes, or the emit context ends. Nothing is lost.
	Suspend Overflow = iota
	// DropOldest evicts the subscriber's oldest queued value.
	DropOldest
	// DropLatest discards the value being emitted for that subscriber.
	DropLatest
)

func (o Overflow) String() string {
	switch o {
	case Suspend:
		return "suspend"
	case DropOldest:
		return "drop_oldest"
	case DropLatest:
		return "drop_latest"
	default:
		return fmt.Sprintf("overflow(%d)", int(o))
	}
}

func (o Overflow) valid() bool {
	return o == Suspend || o == DropOldest || o == DropLatest
}

// ParseOverflow accepts the String forms (and "" for Suspend).
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "suspend", "block":
		return Suspend, nil
	case "drop_oldest", "drop-oldest":
		return DropOldest, nil
	case "drop_latest", "drop-latest", "drop_newest", "drop-newest":
		return DropLatest, nil
	default:
		return Suspend, fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, s)
	}
}
