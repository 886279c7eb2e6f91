package mode

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the process-wide interception mode.
type Mode int

const (
	// Passthrough relays responses unmodified
	Passthrough Mode = iota
	// Record relays responses unmodified and captures their registers
	Record
	// Replay substitutes recorded registers for live ones
	Replay
)

var (
	// ErrNoRecording is returned when REPLAY is requested with no
	// non-empty recording available, or Save is called with nothing to save.
	ErrNoRecording = errors.New("no recorded data available")
	// ErrInvalidMode is returned for an unknown mode name or value
	ErrInvalidMode = errors.New("invalid mode")
)

// String returns the canonical upper-case mode name
func (m Mode) String() string {
	switch m {
	case Passthrough:
		return "PASSTHROUGH"
	case Record:
		return "RECORD"
	case Replay:
		return "REPLAY"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the three defined modes.
func (m Mode) Valid() bool {
	return m >= Passthrough && m <= Replay
}

// Parse converts a case-insensitive mode name.
func Parse(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASSTHROUGH":
		return Passthrough, nil
	case "RECORD":
		return Record, nil
	case "REPLAY":
		return Replay, nil
	default:
		return Passthrough, fmt.Errorf("%w %q (choose passthrough, record or replay)", ErrInvalidMode, s)
	}
}
