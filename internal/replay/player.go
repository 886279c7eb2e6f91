package replay

import (
	"github.com/muurk/mbproxy/internal/logging"
	"go.uber.org/zap"
)

// Player walks a recording with a cursor. In loop mode it wraps to the
// first sample after the last; in one-shot mode it becomes exhausted.
//
// Player is not safe for concurrent use; the mode controller serialises
// access to it.
type Player struct {
	rec       *Recording
	index     int
	loop      bool
	exhausted bool
	loops     int

	// OnExhausted is called once, from within Next, when a one-shot
	// player hands out its final sample.
	OnExhausted func()
}

// NewPlayer returns a player positioned at the first sample of rec.
func NewPlayer(rec *Recording, loop bool) *Player {
	return &Player{rec: rec, loop: loop}
}

// Next returns the registers at the cursor and advances it. It reports
// false when no recording is loaded, the recording is empty, or a one-shot
// player is exhausted. Stored samples are never modified.
func (p *Player) Next() ([]uint16, bool) {
	if p == nil || p.exhausted || p.rec.Len() == 0 {
		return nil, false
	}

	sample := p.rec.Samples[p.index]
	p.index++

	if p.index >= len(p.rec.Samples) {
		if p.loop {
			p.index = 0
			p.loops++
			logging.Info("Replay loop restarted",
				zap.Int("samples", len(p.rec.Samples)),
				zap.Int("loops", p.loops),
			)
		} else {
			p.exhausted = true
			logging.Info("Replay finished (no loop)",
				zap.Int("samples", len(p.rec.Samples)),
			)
			if p.OnExhausted != nil {
				p.OnExhausted()
			}
		}
	}

	return append([]uint16(nil), sample.Registers...), true
}

// Index returns the cursor position.
func (p *Player) Index() int {
	return p.index
}

// Len returns the number of samples being played.
func (p *Player) Len() int {
	return p.rec.Len()
}

// Loop reports whether the player wraps around.
func (p *Player) Loop() bool {
	return p.loop
}

// Exhausted reports whether a one-shot player has handed out every sample.
func (p *Player) Exhausted() bool {
	return p.exhausted
}

// Progress returns the fraction of the recording played in the current
// pass, between 0 and 1.
func (p *Player) Progress() float64 {
	if p.rec.Len() == 0 {
		return 0
	}
	if p.exhausted {
		return 1
	}
	return float64(p.index) / float64(p.rec.Len())
}
