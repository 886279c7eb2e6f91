package replay

import (
	"time"
)

// Recorder accumulates samples while recording is active. It keeps every
// sample in arrival order with no bound on count.
//
// Recorder is not safe for concurrent use; the mode controller serialises
// access to it.
type Recorder struct {
	samples     []Sample
	description string
	now         func() time.Time
}

// NewRecorder returns an empty recorder. An empty description selects
// DefaultDescription.
func NewRecorder(description string) *Recorder {
	return &Recorder{
		description: description,
		now:         time.Now,
	}
}

// Append adds a sample. The register slice is copied.
func (r *Recorder) Append(s Sample) {
	if s.CapturedAt.IsZero() {
		s.CapturedAt = r.now()
	}
	s.Registers = append([]uint16(nil), s.Registers...)
	r.samples = append(r.samples, s)
}

// Len returns the number of samples recorded so far.
func (r *Recorder) Len() int {
	return len(r.samples)
}

// Finalize snapshots the samples recorded so far into a Recording. The
// recorder may keep appending afterwards without affecting the snapshot.
func (r *Recorder) Finalize() *Recording {
	samples := make([]Sample, len(r.samples))
	copy(samples, r.samples)
	return NewRecording(samples, r.description, r.now())
}
