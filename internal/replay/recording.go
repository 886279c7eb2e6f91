package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DefaultDescription is stored in the metadata of recordings made without
// an explicit description.
const DefaultDescription = "Asherah reactor normal operation baseline"

// AssumedSampleInterval is the polling period used to estimate a
// recording's duration. Clients poll at roughly 1 Hz; the figure is an
// estimate and not measured.
const AssumedSampleInterval = time.Second

// Sample is one captured register read, values in ascending address order.
type Sample struct {
	CapturedAt time.Time
	Registers  []uint16
}

// Metadata describes a recording.
type Metadata struct {
	RecordedAt      time.Time
	DurationSeconds float64 // SampleCount × AssumedSampleInterval, approximate
	SampleCount     int
	Description     string
}

// Recording is an ordered sequence of samples plus metadata. A Recording
// returned by Finalize or Load is never modified afterwards.
type Recording struct {
	Metadata Metadata
	Samples  []Sample
}

// NewRecording builds a recording over samples with consistent metadata.
func NewRecording(samples []Sample, description string, recordedAt time.Time) *Recording {
	if description == "" {
		description = DefaultDescription
	}
	return &Recording{
		Metadata: Metadata{
			RecordedAt:      recordedAt,
			DurationSeconds: EstimateDuration(len(samples)).Seconds(),
			SampleCount:     len(samples),
			Description:     description,
		},
		Samples: samples,
	}
}

// EstimateDuration approximates how long n samples took to capture.
func EstimateDuration(n int) time.Duration {
	return time.Duration(n) * AssumedSampleInterval
}

// Len returns the number of samples.
func (r *Recording) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Samples)
}

// String returns a short summary of the recording
func (r *Recording) String() string {
	return fmt.Sprintf("Recording{samples=%d, recorded_at=%s, description=%q}",
		r.Len(), r.Metadata.RecordedAt.Format(time.RFC3339), r.Metadata.Description)
}

// On-disk representation. Field names are fixed by the recorded_values.json
// file format.
type fileRecording struct {
	Metadata fileMetadata `json:"metadata"`
	Samples  []fileSample `json:"samples"`
}

type fileMetadata struct {
	RecordedAt      string  `json:"recorded_at"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleCount     int     `json:"sample_count"`
	Description     string  `json:"description"`
}

type fileSample struct {
	Timestamp float64  `json:"timestamp"` // unix seconds
	DateTime  string   `json:"datetime"`  // ISO 8601
	Registers []uint16 `json:"registers"`
}

// MarshalJSON implements json.Marshaler.
func (r *Recording) MarshalJSON() ([]byte, error) {
	out := fileRecording{
		Metadata: fileMetadata{
			RecordedAt:      r.Metadata.RecordedAt.Format(time.RFC3339Nano),
			DurationSeconds: r.Metadata.DurationSeconds,
			SampleCount:     r.Metadata.SampleCount,
			Description:     r.Metadata.Description,
		},
		Samples: make([]fileSample, len(r.Samples)),
	}
	for i, s := range r.Samples {
		regs := s.Registers
		if regs == nil {
			regs = []uint16{}
		}
		out.Samples[i] = fileSample{
			Timestamp: float64(s.CapturedAt.UnixNano()) / 1e9,
			DateTime:  s.CapturedAt.Format(time.RFC3339Nano),
			Registers: regs,
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. The sample count is taken
// from the samples themselves.
func (r *Recording) UnmarshalJSON(data []byte) error {
	var in fileRecording
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	recordedAt, err := parseTimestamp(in.Metadata.RecordedAt)
	if err != nil {
		return fmt.Errorf("metadata.recorded_at: %w", err)
	}

	samples := make([]Sample, len(in.Samples))
	for i, s := range in.Samples {
		at, err := sampleTime(s)
		if err != nil {
			return fmt.Errorf("samples[%d]: %w", i, err)
		}
		samples[i] = Sample{CapturedAt: at, Registers: s.Registers}
	}

	*r = Recording{
		Metadata: Metadata{
			RecordedAt:      recordedAt,
			DurationSeconds: in.Metadata.DurationSeconds,
			SampleCount:     len(samples),
			Description:     in.Metadata.Description,
		},
		Samples: samples,
	}
	return nil
}

func sampleTime(s fileSample) (time.Time, error) {
	if s.Timestamp > 0 {
		sec, frac := math.Modf(s.Timestamp)
		return time.Unix(int64(sec), int64(frac*1e9)), nil
	}
	return parseTimestamp(s.DateTime)
}

// Timestamps without a zone offset are accepted too.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
