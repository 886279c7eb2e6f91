package proxy

import (
	"sync/atomic"
	"time"
)

// Metrics tracks relay counters. All methods are safe for concurrent use
// and a nil *Metrics is a valid no-op receiver.
type Metrics struct {
	sessionsActive   atomic.Int64
	sessionsTotal    atomic.Int64
	upstreamFailures atomic.Int64
	responses        atomic.Int64
	decoded          atomic.Int64
	recorded         atomic.Int64
	replaced         atomic.Int64
	startTime        time.Time
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	SessionsActive   int64         `json:"sessions_active"`
	SessionsTotal    int64         `json:"sessions_total"`
	UpstreamFailures int64         `json:"upstream_failures"`
	Responses        int64         `json:"responses"`
	Decoded          int64         `json:"decoded"`
	Recorded         int64         `json:"recorded"`
	Replaced         int64         `json:"replaced"`
	Uptime           time.Duration `json:"uptime"`
}

// NewMetrics creates counters with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// SessionOpened increments both the active and total counters.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Add(1)
	m.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Add(-1)
}

// UpstreamFailed counts a session that could not reach the target.
func (m *Metrics) UpstreamFailed() {
	if m == nil {
		return
	}
	m.upstreamFailures.Add(1)
}

// ResponseSeen counts an upstream chunk passed to the interceptor.
func (m *Metrics) ResponseSeen() {
	if m == nil {
		return
	}
	m.responses.Add(1)
}

// FrameDecoded counts a chunk decoded as a register read response.
func (m *Metrics) FrameDecoded() {
	if m == nil {
		return
	}
	m.decoded.Add(1)
}

// FrameRecorded counts a response captured while recording.
func (m *Metrics) FrameRecorded() {
	if m == nil {
		return
	}
	m.recorded.Add(1)
}

// FrameReplaced counts a response rewritten with recorded registers.
func (m *Metrics) FrameReplaced() {
	if m == nil {
		return
	}
	m.replaced.Add(1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		SessionsActive:   m.sessionsActive.Load(),
		SessionsTotal:    m.sessionsTotal.Load(),
		UpstreamFailures: m.upstreamFailures.Load(),
		Responses:        m.responses.Load(),
		Decoded:          m.decoded.Load(),
		Recorded:         m.recorded.Load(),
		Replaced:         m.replaced.Load(),
		Uptime:           time.Since(m.startTime),
	}
}
