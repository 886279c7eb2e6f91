package proxy

import (
	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/logging"
	"github.com/muurk/mbproxy/internal/mode"
	"github.com/muurk/mbproxy/internal/protocol"
)

// Interceptor is the response hook: it decodes a server response, asks
// the mode controller what to do with it and returns the bytes to send to
// the client.
type Interceptor struct {
	controller *mode.Controller
	metrics    *Metrics
	capture    *CaptureLog
}

// NewInterceptor returns a hook bound to controller. metrics may be nil.
// An empty analysisDir disables the frame capture log.
func NewInterceptor(controller *mode.Controller, metrics *Metrics, analysisDir string) *Interceptor {
	return &Interceptor{
		controller: controller,
		metrics:    metrics,
		capture:    NewCaptureLog(analysisDir),
	}
}

// Process returns the bytes to forward for one upstream chunk. Chunks that
// are not register read responses come back unchanged, as do responses in
// Passthrough and Record. In Replay the registers are replaced by the next
// recorded sample, sized to the live register count.
func (i *Interceptor) Process(sessionID string, data []byte) []byte {
	i.metrics.ResponseSeen()
	logging.LogRawBytes("Response", data)

	resp, ok := protocol.DecodeResponse(data)
	if !ok {
		return data
	}
	i.metrics.FrameDecoded()

	substitute, action := i.controller.Observe(resp.Registers)

	out := data
	switch action {
	case mode.Recorded:
		i.metrics.FrameRecorded()
	case mode.Replaced:
		regs := protocol.Fit(substitute, resp.Registers, len(resp.Registers))
		if len(substitute) != len(resp.Registers) {
			logging.Debug("Replayed sample resized to live register count",
				zap.String("session", sessionID),
				zap.Int("recorded", len(substitute)),
				zap.Int("live", len(resp.Registers)),
			)
		}
		out = append(protocol.Encode(resp.Header, regs), resp.Trailer...)
		i.metrics.FrameReplaced()
	}

	logging.Debug("Response intercepted",
		zap.String("session", sessionID),
		zap.String("frame", resp.String()),
		zap.String("action", action.String()),
	)
	i.capture.Write(sessionID, action, resp, data, out)

	return out
}
