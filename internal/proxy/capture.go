package proxy

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/logging"
	"github.com/muurk/mbproxy/internal/mode"
	"github.com/muurk/mbproxy/internal/protocol"
)

// FrameAnalysis is one intercepted response in the capture log.
type FrameAnalysis struct {
	Timestamp     time.Time `json:"timestamp"`
	Session       string    `json:"session"`
	Action        string    `json:"action"`
	TransactionID uint16    `json:"transaction_id"`
	UnitID        byte      `json:"unit_id"`
	Function      string    `json:"function"`
	Registers     []uint16  `json:"registers"`
	OriginalHex   string    `json:"original_hex"`
	ForwardedHex  string    `json:"forwarded_hex"`
}

// CaptureLog appends decoded responses to a JSON Lines file, one file per
// proxy run. A CaptureLog with no directory does nothing.
type CaptureLog struct {
	mu   sync.Mutex
	path string
}

// NewCaptureLog returns a log writing under dir, or a disabled log when
// dir is empty.
func NewCaptureLog(dir string) *CaptureLog {
	if dir == "" {
		return &CaptureLog{}
	}
	name := fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405"))
	return &CaptureLog{path: filepath.Join(dir, name)}
}

// Path returns the capture file path, empty when disabled.
func (c *CaptureLog) Path() string {
	return c.path
}

// Write appends one record. Failures are logged and otherwise ignored so
// the relay never stalls on the capture log.
func (c *CaptureLog) Write(sessionID string, action mode.Action, resp *protocol.Response, original, forwarded []byte) {
	if c == nil || c.path == "" {
		return
	}

	rec := FrameAnalysis{
		Timestamp:     time.Now(),
		Session:       sessionID,
		Action:        action.String(),
		TransactionID: resp.TransactionID,
		UnitID:        resp.UnitID,
		Function:      protocol.FunctionName(resp.FunctionCode),
		Registers:     resp.Registers,
		OriginalHex:   hex.EncodeToString(original),
		ForwardedHex:  hex.EncodeToString(forwarded),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal frame analysis", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", c.path),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write capture file",
			zap.String("filename", c.path),
			zap.Error(err),
		)
	}
}
