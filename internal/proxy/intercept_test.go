package proxy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/mbproxy/internal/mode"
	"github.com/muurk/mbproxy/internal/protocol"
	"github.com/muurk/mbproxy/internal/replay"
)

// readResponse is a 0x03 response carrying registers [1, 2].
var readResponse = []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x07, 0x01, 0x03, 0x04, 0x00, 0x01, 0x00, 0x02}

func replayController(t *testing.T, loop bool, samples ...[]uint16) *mode.Controller {
	t.Helper()

	recs := make([]replay.Sample, len(samples))
	for i, s := range samples {
		recs[i] = replay.Sample{CapturedAt: time.Unix(int64(i), 0), Registers: s}
	}
	path := filepath.Join(t.TempDir(), "rec.json")
	if err := replay.Save(replay.NewRecording(recs, "test", time.Now()), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ctrl := mode.NewController(mode.Options{RecordFile: path, Loop: loop})
	if _, err := ctrl.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := ctrl.SetMode(mode.Replay); err != nil {
		t.Fatalf("SetMode(Replay) error = %v", err)
	}
	return ctrl
}

func TestInterceptor_Passthrough(t *testing.T) {
	ctrl := mode.NewController(mode.Options{})
	i := NewInterceptor(ctrl, nil, "")

	out := i.Process("s1", readResponse)
	if !bytes.Equal(out, readResponse) {
		t.Errorf("Process() = % x, want unchanged % x", out, readResponse)
	}
}

func TestInterceptor_NotApplicableUnderReplay(t *testing.T) {
	ctrl := replayController(t, true, []uint16{9, 9})
	m := NewMetrics()
	i := NewInterceptor(ctrl, m, "")

	tests := []struct {
		name string
		data []byte
	}{
		{"write single register echo", []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x06, 0x01, 0x06, 0x00, 0x10, 0x00, 0x2A}},
		{"exception response", []byte{0x00, 0x03, 0x00, 0x00, 0x00, 0x03, 0x01, 0x83, 0x02}},
		{"short chunk", []byte{0x00, 0x04, 0x00}},
		{"empty", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := i.Process("s1", tt.data)
			if !bytes.Equal(out, tt.data) {
				t.Errorf("Process() = % x, want unchanged % x", out, tt.data)
			}
		})
	}

	if got := ctrl.Status().ReplayIndex; got != 0 {
		t.Errorf("replay cursor advanced to %d on non-applicable frames", got)
	}
	if snap := m.Snapshot(); snap.Decoded != 0 || snap.Responses != int64(len(tests)) {
		t.Errorf("metrics = %+v, want 0 decoded and %d responses", snap, len(tests))
	}
}

func TestInterceptor_Record(t *testing.T) {
	ctrl := mode.NewController(mode.Options{})
	if err := ctrl.SetMode(mode.Record); err != nil {
		t.Fatalf("SetMode(Record) error = %v", err)
	}
	m := NewMetrics()
	i := NewInterceptor(ctrl, m, "")

	for n := 0; n < 3; n++ {
		out := i.Process("s1", readResponse)
		if !bytes.Equal(out, readResponse) {
			t.Fatalf("Process() modified bytes while recording: % x", out)
		}
	}

	if got := ctrl.Status().RecordedSamples; got != 3 {
		t.Errorf("RecordedSamples = %d, want 3", got)
	}
	if got := m.Snapshot().Recorded; got != 3 {
		t.Errorf("metrics Recorded = %d, want 3", got)
	}
}

func TestInterceptor_ReplaySubstitutes(t *testing.T) {
	ctrl := replayController(t, true, []uint16{7, 8})
	m := NewMetrics()
	i := NewInterceptor(ctrl, m, "")

	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x07, 0x01, 0x03, 0x04, 0x00, 0x07, 0x00, 0x08}
	out := i.Process("s1", readResponse)
	if !bytes.Equal(out, want) {
		t.Errorf("Process() = % x, want % x", out, want)
	}
	if got := m.Snapshot().Replaced; got != 1 {
		t.Errorf("metrics Replaced = %d, want 1", got)
	}
}

func TestInterceptor_ReplayResizesToLiveCount(t *testing.T) {
	tests := []struct {
		name   string
		sample []uint16
		want   []uint16
	}{
		{"longer sample truncated", []uint16{7, 8, 9}, []uint16{7, 8}},
		{"shorter sample padded with live", []uint16{7}, []uint16{7, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := replayController(t, true, tt.sample)
			i := NewInterceptor(ctrl, nil, "")

			out := i.Process("s1", readResponse)
			if len(out) != len(readResponse) {
				t.Fatalf("len(Process()) = %d, want %d", len(out), len(readResponse))
			}
			resp, ok := protocol.DecodeResponse(out)
			if !ok {
				t.Fatalf("output does not decode: % x", out)
			}
			if len(resp.Registers) != len(tt.want) {
				t.Fatalf("registers = %v, want %v", resp.Registers, tt.want)
			}
			for k := range tt.want {
				if resp.Registers[k] != tt.want[k] {
					t.Errorf("registers = %v, want %v", resp.Registers, tt.want)
					break
				}
			}
		})
	}
}

func TestInterceptor_ReplayKeepsTrailer(t *testing.T) {
	ctrl := replayController(t, true, []uint16{7, 8})
	i := NewInterceptor(ctrl, nil, "")

	trailer := []byte{0x00, 0x09, 0x00, 0x00}
	in := append(append([]byte(nil), readResponse...), trailer...)

	out := i.Process("s1", in)
	if !bytes.HasSuffix(out, trailer) {
		t.Errorf("Process() = % x, want trailer % x preserved", out, trailer)
	}
	if len(out) != len(in) {
		t.Errorf("len(Process()) = %d, want %d", len(out), len(in))
	}
}

func TestInterceptor_CaptureLog(t *testing.T) {
	dir := t.TempDir()
	ctrl := replayController(t, true, []uint16{7, 8})
	i := NewInterceptor(ctrl, nil, dir)

	i.Process("abc", readResponse)
	i.Process("abc", []byte{0x00, 0x01}) // not logged

	f, err := os.Open(i.capture.Path())
	if err != nil {
		t.Fatalf("open capture log: %v", err)
	}
	defer func() { _ = f.Close() }()

	var records []FrameAnalysis
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec FrameAnalysis
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}

	if len(records) != 1 {
		t.Fatalf("capture log has %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Session != "abc" || rec.Action != "replaced" || rec.Function != protocol.FunctionName(0x03) {
		t.Errorf("record = %+v", rec)
	}
	if rec.ForwardedHex != "00010000000701030400070008" {
		t.Errorf("ForwardedHex = %s", rec.ForwardedHex)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.SessionOpened()
	m.SessionClosed()
	m.UpstreamFailed()
	m.ResponseSeen()
	m.FrameDecoded()
	m.FrameRecorded()
	m.FrameReplaced()
	if snap := m.Snapshot(); snap != (MetricsSnapshot{}) {
		t.Errorf("nil Snapshot() = %+v, want zero", snap)
	}
}
