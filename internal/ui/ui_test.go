package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestHeader_ParamsKeepOrder(t *testing.T) {
	h := NewHeader("Recording", "mbproxy inspect rec.json", []Field{
		{Key: "Samples", Value: "3"},
		{Key: "Duration", Value: "3s"},
		{Key: "Description", Value: "baseline"},
	}).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "RECORDING") {
		t.Errorf("Render() should upper-case the title:\n%s", out)
	}

	samples := strings.Index(out, "Samples:")
	duration := strings.Index(out, "Duration:")
	desc := strings.Index(out, "Description:")
	if samples < 0 || duration < 0 || desc < 0 {
		t.Fatalf("Render() missing params:\n%s", out)
	}
	if !(samples < duration && duration < desc) {
		t.Errorf("params rendered out of order:\n%s", out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Recording saved", []Field{{Key: "Path", Value: "rec.json"}}),
			want:   []string{"SUCCESS", "Recording saved", "rec.json"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Load failed", errors.New("file not found"), []string{"Record first"}),
			want:   []string{"FAILED", "Load failed", "file not found", "Troubleshooting:", "Record first"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Empty recording", nil).AddDetail("Samples", "0"),
			want:   []string{"WARNING", "Empty recording", "Samples"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           []string
	}{
		{"half", 5, 10, []string{"50%", "[5/10]"}},
		{"empty total", 0, 0, []string{"0%", "[0/0]"}},
		{"clamped", 12, 10, []string{"100%", "[12/10]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderProgress(tt.current, tt.total, 20)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("RenderProgress() = %q, missing %q", out, w)
				}
			}
		})
	}
}

func TestModeColor(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"PASSTHROUGH", string(PassthroughColor)},
		{"record", string(RecordColor)},
		{"REPLAY", string(ReplayColor)},
		{"unknown", string(PassthroughColor)},
	}

	for _, tt := range tests {
		if got := string(ModeColor(tt.mode)); got != tt.want {
			t.Errorf("ModeColor(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}

	if !strings.Contains(RenderModeBadge("replay"), "REPLAY") {
		t.Error("RenderModeBadge() should upper-case the mode")
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.OK("Recording started")
	p.Fail("no recording")
	p.Note("type help for commands")

	out := buf.String()
	for _, w := range []string{SuccessMarker, "Recording started", FailureMarker, "no recording", "type help for commands"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("output has %d lines, want 3", got)
	}
}
