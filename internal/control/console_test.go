package control

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/muurk/mbproxy/internal/mode"
)

func TestConsole_Run(t *testing.T) {
	d, ctrl, _ := newDispatcher(t)

	in := strings.NewReader("status\nreplay\nrecord\nbogus\n\nquit\nrecord\n")
	var out bytes.Buffer

	err := NewConsole(d, in, &out).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil after quit", err)
	}

	got := out.String()
	for _, want := range []string{
		"Modbus MITM - Interactive Control",
		"load [file]",
		"Samples recorded",
		"no recorded data",
		"Recording started",
		"unknown command",
		"Exiting...",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if strings.Contains(got, Prompt) {
		t.Error("prompt should not be printed when input is not a terminal")
	}

	// Commands after quit are not executed.
	if ctrl.Mode() != mode.Record {
		t.Errorf("Mode() = %v, want RECORD", ctrl.Mode())
	}
	if n := strings.Count(got, "Recording started"); n != 1 {
		t.Errorf("record executed %d times, want 1", n)
	}
}

func TestConsole_EndOfInput(t *testing.T) {
	d, _, _ := newDispatcher(t)
	var out bytes.Buffer

	err := NewConsole(d, strings.NewReader("status\n"), &out).Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Errorf("Run() error = %v, want io.EOF", err)
	}
}

func TestConsole_Cancelled(t *testing.T) {
	d, _, _ := newDispatcher(t)

	// A pipe with no writer activity blocks the reader.
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if err := NewConsole(d, pr, &out).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRenderStatus(t *testing.T) {
	st := Status{
		Mode:          "REPLAY",
		RecordFile:    "rec.json",
		Loop:          true,
		LoadedSamples: 10,
		ReplayIndex:   5,
		ReplayLength:  10,
	}

	out := RenderStatus(st, 80)
	for _, want := range []string{"STATUS", "REPLAY", "rec.json", "5/10", "50%"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderStatus() missing %q:\n%s", want, out)
		}
	}

	st.ReplayLength = 0
	if out := RenderStatus(st, 80); strings.Contains(out, "Replay progress") {
		t.Errorf("RenderStatus() should omit progress outside replay:\n%s", out)
	}
}
