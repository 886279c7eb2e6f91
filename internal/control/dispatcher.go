package control

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/logging"
	"github.com/muurk/mbproxy/internal/mode"
	"github.com/muurk/mbproxy/internal/proxy"
)

// ErrUnknownCommand is returned for a command the dispatcher does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Command describes one console command.
type Command struct {
	Name  string
	Usage string
	Help  string
}

// Commands lists the control commands in help order.
var Commands = []Command{
	{Name: "record", Usage: "record", Help: "Start recording normal operation"},
	{Name: "stop", Usage: "stop", Help: "Stop recording or replay and save"},
	{Name: "save", Usage: "save", Help: "Save recording to file"},
	{Name: "load", Usage: "load [file]", Help: "Load recording from file"},
	{Name: "replay", Usage: "replay", Help: "Start replay"},
	{Name: "replay-once", Usage: "replay-once", Help: "Replay the recording once, then pass through"},
	{Name: "passthrough", Usage: "passthrough", Help: "Return to passthrough mode"},
	{Name: "status", Usage: "status", Help: "Show current status"},
	{Name: "help", Usage: "help", Help: "Show this list"},
	{Name: "quit", Usage: "quit", Help: "Exit"},
}

// Status is the JSON view of the proxy state returned by the status command.
type Status struct {
	Mode            string                `json:"mode"`
	RecordFile      string                `json:"record_file"`
	Loop            bool                  `json:"loop"`
	RecordedSamples int                   `json:"recorded_samples"`
	LoadedSamples   int                   `json:"loaded_samples"`
	ReplayIndex     int                   `json:"replay_index"`
	ReplayLength    int                   `json:"replay_length"`
	Relay           proxy.MetricsSnapshot `json:"relay"`
}

// Result is the outcome of one command.
type Result struct {
	Command string
	Message string
	Status  *Status // set by status and by every mode change
	Help    bool    // the caller should print the command list
	Quit    bool    // the caller should stop the proxy
}

// Dispatcher maps control commands onto the mode controller. It holds no
// state of its own and is safe for concurrent use.
type Dispatcher struct {
	controller *mode.Controller
	metrics    *proxy.Metrics
}

// NewDispatcher returns a dispatcher for controller. metrics may be nil.
func NewDispatcher(controller *mode.Controller, metrics *proxy.Metrics) *Dispatcher {
	return &Dispatcher{controller: controller, metrics: metrics}
}

// Execute parses and runs one command line. The command word is case
// insensitive; arguments are kept as typed. An empty line is a no-op.
func (d *Dispatcher) Execute(line string) (Result, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{}, nil
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	logging.Debug("Control command", zap.String("command", name), zap.Strings("args", args))

	res := Result{Command: name}
	var err error

	switch name {
	case "record":
		err = d.controller.SetMode(mode.Record)
		res.Message = "Recording started"

	case "stop":
		res.Message, err = d.stop()

	case "save":
		if err = d.controller.Save(); err == nil {
			st := d.controller.Status()
			res.Message = fmt.Sprintf("Recording saved to %s", st.RecordFile)
		}

	case "load":
		var path string
		if len(args) > 0 {
			path = args[0]
		}
		rec, lerr := d.controller.Load(path)
		if err = lerr; err == nil {
			res.Message = fmt.Sprintf("Loaded %d samples from %s", rec.Len(), d.controller.Status().RecordFile)
		}

	case "replay":
		err = d.controller.SetMode(mode.Replay)
		res.Message = "Replay started"

	case "replay-once":
		err = d.controller.StartReplay(false)
		res.Message = "One-shot replay started"

	case "passthrough":
		err = d.controller.SetMode(mode.Passthrough)
		res.Message = "Passthrough mode"

	case "status":
		res.Message = "Status"

	case "help", "?":
		res.Help = true
		res.Message = "Commands"

	case "quit", "exit":
		res.Quit = true
		res.Message = "Exiting..."

	default:
		return res, fmt.Errorf("%w: %q (type help for commands)", ErrUnknownCommand, fields[0])
	}

	if err != nil {
		res.Message = ""
	}
	if name != "help" && name != "?" && name != "quit" && name != "exit" {
		st := d.Status()
		res.Status = &st
	}
	return res, err
}

// stop leaves Record or Replay. The message reports what was stopped.
func (d *Dispatcher) stop() (string, error) {
	before := d.controller.Status()
	if err := d.controller.Stop(); err != nil {
		return "", err
	}

	switch before.Mode {
	case mode.Record:
		after := d.controller.Status()
		if after.RecordFile == "" {
			return fmt.Sprintf("Recording stopped: %d samples kept in memory", after.LoadedSamples), nil
		}
		return fmt.Sprintf("Recording stopped: %d samples saved to %s", after.LoadedSamples, after.RecordFile), nil
	case mode.Replay:
		return fmt.Sprintf("Replay stopped at %d/%d", before.ReplayIndex, before.ReplayLength), nil
	default:
		return "Already in passthrough", nil
	}
}

// Status returns the combined controller and relay state.
func (d *Dispatcher) Status() Status {
	st := d.controller.Status()
	return Status{
		Mode:            st.Mode.String(),
		RecordFile:      st.RecordFile,
		Loop:            st.Loop,
		RecordedSamples: st.RecordedSamples,
		LoadedSamples:   st.LoadedSamples,
		ReplayIndex:     st.ReplayIndex,
		ReplayLength:    st.ReplayLength,
		Relay:           d.metrics.Snapshot(),
	}
}
