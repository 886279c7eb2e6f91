package mode

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/logging"
	"github.com/muurk/mbproxy/internal/replay"
)

// progressEvery controls how often record and replay progress is logged.
const progressEvery = 10

// Action tells the relay what the controller did with an intercepted
// response.
type Action int

const (
	// Forward means the original bytes go downstream unchanged
	Forward Action = iota
	// Recorded means the registers were captured and the original bytes go downstream
	Recorded
	// Replaced means the returned registers must be substituted
	Replaced
)

// String returns the action name used in logs
func (a Action) String() string {
	switch a {
	case Forward:
		return "forward"
	case Recorded:
		return "recorded"
	case Replaced:
		return "replaced"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Options configures a Controller.
type Options struct {
	RecordFile  string // destination of automatic and explicit saves
	Loop        bool   // default replay loop behaviour
	Description string // metadata description for new recordings
}

// Status is a point-in-time view of the controller.
type Status struct {
	Mode            Mode
	RecordFile      string
	Loop            bool
	RecordedSamples int // samples in the in-progress recording
	LoadedSamples   int // samples available for replay
	ReplayIndex     int
	ReplayLength    int
}

// Controller owns the interception mode together with the recorder and
// player it drives. Every session shares one Controller; a single mutex
// serialises mode changes, appends and cursor advances.
type Controller struct {
	mu          sync.Mutex
	mode        Mode
	recordFile  string
	loop        bool
	description string

	recorder  *replay.Recorder  // non-nil only in Record
	recording *replay.Recording // last finalised or loaded recording
	player    *replay.Player    // non-nil only in Replay
}

// NewController returns a controller in Passthrough.
func NewController(opts Options) *Controller {
	return &Controller{
		mode:        Passthrough,
		recordFile:  opts.RecordFile,
		loop:        opts.Loop,
		description: opts.Description,
	}
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches to m using the configured loop behaviour for Replay.
//
// Leaving Record finalises the recording, keeps it for replay and saves it
// to the record file. Entering Record discards any unsaved samples.
// Entering Replay without a non-empty recording fails with ErrNoRecording
// and leaves the controller in Passthrough.
func (c *Controller) SetMode(m Mode) error {
	c.mu.Lock()
	loop := c.loop
	c.mu.Unlock()
	return c.transition(m, loop)
}

// StartReplay enters Replay with an explicit loop setting.
func (c *Controller) StartReplay(loop bool) error {
	return c.transition(Replay, loop)
}

// Stop returns to Passthrough, saving an active recording.
func (c *Controller) Stop() error {
	return c.transition(Passthrough, false)
}

func (c *Controller) transition(to Mode, loop bool) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(to))
	}

	c.mu.Lock()
	from := c.mode

	var finished *replay.Recording
	switch from {
	case Record:
		finished = c.recorder.Finalize()
		c.recording = finished
		c.recorder = nil
	case Replay:
		logging.Info("Replay stopped",
			zap.Int("index", c.player.Index()),
			zap.Int("samples", c.player.Len()),
		)
		c.player = nil
	}

	var err error
	switch to {
	case Record:
		c.recorder = replay.NewRecorder(c.description)
		c.mode = Record
		logging.Info("Recording started")
	case Replay:
		if c.recording.Len() == 0 {
			c.mode = Passthrough
			err = ErrNoRecording
			logging.Warn("Replay rejected: record first or load a file")
		} else {
			c.startPlayerLocked(loop)
			c.mode = Replay
		}
	default:
		c.mode = Passthrough
	}

	now := c.mode
	path := c.recordFile
	c.mu.Unlock()

	if from != now {
		logging.LogModeChange(from.String(), now.String())
	}

	if finished != nil {
		if serr := c.persist(finished, path); serr != nil {
			err = multierr.Append(err, serr)
		}
	}
	return err
}

// startPlayerLocked must be called with c.mu held.
func (c *Controller) startPlayerLocked(loop bool) {
	c.player = replay.NewPlayer(c.recording, loop)
	c.player.OnExhausted = c.replayExhaustedLocked
	style := "one-shot"
	if loop {
		style = "looping"
	}
	logging.Info("Replay started",
		zap.String("style", style),
		zap.Int("samples", c.recording.Len()),
	)
}

// replayExhaustedLocked runs inside Player.Next, with c.mu held.
func (c *Controller) replayExhaustedLocked() {
	c.player = nil
	c.mode = Passthrough
	logging.LogModeChange(Replay.String(), Passthrough.String())
}

func (c *Controller) persist(rec *replay.Recording, path string) error {
	if path == "" {
		logging.Warn("No record file configured, recording kept in memory only",
			zap.Int("samples", rec.Len()),
		)
		return nil
	}
	if err := replay.Save(rec, path); err != nil {
		logging.Error("Failed to save recording", zap.String("path", path), zap.Error(err))
		return err
	}
	logging.Info("Recording saved",
		zap.String("path", path),
		zap.Int("samples", rec.Len()),
	)
	return nil
}

// Observe runs the interception decision for one decoded response. In
// Record it appends registers; in Replay it returns the next recorded
// registers with Replaced, or Forward when the player has nothing left.
func (c *Controller) Observe(registers []uint16) ([]uint16, Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case Record:
		c.recorder.Append(replay.Sample{Registers: registers})
		if n := c.recorder.Len(); n%progressEvery == 0 {
			logging.Info("Recording...", zap.Int("samples", n))
		}
		return nil, Recorded

	case Replay:
		p := c.player
		values, ok := p.Next()
		if !ok {
			return nil, Forward
		}
		if p.Index()%progressEvery == 0 {
			logging.Info("Replaying...",
				zap.Float64("progress_pct", p.Progress()*100),
				zap.Int("index", p.Index()),
				zap.Int("samples", p.Len()),
			)
		}
		return values, Replaced
	}

	return nil, Forward
}

// Save persists the in-progress recording, or the last finalised or loaded
// one when not recording, to the record file. Recording continues.
func (c *Controller) Save() error {
	c.mu.Lock()
	var rec *replay.Recording
	switch {
	case c.recorder != nil:
		rec = c.recorder.Finalize()
	case c.recording != nil:
		rec = c.recording
	}
	path := c.recordFile
	c.mu.Unlock()

	if rec == nil {
		return ErrNoRecording
	}
	if path == "" {
		return fmt.Errorf("save recording: no record file configured")
	}
	return c.persist(rec, path)
}

// Load restores a recording from path, or from the record file when path
// is empty, and makes it the replay source. A non-empty path also becomes
// the record file. Loading while in Replay restarts playback on the new
// recording. On failure the previous recording is kept.
func (c *Controller) Load(path string) (*replay.Recording, error) {
	c.mu.Lock()
	if path == "" {
		path = c.recordFile
	}
	c.mu.Unlock()

	rec, err := replay.Load(path)
	if err != nil {
		logging.Warn("Failed to load recording", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordFile = path
	c.recording = rec
	if c.mode == Replay {
		if rec.Len() == 0 {
			c.player = nil
			c.mode = Passthrough
			logging.LogModeChange(Replay.String(), Passthrough.String())
		} else {
			c.startPlayerLocked(c.player.Loop())
		}
	}

	logging.Info("Recording loaded",
		zap.String("path", path),
		zap.Int("samples", rec.Len()),
		zap.Time("recorded_at", rec.Metadata.RecordedAt),
		zap.Float64("duration_seconds", rec.Metadata.DurationSeconds),
	)
	return rec, nil
}

// SetLoop changes the default loop behaviour for later Replay entries.
func (c *Controller) SetLoop(loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loop = loop
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Mode:          c.mode,
		RecordFile:    c.recordFile,
		Loop:          c.loop,
		LoadedSamples: c.recording.Len(),
	}
	if c.recorder != nil {
		s.RecordedSamples = c.recorder.Len()
	}
	if c.player != nil {
		s.Loop = c.player.Loop()
		s.ReplayIndex = c.player.Index()
		s.ReplayLength = c.player.Len()
	}
	return s
}
