package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/muurk/mbproxy/internal/mode"
	"github.com/muurk/mbproxy/internal/protocol"
	"github.com/muurk/mbproxy/internal/replay"
)

// Config represents the entire proxy configuration file.
type Config struct {
	Version     int           `yaml:"version"`
	Listen      string        `yaml:"listen"`                // Client-facing address, e.g. ":5502"
	Target      Target        `yaml:"target"`                // Upstream Modbus server
	RecordFile  string        `yaml:"record_file"`           // Recording save/load path
	ReplayLoop  bool          `yaml:"replay_loop"`           // Wrap replay to the first sample
	InitialMode string        `yaml:"initial_mode"`          // passthrough, record or replay
	LogLevel    string        `yaml:"log_level,omitempty"`   // debug, info, warn or error; empty is silent
	Description string        `yaml:"description,omitempty"` // Metadata for new recordings
	AnalysisDir string        `yaml:"analysis_dir,omitempty"`
	Control     ControlConfig `yaml:"control"`
	Dial        DialConfig    `yaml:"dial"`
}

// Target identifies the upstream Modbus/TCP server.
type Target struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ControlConfig configures the remote control endpoint.
type ControlConfig struct {
	Listen    string `yaml:"listen,omitempty"` // WebSocket control address; empty disables it
	Advertise bool   `yaml:"advertise"`        // Announce the control endpoint over mDNS
}

// DialConfig controls how each session connects upstream.
type DialConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Listen:  ":5502",
		Target: Target{
			Host: "127.0.0.1",
			Port: protocol.DefaultPort,
		},
		RecordFile:  "recorded_values.json",
		ReplayLoop:  true,
		InitialMode: "passthrough",
		Description: replay.DefaultDescription,
		Dial: DialConfig{
			Timeout: 5 * time.Second,
			Retries: 3,
		},
	}
}

// TargetAddr joins the target host and port.
func (c *Config) TargetAddr() string {
	return net.JoinHostPort(c.Target.Host, strconv.Itoa(c.Target.Port))
}

// Mode parses InitialMode.
func (c *Config) Mode() (mode.Mode, error) {
	return mode.Parse(c.InitialMode)
}

// Validate checks the configuration for values the proxy cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected 1)", c.Version))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	} else if _, port, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("invalid listen address %q: %w", c.Listen, err))
	} else if err := validPort(port); err != nil {
		errs = append(errs, fmt.Errorf("invalid listen port: %w", err))
	}
	if c.Target.Host == "" {
		errs = append(errs, errors.New("target host is required"))
	}
	if c.Target.Port < 1 || c.Target.Port > 65535 {
		errs = append(errs, fmt.Errorf("target port %d out of range 1-65535", c.Target.Port))
	}
	if _, err := c.Mode(); err != nil {
		errs = append(errs, err)
	}
	if c.Dial.Retries < 0 {
		errs = append(errs, fmt.Errorf("dial retries must not be negative: %d", c.Dial.Retries))
	}
	if c.Dial.Timeout < 0 {
		errs = append(errs, fmt.Errorf("dial timeout must not be negative: %s", c.Dial.Timeout))
	}
	if c.Control.Advertise && c.Control.Listen == "" {
		errs = append(errs, errors.New("control advertise requires control listen address"))
	}

	return multierr.Combine(errs...)
}

func validPort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("%d out of range 0-65535", n)
	}
	return nil
}
