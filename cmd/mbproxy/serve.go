package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/config"
	"github.com/muurk/mbproxy/internal/control"
	"github.com/muurk/mbproxy/internal/discovery"
	"github.com/muurk/mbproxy/internal/logging"
	"github.com/muurk/mbproxy/internal/mode"
	"github.com/muurk/mbproxy/internal/proxy"
	"github.com/muurk/mbproxy/internal/ui"
	"github.com/muurk/mbproxy/internal/version"
)

// shutdownTimeout bounds how long serve waits for sessions to close.
const shutdownTimeout = 5 * time.Second

// Serve command and flags
var (
	configPath    string
	listenAddr    string
	targetHost    string
	targetPort    int
	initialMode   string
	recordFile    string
	noLoop        bool
	interactive   bool
	controlListen string
	advertise     bool
	logLevel      string
	analysisDir   string
	description   string
	dialTimeout   time.Duration
	dialRetries   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interception proxy",
	Long: `Start the Modbus/TCP interception proxy.

Settings are read from the configuration file (--config, or the default
location when it exists) and overridden by any flag given explicitly.

In replay mode the recording file is loaded before the listener starts;
startup fails if it cannot be read. On SIGINT or SIGTERM an active
recording is stopped and saved before exit.`,
	Example: `  # Transparent relay to a PLC
  mbproxy serve --target 172.20.0.10

  # Record live values, controlling the proxy from the console
  mbproxy serve --target 172.20.0.10 --mode record --interactive

  # Replay a capture once, then fall back to passthrough
  mbproxy serve --target 172.20.0.10 --mode replay --no-loop --record-file baseline.json

  # Expose the WebSocket control endpoint and announce it over mDNS
  mbproxy serve --control-listen :8502 --advertise`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to configuration file (default: platform config directory)")
	f.StringVar(&listenAddr, "listen", "", "Listen address for client connections (default :5502)")
	f.StringVar(&targetHost, "target", "", "Target Modbus server host")
	f.IntVar(&targetPort, "target-port", 0, "Target Modbus server port (default 502)")
	f.StringVar(&initialMode, "mode", "", "Initial mode (passthrough, record, replay)")
	f.StringVar(&recordFile, "record-file", "", "Recording file (default recorded_values.json)")
	f.BoolVar(&noLoop, "no-loop", false, "Stop replay after the last sample instead of looping")
	f.BoolVar(&interactive, "interactive", false, "Run the interactive control console on stdin")
	f.StringVar(&controlListen, "control-listen", "", "Listen address for the WebSocket control endpoint (disabled if not specified)")
	f.BoolVar(&advertise, "advertise", false, "Announce the control endpoint over mDNS")
	f.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent if not specified")
	f.StringVar(&analysisDir, "analysis-dir", "", "Directory to write intercepted frame logs (disabled if not specified)")
	f.StringVar(&description, "description", "", "Description stored in new recordings")
	f.DurationVar(&dialTimeout, "dial-timeout", 0, "Per-attempt upstream dial timeout")
	f.IntVar(&dialRetries, "dial-retries", 0, "Upstream dial retries after the first attempt")
}

// loadServeConfig reads the configuration file and applies explicit flags.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		if p, err := config.GetConfigPath(); err == nil {
			path = p
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = listenAddr
	}
	if flags.Changed("target") {
		cfg.Target.Host = targetHost
	}
	if flags.Changed("target-port") {
		cfg.Target.Port = targetPort
	}
	if flags.Changed("mode") {
		cfg.InitialMode = initialMode
	}
	if flags.Changed("record-file") {
		cfg.RecordFile = recordFile
	}
	if flags.Changed("no-loop") {
		cfg.ReplayLoop = !noLoop
	}
	if flags.Changed("control-listen") {
		cfg.Control.Listen = controlListen
	}
	if flags.Changed("advertise") {
		cfg.Control.Advertise = advertise
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("analysis-dir") {
		cfg.AnalysisDir = analysisDir
	}
	if flags.Changed("description") {
		cfg.Description = description
	}
	if flags.Changed("dial-timeout") {
		cfg.Dial.Timeout = dialTimeout
	}
	if flags.Changed("dial-retries") {
		cfg.Dial.Retries = dialRetries
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validateAnalysisDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("analysis directory does not exist: %s", dir)
	}
	if err != nil {
		return fmt.Errorf("cannot access analysis directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("analysis path is not a directory: %s", dir)
	}
	return nil
}

// startController builds the controller and enters the initial mode.
// Replay needs the recording file up front.
func startController(cfg *config.Config) (*mode.Controller, error) {
	initial, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	ctrl := mode.NewController(mode.Options{
		RecordFile:  cfg.RecordFile,
		Loop:        cfg.ReplayLoop,
		Description: cfg.Description,
	})

	switch initial {
	case mode.Replay:
		if _, err := ctrl.Load(""); err != nil {
			return nil, fmt.Errorf("cannot start in replay mode: %w", err)
		}
		if err := ctrl.SetMode(mode.Replay); err != nil {
			return nil, fmt.Errorf("cannot start in replay mode: %w", err)
		}
	case mode.Record:
		if err := ctrl.SetMode(mode.Record); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateAnalysisDir(cfg.AnalysisDir); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()

	ctrl, err := startController(cfg)
	if err != nil {
		return err
	}

	srv, err := proxy.New(&proxy.Config{
		ListenAddr:  cfg.Listen,
		TargetAddr:  cfg.TargetAddr(),
		DialTimeout: cfg.Dial.Timeout,
		DialRetries: cfg.Dial.Retries,
		AnalysisDir: cfg.AnalysisDir,
	}, ctrl)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Serve(ctx) }()

	dispatcher := control.NewDispatcher(ctrl, srv.Metrics())
	out := cmd.OutOrStdout()
	printer := ui.NewPrinter(out)

	httpSrv, adv, err := startControlEndpoint(cfg, dispatcher, cancel, errCh)
	if err != nil {
		cancel()
		return multierr.Append(err, shutdown(ctrl, srv, nil, nil))
	}

	printBanner(printer, cfg, ctrl, httpSrv)

	if interactive {
		go func() {
			err := control.NewConsole(dispatcher, os.Stdin, out).Run(ctx)
			switch {
			case err == nil:
				cancel()
			case errors.Is(err, io.EOF):
				logging.Info("Console input closed, proxy keeps running")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	printer.Note("Shutting down...")
	return multierr.Append(runErr, shutdown(ctrl, srv, httpSrv, adv))
}

// startControlEndpoint starts the WebSocket control server and the mDNS
// advertisement when configured. Both return values may be nil.
func startControlEndpoint(cfg *config.Config, d *control.Dispatcher, quit func(), errCh chan<- error) (*http.Server, *discovery.Advertisement, error) {
	if cfg.Control.Listen == "" {
		return nil, nil, nil
	}

	ws := control.NewWebSocketHandler(d)
	ws.OnQuit = quit
	httpSrv := control.NewHTTPServer(cfg.Control.Listen, ws)

	ln, err := net.Listen("tcp", cfg.Control.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on control address %s: %w", cfg.Control.Listen, err)
	}
	logging.Info("Control endpoint listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", control.ControlPath),
	)

	go func() {
		if err := httpSrv.Serve(ln); err != nil && !control.IsServerClosed(err) {
			errCh <- fmt.Errorf("control endpoint: %w", err)
		}
	}()

	if !cfg.Control.Advertise {
		return httpSrv, nil, nil
	}

	port := ln.Addr().(*net.TCPAddr).Port
	adv, err := discovery.Advertise(instanceName(port), port, map[string]string{
		discovery.TxtPath:    control.ControlPath,
		discovery.TxtTarget:  cfg.TargetAddr(),
		discovery.TxtVersion: version.Version,
	})
	if err != nil {
		// mDNS is a convenience; the endpoint still works without it.
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return httpSrv, nil, nil
	}
	return httpSrv, adv, nil
}

func instanceName(port int) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "host"
	}
	return "mbproxy-" + host + "-" + strconv.Itoa(port)
}

// shutdown saves an active recording and stops every server.
func shutdown(ctrl *mode.Controller, srv *proxy.Server, httpSrv *http.Server, adv *discovery.Advertisement) error {
	var err error

	if ctrl.Mode() == mode.Record {
		logging.Info("Stopping active recording")
		err = multierr.Append(err, ctrl.Stop())
	}

	adv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		err = multierr.Append(err, httpSrv.Shutdown(ctx))
	}
	return multierr.Append(err, srv.Shutdown(ctx))
}

func printBanner(p *ui.Printer, cfg *config.Config, ctrl *mode.Controller, httpSrv *http.Server) {
	st := ctrl.Status()
	params := []ui.Field{
		{Key: "Listen", Value: cfg.Listen},
		{Key: "Target", Value: cfg.TargetAddr()},
		{Key: "Mode", Value: ui.RenderModeBadge(st.Mode.String())},
		{Key: "Record file", Value: cfg.RecordFile},
		{Key: "Loop", Value: strconv.FormatBool(cfg.ReplayLoop)},
	}
	if st.LoadedSamples > 0 {
		params = append(params, ui.Field{Key: "Loaded", Value: fmt.Sprintf("%d samples", st.LoadedSamples)})
	}
	if httpSrv != nil {
		params = append(params, ui.Field{Key: "Control", Value: "ws://" + httpSrv.Addr + control.ControlPath})
	}
	p.PrintHeader("Modbus MITM proxy", "mbproxy serve "+version.Version, params)
}
