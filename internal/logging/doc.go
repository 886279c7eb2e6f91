// Package logging provides structured logging for the interception proxy.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the relay and the control surface.
//
// # Log Levels
//
//   - Debug: hex dumps of intercepted frames, per-frame decisions
//   - Info: connections, mode changes, record/replay progress
//   - Warn: rejected mode changes, upstream dial retries
//   - Error: accept failures, persistence failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// An empty level falls back to the MBPROXY_LOG_LEVEL environment
// variable; when that is unset too the logger is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Replacing the logger
// with SetLogger is not, and is meant for test setup.
package logging
