// Package ui provides styled terminal output for the mbproxy CLI.
//
// Components are rendered with Lipgloss and written once; nothing here
// takes over the terminal. The interactive console and the inspect command
// share these components so operator output looks the same everywhere.
//
//   - Header: banner with a title, the command and ordered parameters
//   - Result: success, failure and warning boxes
//   - RenderProgress: static progress bar for replay position
//   - Printer: writes components and one-line messages to an io.Writer
//
// # Logging Integration
//
// zap logging stays silent unless MBPROXY_LOG_LEVEL or --log-level is set,
// so curated UI output is displayed cleanly by default.
package ui
