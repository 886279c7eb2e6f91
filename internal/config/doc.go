// Package config provides the proxy configuration file.
//
// The configuration is a YAML document holding the listen address, the
// upstream target, the recording file and replay behaviour, the optional
// control endpoint and upstream dial policy. Command-line flags override
// values read from the file.
//
// # Configuration File Location
//
// Without --config the file is looked up in the platform-appropriate location:
//   - Linux: $XDG_CONFIG_HOME/mbproxy/config.yaml or $HOME/.config/mbproxy/config.yaml
//   - macOS: $HOME/.config/mbproxy/config.yaml
//   - Windows: %LOCALAPPDATA%\mbproxy\config.yaml
//
// A missing file is not an error; Default() values are used.
//
// # Example
//
//	version: 1
//	listen: ":5502"
//	target:
//	    host: 172.20.0.10
//	    port: 502
//	record_file: recorded_values.json
//	replay_loop: true
//	initial_mode: passthrough
//	control:
//	    listen: "127.0.0.1:8502"
//	    advertise: false
//	dial:
//	    timeout: 5s
//	    retries: 3
//
// # Thread Safety
//
// Save serialises writes with a package mutex and replaces the file
// atomically through a temporary file.
package config
