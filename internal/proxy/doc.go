// Package proxy implements the Modbus/TCP interception relay.
//
// The Server accepts client connections and opens one upstream connection
// to the target server per client. Each session pumps bytes in lockstep:
// one client read is forwarded upstream, then one upstream read is passed
// through the Interceptor and written back to the client. Sessions share a
// single mode.Controller and nothing else.
//
// # Interception
//
// Upstream chunks that decode as read holding/input register responses
// (function codes 0x03 and 0x04) are handed to the controller. Depending on
// the active mode the registers are recorded, replaced with recorded
// values, or left alone. Anything else, including exception responses and
// chunks shorter than a response header, is forwarded byte-identical.
//
// # Usage Example
//
//	ctrl := mode.NewController(mode.Options{RecordFile: "recorded_values.json", Loop: true})
//	srv, err := proxy.New(&proxy.Config{
//	    ListenAddr: ":5502",
//	    TargetAddr: "172.20.0.10:502",
//	}, ctrl)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Serve(ctx)
//
// # Capture Log
//
// When Config.AnalysisDir is set every intercepted response is appended to
// a JSON Lines file with the original and forwarded bytes in hex.
package proxy
