// Package control implements the operator command surface of the proxy.
//
// A Dispatcher turns command lines (record, stop, save, load [file],
// replay, replay-once, passthrough, status, help, quit) into calls on the
// shared mode.Controller. Two front ends drive it:
//
//   - Console: the interactive line loop on stdin/stdout
//   - WebSocketHandler: JSON {"command": "..."} messages on ws://host/control
//
// Every reply carries the resulting status so remote clients never need a
// second round trip after a mode change.
package control
