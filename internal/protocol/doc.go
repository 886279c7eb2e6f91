// Package protocol decodes and re-encodes Modbus/TCP register read
// responses.
//
// # Wire Format
//
// Every Modbus/TCP frame starts with the 7-byte MBAP header, followed by
// the function code. Register read responses (0x03 holding registers,
// 0x04 input registers) then carry a byte count and the register values:
//
//	2 bytes | Transaction identifier
//	2 bytes | Protocol identifier (0 for Modbus)
//	2 bytes | Length of everything that follows this field
//	1 byte  | Unit identifier
//	1 byte  | Function code
//	1 byte  | Byte count
//	N bytes | Register values, big-endian, 2 bytes each
//
// # Fail-open Parsing
//
// DecodeResponse never returns an error. Frames shorter than nine bytes,
// exception responses and every other function code are reported as not
// applicable and must be relayed byte-for-byte.
//
// # Re-encoding
//
// Encode copies the length and byte count fields from the original header.
// Use Fit to size a substituted register sequence to the original count
// before encoding:
//
//	resp, ok := protocol.DecodeResponse(chunk)
//	if ok {
//	    regs := protocol.Fit(recorded, resp.Registers, len(resp.Registers))
//	    out := append(protocol.Encode(resp.Header, regs), resp.Trailer...)
//	}
//
// All functions are stateless and safe for concurrent use.
package protocol
