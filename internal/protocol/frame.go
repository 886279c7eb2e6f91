package protocol

import (
	"encoding/binary"
	"fmt"
)

// Modbus function codes
const (
	FuncReadCoils              = 0x01
	FuncReadDiscreteInputs     = 0x02
	FuncReadHoldingRegisters   = 0x03
	FuncReadInputRegisters     = 0x04
	FuncWriteSingleCoil        = 0x05
	FuncWriteSingleRegister    = 0x06
	FuncWriteMultipleCoils     = 0x0F
	FuncWriteMultipleRegisters = 0x10

	// ExceptionBit is set on the function code of an exception response
	ExceptionBit = 0x80
)

// Frame layout constants
const (
	MBAPHeaderSize   = 7   // transaction + protocol + length + unit
	MinResponseSize  = 9   // MBAP + function code + byte count
	MaxReadRegisters = 125 // largest register count a read response may carry
	DefaultPort      = 502
)

// Header carries the fixed fields of a register read response. Length and
// ByteCount are kept exactly as they arrived on the wire.
type Header struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16 // bytes following the length field
	UnitID        byte
	FunctionCode  byte
	ByteCount     byte
}

// Response is a decoded register read response.
type Response struct {
	Header
	Registers []uint16
	// Trailer holds any bytes after the declared register payload, such as
	// a second pipelined frame delivered in the same read.
	Trailer []byte
}

// IsReadFunction reports whether fc is one of the register read codes the
// proxy intercepts.
func IsReadFunction(fc byte) bool {
	return fc == FuncReadHoldingRegisters || fc == FuncReadInputRegisters
}

// DecodeResponse parses a register read response. It reports false when
// the bytes are too short to hold a header or carry any other function
// code; callers must then forward the bytes untouched.
//
// A byte count larger than the available payload decodes what is present.
// A trailing unpaired payload byte is dropped.
func DecodeResponse(data []byte) (*Response, bool) {
	if len(data) < MinResponseSize {
		return nil, false
	}

	fc := data[7]
	if !IsReadFunction(fc) {
		return nil, false
	}

	resp := &Response{
		Header: Header{
			TransactionID: binary.BigEndian.Uint16(data[0:2]),
			ProtocolID:    binary.BigEndian.Uint16(data[2:4]),
			Length:        binary.BigEndian.Uint16(data[4:6]),
			UnitID:        data[6],
			FunctionCode:  fc,
			ByteCount:     data[8],
		},
	}

	end := MinResponseSize + int(resp.ByteCount)
	if end > len(data) {
		end = len(data)
	}
	payload := data[MinResponseSize:end]

	resp.Registers = make([]uint16, 0, len(payload)/2)
	for i := 0; i+1 < len(payload); i += 2 {
		resp.Registers = append(resp.Registers, binary.BigEndian.Uint16(payload[i:i+2]))
	}

	if end < len(data) {
		resp.Trailer = append([]byte(nil), data[end:]...)
	}

	return resp, true
}

// Encode rebuilds a response from h and registers. The length and byte
// count fields are written from h unchanged, so the result is only
// consistent when len(registers) matches the original register count.
func Encode(h Header, registers []uint16) []byte {
	out := make([]byte, MinResponseSize, MinResponseSize+2*len(registers))
	binary.BigEndian.PutUint16(out[0:2], h.TransactionID)
	binary.BigEndian.PutUint16(out[2:4], h.ProtocolID)
	binary.BigEndian.PutUint16(out[4:6], h.Length)
	out[6] = h.UnitID
	out[7] = h.FunctionCode
	out[8] = h.ByteCount

	for _, v := range registers {
		out = binary.BigEndian.AppendUint16(out, v)
	}
	return out
}

// NewReadHeader builds a header that is consistent for n registers.
func NewReadHeader(transactionID uint16, unitID, functionCode byte, n int) Header {
	return Header{
		TransactionID: transactionID,
		Length:        uint16(3 + 2*n),
		UnitID:        unitID,
		FunctionCode:  functionCode,
		ByteCount:     byte(2 * n),
	}
}

// Fit returns substitute resized to n registers. Extra values are
// truncated and missing ones are filled from live, so the frame header
// keeps describing the payload.
func Fit(substitute, live []uint16, n int) []uint16 {
	out := make([]uint16, n)
	copy(out, live)
	if len(substitute) > n {
		substitute = substitute[:n]
	}
	copy(out, substitute)
	return out
}

// Bytes re-encodes the response, trailer included.
func (r *Response) Bytes() []byte {
	return append(Encode(r.Header, r.Registers), r.Trailer...)
}

// FunctionName returns a human-readable function code name
func FunctionName(fc byte) string {
	switch fc {
	case FuncReadCoils:
		return "read_coils"
	case FuncReadDiscreteInputs:
		return "read_discrete_inputs"
	case FuncReadHoldingRegisters:
		return "read_holding_registers"
	case FuncReadInputRegisters:
		return "read_input_registers"
	case FuncWriteSingleCoil:
		return "write_single_coil"
	case FuncWriteSingleRegister:
		return "write_single_register"
	case FuncWriteMultipleCoils:
		return "write_multiple_coils"
	case FuncWriteMultipleRegisters:
		return "write_multiple_registers"
	}
	if fc&ExceptionBit != 0 {
		return fmt.Sprintf("exception(%s)", FunctionName(fc&^ExceptionBit))
	}
	return fmt.Sprintf("unknown(0x%02X)", fc)
}

// String returns a debug representation of the response
func (r *Response) String() string {
	return fmt.Sprintf("Response{tid=%d, unit=%d, fc=%s, length=%d, registers=%d}",
		r.TransactionID, r.UnitID, FunctionName(r.FunctionCode), r.Length, len(r.Registers))
}
