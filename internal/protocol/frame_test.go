package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		wantOK bool
		verify func(t *testing.T, r *Response)
	}{
		{
			name:   "holding registers response",
			data:   []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x04, 0x12, 0x34, 0x56, 0x78},
			wantOK: true,
			verify: func(t *testing.T, r *Response) {
				if r.TransactionID != 1 {
					t.Errorf("transactionID = %d, want 1", r.TransactionID)
				}
				if r.ProtocolID != 0 {
					t.Errorf("protocolID = %d, want 0", r.ProtocolID)
				}
				if r.UnitID != 1 {
					t.Errorf("unitID = %d, want 1", r.UnitID)
				}
				if r.FunctionCode != FuncReadHoldingRegisters {
					t.Errorf("functionCode = 0x%02x, want 0x03", r.FunctionCode)
				}
				if r.Length != 5 {
					t.Errorf("length = %d, want 5", r.Length)
				}
				want := []uint16{0x1234, 0x5678}
				if !equalRegisters(r.Registers, want) {
					t.Errorf("registers = %v, want %v", r.Registers, want)
				}
				if len(r.Trailer) != 0 {
					t.Errorf("trailer = %v, want empty", r.Trailer)
				}
			},
		},
		{
			name:   "input registers response",
			data:   []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x05, 0x02, 0x04, 0x02, 0x00, 0x2A},
			wantOK: true,
			verify: func(t *testing.T, r *Response) {
				if r.FunctionCode != FuncReadInputRegisters {
					t.Errorf("functionCode = 0x%02x, want 0x04", r.FunctionCode)
				}
				if !equalRegisters(r.Registers, []uint16{42}) {
					t.Errorf("registers = %v, want [42]", r.Registers)
				}
			},
		},
		{
			name:   "unpaired trailing byte is dropped",
			data:   []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x03, 0x00, 0x01, 0xFF},
			wantOK: true,
			verify: func(t *testing.T, r *Response) {
				if !equalRegisters(r.Registers, []uint16{1}) {
					t.Errorf("registers = %v, want [1]", r.Registers)
				}
			},
		},
		{
			name:   "byte count beyond data decodes what is present",
			data:   []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x07, 0x01, 0x03, 0x04, 0x00, 0x09},
			wantOK: true,
			verify: func(t *testing.T, r *Response) {
				if !equalRegisters(r.Registers, []uint16{9}) {
					t.Errorf("registers = %v, want [9]", r.Registers)
				}
			},
		},
		{
			name: "pipelined frame kept as trailer",
			data: []byte{
				0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x02, 0x00, 0x01,
				0x00, 0x02, 0x00, 0x00, 0x00, 0x06, 0x01, 0x06,
			},
			wantOK: true,
			verify: func(t *testing.T, r *Response) {
				want := []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x06, 0x01, 0x06}
				if !bytes.Equal(r.Trailer, want) {
					t.Errorf("trailer = % x, want % x", r.Trailer, want)
				}
			},
		},
		{
			name:   "too short",
			data:   []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0x01, 0x03},
			wantOK: false,
		},
		{
			name:   "empty",
			data:   nil,
			wantOK: false,
		},
		{
			name:   "write single register echo",
			data:   []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x06, 0x00, 0x01, 0x00, 0x03},
			wantOK: false,
		},
		{
			name:   "exception response",
			data:   []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0x01, 0x83, 0x02},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := DecodeResponse(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("DecodeResponse() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.verify != nil {
				tt.verify(t, r)
			}
		})
	}
}

func TestEncodeCarriesHeaderFields(t *testing.T) {
	original := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x04, 0x12, 0x34, 0x56, 0x78}
	r, ok := DecodeResponse(original)
	if !ok {
		t.Fatal("DecodeResponse() = not applicable")
	}

	got := Encode(r.Header, []uint16{1, 2})
	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x04, 0x00, 0x01, 0x00, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeIdentity(t *testing.T) {
	original := []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x07, 0x11, 0x04, 0x04, 0xAB, 0xCD, 0x00, 0x10}
	r, ok := DecodeResponse(original)
	if !ok {
		t.Fatal("DecodeResponse() = not applicable")
	}
	if got := r.Bytes(); !bytes.Equal(got, original) {
		t.Errorf("Bytes() = % x, want % x", got, original)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for n := 1; n <= MaxReadRegisters; n++ {
		regs := make([]uint16, n)
		for i := range regs {
			regs[i] = uint16(rng.Intn(1 << 16))
		}
		fc := byte(FuncReadHoldingRegisters)
		if n%2 == 0 {
			fc = FuncReadInputRegisters
		}
		h := NewReadHeader(uint16(n), 1, fc, n)

		r, ok := DecodeResponse(Encode(h, regs))
		if !ok {
			t.Fatalf("n=%d: DecodeResponse() = not applicable", n)
		}
		if !equalRegisters(r.Registers, regs) {
			t.Fatalf("n=%d: registers = %v, want %v", n, r.Registers, regs)
		}
		if r.Header != h {
			t.Fatalf("n=%d: header = %+v, want %+v", n, r.Header, h)
		}
	}
}

func TestNewReadHeaderLength(t *testing.T) {
	h := NewReadHeader(9, 1, FuncReadHoldingRegisters, 2)
	frame := Encode(h, []uint16{1, 2})
	if int(h.Length) != len(frame)-6 {
		t.Errorf("length = %d, want %d", h.Length, len(frame)-6)
	}
	if int(h.ByteCount) != len(frame)-MinResponseSize {
		t.Errorf("byte count = %d, want %d", h.ByteCount, len(frame)-MinResponseSize)
	}
}

func TestFit(t *testing.T) {
	live := []uint16{10, 20, 30}
	tests := []struct {
		name       string
		substitute []uint16
		want       []uint16
	}{
		{"same length", []uint16{1, 2, 3}, []uint16{1, 2, 3}},
		{"longer is truncated", []uint16{1, 2, 3, 4, 5}, []uint16{1, 2, 3}},
		{"shorter is padded with live values", []uint16{1}, []uint16{1, 20, 30}},
		{"empty keeps live values", nil, []uint16{10, 20, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(tt.substitute, live, len(live))
			if !equalRegisters(got, tt.want) {
				t.Errorf("Fit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFunctionName(t *testing.T) {
	tests := []struct {
		fc   byte
		want string
	}{
		{FuncReadHoldingRegisters, "read_holding_registers"},
		{FuncReadInputRegisters, "read_input_registers"},
		{0x83, "exception(read_holding_registers)"},
		{0x2B, "unknown(0x2B)"},
	}
	for _, tt := range tests {
		if got := FunctionName(tt.fc); got != tt.want {
			t.Errorf("FunctionName(0x%02x) = %q, want %q", tt.fc, got, tt.want)
		}
	}
}

func equalRegisters(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
