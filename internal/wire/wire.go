package wire

// Typed endian readers and writers shared by the protocol codecs and the
// process simulators. PLC word buffers carry multi-word quantities
// (Int32, Int64, Float32) as consecutive 16-bit words in the protocol's
// byte order; these helpers keep that layout in one place instead of
// scattering binary.ByteOrder calls through every codec.

import (
	"encoding/binary"
	"fmt"
	"math"
)

// errShort returns a standardised validation error for short buffers.
func errShort(what string, got, need int) error {
	return fmt.Errorf("%s too short: %d bytes (minimum %d)", what, got, need)
}

// Uint16 reads one word from b.
func Uint16(order binary.ByteOrder, b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, errShort("uint16", len(b), 2)
	}
	return order.Uint16(b), nil
}

// PutUint16 writes one word into b.
func PutUint16(order binary.ByteOrder, b []byte, v uint16) error {
	if len(b) < 2 {
		return errShort("uint16 buffer", len(b), 2)
	}
	order.PutUint16(b, v)
	return nil
}

// AppendUint16 appends one word to dst.
func AppendUint16(order binary.ByteOrder, dst []byte, v uint16) []byte {
	var tmp [2]byte
	order.PutUint16(tmp[:], v)
	return append(dst, tmp[:]...)
}

// Int32 reads a signed 32-bit value stored as two consecutive words.
func Int32(order binary.ByteOrder, b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, errShort("int32", len(b), 4)
	}
	return int32(order.Uint32(b)), nil
}

// PutInt32 writes a signed 32-bit value as two consecutive words.
func PutInt32(order binary.ByteOrder, b []byte, v int32) error {
	if len(b) < 4 {
		return errShort("int32 buffer", len(b), 4)
	}
	order.PutUint32(b, uint32(v))
	return nil
}

// Int64 reads a signed 64-bit value stored as four consecutive words.
func Int64(order binary.ByteOrder, b []byte) (int64, error) {
	if len(b) < 8 {
		return 0, errShort("int64", len(b), 8)
	}
	return int64(order.Uint64(b)), nil
}

// PutInt64 writes a signed 64-bit value as four consecutive words.
func PutInt64(order binary.ByteOrder, b []byte, v int64) error {
	if len(b) < 8 {
		return errShort("int64 buffer", len(b), 8)
	}
	order.PutUint64(b, uint64(v))
	return nil
}

// Float32 reads an IEEE-754 single stored as two consecutive words.
func Float32(order binary.ByteOrder, b []byte) (float32, error) {
	if len(b) < 4 {
		return 0, errShort("float32", len(b), 4)
	}
	return math.Float32frombits(order.Uint32(b)), nil
}

// PutFloat32 writes an IEEE-754 single as two consecutive words.
func PutFloat32(order binary.ByteOrder, b []byte, v float32) error {
	if len(b) < 4 {
		return errShort("float32 buffer", len(b), 4)
	}
	order.PutUint32(b, math.Float32bits(v))
	return nil
}

// Float64 reads an IEEE-754 double stored as four consecutive words.
func Float64(order binary.ByteOrder, b []byte) (float64, error) {
	if len(b) < 8 {
		return 0, errShort("float64", len(b), 8)
	}
	return math.Float64frombits(order.Uint64(b)), nil
}

// PutFloat64 writes an IEEE-754 double as four consecutive words.
func PutFloat64(order binary.ByteOrder, b []byte, v float64) error {
	if len(b) < 8 {
		return errShort("float64 buffer", len(b), 8)
	}
	order.PutUint64(b, math.Float64bits(v))
	return nil
}

// Words converts a raw word buffer into register values. The buffer
// length must be even.
func Words(order binary.ByteOrder, b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("odd word buffer length: %d", len(b))
	}
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = order.Uint16(b[i*2:])
	}
	return out, nil
}

// PutWords encodes register values into a raw word buffer.
func PutWords(order binary.ByteOrder, regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		order.PutUint16(out[i*2:], r)
	}
	return out
}
