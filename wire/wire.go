// Package wire implements the fixed binary encoding used by peer
// connections: little-endian primitives, length-prefixed strings, and
// length-prefixed or fixed-length arrays.
//
// The shape of Builder and Scanner follows the teacher's packet
// package (a Builder that accumulates bytes, a Scanner that consumes
// them from the front), adapted from that package's big-endian
// vint30-based scheme to the little-endian fixed-width scheme the
// middleware's wire format requires.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/creachadair/mds/value"
)

// A Builder accumulates values into a binary buffer in little-endian
// order. The zero value is ready for use as an empty builder.
type Builder struct {
	buf []byte
}

// Bytes reports the current contents of the buffer. The builder
// retains ownership of the returned slice.
func (b *Builder) Bytes() []byte { return b.buf }

// Len reports the number of bytes currently in the buffer.
func (b *Builder) Len() int { return len(b.buf) }

// Reset discards the contents of b and leaves it empty.
func (b *Builder) Reset() { b.buf = b.buf[:0] }

func (b *Builder) grow(n int) {
	want := len(b.buf) + n
	if cap(b.buf) < want {
		r := make([]byte, len(b.buf), max(want, 2*cap(b.buf)))
		copy(r, b.buf)
		b.buf = r
	}
}

// Bool appends a Boolean encoded as a single byte, 1 for true and 0 for false.
func (b *Builder) Bool(v bool) { b.U8(value.Cond[uint8](v, 1, 0)) }

// I8 appends a signed byte.
func (b *Builder) I8(v int8) { b.U8(uint8(v)) }

// U8 appends an unsigned byte.
func (b *Builder) U8(v uint8) { b.buf = append(b.buf, v) }

// I16 appends a little-endian signed 16-bit integer.
func (b *Builder) I16(v int16) { b.U16(uint16(v)) }

// U16 appends a little-endian unsigned 16-bit integer.
func (b *Builder) U16(v uint16) {
	b.grow(2)
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
}

// I32 appends a little-endian signed 32-bit integer.
func (b *Builder) I32(v int32) { b.U32(uint32(v)) }

// U32 appends a little-endian unsigned 32-bit integer.
func (b *Builder) U32(v uint32) {
	b.grow(4)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

// I64 appends a little-endian signed 64-bit integer.
func (b *Builder) I64(v int64) { b.U64(uint64(v)) }

// U64 appends a little-endian unsigned 64-bit integer.
func (b *Builder) U64(v uint64) {
	b.grow(8)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
}

// F32 appends a little-endian IEEE-754 single-precision float.
func (b *Builder) F32(v float32) { b.U32(math.Float32bits(v)) }

// F64 appends a little-endian IEEE-754 double-precision float.
func (b *Builder) F64(v float64) { b.U64(math.Float64bits(v)) }

// Time appends a ROS-style time value (secs, nsecs), each a u32.
func (b *Builder) Time(secs, nsecs uint32) {
	b.U32(secs)
	b.U32(nsecs)
}

// Str appends a length-prefixed string: a little-endian u32 length
// followed by the raw bytes of s.
func (b *Builder) Str(s string) {
	b.U32(uint32(len(s)))
	b.grow(len(s))
	b.buf = append(b.buf, s...)
}

// Raw appends p verbatim with no length prefix, for use inside a
// fixed-length array field or as the tail of a frame.
func (b *Builder) Raw(p []byte) {
	b.grow(len(p))
	b.buf = append(b.buf, p...)
}

// Bytes32 appends a length-prefixed byte slice (the uint8[] bulk-copy
// case): a little-endian u32 length followed by the raw bytes.
func (b *Builder) Bytes32(p []byte) {
	b.U32(uint32(len(p)))
	b.Raw(p)
}

// FixedArray appends n elements using put, rejecting a length
// mismatch with declared, per the invariant in spec §4.1 that a fixed
// array's serialized length must equal its declared length.
func FixedArray[T any](b *Builder, declared int, elems []T, put func(*Builder, T)) error {
	if len(elems) != declared {
		return fmt.Errorf("wire: fixed array length mismatch: got %d, want %d", len(elems), declared)
	}
	for _, e := range elems {
		put(b, e)
	}
	return nil
}

// VarArray appends a u32 element count followed by each element
// encoded with put.
func VarArray[T any](b *Builder, elems []T, put func(*Builder, T)) {
	b.U32(uint32(len(elems)))
	for _, e := range elems {
		put(b, e)
	}
}

// A Scanner reads encoded values from the front of a byte slice in
// little-endian order. Each method advances the scanner's internal
// cursor, so nested calls (e.g. reading a struct field by field)
// naturally accumulate the offset, matching spec §4.1's "callers pass
// the cursor by reference" requirement without an explicit cursor
// argument — the Scanner itself is the caller-owned cursor.
type Scanner struct {
	rest []byte
}

// NewScanner constructs a Scanner over buf. The scanner retains a
// reference to buf and does not copy it.
func NewScanner(buf []byte) *Scanner { return &Scanner{rest: buf} }

// Len reports the number of unconsumed bytes.
func (s *Scanner) Len() int { return len(s.rest) }

// Rest returns the remaining unconsumed bytes.
func (s *Scanner) Rest() []byte { return s.rest }

func (s *Scanner) take(n int) ([]byte, error) {
	if len(s.rest) < n {
		return nil, fmt.Errorf("wire: short read: need %d, have %d: %w", n, len(s.rest), io.ErrUnexpectedEOF)
	}
	p := s.rest[:n]
	s.rest = s.rest[n:]
	return p, nil
}

// Bool reads a one-byte Boolean.
func (s *Scanner) Bool() (bool, error) {
	v, err := s.U8()
	return v != 0, err
}

// I8 reads a signed byte.
func (s *Scanner) I8() (int8, error) {
	v, err := s.U8()
	return int8(v), err
}

// U8 reads an unsigned byte.
func (s *Scanner) U8() (uint8, error) {
	p, err := s.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// I16 reads a little-endian signed 16-bit integer.
func (s *Scanner) I16() (int16, error) {
	v, err := s.U16()
	return int16(v), err
}

// U16 reads a little-endian unsigned 16-bit integer.
func (s *Scanner) U16() (uint16, error) {
	p, err := s.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// I32 reads a little-endian signed 32-bit integer.
func (s *Scanner) I32() (int32, error) {
	v, err := s.U32()
	return int32(v), err
}

// U32 reads a little-endian unsigned 32-bit integer.
func (s *Scanner) U32() (uint32, error) {
	p, err := s.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// I64 reads a little-endian signed 64-bit integer.
func (s *Scanner) I64() (int64, error) {
	v, err := s.U64()
	return int64(v), err
}

// U64 reads a little-endian unsigned 64-bit integer.
func (s *Scanner) U64() (uint64, error) {
	p, err := s.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// F32 reads a little-endian IEEE-754 single-precision float.
func (s *Scanner) F32() (float32, error) {
	v, err := s.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// F64 reads a little-endian IEEE-754 double-precision float.
func (s *Scanner) F64() (float64, error) {
	v, err := s.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Time reads a ROS-style time value (secs, nsecs).
func (s *Scanner) Time() (secs, nsecs uint32, err error) {
	secs, err = s.U32()
	if err != nil {
		return 0, 0, err
	}
	nsecs, err = s.U32()
	return secs, nsecs, err
}

// Str reads a length-prefixed string.
func (s *Scanner) Str() (string, error) {
	n, err := s.U32()
	if err != nil {
		return "", err
	}
	p, err := s.take(int(n))
	if err != nil {
		return "", fmt.Errorf("wire: short string body: %w", err)
	}
	return string(p), nil
}

// Bytes32 reads a length-prefixed byte slice.
func (s *Scanner) Bytes32() ([]byte, error) {
	n, err := s.U32()
	if err != nil {
		return nil, err
	}
	p, err := s.take(int(n))
	if err != nil {
		return nil, fmt.Errorf("wire: short bytes body: %w", err)
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// Raw reads exactly n raw bytes with no length prefix, for a
// fixed-length array field.
func (s *Scanner) Raw(n int) ([]byte, error) {
	p, err := s.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// ReadFixedArray reads declared elements using get.
func ReadFixedArray[T any](s *Scanner, declared int, get func(*Scanner) (T, error)) ([]T, error) {
	out := make([]T, declared)
	for i := range out {
		v, err := get(s)
		if err != nil {
			return nil, fmt.Errorf("wire: fixed array element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadVarArray reads a u32 element count followed by that many elements
// decoded with get.
func ReadVarArray[T any](s *Scanner, get func(*Scanner) (T, error)) ([]T, error) {
	n, err := s.U32()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := get(s)
		if err != nil {
			return nil, fmt.Errorf("wire: var array element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
