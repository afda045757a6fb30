package classfile

import (
	"encoding/binary"
	"math"
)

// reader is a big-endian cursor over class file bytes. The first short read
// is remembered and every later read returns zero, so callers check err once
// per structure.
type reader struct {
	buf  []byte
	pos  int
	base int // file offset of buf[0], for error reporting
	err  error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func newSubReader(buf []byte, base int) *reader {
	return &reader{buf: buf, base: base}
}

// offset returns the current position as a file offset.
func (r *reader) offset() int { return r.base + r.pos }

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.buf)-r.pos < n {
		r.err = formatErrorf(r.offset(), "unexpected end of data, need %d bytes", n)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) u8() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) s1() int8  { return int8(r.u1()) }
func (r *reader) s2() int16 { return int16(r.u2()) }
func (r *reader) s4() int32 { return int32(r.u4()) }

func (r *reader) f4() float32 { return math.Float32frombits(r.u4()) }
func (r *reader) f8() float64 { return math.Float64frombits(r.u8()) }

// bytes returns the next n bytes without copying.
func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.pos += n
	}
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

// fail records a format error at the current position unless an earlier
// error is pending.
func (r *reader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = formatErrorf(r.offset(), format, args...)
	}
}
