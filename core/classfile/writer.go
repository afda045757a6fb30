package classfile

import (
	"encoding/binary"
	"math"
)

// writer is the big-endian counterpart of reader.
type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) u1(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u2(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *writer) u4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *writer) u8(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *writer) s1(v int8) { w.u1(uint8(v)) }
func (w *writer) s2(v int16) { w.u2(uint16(v)) }
func (w *writer) s4(v int32) { w.u4(uint32(v)) }

func (w *writer) f4(v float32) { w.u4(math.Float32bits(v)) }
func (w *writer) f8(v float64) { w.u8(math.Float64bits(v)) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) zeros(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) len() int { return len(w.buf) }
