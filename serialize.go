// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// errFrame is the sentinel wrapped by every serializer rejection: a short
// read, an oversized length prefix, or an out-of-range tag value (spec.md
// §4.7's "strict reader").
var errFrame = errors.New("malformed serialized frame")

// maxFrameBytes bounds any single str's length prefix: a larger length fails
// the frame even when the buffer holds that many bytes. A length larger than
// the remaining buffer is rejected by ReadBytes' short-read check, before
// any allocation.
const maxFrameBytes = 16 << 20

// byteOrder is the serializer's fixed-width integer encoding. The worker and
// aggregator are peers built from the same binary (spec.md §6), so any
// single consistent order suffices; little-endian matches spec.md §4.7's
// worked description of simple(T).
var byteOrder = binary.LittleEndian

// FrameWriter accumulates a sequence of simple(T)/str/composite writes into
// a single buffer, one field at a time, in declaration order.
type FrameWriter struct {
	buf bytes.Buffer
}

// NewFrameWriter returns an empty FrameWriter
func NewFrameWriter() *FrameWriter {
	return &FrameWriter{}
}

// Bytes returns the accumulated frame
func (w *FrameWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteUint8 writes a single byte
func (w *FrameWriter) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteUint32 writes a fixed-width simple(uint32)
func (w *FrameWriter) WriteUint32(v uint32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteUint64 writes a fixed-width simple(uint64)
func (w *FrameWriter) WriteUint64(v uint64) {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteBytes writes a str: a uint32 length prefix followed by the bytes
func (w *FrameWriter) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf.Write(b)
}

// WriteString writes a str carrying UTF-8 text
func (w *FrameWriter) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteBigInt writes a non-negative big.Int as a str of its big-endian bytes
func (w *FrameWriter) WriteBigInt(n *big.Int) {
	w.WriteBytes(n.Bytes())
}

// FrameReader reads a sequence of simple(T)/str/composite values back out of
// a buffer written by FrameWriter, strictly: any short read, any length
// prefix exceeding the remaining buffer, or any tag value outside its valid
// range fails the whole frame (spec.md §4.7).
type FrameReader struct {
	buf []byte
}

// NewFrameReader wraps buf for reading
func NewFrameReader(buf []byte) *FrameReader {
	return &FrameReader{buf: buf}
}

// Remaining reports how many bytes are left unread
func (r *FrameReader) Remaining() int {
	return len(r.buf)
}

// ReadUint8 reads a single byte
func (r *FrameReader) ReadUint8() (uint8, error) {
	if len(r.buf) < 1 {
		return 0, fmt.Errorf("%w: short read for uint8", errFrame)
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v, nil
}

// ReadUint32 reads a fixed-width simple(uint32)
func (r *FrameReader) ReadUint32() (uint32, error) {
	if len(r.buf) < 4 {
		return 0, fmt.Errorf("%w: short read for uint32", errFrame)
	}
	v := byteOrder.Uint32(r.buf[:4])
	r.buf = r.buf[4:]
	return v, nil
}

// ReadUint64 reads a fixed-width simple(uint64)
func (r *FrameReader) ReadUint64() (uint64, error) {
	if len(r.buf) < 8 {
		return 0, fmt.Errorf("%w: short read for uint64", errFrame)
	}
	v := byteOrder.Uint64(r.buf[:8])
	r.buf = r.buf[8:]
	return v, nil
}

// ReadBytes reads a str: a uint32 length prefix followed by that many bytes
func (r *FrameReader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxFrameBytes {
		return nil, fmt.Errorf("%w: str length %d exceeds maximum %d", errFrame, n, maxFrameBytes)
	}
	if uint32(len(r.buf)) < n {
		return nil, fmt.Errorf("%w: short read for str of length %d", errFrame, n)
	}
	b := make([]byte, n)
	copy(b, r.buf[:n])
	r.buf = r.buf[n:]
	return b, nil
}

// ReadString reads a str as UTF-8 text
func (r *FrameReader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBigInt reads a non-negative big.Int written by WriteBigInt
func (r *FrameReader) ReadBigInt() (*big.Int, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// AtEnd reports whether every byte of the frame has been consumed; a
// complete round-trip reader calls this after its final field read so that
// trailing garbage is treated as a frame failure rather than silently
// ignored.
func (r *FrameReader) AtEnd() bool {
	return len(r.buf) == 0
}
