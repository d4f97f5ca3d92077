// Object pools for reducing GC pressure in hot paths
//
// Provides reusable object pools for commonly allocated types:
// - Coordinate slices (for decoding pen paths)
// - Byte buffers (for encoding servo link lines and API responses)
//
// Usage:
//
//	pts := pool.GetCoordSlice(len(raw))
//	defer pool.PutCoordSlice(pts)
//	// use *pts...
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"strconv"
	"sync"

	"github.com/jbeda/geom"
)

// Slices above this capacity are dropped instead of pooled.
const (
	maxPooledCoords = 1 << 16
	maxPooledBytes  = 4096
)

var coordSlicePool = sync.Pool{
	New: func() any {
		s := make([]geom.Coord, 0, 256)
		return &s
	},
}

// GetCoordSlice gets a zero-length coordinate slice with capacity for at
// least n points.
func GetCoordSlice(n int) *[]geom.Coord {
	s := coordSlicePool.Get().(*[]geom.Coord)
	if cap(*s) < n {
		*s = make([]geom.Coord, 0, n)
	}
	*s = (*s)[:0]
	return s
}

// PutCoordSlice returns a coordinate slice to the pool
func PutCoordSlice(s *[]geom.Coord) {
	if s == nil || cap(*s) > maxPooledCoords {
		return
	}
	*s = (*s)[:0]
	coordSlicePool.Put(s)
}

// ByteBuffer is an append-only buffer with float formatting helpers.
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{
			buf: make([]byte, 0, 64),
		}
	},
}

// GetByteBuffer gets a byte buffer from the pool
func GetByteBuffer() *ByteBuffer {
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns a byte buffer to the pool
func PutByteBuffer(b *ByteBuffer) {
	if b == nil || cap(b.buf) > maxPooledBytes {
		return
	}
	byteBufferPool.Put(b)
}

// Bytes returns the buffer's byte slice
func (b *ByteBuffer) Bytes() []byte {
	return b.buf
}

// String returns the buffer contents as a string.
func (b *ByteBuffer) String() string {
	return string(b.buf)
}

// Write appends bytes to the buffer
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte
func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteString appends a string
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// AppendFloat appends f in fixed notation with prec decimals.
func (b *ByteBuffer) AppendFloat(f float64, prec int) {
	b.buf = strconv.AppendFloat(b.buf, f, 'f', prec, 64)
}

// Len returns the buffer length
func (b *ByteBuffer) Len() int {
	return len(b.buf)
}

// Cap returns the buffer capacity
func (b *ByteBuffer) Cap() int {
	return cap(b.buf)
}

// Reset clears the buffer
func (b *ByteBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Grow ensures the buffer has capacity for n more bytes
func (b *ByteBuffer) Grow(n int) {
	if cap(b.buf)-len(b.buf) < n {
		newBuf := make([]byte, len(b.buf), cap(b.buf)*2+n)
		copy(newBuf, b.buf)
		b.buf = newBuf
	}
}
