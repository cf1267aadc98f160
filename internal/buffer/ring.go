// Package buffer implements the bounded replay store for PTY output.
//
// A Ring keeps the most recent bytes of the output stream together with a
// monotonic counter of every byte ever written, so a reattaching client can
// ask for "everything after offset N" and get an exact delta as long as the
// data has not been overwritten yet.
package buffer

import "math"

// DefaultSize is the ring capacity used when no override is configured.
const DefaultSize = 10 * 1024 * 1024

// Ring is a fixed-capacity circular byte store. It is not safe for
// concurrent use; the multiplexer guards it with its state lock.
type Ring struct {
	buf          []byte
	writePos     int
	filled       bool
	totalWritten uint64
}

// New returns a Ring with the given capacity in bytes.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultSize
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Write appends data to the ring, overwriting the oldest bytes once full.
// The total-written counter always advances by len(data), even when the
// data is larger than the ring itself.
func (r *Ring) Write(data []byte) {
	r.totalWritten += uint64(len(data))

	capacity := len(r.buf)
	if len(data) >= capacity {
		// Larger than the ring: keep only the tail.
		copy(r.buf, data[len(data)-capacity:])
		r.writePos = 0
		r.filled = true
		return
	}

	spaceLeft := capacity - r.writePos
	if len(data) <= spaceLeft {
		copy(r.buf[r.writePos:], data)
		r.writePos += len(data)
	} else {
		copy(r.buf[r.writePos:], data[:spaceLeft])
		remaining := copy(r.buf, data[spaceLeft:])
		r.writePos = remaining
		r.filled = true
	}

	if r.writePos >= capacity {
		r.writePos = 0
		r.filled = true
	}
}

// Len reports the logical size: how many stream bytes the ring holds.
func (r *Ring) Len() int {
	if r.filled {
		return len(r.buf)
	}
	return r.writePos
}

// TotalWritten reports the cumulative number of bytes ever written.
func (r *Ring) TotalWritten() uint64 {
	return r.totalWritten
}

// ReadLinear returns the ring contents in stream order.
func (r *Ring) ReadLinear() []byte {
	if !r.filled {
		out := make([]byte, r.writePos)
		copy(out, r.buf[:r.writePos])
		return out
	}
	out := make([]byte, 0, len(r.buf))
	out = append(out, r.buf[r.writePos:]...)
	out = append(out, r.buf[:r.writePos]...)
	return out
}

// ReadForReplay returns the linearized contents, aligned to the first
// newline when the ring has wrapped. A wrapped ring may start mid-escape
// sequence or mid-codepoint; skipping to a line boundary keeps the replay
// renderable. Without a newline the contents are returned unchanged.
func (r *Ring) ReadForReplay() []byte {
	data := r.ReadLinear()
	if !r.filled {
		return data
	}
	for i, b := range data {
		if b == '\n' {
			if i == 0 {
				return data
			}
			return data[i+1:]
		}
	}
	return data
}

// ReadFrom returns the bytes written after the given absolute offset.
// The second return value is false when the offset predates the ring
// contents (overwritten); the caller must fall back to a full replay.
// A caught-up offset yields an empty slice with ok=true. Negative or
// non-finite offsets are treated as zero.
func (r *Ring) ReadFrom(offset float64) ([]byte, bool) {
	if math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		offset = 0
	}
	if offset >= float64(r.totalWritten) {
		return nil, true
	}

	bufferStart := r.totalWritten - uint64(r.Len())
	if offset < float64(bufferStart) {
		return nil, false
	}

	skip := uint64(offset) - bufferStart
	return r.ReadLinear()[skip:], true
}
