// Package protocol implements the framed wire protocol spoken over the
// session socket: a 4-byte big-endian length prefix followed by a payload
// whose first byte is the message type.
package protocol

import (
	"encoding/binary"
	"math"
)

// Message types. The values are part of the wire contract shared with
// every attach client and must not change.
const (
	MsgData           byte = 0x00
	MsgResize         byte = 0x01
	MsgExit           byte = 0x02
	MsgBufferReplay   byte = 0x03
	MsgTitle          byte = 0x04
	MsgNotification   byte = 0x05
	MsgResume         byte = 0x10
	MsgSync           byte = 0x11
	MsgSessionState   byte = 0x12
	MsgBufferReplayGz byte = 0x13
	MsgSessionMetrics byte = 0x14
)

// Encode wraps a payload in a length-prefixed frame.
func Encode(payload []byte) []byte {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	return frame
}

// EncodeTyped builds a frame whose payload is [type][body].
func EncodeTyped(msgType byte, body []byte) []byte {
	payload := make([]byte, 1+len(body))
	payload[0] = msgType
	copy(payload[1:], body)
	return Encode(payload)
}

// DataFrame carries PTY output or client keystrokes.
func DataFrame(data []byte) []byte {
	return EncodeTyped(MsgData, data)
}

// ResizeFrame carries new terminal dimensions.
func ResizeFrame(cols, rows uint16) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body, cols)
	binary.BigEndian.PutUint16(body[2:], rows)
	return EncodeTyped(MsgResize, body)
}

// ExitFrame carries the child's exit code.
func ExitFrame(code int32) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(code))
	return EncodeTyped(MsgExit, body)
}

// ResumeFrame carries the absolute byte offset a reattaching client holds.
func ResumeFrame(offset float64) []byte {
	return EncodeTyped(MsgResume, float64Bytes(offset))
}

// SyncFrame carries the total-written counter that anchors a client's
// offset tracking.
func SyncFrame(totalWritten float64) []byte {
	return EncodeTyped(MsgSync, float64Bytes(totalWritten))
}

// ReplayFrame carries uncompressed replay bytes.
func ReplayFrame(data []byte) []byte {
	return EncodeTyped(MsgBufferReplay, data)
}

// ReplayGzFrame carries gzip-compressed replay bytes.
func ReplayGzFrame(compressed []byte) []byte {
	return EncodeTyped(MsgBufferReplayGz, compressed)
}

// TitleFrame carries the session title as UTF-8.
func TitleFrame(title string) []byte {
	return EncodeTyped(MsgTitle, []byte(title))
}

// NotificationFrame carries an OSC 9 notification message.
func NotificationFrame(message string) []byte {
	return EncodeTyped(MsgNotification, []byte(message))
}

// SessionStateFrame carries the active/idle flag.
func SessionStateFrame(active bool) []byte {
	state := byte(0x00)
	if active {
		state = 0x01
	}
	return EncodeTyped(MsgSessionState, []byte{state})
}

// MetricsFrame carries the 1/5/15-minute rates and the total byte counter.
func MetricsFrame(bps1, bps5, bps15, totalBytes float64) []byte {
	body := make([]byte, 0, 32)
	body = append(body, float64Bytes(bps1)...)
	body = append(body, float64Bytes(bps5)...)
	body = append(body, float64Bytes(bps15)...)
	body = append(body, float64Bytes(totalBytes)...)
	return EncodeTyped(MsgSessionMetrics, body)
}

// Frame is one decoded message.
type Frame struct {
	Type byte
	Body []byte
}

// Decoder accumulates stream bytes and yields complete frames. Empty
// payloads are legal on the wire and skipped.
type Decoder struct {
	pending []byte
}

// Feed appends raw stream bytes to the decoder.
func (d *Decoder) Feed(p []byte) {
	d.pending = append(d.pending, p...)
}

// Next returns the next complete frame, or ok=false when more bytes are
// needed.
func (d *Decoder) Next() (Frame, bool) {
	for {
		if len(d.pending) < 4 {
			return Frame{}, false
		}
		size := int(binary.BigEndian.Uint32(d.pending))
		if len(d.pending) < 4+size {
			return Frame{}, false
		}

		payload := d.pending[4 : 4+size]
		d.pending = append([]byte(nil), d.pending[4+size:]...)

		if size == 0 {
			continue
		}
		body := append([]byte(nil), payload[1:]...)
		return Frame{Type: payload[0], Body: body}, true
	}
}

// DecodeResize parses a RESIZE body.
func DecodeResize(body []byte) (cols, rows uint16, ok bool) {
	if len(body) < 4 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(body), binary.BigEndian.Uint16(body[2:]), true
}

// DecodeResume parses a RESUME body. ok is false for a short body, which
// callers treat as a full-replay request.
func DecodeResume(body []byte) (offset float64, ok bool) {
	if len(body) < 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(body)), true
}

// DecodeExit parses an EXIT body.
func DecodeExit(body []byte) (int32, bool) {
	if len(body) < 4 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(body)), true
}

// DecodeFloat64 parses an 8-byte big-endian float body (SYNC).
func DecodeFloat64(body []byte) (float64, bool) {
	if len(body) < 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(body)), true
}

func float64Bytes(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}
