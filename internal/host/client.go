package host

import (
	"bytes"
	"compress/gzip"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ddrscott/relay-tty/internal/protocol"
	"github.com/ddrscott/relay-tty/internal/term"
)

// client is one accepted connection: handshake, replay, then steady-state
// forwarding in both directions until the socket closes.
type client struct {
	id   string
	host *Host
	conn net.Conn
	sub  *subscriber
}

func (h *Host) serveClient(conn net.Conn) {
	c := &client{
		id:   uuid.NewString(),
		host: h,
		conn: conn,
		sub:  h.hub.subscribe(),
	}
	slog.Debug("client connected", "session", h.id, "client", c.id, "total", h.hub.count())

	defer func() {
		h.hub.unsubscribe(c.sub)
		_ = conn.Close()
		slog.Debug("client disconnected", "session", h.id, "client", c.id)
	}()

	c.run()
}

func (c *client) run() {
	dec := &protocol.Decoder{}

	first, status := c.readFirstFrame(dec)
	switch status {
	case firstFrameClosed:
		return
	case firstFrameTimeout:
		// A fresh attach never speaks first; the expired window means
		// this is not a reattacher.
		c.sendFullReplay()
	case firstFrameReceived:
		if first.Type == protocol.MsgResume {
			c.handleResume(first.Body)
		} else {
			c.sendFullReplay()
			c.dispatch(first)
		}
	}

	c.host.mu.RLock()
	exit := c.host.exitCode
	c.host.mu.RUnlock()
	if exit != nil {
		c.write(protocol.ExitFrame(int32(*exit)))
	}

	// The handshake sequence is fully written; from here the forwarder
	// is the sole writer on this connection.
	go c.forward()
	c.readLoop(dec)
}

type firstFrameStatus int

const (
	firstFrameReceived firstFrameStatus = iota
	firstFrameTimeout
	firstFrameClosed
)

// readFirstFrame waits up to the resume window for the client's opening
// frame.
func (c *client) readFirstFrame(dec *protocol.Decoder) (protocol.Frame, firstFrameStatus) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.host.cfg.ResumeWindow))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	buf := make([]byte, readChunkSize)
	for {
		if frame, ok := dec.Next(); ok {
			return frame, firstFrameReceived
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return protocol.Frame{}, firstFrameTimeout
			}
			return protocol.Frame{}, firstFrameClosed
		}
	}
}

// handleResume serves a delta when the client's offset is still inside
// the ring, otherwise falls back to a full replay. A malformed body or a
// non-positive offset also means full replay.
func (c *client) handleResume(body []byte) {
	offset, ok := protocol.DecodeResume(body)
	if !ok || offset <= 0 {
		c.sendFullReplay()
		return
	}

	c.host.mu.RLock()
	delta, inRange := c.host.ring.ReadFrom(offset)
	c.host.mu.RUnlock()

	if !inRange {
		c.sendFullReplay()
		return
	}
	c.sendReplay(delta)
}

func (c *client) sendFullReplay() {
	c.host.mu.RLock()
	data := c.host.ring.ReadForReplay()
	c.host.mu.RUnlock()
	c.sendReplay(data)
}

// sendReplay writes the replay sequence: the (query-stripped, possibly
// gzipped) bytes, then SYNC, then the current title and activity state.
func (c *client) sendReplay(data []byte) {
	cleaned := term.StripQueries(data)
	if len(cleaned) > 0 {
		c.write(replayFrame(cleaned, c.host.cfg.GzipThreshold))
	}

	c.host.mu.RLock()
	total := float64(c.host.ring.TotalWritten())
	title := c.host.title
	active := c.host.sessionActive
	c.host.mu.RUnlock()

	c.write(protocol.SyncFrame(total))
	if title != "" {
		c.write(protocol.TitleFrame(title))
	}
	c.write(protocol.SessionStateFrame(active))
}

// replayFrame picks the compressed encoding only when it actually wins.
func replayFrame(cleaned []byte, gzipThreshold int) []byte {
	if len(cleaned) >= gzipThreshold {
		if compressed, err := gzipBytes(cleaned); err == nil && len(compressed) < len(cleaned) {
			return protocol.ReplayGzFrame(compressed)
		}
	}
	return protocol.ReplayFrame(cleaned)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// forward drains the broadcast queue into the socket. The queue channel
// closes when the client disconnects or falls too far behind; either way
// the connection is shut down.
func (c *client) forward() {
	for frame := range c.sub.ch {
		if _, err := c.conn.Write(frame); err != nil {
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.Close()
}

// readLoop decodes steady-state frames from the client until EOF.
func (c *client) readLoop(dec *protocol.Decoder) {
	buf := make([]byte, readChunkSize)
	for {
		for {
			frame, ok := dec.Next()
			if !ok {
				break
			}
			c.dispatch(frame)
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// dispatch routes one client frame. RESUME after the handshake and any
// unknown type are ignored.
func (c *client) dispatch(frame protocol.Frame) {
	switch frame.Type {
	case protocol.MsgData:
		if len(frame.Body) > 0 {
			c.host.input <- frame.Body
		}
	case protocol.MsgResize:
		if cols, rows, ok := protocol.DecodeResize(frame.Body); ok && cols > 0 && rows > 0 {
			c.host.resize <- winsize{cols: cols, rows: rows}
		}
	}
}

func (c *client) write(frame []byte) {
	if _, err := c.conn.Write(frame); err != nil {
		slog.Debug("client write failed", "session", c.host.id, "client", c.id, "error", err)
	}
}
