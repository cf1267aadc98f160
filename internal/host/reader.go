package host

import (
	"log/slog"

	"github.com/ddrscott/relay-tty/internal/meta"
	"github.com/ddrscott/relay-tty/internal/protocol"
	"github.com/ddrscott/relay-tty/internal/term"
)

const readChunkSize = 64 * 1024

// readPump drains the PTY master into the ring buffer and the broadcast
// hub until the stream ends, then reaps the child and initiates shutdown.
func (h *Host) readPump() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := h.session.Read(buf)
		if n > 0 {
			h.handleOutput(buf[:n])
		}
		if err != nil {
			// EOF, or EIO once the child side is gone.
			break
		}
	}

	code := h.session.Wait()
	h.hub.broadcast(protocol.ExitFrame(int32(code)))

	h.mu.Lock()
	now := meta.NowMillis()
	h.exitCode = &code
	h.meta.Status = meta.StatusExited
	h.meta.ExitCode = &code
	h.meta.ExitedAt = &now
	h.metaDirty = false
	snapshot := *h.meta
	h.mu.Unlock()

	if err := meta.WriteAtomic(h.sessionPath, &snapshot); err != nil {
		slog.Warn("failed to write session metadata", "session", h.id, "error", err)
	}
	slog.Info("child exited", "session", h.id, "code", code)
	h.done <- code
}

// handleOutput processes one chunk of PTY output: title detection, OSC 9
// extraction, ring capture, activity bookkeeping, DATA broadcast.
func (h *Host) handleOutput(data []byte) {
	if title, ok := term.ParseTitle(data); ok {
		h.setTitle(title)
	}

	cleaned, notifications := term.ExtractNotifications(data)
	for _, msg := range notifications {
		h.hub.broadcast(protocol.NotificationFrame(msg))
	}

	if len(cleaned) == 0 {
		return
	}

	h.mu.Lock()
	h.ring.Write(cleaned)
	h.meta.LastActivity = meta.NowMillis()
	h.meta.TotalBytesWritten += float64(len(cleaned))
	h.meta.LastActiveAt = meta.ISONow()
	h.throughput.Record(len(cleaned))
	h.meta.BytesPerSecond = h.throughput.BPS1()
	h.metaDirty = true
	wasIdle := !h.sessionActive
	h.sessionActive = true
	h.mu.Unlock()

	if wasIdle {
		h.hub.broadcast(protocol.SessionStateFrame(true))
	}
	h.hub.broadcast(protocol.DataFrame(cleaned))
}

// setTitle records a changed title, flushes metadata immediately (the
// title is a discovery signal, not rate-limited) and broadcasts it.
func (h *Host) setTitle(title string) {
	h.mu.Lock()
	if h.title == title {
		h.mu.Unlock()
		return
	}
	h.title = title
	h.meta.Title = title
	h.metaDirty = false
	snapshot := *h.meta
	h.mu.Unlock()

	if err := meta.WriteAtomic(h.sessionPath, &snapshot); err != nil {
		slog.Warn("failed to write session metadata", "session", h.id, "error", err)
	}
	h.hub.broadcast(protocol.TitleFrame(title))
}
