// Package host implements the session multiplexer: one PTY in, a replay
// ring and any number of attached clients out.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ddrscott/relay-tty/internal/buffer"
	"github.com/ddrscott/relay-tty/internal/config"
	"github.com/ddrscott/relay-tty/internal/meta"
	"github.com/ddrscott/relay-tty/internal/metrics"
	"github.com/ddrscott/relay-tty/internal/protocol"
	"github.com/ddrscott/relay-tty/internal/pty"
)

type winsize struct {
	cols uint16
	rows uint16
}

// Options wire a spawned session into a Host.
type Options struct {
	ID      string
	Session *pty.Session
	Meta    *meta.Session
	Config  *config.Config
}

// Host owns the PTY master, the replay ring and the client socket for one
// session. All shared state sits behind a single RWMutex with short,
// non-blocking critical sections; I/O always happens on a snapshot taken
// outside the lock.
type Host struct {
	cfg         *config.Config
	id          string
	socketPath  string
	sessionPath string

	session  *pty.Session
	hub      *hub
	listener net.Listener

	input  chan []byte
	resize chan winsize
	done   chan int

	mu                 sync.RWMutex
	ring               *buffer.Ring
	meta               *meta.Session
	metaDirty          bool
	sessionActive      bool
	exitCode           *int
	throughput         *metrics.Tracker
	title              string
	lastMetricsNonzero bool
}

// New binds the session socket and persists the initial metadata. A stale
// socket left by a crashed predecessor is unlinked before binding.
func New(opts Options) (*Host, error) {
	cfg := opts.Config
	h := &Host{
		cfg:           cfg,
		id:            opts.ID,
		socketPath:    cfg.SocketPath(opts.ID),
		sessionPath:   cfg.SessionPath(opts.ID),
		session:       opts.Session,
		hub:           newHub(cfg.ClientQueueSize),
		input:         make(chan []byte, 256),
		resize:        make(chan winsize, 16),
		done:          make(chan int, 1),
		ring:          buffer.New(cfg.RingSize),
		meta:          opts.Meta,
		sessionActive: true,
		throughput:    metrics.NewTracker(),
	}

	if err := meta.WriteAtomic(h.sessionPath, h.meta); err != nil {
		slog.Warn("failed to write session metadata", "session", h.id, "error", err)
	}

	_ = os.Remove(h.socketPath)
	ln, err := net.Listen("unix", h.socketPath)
	if err != nil {
		return nil, fmt.Errorf("host: bind %s: %w", h.socketPath, err)
	}
	h.listener = ln
	return h, nil
}

// Run drives the session until the child exits, then gives attached
// clients a short drain window for the EXIT frame before tearing the
// socket down. The return value is the host's process exit code: 0 for
// any classified child exit, 1 for an abnormal one.
func (h *Host) Run() int {
	go h.watchSigterm()
	go h.writePump()
	go h.resizePump()
	go h.flushLoop()
	go h.idleLoop()
	go h.metricsLoop()
	go h.acceptLoop()
	go h.readPump()

	code := <-h.done

	time.Sleep(h.cfg.DrainDelay)
	_ = h.listener.Close()
	_ = os.Remove(h.socketPath)
	h.session.Close()

	h.mu.Lock()
	h.throughput.Stop()
	h.mu.Unlock()

	if code >= 0 {
		return 0
	}
	return 1
}

// watchSigterm mirrors the clean-shutdown contract: kill the child, mark
// the session exited, drop the socket, exit 0.
func (h *Host) watchSigterm() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM)
	<-ch

	h.session.Terminate()

	h.mu.Lock()
	now := meta.NowMillis()
	code := -1
	h.meta.Status = meta.StatusExited
	h.meta.ExitCode = &code
	h.meta.ExitedAt = &now
	snapshot := *h.meta
	h.mu.Unlock()

	if err := meta.WriteAtomic(h.sessionPath, &snapshot); err != nil {
		slog.Warn("failed to write session metadata", "session", h.id, "error", err)
	}
	_ = os.Remove(h.socketPath)
	os.Exit(0)
}

func (h *Host) acceptLoop() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		go h.serveClient(conn)
	}
}

// writePump is the sole origin of bytes written to the master fd. Write
// errors mean the child is gone; the input is discarded silently.
func (h *Host) writePump() {
	for data := range h.input {
		_, _ = h.session.Write(data)
	}
}

func (h *Host) resizePump() {
	for ws := range h.resize {
		if err := h.session.Resize(ws.cols, ws.rows); err != nil {
			continue
		}
		// Dimensions become durable on the next output-triggered flush;
		// the resize itself does not dirty the metadata.
		h.mu.Lock()
		h.meta.Cols = ws.cols
		h.meta.Rows = ws.rows
		h.mu.Unlock()
	}
}

// flushLoop persists dirty metadata every flush interval, refreshing the
// rate fields on the way out. It stops after the exit code is recorded;
// the reaper performs the final flush itself.
func (h *Host) flushLoop() {
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.Lock()
		var snapshot *meta.Session
		if h.metaDirty {
			h.meta.BPS1 = h.throughput.BPS1()
			h.meta.BPS5 = h.throughput.BPS5()
			h.meta.BPS15 = h.throughput.BPS15()
			h.meta.BytesPerSecond = h.meta.BPS1
			copied := *h.meta
			snapshot = &copied
			h.metaDirty = false
		}
		exited := h.exitCode != nil
		h.mu.Unlock()

		if snapshot != nil {
			if err := meta.WriteAtomic(h.sessionPath, snapshot); err != nil {
				slog.Warn("failed to write session metadata", "session", h.id, "error", err)
			}
		}
		if exited {
			return
		}
	}
}

// idleLoop flips the session to idle after the configured quiet period.
// The reverse transition happens inline in the read pump when output
// arrives.
func (h *Host) idleLoop() {
	ticker := time.NewTicker(h.cfg.IdleCheckInterval)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.Lock()
		if h.exitCode != nil {
			h.mu.Unlock()
			return
		}
		idleFor := time.Duration(meta.NowMillis()-h.meta.LastActivity) * time.Millisecond
		wentIdle := h.sessionActive && idleFor >= h.cfg.IdleTimeout
		if wentIdle {
			h.sessionActive = false
			h.metaDirty = true
		}
		h.mu.Unlock()

		if wentIdle {
			h.hub.broadcast(protocol.SessionStateFrame(false))
		}
	}
}

// metricsLoop publishes SESSION_METRICS while any rate is at least 0.5,
// plus one final frame on the first tick where all rates have dropped
// below that, so clients see the decay without polling. It also detects the sustained-activity-to-quiet edge
// and turns it into a notification.
func (h *Host) metricsLoop() {
	ticker := time.NewTicker(h.cfg.MetricsInterval)
	defer ticker.Stop()

	prevSustained := false
	for range ticker.C {
		h.mu.Lock()
		if h.exitCode != nil {
			h.mu.Unlock()
			return
		}
		bps1 := h.throughput.BPS1()
		bps5 := h.throughput.BPS5()
		bps15 := h.throughput.BPS15()
		h.meta.BPS1 = bps1
		h.meta.BPS5 = bps5
		h.meta.BPS15 = bps15
		h.meta.BytesPerSecond = bps1
		total := h.meta.TotalBytesWritten

		anyNonzero := bps1 >= 0.5 || bps5 >= 0.5 || bps15 >= 0.5
		send := anyNonzero || h.lastMetricsNonzero
		h.lastMetricsNonzero = anyNonzero
		h.mu.Unlock()

		if send {
			h.hub.broadcast(protocol.MetricsFrame(bps1, bps5, bps15, total))
		}

		sustained := bps5 > 100.0
		if prevSustained && bps1 < 1.0 && !sustained {
			h.hub.broadcast(protocol.NotificationFrame("Session idle"))
		}
		prevSustained = sustained
	}
}
