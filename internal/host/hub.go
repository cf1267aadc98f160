package host

import "sync"

// subscriber is one client's ordered frame queue. The queue is bounded; a
// client that cannot drain it fast enough is dropped rather than allowed
// to back-pressure the PTY reader.
type subscriber struct {
	ch     chan []byte
	closed bool
}

// hub fans encoded frames out to every attached client. One producer side
// (the multiplexer's goroutines) and N consumer sides (per-client
// forwarders).
type hub struct {
	mu        sync.Mutex
	subs      map[*subscriber]struct{}
	queueSize int
}

func newHub(queueSize int) *hub {
	return &hub{
		subs:      make(map[*subscriber]struct{}),
		queueSize: queueSize,
	}
}

func (h *hub) subscribe() *subscriber {
	s := &subscriber{ch: make(chan []byte, h.queueSize)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
	}
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// broadcast queues the frame on every subscriber. A subscriber with a full
// queue is removed and its channel closed; the forwarder observes the
// close and tears the connection down.
func (h *hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- frame:
		default:
			delete(h.subs, s)
			s.closed = true
			close(s.ch)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
