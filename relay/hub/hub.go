// Package hub fans upstream segments out to every attached consumer.
//
// The hub owns the shared stream state: the last upstream status and headers,
// and the ordered list of consumers. Every mutation goes through Attach, Detach,
// Broadcast, UpdateStreamState or Close, and all of them hold a single mutex for
// the duration of one pass only. Sends to consumer queues never block: a
// consumer whose queue is full is evicted on the spot.
package hub

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/bounder/relay/boundary"
	"github.com/papercomputeco/bounder/relay/header"
)

const defaultQueueSize = 256

// DetachReason says why a consumer left the hub.
type DetachReason string

const (
	// DetachEvicted means the consumer's queue was full during a broadcast.
	DetachEvicted DetachReason = "evicted"

	// DetachClosed means the downstream side went away and called Detach.
	DetachClosed DetachReason = "closed"

	// DetachShutdown means the hub was closed.
	DetachShutdown DetachReason = "shutdown"
)

// Observer is notified about consumer lifecycle changes. Callbacks run after
// the hub lock has been released, on the goroutine that caused the change.
type Observer interface {
	ConsumerAttached(id string)
	ConsumerDetached(id string, reason DetachReason)
}

// Subscription is what a downstream connection gets from Attach.
type Subscription struct {
	// ID identifies the consumer for Detach.
	ID string

	// Status and Header are the stream state at attach time.
	Status int
	Header http.Header

	// C delivers payloads. It is closed once the hub drops the consumer.
	C <-chan []byte
}

// State is a point-in-time copy of the stream state.
type State struct {
	Status    int
	Header    http.Header
	Consumers int
}

type consumer struct {
	id      string
	queue   chan []byte
	started bool
}

// Hub is the broadcast hub. The zero value is not usable; call New.
type Hub struct {
	mu        sync.Mutex
	status    int
	header    http.Header
	consumers []*consumer
	closed    bool

	queueSize int
	observer  Observer
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize sets the per-consumer queue capacity (defaults to 256).
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithObserver registers an Observer for consumer lifecycle changes.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		h.observer = o
	}
}

// New creates a Hub. Until the first UpdateStreamState it reports
// 502 Bad Gateway with no headers.
func New(opts ...Option) *Hub {
	h := &Hub{
		status:    http.StatusBadGateway,
		header:    http.Header{},
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach registers a new consumer. The consumer receives nothing until the
// first frame-start segment broadcast after this call.
func (h *Hub) Attach() *Subscription {
	c := &consumer{
		id:    uuid.NewString(),
		queue: make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	sub := &Subscription{
		ID:     c.id,
		Status: h.status,
		Header: h.header.Clone(),
		C:      c.queue,
	}
	if h.closed {
		h.mu.Unlock()
		close(c.queue)
		return sub
	}
	h.consumers = append(h.consumers, c)
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.ConsumerAttached(c.id)
	}
	return sub
}

// Detach removes the consumer with the given ID and closes its queue. It
// reports whether the consumer was still attached.
func (h *Hub) Detach(id string) bool {
	h.mu.Lock()
	removed := false
	for i, c := range h.consumers {
		if c.id == id {
			h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
			close(c.queue)
			removed = true
			break
		}
	}
	h.mu.Unlock()

	if removed && h.observer != nil {
		h.observer.ConsumerDetached(id, DetachClosed)
	}
	return removed
}

// Broadcast delivers seg to every started consumer in attach order. A
// frame-start segment starts every consumer that has not started yet. A
// consumer that cannot take the segment immediately is evicted.
func (h *Hub) Broadcast(seg boundary.Segment) {
	var evicted []string

	h.mu.Lock()
	kept := h.consumers[:0]
	for _, c := range h.consumers {
		if seg.FrameStart {
			c.started = true
		}
		if c.started {
			select {
			case c.queue <- seg.Data:
			default:
				close(c.queue)
				evicted = append(evicted, c.id)
				continue
			}
		}
		kept = append(kept, c)
	}
	clear(h.consumers[len(kept):])
	h.consumers = kept
	h.mu.Unlock()

	if h.observer != nil {
		for _, id := range evicted {
			h.observer.ConsumerDetached(id, DetachEvicted)
		}
	}
}

// UpdateStreamState replaces the status and headers handed to new consumers.
// Connection and Content-Length are dropped: framing toward each client is
// decided by the downstream server.
//
// A new upstream response is a new byte stream, so attached consumers wait
// for its first frame-start segment before receiving anything else.
func (h *Hub) UpdateStreamState(status int, hdr http.Header) {
	forwarded := header.Forwardable(hdr)

	h.mu.Lock()
	h.status = status
	h.header = forwarded
	for _, c := range h.consumers {
		c.started = false
	}
	h.mu.Unlock()
}

// Snapshot returns a copy of the current stream state.
func (h *Hub) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return State{
		Status:    h.status,
		Header:    h.header.Clone(),
		Consumers: len(h.consumers),
	}
}

// Len returns the number of attached consumers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.consumers)
}

// Close detaches every consumer. Later Attach calls return subscriptions whose
// channel is already closed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	dropped := h.consumers
	h.consumers = nil
	for _, c := range dropped {
		close(c.queue)
	}
	h.mu.Unlock()

	if h.observer != nil {
		for _, c := range dropped {
			h.observer.ConsumerDetached(c.id, DetachShutdown)
		}
	}
}
