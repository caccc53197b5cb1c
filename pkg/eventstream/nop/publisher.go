// Package nop provides the publisher used when stream events are disabled.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/bounder/pkg/eventstream"
)

// Publisher drops every event. It counts what it dropped so a relay running
// without brokers can still be inspected in tests.
type Publisher struct {
	discarded atomic.Uint64
	closed    atomic.Bool
}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish validates the event and discards it.
func (p *Publisher) Publish(_ context.Context, event *eventstream.StreamEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if p.closed.Load() {
		return eventstream.ErrPublisherClosed
	}

	p.discarded.Add(1)
	return nil
}

// Discarded returns how many events were accepted and dropped.
func (p *Publisher) Discarded() uint64 {
	return p.discarded.Load()
}

// Close marks the publisher closed. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}
