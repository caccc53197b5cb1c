package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/bounder/pkg/eventstream"
	"github.com/papercomputeco/bounder/pkg/metrics"
	"github.com/papercomputeco/bounder/relay/boundary"
	"github.com/papercomputeco/bounder/relay/hub"
	"github.com/papercomputeco/bounder/relay/upstream"
	"github.com/papercomputeco/bounder/relay/worker"
)

// lifecycle turns hub and upstream callbacks into metrics and stream events.
// It implements both hub.Observer and upstream.Observer.
type lifecycle struct {
	metrics *metrics.Collector
	pool    *worker.Pool
	logger  *slog.Logger
	listen  string

	// source reports the upstream for consumer events.
	source func() upstream.Source
}

var (
	_ hub.Observer      = (*lifecycle)(nil)
	_ upstream.Observer = (*lifecycle)(nil)
)

func (l *lifecycle) ConsumerAttached(id string) {
	l.metrics.ConsumerAttached()
	l.logger.Debug("consumer attached", "consumer_id", id)

	event := l.newEvent(eventstream.EventTypeConsumerAttached, l.source())
	event.Consumer = &eventstream.ConsumerMeta{ID: id}
	l.publish(event)
}

func (l *lifecycle) ConsumerDetached(id string, reason hub.DetachReason) {
	l.metrics.ConsumerDetached(string(reason))
	l.logger.Debug("consumer detached", "consumer_id", id, "reason", reason)

	event := l.newEvent(eventstream.EventTypeConsumerDetached, l.source())
	event.Consumer = &eventstream.ConsumerMeta{ID: id, Reason: string(reason)}
	l.publish(event)
}

func (l *lifecycle) SessionStarted(src upstream.Source, status int, pattern boundary.Pattern) {
	l.metrics.SessionStarted()

	event := l.newEvent(eventstream.EventTypeSessionStarted, src)
	event.Session = &eventstream.SessionMeta{HTTPStatus: status, Boundary: pattern.String()}
	l.publish(event)
}

func (l *lifecycle) SessionEnded(src upstream.Source, err error) {
	// Shutdown cancels the running session; that is not an upstream failure.
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	l.metrics.SessionEnded(err)

	event := l.newEvent(eventstream.EventTypeSessionEnded, src)
	event.Session = &eventstream.SessionMeta{}
	if err != nil {
		event.Session.Error = err.Error()
	}
	l.publish(event)
}

func (l *lifecycle) ChunkReceived(n int) {
	l.metrics.BytesReceived(n)
}

func (l *lifecycle) SegmentBroadcast(seg boundary.Segment) {
	l.metrics.SegmentBroadcast(seg.FrameStart)
}

func (l *lifecycle) newEvent(eventType string, src upstream.Source) *eventstream.StreamEvent {
	return eventstream.NewEvent(eventType, eventstream.EventSource{
		Listen:   l.listen,
		Upstream: src.Redacted(),
	})
}

func (l *lifecycle) publish(event *eventstream.StreamEvent) {
	l.pool.Enqueue(worker.Job{Event: event})
}
