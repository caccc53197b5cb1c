package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil stream event")

	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
