// Package upstream owns the connection to the stream source.
//
// A Session is a single GET against the source: it publishes the response
// status and headers to the hub, then cuts every body chunk into segments and
// broadcasts them. The Fetcher runs sessions back to back, forever, with a
// fixed pause in between.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/bounder/pkg/logger"
	"github.com/papercomputeco/bounder/relay/boundary"
	"github.com/papercomputeco/bounder/relay/header"
)

const defaultReadBuffer = 32 * 1024

// ErrNoSource is returned by Session.Run when no source URL is configured.
var ErrNoSource = errors.New("no source URL configured")

// Source describes where the relay pulls its stream from.
type Source struct {
	// URL is the upstream stream URL, e.g. http://10.0.0.8/mjpg/video.mjpg
	URL string

	// User is an optional "user:password" Basic auth credential.
	User string
}

// Redacted returns the URL with any password masked, for logs and status.
func (s Source) Redacted() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return s.URL
	}
	return u.Redacted()
}

// Hub is the part of the broadcast hub a session writes to.
type Hub interface {
	UpdateStreamState(status int, header http.Header)
	Broadcast(seg boundary.Segment)
}

// Observer is told about session progress. Implementations must not block.
type Observer interface {
	SessionStarted(src Source, status int, pattern boundary.Pattern)
	SessionEnded(src Source, err error)
	ChunkReceived(n int)
	SegmentBroadcast(seg boundary.Segment)
}

// NopObserver ignores every callback. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) SessionStarted(Source, int, boundary.Pattern) {}
func (NopObserver) SessionEnded(Source, error)                   {}
func (NopObserver) ChunkReceived(int)                            {}
func (NopObserver) SegmentBroadcast(boundary.Segment)            {}

// Session is one upstream connection. A Session is not reusable.
type Session struct {
	source     Source
	hub        Hub
	client     *http.Client
	readBuffer int
	logger     *slog.Logger
	observer   Observer
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient overrides the HTTP client used for the upstream request.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.client = c
		}
	}
}

// WithReadBuffer sets the maximum chunk size read from the body at once.
func WithReadBuffer(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.readBuffer = n
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an Observer for session progress.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewSession creates a Session that feeds hub from src.
func NewSession(src Source, hub Hub, opts ...SessionOption) *Session {
	s := &Session{
		source:     src,
		hub:        hub,
		client:     DefaultHTTPClient(),
		readBuffer: defaultReadBuffer,
		logger:     logger.Nop(),
		observer:   NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultHTTPClient returns a client suited to an endless stream: no overall
// timeout, but bounded connect and response-header waits.
func DefaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = 15 * time.Second

	return &http.Client{Transport: transport}
}

// Run performs the request and streams the body into the hub until the body
// ends (nil), a read fails, or ctx is cancelled. It never retries.
func (s *Session) Run(ctx context.Context) error {
	if s.source.URL == "" {
		return ErrNoSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source.URL, nil)
	if err != nil {
		return fmt.Errorf("creating upstream request: %w", err)
	}
	header.SetUpstreamRequestHeaders(req, s.source.User)

	s.logger.Info("connecting to upstream", "url", s.source.Redacted())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	pattern := boundary.Configure(resp.Header.Get("Content-Type"))
	s.logger.Info("upstream connected",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"boundary", pattern.String(),
	)

	s.hub.UpdateStreamState(resp.StatusCode, resp.Header)
	s.observer.SessionStarted(s.source, resp.StatusCode, pattern)

	buf := make([]byte, s.readBuffer)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			// Consumers hold on to segments after Broadcast returns, so each
			// chunk gets its own backing array.
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.observer.ChunkReceived(n)

			for _, seg := range boundary.Split(chunk, pattern) {
				s.hub.Broadcast(seg)
				s.observer.SegmentBroadcast(seg)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("upstream stream ended")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading upstream body: %w", err)
		}
	}
}
