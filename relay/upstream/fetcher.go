package upstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/bounder/pkg/logger"
	"github.com/papercomputeco/bounder/relay/boundary"
)

// DefaultRetryDelay is the fixed pause between two sessions.
const DefaultRetryDelay = 3000 * time.Millisecond

// State is the fetch loop's position in its connect cycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateWaiting    State = "waiting"
)

// Stats is a snapshot of the fetch loop.
type Stats struct {
	State         State
	Source        string
	Sessions      uint64
	Failures      uint64
	LastError     string
	LastConnected time.Time
	Status        int
	Boundary      string
}

// Fetcher supervises upstream sessions for the lifetime of the process. It
// is the only owner of the upstream connection.
type Fetcher struct {
	hub         Hub
	retryDelay  time.Duration
	sessionOpts []SessionOption
	logger      *slog.Logger
	observer    Observer

	mu     sync.Mutex
	source Source
	cancel context.CancelFunc
	stats  Stats
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryDelay sets the pause between sessions (defaults to 3s).
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.retryDelay = d
		}
	}
}

// WithSessionOptions passes options to every Session the Fetcher creates.
func WithSessionOptions(opts ...SessionOption) FetcherOption {
	return func(f *Fetcher) {
		f.sessionOpts = append(f.sessionOpts, opts...)
	}
}

// WithFetcherLogger sets the logger for the loop and its sessions.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFetcherObserver registers an Observer for every session.
func WithFetcherObserver(o Observer) FetcherOption {
	return func(f *Fetcher) {
		if o != nil {
			f.observer = o
		}
	}
}

// NewFetcher creates a Fetcher that feeds hub from src.
func NewFetcher(src Source, hub Hub, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		hub:        hub,
		retryDelay: DefaultRetryDelay,
		logger:     logger.Nop(),
		observer:   NopObserver{},
		source:     src,
		stats:      Stats{State: StateIdle, Source: src.Redacted()},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run connects, streams, waits and reconnects until ctx is cancelled. Session
// errors are logged and never end the loop. Run only returns ctx.Err().
func (f *Fetcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			f.setState(StateIdle)
			return err
		}

		src, sessCtx, cancel := f.begin(ctx)

		opts := make([]SessionOption, 0, len(f.sessionOpts)+2)
		opts = append(opts, WithLogger(f.logger))
		opts = append(opts, f.sessionOpts...)
		opts = append(opts, WithObserver(&trackingObserver{Observer: f.observer, fetcher: f}))

		err := NewSession(src, f.hub, opts...).Run(sessCtx)
		replaced := sessCtx.Err() != nil && ctx.Err() == nil
		cancel()

		f.end(src, err, replaced)

		timer := time.NewTimer(f.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.setState(StateIdle)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetSource replaces the source used by the next session and ends the
// current one. The usual retry delay applies before reconnecting.
func (f *Fetcher) SetSource(src Source) {
	f.mu.Lock()
	if src == f.source {
		f.mu.Unlock()
		return
	}
	f.source = src
	f.stats.Source = src.Redacted()
	cancel := f.cancel
	f.mu.Unlock()

	f.logger.Info("upstream source changed", "url", src.Redacted())
	if cancel != nil {
		cancel()
	}
}

// Source returns the source the next session will use.
func (f *Fetcher) Source() Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

// State returns the current loop state.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats.State
}

// Stats returns a snapshot of the loop.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Fetcher) begin(ctx context.Context) (Source, context.Context, context.CancelFunc) {
	sessCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancel = cancel
	f.stats.State = StateConnecting
	f.stats.Sessions++
	f.stats.Status = 0
	f.stats.Boundary = ""
	return f.source, sessCtx, cancel
}

func (f *Fetcher) end(src Source, err error, replaced bool) {
	f.mu.Lock()
	f.cancel = nil
	f.stats.State = StateWaiting
	if err != nil && !replaced && !errors.Is(err, context.Canceled) {
		f.stats.Failures++
		f.stats.LastError = err.Error()
	}
	f.mu.Unlock()

	switch {
	case replaced:
		f.logger.Info("upstream session stopped for source change", "url", src.Redacted())
		err = nil
	case err == nil:
		f.logger.Info("upstream session ended, reconnecting", "delay", f.retryDelay)
	case errors.Is(err, context.Canceled):
		f.logger.Debug("upstream session cancelled")
	default:
		f.logger.Error("upstream session failed",
			"url", src.Redacted(),
			"error", err,
			"delay", f.retryDelay,
		)
	}

	f.observer.SessionEnded(src, err)
}

func (f *Fetcher) setState(s State) {
	f.mu.Lock()
	f.stats.State = s
	f.mu.Unlock()
}

// trackingObserver moves the loop to Streaming once a response arrives and
// forwards every callback to the configured Observer.
type trackingObserver struct {
	Observer
	fetcher *Fetcher
}

func (t *trackingObserver) SessionStarted(src Source, status int, pattern boundary.Pattern) {
	t.fetcher.mu.Lock()
	t.fetcher.stats.State = StateStreaming
	t.fetcher.stats.Status = status
	t.fetcher.stats.Boundary = pattern.String()
	t.fetcher.stats.LastConnected = time.Now()
	t.fetcher.mu.Unlock()

	t.Observer.SessionStarted(src, status, pattern)
}
