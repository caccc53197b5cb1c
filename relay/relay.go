// Package relay serves one upstream multipart stream to many HTTP clients.
//
// A Relay wires the upstream fetch loop into the broadcast hub and exposes the
// hub over Fiber: every request on the output path attaches a consumer and
// streams from the next frame boundary on, until the consumer is detached.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/bounder/pkg/eventstream"
	"github.com/papercomputeco/bounder/pkg/eventstream/nop"
	"github.com/papercomputeco/bounder/pkg/logger"
	"github.com/papercomputeco/bounder/pkg/metrics"
	"github.com/papercomputeco/bounder/relay/header"
	"github.com/papercomputeco/bounder/relay/hub"
	"github.com/papercomputeco/bounder/relay/upstream"
	"github.com/papercomputeco/bounder/relay/worker"
)

const shutdownTimeout = 5 * time.Second

// Relay is the stream relay server. It owns the upstream connection, the
// broadcast hub and the client-facing HTTP server.
type Relay struct {
	config     Config
	hub        *hub.Hub
	fetcher    *upstream.Fetcher
	metrics    *metrics.Collector
	publisher  eventstream.Publisher
	workerPool *worker.Pool
	logger     *slog.Logger
	server     *fiber.App

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	fetchDone chan struct{}
}

// New creates a new Relay. A nil publisher disables stream events.
func New(config Config, publisher eventstream.Publisher, log *slog.Logger) (*Relay, error) {
	config.applyDefaults()

	if log == nil {
		log = logger.Nop()
	}
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	wp, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	r := &Relay{
		config:     config,
		metrics:    metrics.NewCollector(nil),
		publisher:  publisher,
		workerPool: wp,
		logger:     log,
		fetchDone:  make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	events := &lifecycle{
		metrics: r.metrics,
		pool:    wp,
		logger:  log,
		listen:  config.ListenAddr,
		source:  func() upstream.Source { return r.fetcher.Source() },
	}

	r.hub = hub.New(
		hub.WithQueueSize(config.QueueSize),
		hub.WithObserver(events),
	)
	r.fetcher = upstream.NewFetcher(config.Source, r.hub,
		upstream.WithRetryDelay(config.RetryDelay),
		upstream.WithSessionOptions(upstream.WithReadBuffer(config.ReadBuffer)),
		upstream.WithFetcherLogger(log),
		upstream.WithFetcherObserver(events),
	)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.All(config.Path, r.handleStream)
	app.Get("/status", r.handleStatus)
	app.Get("/healthz", r.handleHealth)
	if config.MetricsEnabled {
		app.Get(config.MetricsPath, adaptor.HTTPHandler(r.metrics.Handler()))
	}

	r.server = app
	return r, nil
}

// Run starts the upstream fetch loop and serves clients on the configured
// listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"path", r.config.Path,
		"upstream", r.config.Source.Redacted(),
	)

	r.startFetcher()
	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the fetch loop and serves clients on listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"path", r.config.Path,
		"upstream", r.config.Source.Redacted(),
	)

	r.startFetcher()
	return r.server.Listener(listener)
}

// SetSource switches the relay to a new upstream. Attached clients stay
// connected and resume at the new stream's first frame.
func (r *Relay) SetSource(src upstream.Source) {
	r.fetcher.SetSource(src)
}

// Close stops the fetch loop, ends every client stream, shuts the server down
// and waits for pending events to be published.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.cancel()
		r.startOnce.Do(func() { close(r.fetchDone) })
		<-r.fetchDone

		r.hub.Close()
		err = r.server.ShutdownWithTimeout(shutdownTimeout)
		r.workerPool.Close()

		if cerr := r.publisher.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing event publisher: %w", cerr)
		}
	})
	return err
}

func (r *Relay) startFetcher() {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.fetchDone)
			_ = r.fetcher.Run(r.ctx)
		}()
	})
}

// handleStream attaches a consumer and streams its queue as the response body.
// The response ends when the hub drops the consumer or the client goes away.
func (r *Relay) handleStream(c *fiber.Ctx) error {
	sub := r.hub.Attach()

	r.logger.Info("client connected",
		"consumer_id", sub.ID,
		"remote", c.IP(),
		"method", c.Method(),
		"status", sub.Status,
	)

	c.Status(sub.Status)
	header.SetClientResponseHeaders(c, sub.Header)

	// io.Pipe gives per-write backpressure: fasthttp flushes each chunk to the
	// socket before the next Write returns.
	pr, pw := io.Pipe()
	go r.pump(sub, pw)

	c.Context().Response.ImmediateHeaderFlush = true
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pump copies queued payloads into the response pipe. A failed write means the
// client is gone, so the consumer is detached. fasthttp gives no signal while
// it waits on the body reader, so a client that leaves while nothing is queued
// (before its first frame start, or while the upstream is down) is noticed on
// the next write or when the relay stops.
func (r *Relay) pump(sub *hub.Subscription, pw *io.PipeWriter) {
	defer pw.Close()

	for {
		select {
		case <-r.ctx.Done():
			r.hub.Detach(sub.ID)
			r.logger.Debug("client stream ended by shutdown", "consumer_id", sub.ID)
			return
		case data, ok := <-sub.C:
			if !ok {
				r.logger.Debug("client stream ended by hub", "consumer_id", sub.ID)
				return
			}
			if _, err := pw.Write(data); err != nil {
				r.hub.Detach(sub.ID)
				r.logger.Info("client disconnected", "consumer_id", sub.ID)
				return
			}
		}
	}
}
