// Package servecmder provides the serve command, which runs the stream relay.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/bounder/pkg/config"
	"github.com/papercomputeco/bounder/pkg/eventstream"
	"github.com/papercomputeco/bounder/pkg/eventstream/kafka"
	"github.com/papercomputeco/bounder/pkg/logger"
	"github.com/papercomputeco/bounder/relay"
	"github.com/papercomputeco/bounder/relay/upstream"
)

type ServeCommander struct {
	input         string
	user          string
	output        string
	bind          string
	queueSize     int
	retryDelay    time.Duration
	eventsBrokers string

	logJSON  bool
	logFile  string
	logLevel string
	debug    bool

	v      *viper.Viper
	logger *slog.Logger
}

var serveFlagKeys = []string{
	config.FlagInput,
	config.FlagUser,
	config.FlagOutput,
	config.FlagBind,
	config.FlagQueueSize,
	config.FlagRetryDelay,
	config.FlagEventsBrokers,
}

const serveLongDesc string = `Run the stream relay.

Pulls a multipart/x-mixed-replace stream (such as an MJPEG camera feed) from
the --input URL and serves it to any number of HTTP clients on --output.
Every client starts at the next frame boundary and clients that cannot keep
up are dropped without slowing the others down. The upstream connection is
re-established after a short delay whenever it fails.

The relay also serves:
  /status     JSON status of the upstream and client count
  /healthz    liveness probe
  /metrics    Prometheus metrics (metrics.enabled, metrics.path)

When started with a config file, changes to source.url and source.user in
that file switch the upstream without dropping clients.

Examples:
  bounder serve -i http://10.0.0.8/mjpg/video.mjpg
  bounder serve -i http://camera.local/video -u admin:secret -o /cam.mjpg -b :9000
  bounder serve -i http://camera.local/video --events-brokers kafka:9092`

const serveShortDesc string = "Run the stream relay"

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
	}

	Configure(cmd)

	return cmd
}

// Configure registers the serve flags and run hooks on cmd. The root command
// uses it so "bounder -i <url>" behaves like "bounder serve -i <url>".
func Configure(cmd *cobra.Command) {
	cmder := &ServeCommander{}

	config.AddStringFlag(cmd, config.RelayFlags, config.FlagInput, &cmder.input)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagUser, &cmder.user)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagOutput, &cmder.output)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagBind, &cmder.bind)
	config.AddIntFlag(cmd, config.RelayFlags, config.FlagQueueSize, &cmder.queueSize)
	config.AddDurationFlag(cmd, config.RelayFlags, config.FlagRetryDelay, &cmder.retryDelay)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error); --debug forces debug")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		configDir, _ := cmd.Flags().GetString("config-dir")
		v, err := config.InitViper(configDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.BindRegisteredFlags(v, cmd, config.RelayFlags, serveFlagKeys)
		cmder.v = v
		return nil
	}

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cmder.debug, _ = cmd.Flags().GetBool("debug")
		return cmder.run(cmd.Context())
	}
}

func (c *ServeCommander) run(ctx context.Context) error {
	cfg, err := relayConfig(c.v)
	if err != nil {
		return err
	}

	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	publisher, err := newPublisher(c.v)
	if err != nil {
		return err
	}

	r, err := relay.New(cfg, publisher, log)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	c.watchConfig(r)

	log.Info("starting bounder",
		"listen", cfg.ListenAddr,
		"path", cfg.Path,
		"source", cfg.Source.Redacted(),
		"queue_size", cfg.QueueSize,
		"retry_delay", cfg.RetryDelay,
		"events", publisher != nil,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		log.Info("context done, shutting down")
		return nil
	}
}

// newLogger builds the console logger: colorized on a terminal, JSON with
// --log-json and plain text otherwise. With --log-file every record is also
// appended to that file as JSON.
func (c *ServeCommander) newLogger() (*slog.Logger, func(), error) {
	level, err := logger.ParseLevel(c.logLevel)
	if err != nil {
		return nil, nil, err
	}
	if c.debug {
		level = slog.LevelDebug
	}

	pretty := !c.logJSON && term.IsTerminal(int(os.Stdout.Fd()))
	console := logger.New(
		logger.WithLevel(level),
		logger.WithPretty(pretty),
		logger.WithJSON(c.logJSON),
	)

	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithLevel(level),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

// watchConfig switches the upstream source whenever the loaded config file
// changes. Flags still win over the file, so a source given with --input
// stays fixed.
func (c *ServeCommander) watchConfig(r *relay.Relay) {
	file := c.v.ConfigFileUsed()
	if file == "" {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		src := sourceFromViper(c.v)
		if err := config.ValidateSourceURL(src.URL); err != nil {
			c.logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}

		c.logger.Debug("config file changed", "file", e.Name, "op", e.Op.String())
		r.SetSource(src)
	})
	c.v.WatchConfig()

	c.logger.Info("watching config file", "file", file)
}

func sourceFromViper(v *viper.Viper) upstream.Source {
	return upstream.Source{
		URL:  strings.TrimSpace(v.GetString("source.url")),
		User: v.GetString("source.user"),
	}
}

// relayConfig resolves the relay configuration from flags, environment,
// config file and defaults, in that order of precedence.
func relayConfig(v *viper.Viper) (relay.Config, error) {
	src := sourceFromViper(v)
	if err := config.ValidateSourceURL(src.URL); err != nil {
		return relay.Config{}, err
	}

	path := v.GetString("server.path")
	if !strings.HasPrefix(path, "/") {
		return relay.Config{}, fmt.Errorf("invalid output path %q: must start with /", path)
	}

	queueSize := v.GetInt("relay.queue_size")
	if queueSize <= 0 {
		return relay.Config{}, fmt.Errorf("invalid queue size %d: must be positive", queueSize)
	}

	retryDelay := v.GetDuration("relay.retry_delay")
	if retryDelay <= 0 {
		return relay.Config{}, errors.New("invalid retry delay: must be a positive duration")
	}

	metricsPath := v.GetString("metrics.path")
	if !strings.HasPrefix(metricsPath, "/") {
		return relay.Config{}, fmt.Errorf("invalid metrics path %q: must start with /", metricsPath)
	}

	return relay.Config{
		ListenAddr:     v.GetString("server.listen"),
		Path:           path,
		Source:         src,
		QueueSize:      queueSize,
		RetryDelay:     retryDelay,
		ReadBuffer:     v.GetInt("relay.read_buffer"),
		MetricsEnabled: v.GetBool("metrics.enabled"),
		MetricsPath:    metricsPath,
	}, nil
}

// newPublisher returns the Kafka event publisher, or nil when no brokers are
// configured.
func newPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	brokers := config.SplitList(v.GetString("events.brokers"))
	if len(brokers) == 0 {
		return nil, nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   v.GetString("events.topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	return p, nil
}
