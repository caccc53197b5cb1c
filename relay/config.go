package relay

import (
	"time"

	"github.com/papercomputeco/bounder/relay/upstream"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "0.0.0.0:8080")
	ListenAddr string

	// Path is the output path clients request the stream from (e.g., "/video.mjpg")
	Path string

	// Source is the upstream stream the relay pulls from.
	Source upstream.Source

	// QueueSize is the per-consumer queue capacity, in segments.
	QueueSize int

	// RetryDelay is the pause between upstream sessions.
	RetryDelay time.Duration

	// ReadBuffer is the largest chunk read from the upstream body at once.
	ReadBuffer int

	// MetricsEnabled mounts the Prometheus handler at MetricsPath.
	MetricsEnabled bool

	// MetricsPath is where metrics are served (e.g., "/metrics")
	MetricsPath string
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:8080"
	}
	if c.Path == "" {
		c.Path = "/video.mjpg"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = upstream.DefaultRetryDelay
	}
}
