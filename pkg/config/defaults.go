package config

const (
	defaultListen     = "0.0.0.0:8080"
	defaultOutputPath = "/video.mjpg"

	defaultQueueSize  = 256
	defaultRetryDelay = "3s"
	defaultReadBuffer = 32 * 1024

	defaultMetricsPath = "/metrics"
	defaultEventsTopic = "bounder.stream"

	defaultClientTarget = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
			Path:   defaultOutputPath,
		},
		Relay: RelayConfig{
			QueueSize:  defaultQueueSize,
			RetryDelay: defaultRetryDelay,
			ReadBuffer: defaultReadBuffer,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
