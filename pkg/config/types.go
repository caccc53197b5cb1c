package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent bounder configuration stored as config.toml
// in the .bounder/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Source  SourceConfig  `toml:"source"`
	Server  ServerConfig  `toml:"server"`
	Relay   RelayConfig   `toml:"relay"`
	Metrics MetricsConfig `toml:"metrics"`
	Events  EventsConfig  `toml:"events"`
	Client  ClientConfig  `toml:"client"`
}

// SourceConfig describes the upstream stream.
type SourceConfig struct {
	URL  string `toml:"url,omitempty"`
	User string `toml:"user,omitempty"`
}

// ServerConfig holds the client-facing HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
	Path   string `toml:"path,omitempty"`
}

// RelayConfig holds broadcast and fetch loop tuning.
type RelayConfig struct {
	QueueSize  int    `toml:"queue_size,omitempty"`
	RetryDelay string `toml:"retry_delay,omitempty"`
	ReadBuffer int    `toml:"read_buffer,omitempty"`
}

// RetryDelayDuration parses RetryDelay. An empty value yields zero.
func (r RelayConfig) RetryDelayDuration() (time.Duration, error) {
	if r.RetryDelay == "" {
		return 0, nil
	}
	return parsePositiveDuration("relay.retry_delay", r.RetryDelay)
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path,omitempty"`
}

// EventsConfig holds stream event publishing settings. Events are disabled
// while Brokers is empty.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits the comma separated Brokers value.
func (e EventsConfig) BrokerList() []string {
	return SplitList(e.Brokers)
}

// ClientConfig holds settings for CLI commands that connect to a running relay
// (e.g. bounder status). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// SplitList splits a comma separated list and drops empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"source.url": {
		get: func(c *Config) string { return c.Source.URL },
		set: func(c *Config, v string) error {
			if v != "" {
				if err := ValidateSourceURL(v); err != nil {
					return err
				}
			}
			c.Source.URL = v
			return nil
		},
	},
	"source.user": {
		get: func(c *Config) string { return c.Source.User },
		set: func(c *Config, v string) error { c.Source.User = v; return nil },
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.path": {
		get: func(c *Config) string { return c.Server.Path },
		set: func(c *Config, v string) error {
			if !strings.HasPrefix(v, "/") {
				return fmt.Errorf("invalid value for server.path: %q must start with /", v)
			}
			c.Server.Path = v
			return nil
		},
	},
	"relay.queue_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Relay.QueueSize) },
		set: func(c *Config, v string) error {
			n, err := parsePositiveInt("relay.queue_size", v)
			if err != nil {
				return err
			}
			c.Relay.QueueSize = n
			return nil
		},
	},
	"relay.retry_delay": {
		get: func(c *Config) string { return c.Relay.RetryDelay },
		set: func(c *Config, v string) error {
			d, err := parsePositiveDuration("relay.retry_delay", v)
			if err != nil {
				return err
			}
			c.Relay.RetryDelay = d.String()
			return nil
		},
	},
	"relay.read_buffer": {
		get: func(c *Config) string { return strconv.Itoa(c.Relay.ReadBuffer) },
		set: func(c *Config, v string) error {
			n, err := parsePositiveInt("relay.read_buffer", v)
			if err != nil {
				return err
			}
			c.Relay.ReadBuffer = n
			return nil
		},
	},
	"metrics.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Metrics.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for metrics.enabled: %w", err)
			}
			c.Metrics.Enabled = b
			return nil
		},
	},
	"metrics.path": {
		get: func(c *Config) string { return c.Metrics.Path },
		set: func(c *Config, v string) error {
			if !strings.HasPrefix(v, "/") {
				return fmt.Errorf("invalid value for metrics.path: %q must start with /", v)
			}
			c.Metrics.Path = v
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = strings.Join(SplitList(v), ","); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
}

// ValidateSourceURL checks that s is an absolute http or https URL.
func ValidateSourceURL(s string) error {
	if s == "" {
		return errors.New("source URL is required (--input)")
	}

	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid source URL %q: scheme must be http or https", s)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid source URL %q: missing host", s)
	}
	return nil
}

func parsePositiveInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid value for %s: must be positive", key)
	}
	return n, nil
}

func parsePositiveDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid value for %s: must be positive", key)
	}
	return d, nil
}
