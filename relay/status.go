package relay

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Status is the JSON document served at /status.
type Status struct {
	Path      string         `json:"path"`
	Consumers int            `json:"consumers"`
	Upstream  UpstreamStatus `json:"upstream"`
}

// UpstreamStatus describes the fetch loop. URL has credentials redacted.
type UpstreamStatus struct {
	URL           string     `json:"url"`
	State         string     `json:"state"`
	HTTPStatus    int        `json:"http_status"`
	ContentType   string     `json:"content_type,omitempty"`
	Boundary      string     `json:"boundary,omitempty"`
	Sessions      uint64     `json:"sessions"`
	Failures      uint64     `json:"failures"`
	LastError     string     `json:"last_error,omitempty"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
}

// Status returns the current relay status.
func (r *Relay) Status() Status {
	stats := r.fetcher.Stats()
	state := r.hub.Snapshot()

	st := Status{
		Path:      r.config.Path,
		Consumers: state.Consumers,
		Upstream: UpstreamStatus{
			URL:         stats.Source,
			State:       string(stats.State),
			HTTPStatus:  state.Status,
			ContentType: state.Header.Get("Content-Type"),
			Boundary:    stats.Boundary,
			Sessions:    stats.Sessions,
			Failures:    stats.Failures,
			LastError:   stats.LastError,
		},
	}
	if !stats.LastConnected.IsZero() {
		t := stats.LastConnected.UTC()
		st.Upstream.LastConnected = &t
	}
	return st
}

func (r *Relay) handleStatus(c *fiber.Ctx) error {
	return c.JSON(r.Status())
}

func (r *Relay) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}
