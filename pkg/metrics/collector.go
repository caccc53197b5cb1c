// Package metrics exposes relay activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bounder"

// Session results used as the "result" label of upstream_sessions_total.
const (
	ResultEnded  = "ended"
	ResultFailed = "failed"
)

// Collector owns the relay's Prometheus metrics. All methods are safe for
// concurrent use and never block.
type Collector struct {
	registry *prometheus.Registry

	consumers         prometheus.Gauge
	consumersAttached prometheus.Counter
	consumersDetached *prometheus.CounterVec
	upstreamSessions  *prometheus.CounterVec
	upstreamUp        prometheus.Gauge
	upstreamBytes     prometheus.Counter
	segmentsBroadcast *prometheus.CounterVec
}

// NewCollector registers the relay metrics on registry. If registry is nil a
// fresh one is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumers",
			Help:      "Number of attached downstream consumers.",
		}),
		consumersAttached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumers_attached_total",
			Help:      "Total number of downstream consumers attached.",
		}),
		consumersDetached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumers_detached_total",
			Help:      "Total number of downstream consumers detached, by reason.",
		}, []string{"reason"}),
		upstreamSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_sessions_total",
			Help:      "Total number of finished upstream sessions, by result.",
		}, []string{"result"}),
		upstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_up",
			Help:      "1 while an upstream response is being streamed, 0 otherwise.",
		}),
		upstreamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_bytes_total",
			Help:      "Total number of body bytes read from the upstream.",
		}),
		segmentsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_broadcast_total",
			Help:      "Total number of segments broadcast to consumers, by kind.",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		c.consumers,
		c.consumersAttached,
		c.consumersDetached,
		c.upstreamSessions,
		c.upstreamUp,
		c.upstreamBytes,
		c.segmentsBroadcast,
	)

	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ConsumerAttached records a new downstream consumer.
func (c *Collector) ConsumerAttached() {
	c.consumers.Inc()
	c.consumersAttached.Inc()
}

// ConsumerDetached records a consumer leaving for reason.
func (c *Collector) ConsumerDetached(reason string) {
	c.consumers.Dec()
	c.consumersDetached.WithLabelValues(reason).Inc()
}

// SessionStarted marks the upstream as up.
func (c *Collector) SessionStarted() {
	c.upstreamUp.Set(1)
}

// SessionEnded marks the upstream as down and counts the session.
func (c *Collector) SessionEnded(err error) {
	c.upstreamUp.Set(0)
	if err != nil {
		c.upstreamSessions.WithLabelValues(ResultFailed).Inc()
		return
	}
	c.upstreamSessions.WithLabelValues(ResultEnded).Inc()
}

// BytesReceived adds n upstream body bytes.
func (c *Collector) BytesReceived(n int) {
	c.upstreamBytes.Add(float64(n))
}

// SegmentBroadcast counts one broadcast segment.
func (c *Collector) SegmentBroadcast(frameStart bool) {
	kind := "continuation"
	if frameStart {
		kind = "frame_start"
	}
	c.segmentsBroadcast.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
