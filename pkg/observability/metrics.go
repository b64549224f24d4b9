package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for one collaboration session.
// Each collector owns a private registry, so several sessions (or tests)
// can live in one process. Every method is a no-op on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Sync metrics
	Mutations      *prometheus.CounterVec
	MutationTime   *prometheus.HistogramVec
	Rollbacks      *prometheus.CounterVec
	Conflicts      *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	InboundEvents  *prometheus.CounterVec
	OutboundEvents *prometheus.CounterVec

	// Connection metrics
	Connected         prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	Collaborators     prometheus.Gauge
}

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Optimistic mutations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		MutationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_roundtrip_seconds",
				Help:      "Time from optimistic apply to reconcile or rollback",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Snapshot rollbacks after rejected mutations",
			},
			[]string{"kind"},
		),
		Conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_total",
				Help:      "Conflicts recorded by type",
			},
			[]string{"type"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notifications created by type",
			},
			[]string{"type"},
		),
		InboundEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbound_events_total",
				Help:      "Real-time events received by type",
			},
			[]string{"type"},
		),
		OutboundEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbound_events_total",
				Help:      "Real-time events sent by type",
			},
			[]string{"type"},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "channel_connected",
				Help:      "1 while the real-time channel is open",
			},
		),
		ReconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnect_attempts_total",
				Help:      "Total number of reconnect attempts",
			},
		),
		Collaborators: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "collaborators",
				Help:      "Number of other users present in the project",
			},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mutations,
		c.MutationTime,
		c.Rollbacks,
		c.Conflicts,
		c.Notifications,
		c.InboundEvents,
		c.OutboundEvents,
		c.Connected,
		c.ReconnectAttempts,
		c.Collaborators,
	)
	return c
}

// Registry exposes the private registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served HTTP request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMutation records the outcome of one optimistic mutation
func (c *Collector) RecordMutation(kind, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(kind, outcome).Inc()
	if duration > 0 {
		c.MutationTime.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// RecordRollback records a snapshot restore
func (c *Collector) RecordRollback(kind string) {
	if c == nil {
		return
	}
	c.Rollbacks.WithLabelValues(kind).Inc()
}

// RecordConflict records a newly created conflict
func (c *Collector) RecordConflict(conflictType string) {
	if c == nil {
		return
	}
	c.Conflicts.WithLabelValues(conflictType).Inc()
}

// RecordNotification records a newly created notification
func (c *Collector) RecordNotification(notificationType string) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(notificationType).Inc()
}

// RecordInbound records a received real-time event
func (c *Collector) RecordInbound(eventType string) {
	if c == nil {
		return
	}
	c.InboundEvents.WithLabelValues(eventType).Inc()
}

// RecordOutbound records a sent real-time event
func (c *Collector) RecordOutbound(eventType string) {
	if c == nil {
		return
	}
	c.OutboundEvents.WithLabelValues(eventType).Inc()
}

// SetConnected flips the connection gauge
func (c *Collector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.Connected.Set(1)
		return
	}
	c.Connected.Set(0)
}

// RecordReconnectAttempt counts one reconnect attempt
func (c *Collector) RecordReconnectAttempt() {
	if c == nil {
		return
	}
	c.ReconnectAttempts.Inc()
}

// SetCollaborators sets the presence roster size
func (c *Collector) SetCollaborators(n int) {
	if c == nil {
		return
	}
	c.Collaborators.Set(float64(n))
}
