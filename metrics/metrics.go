package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fourvoice"

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	approvals         *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	webhooks          *prometheus.CounterVec
	projectedEvents   *prometheus.CounterVec
	anomalousInvoices prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_transitions_total",
			Help:      "Applied approval transitions by action.",
		}, []string{"action"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_events_total",
			Help:      "Recorded delivery events by type and source.",
		}, []string{"type", "source"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_callbacks_total",
			Help:      "Provider webhook callbacks by provider and outcome.",
		}, []string{"provider", "outcome"}),
		projectedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projected_events_total",
			Help:      "Outbox events handled by the projection worker.",
		}, []string{"result"}),
		anomalousInvoices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalous_invoices",
			Help:      "Invoices flagged by the most recent anomaly scan.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requests,
		m.requestDuration,
		m.approvals,
		m.deliveries,
		m.webhooks,
		m.projectedEvents,
		m.anomalousInvoices,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ApprovalTransition counts an applied approval action
func (m *Metrics) ApprovalTransition(action string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(action).Inc()
}

// DeliveryEvent counts a recorded delivery event
func (m *Metrics) DeliveryEvent(eventType, source string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(eventType, source).Inc()
}

// WebhookCallback counts a provider callback outcome
func (m *Metrics) WebhookCallback(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(provider, outcome).Inc()
}

// ProjectedEvent counts an event handled by the projection worker
func (m *Metrics) ProjectedEvent(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.projectedEvents.WithLabelValues(result).Inc()
}

// SetAnomalousInvoices records the size of the latest anomaly scan
func (m *Metrics) SetAnomalousInvoices(n int) {
	if m == nil {
		return
	}
	m.anomalousInvoices.Set(float64(n))
}
