package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns the process-wide prometheus registry. It is constructed once
// in main and injected; packages never register collectors globally.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	webhookOutcomes *prometheus.CounterVec
	appOnline       *prometheus.GaugeVec
	appResponseTime *prometheus.GaugeVec
}

// NewMetrics initializes the registry and collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		webhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provision_webhook_total",
			Help: "Provisioning webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		appOnline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "app_online",
			Help: "Whether the app answered its last availability probe.",
		}, []string{"release_name"}),
		appResponseTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "app_response_time_seconds",
			Help: "Latency of the last availability probe.",
		}, []string{"release_name"}),
	}

	registry.MustRegister(m.httpRequests, m.httpDuration, m.webhookOutcomes, m.appOnline, m.appResponseTime)
	return m
}

// Registry exposes the underlying registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts a completed HTTP request.
func (m *Metrics) RecordRequest(path, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, status).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordWebhook counts a webhook delivery attempt.
func (m *Metrics) RecordWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(eventType, outcome).Inc()
}

// RecordAppProbe updates the write-side availability gauges for one app.
func (m *Metrics) RecordAppProbe(releaseName string, online bool, responseTime time.Duration) {
	if m == nil {
		return
	}
	value := 0.0
	if online {
		value = 1.0
	}
	m.appOnline.WithLabelValues(releaseName).Set(value)
	m.appResponseTime.WithLabelValues(releaseName).Set(responseTime.Seconds())
}

// ForgetApp drops gauges for an uninstalled app.
func (m *Metrics) ForgetApp(releaseName string) {
	if m == nil {
		return
	}
	m.appOnline.DeleteLabelValues(releaseName)
	m.appResponseTime.DeleteLabelValues(releaseName)
}
