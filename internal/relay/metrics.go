package relay

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mmhook/internal/types"
)

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg. Passing a
// fresh prometheus.NewRegistry keeps tests isolated from the default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mmhook_http_requests_total",
			Help: "HTTP requests handled by the relay",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mmhook_http_request_duration_seconds",
			Help:    "Relay request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mmhook_webhook_deliveries_total",
			Help: "Webhook deliveries by outcome",
		}, []string{"outcome"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mmhook_webhook_delivery_seconds",
			Help:    "Time spent waiting on Mattermost for accepted deliveries",
			Buckets: prometheus.DefBuckets,
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.requests, m.requestDuration, m.deliveries, m.deliveryDuration)
	return m
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, route, status string, d time.Duration) {
	m.requests.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordDelivery records a webhook delivery. err is nil for accepted
// deliveries; otherwise its error code becomes the outcome label.
func (m *Metrics) RecordDelivery(d time.Duration, err error) {
	if err == nil {
		m.deliveries.WithLabelValues("ok").Inc()
		m.deliveryDuration.Observe(d.Seconds())
		return
	}
	m.deliveries.WithLabelValues(outcome(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	for _, code := range []types.ErrorCode{
		types.ErrCodeUpstreamRateLimited,
		types.ErrCodeUpstreamWebhookRejected,
		types.ErrCodeUpstreamUnavailable,
		types.ErrCodeValidationInvalidWebhook,
	} {
		if types.HasCode(err, code) {
			return string(code)
		}
	}
	return "error"
}
