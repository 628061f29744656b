// Package metrics holds the Prometheus collectors for the reviewer service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prreviewer"

// Reviewer call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics exposes review and webhook counters. All methods are safe on a nil
// receiver so callers that do not care about metrics can pass nil.
//
// Metrics exposed (namespace "prreviewer"):
//   - reviews_total{status}: terminal review outcomes (skipped, reviewed, failed)
//   - findings_total: retained findings across all reviews
//   - reviewer_calls_total{outcome}: per-file reviewer calls
//   - review_duration_seconds: wall time of admitted reviews
//   - webhook_deliveries_total{outcome}: dispatcher responses by outcome
type Metrics struct {
	reviews        *prometheus.CounterVec
	findings       prometheus.Counter
	reviewerCalls  *prometheus.CounterVec
	reviewDuration prometheus.Histogram
	webhooks       *prometheus.CounterVec
}

// New registers all collectors with registry. A nil registry means the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Review tasks by terminal status.",
		}, []string{"status"}),
		findings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings retained after validation.",
		}),
		reviewerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviewer_calls_total",
			Help:      "Per-file reviewer calls by outcome.",
		}, []string{"outcome"}),
		reviewDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_duration_seconds",
			Help:      "Duration of admitted review runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by dispatcher outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveReview records one finished task.
func (m *Metrics) ObserveReview(status string, findings int, seconds float64) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(status).Inc()
	if findings > 0 {
		m.findings.Add(float64(findings))
	}
	if seconds > 0 {
		m.reviewDuration.Observe(seconds)
	}
}

// ObserveReviewerCall records one per-file reviewer call.
func (m *Metrics) ObserveReviewerCall(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.reviewerCalls.WithLabelValues(outcome).Inc()
}

// ObserveWebhook records one webhook delivery.
func (m *Metrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}

// WebhookDeliveries returns the delivery counter for outcome.
func (m *Metrics) WebhookDeliveries(outcome string) prometheus.Counter {
	return m.webhooks.WithLabelValues(outcome)
}
