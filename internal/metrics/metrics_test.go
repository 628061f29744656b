package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReview("reviewed", 3, 2.5)
	m.ObserveReview("skipped", 0, 0)
	m.ObserveReviewerCall(nil)
	m.ObserveReviewerCall(errors.New("x"))
	m.ObserveReviewerCall(nil)
	m.ObserveWebhook("dispatched")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviews.WithLabelValues("reviewed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviews.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.findings))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reviewerCalls.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviewerCalls.WithLabelValues(OutcomeError)))

	expected := `
# HELP prreviewer_webhook_deliveries_total Webhook deliveries by dispatcher outcome.
# TYPE prreviewer_webhook_deliveries_total counter
prreviewer_webhook_deliveries_total{outcome="dispatched"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "prreviewer_webhook_deliveries_total"))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.ObserveReview("failed", 1, 1)
	m.ObserveReviewerCall(nil)
	m.ObserveWebhook("ignored")
}
