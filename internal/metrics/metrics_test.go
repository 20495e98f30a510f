package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderResultCounts(t *testing.T) {
	m := New()
	m.ProviderResult("yahoo", OutcomeOK)
	m.ProviderResult("yahoo", OutcomeOK)
	m.ProviderResult("finnhub", OutcomeError)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("yahoo", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("finnhub", OutcomeError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ProviderResult("yahoo", OutcomeOK)
		m.EventDropped()
		m.SetRunning(true)
		m.CycleDuration(1.5)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.EventDropped()
	m.SetRunning(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tradesentinel_events_dropped_total 1"))
	assert.True(t, strings.Contains(body, "tradesentinel_agent_running 1"))
}
