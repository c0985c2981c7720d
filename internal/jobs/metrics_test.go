package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestRunRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Run("scan", func() error { return nil }))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Run("scan", func() error { return boom }), boom)

	body := scrape(t, reg)
	assert.Contains(t, body, `agrodistri_jobs_total{job="scan",status="success"} 1`)
	assert.Contains(t, body, `agrodistri_jobs_total{job="scan",status="failure"} 1`)
	assert.Contains(t, body, `agrodistri_jobs_failures_total{job="scan"} 1`)
}

func TestGaugesAndNilSafety(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetLowStock(3)
	m.AddPurgedKeys(5)
	m.AddPurgedKeys(-1)

	body := scrape(t, reg)
	assert.Contains(t, body, "agrodistri_products_low_stock 3")
	assert.Contains(t, body, "agrodistri_idempotency_keys_purged_total 5")

	var none *Metrics
	none.SetLowStock(1)
	none.AddPurgedKeys(1)
	ran := false
	assert.NoError(t, none.Run("x", func() error { ran = true; return nil }))
	assert.True(t, ran)
	assert.Nil(t, NewMetrics(nil))
}
