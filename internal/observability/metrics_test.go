package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func withPattern(r *http.Request, pattern string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = append(rctx.RoutePatterns, pattern)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestScrapeIncludesLifecycleAndRuntime(t *testing.T) {
	m := NewMetrics()
	m.Lifecycle().OrderEvent("created", "tempo")

	body := scrape(t, m)
	assert.Contains(t, body, `agrodistri_orders_total{event="created",payment_method="tempo"} 1`)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "agrodistri_http_in_flight_requests 0")
}

func TestMiddlewareLabelsByPattern(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withPattern(httptest.NewRequest(http.MethodPost, "/orders/42/cancel", nil), "/orders/{id}/cancel"))
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `agrodistri_http_requests_total{code="418",method="POST",route="/orders/{id}/cancel"} 1`)
	assert.Contains(t, body, `agrodistri_http_request_duration_seconds_bucket{route="/orders/{id}/cancel"`)
	assert.NotContains(t, body, "/orders/42/cancel")
}

func TestMiddlewareImplicitOK(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Contains(t, scrape(t, m), `agrodistri_http_requests_total{code="200",method="GET",route="unmatched"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.Nil(t, m.Lifecycle())

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestNilLifecycleIsNoop(t *testing.T) {
	var l *Lifecycle
	assert.NotPanics(t, func() {
		l.OrderEvent("created", "cash")
		l.DeliveryTransition("on_delivery")
		l.Payment("cash", "paid")
		l.StockMovement("out", 3)
		l.Rejected("order.create", "insufficient_stock")
	})
}
