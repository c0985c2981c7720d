package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

// Metrics owns the process registry. HTTP traffic and lifecycle counters
// are registered on it, next to the Go runtime and process collectors.
type Metrics struct {
	scrape    http.Handler
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	lifecycle *Lifecycle
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrodistri",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agrodistri",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency by route pattern.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agrodistri",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently being served.",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.inFlight)
	m.lifecycle = NewLifecycle(reg)
	m.scrape = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

// Handler serves the registry in the Prometheus text format. A nil
// receiver answers 503 so /metrics stays mounted when metrics are off.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.scrape
}

// Middleware records one observation per request. The route label is the
// chi pattern, never the raw path, to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rec := &codeRecorder{ResponseWriter: w}
		began := time.Now()
		next.ServeHTTP(rec, r)

		route := matchedRoute(r)
		m.latency.WithLabelValues(route).Observe(time.Since(began).Seconds())
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.statusCode())).Inc()
	})
}

func (m *Metrics) Lifecycle() *Lifecycle {
	if m == nil {
		return nil
	}
	return m.lifecycle
}

type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (c *codeRecorder) WriteHeader(code int) {
	if c.code == 0 {
		c.code = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *codeRecorder) Write(b []byte) (int, error) {
	if c.code == 0 {
		c.code = http.StatusOK
	}
	return c.ResponseWriter.Write(b)
}

func (c *codeRecorder) statusCode() int {
	if c.code == 0 {
		return http.StatusOK
	}
	return c.code
}

func matchedRoute(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
