package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/testing/memdb"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testRouter(t *testing.T, checks map[string]Pinger) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "development", APITokenHash: string(hash), RateLimitPerMinute: 1000}

	db := memdb.New()
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          observability.NewMetrics(),
		Checks:           checks,
		EmployeesHandler: employees.NewHandler(logger, employees.NewService(db.Employees())),
	})
}

func TestRouterRequiresBearerToken(t *testing.T) {
	router := testRouter(t, nil)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic s3cret", status: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer s3cret", status: http.StatusOK},
		{name: "case insensitive scheme", header: "bearer s3cret", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestRouterCreatesThroughAPI(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/employees", strings.NewReader(`{"name":"Budi","role":"driver"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"name":"Budi"`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestHealthzAndMetricsArePublic(t *testing.T) {
	router := testRouter(t, map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","postgres":"up"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthzReportsDegradedBackend(t *testing.T) {
	router := testRouter(t, map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","redis":"down"}`, rr.Body.String())
}

func TestActorContext(t *testing.T) {
	var seen string
	h := ActorContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "  42 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "42", seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, shared.ActorFromContext(context.Background()), seen)
}

func TestBearerAuthDisabledWithoutHash(t *testing.T) {
	called := false
	h := BearerAuth("", slog.Default())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
