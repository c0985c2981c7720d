package app

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// ActorHeader names the operator issuing a request.
const ActorHeader = "X-Actor-ID"

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the API middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	limit := 120
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitPerMinute > 0 {
			limit = cfg.Config.RateLimitPerMinute
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		secureHeaders(secureMiddleware, cfg.Logger),
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// secureHeaders applies the header policy. When Process fails it has already
// answered (HTTPS redirect or bad host), so the chain just stops.
func secureHeaders(policy *secure.Secure, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := policy.Process(w, r); err != nil {
				logger.Debug("request stopped by header policy", slog.String("path", r.URL.Path), slog.Any("error", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerAuth rejects requests whose bearer token does not match the bcrypt
// hash. An empty hash disables the check, which Config.Validate only allows
// outside production.
func BearerAuth(hash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				logger.Warn("rejected api token", slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))
				w.Header().Set("WWW-Authenticate", `Bearer realm="agrodistri"`)
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorContext copies the X-Actor-ID header into the request context.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
