package api

import (
	"net/http"
	"time"

	"rey-arena/internal/game"
	"rey-arena/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SceneInterface is the slice of game.Scene the debug API reads.
type SceneInterface interface {
	State() game.StateView
	GetStats() map[string]uint64
	Leaderboard() *game.Leaderboard
	Journal() *game.Journal
}

// SessionInterface is the slice of session.Session the debug API reads.
type SessionInterface interface {
	SessionID() string
	IsConnected() bool
	GetStats() map[string]uint64
}

// StatsSource is any component exposing lifetime counters.
type StatsSource interface {
	GetStats() map[string]uint64
}

// RouterConfig wires the debug router. Only Scene is required; tests pass a
// limiter with a high rate and DisableLogging.
type RouterConfig struct {
	Scene   SceneInterface
	Session SessionInterface

	// Stats are extra components reported under /api/stats by name.
	Stats map[string]StatsSource

	// RateLimiter defaults to one built from DefaultRateLimitConfig.
	RateLimiter *IPRateLimiter

	// CORSOrigins defaults to localhost on any port.
	CORSOrigins []string

	// Profiling mounts net/http/pprof under /debug.
	Profiling bool

	// BasicAuthUser enables basic auth on everything except /health.
	BasicAuthUser string
	BasicAuthPass string

	DisableLogging bool
}

type routerHandlers struct {
	scene   SceneInterface
	session SessionInterface
	stats   map[string]StatsSource
}

// NewRouter builds the debug router. It opens no listener, so it can be
// served by httptest directly.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Throttle before CORS so rejected requests cost as little as possible.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = NewIPRateLimiter(DefaultRateLimitConfig)
	}
	r.Use(limiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		scene:   cfg.Scene,
		session: cfg.Session,
		stats:   cfg.Stats,
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		if cfg.BasicAuthUser != "" {
			r.Use(basicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
		}

		r.Handle("/metrics", metrics.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", h.handleGetState)
			r.Get("/entities", h.handleGetEntities)
			r.Get("/leaderboard", h.handleGetLeaderboard)
			r.Get("/events", h.handleGetEvents)
			r.Get("/stats", h.handleGetStats)
			r.Get("/session", h.handleGetSession)
		})

		if cfg.Profiling {
			r.Mount("/debug", middleware.Profiler())
		}
	})

	return r
}

// requestMetrics records latency per route pattern, never per raw path.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		next.ServeHTTP(w, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		metrics.RecordRequest(r.Method, pattern, time.Since(began))
	})
}

// basicAuth rejects requests without the configured credentials.
func basicAuth(user, pass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, p, ok := r.BasicAuth(); !ok || u != user || p != pass {
				metrics.RecordRejected("auth")
				w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
