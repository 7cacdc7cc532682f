package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"rey-arena/internal/config"
)

const defaultDebugAddr = "127.0.0.1:6061"

// Server is the local debug server: state, metrics and pprof.
//
// IMPORTANT: Nothing listens until Start() is called, so tests can build
// the server and use Router() directly.
type Server struct {
	addr        string
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	listener    net.Listener
}

// NewServer creates a debug server for cfg. The listen address is forced
// to loopback unless ALLOW_DEBUG_EXTERNAL=true.
func NewServer(cfg config.DebugConfig, rc RouterConfig) *Server {
	s := &Server{addr: SafeListenAddr(cfg.ListenAddr)}

	if rc.RateLimiter == nil {
		rlc := DefaultRateLimitConfig
		if cfg.RateLimit > 0 {
			rlc.RequestsPerSecond = cfg.RateLimit
			rlc.Burst = int(cfg.RateLimit*2) + 1
		}
		rc.RateLimiter = NewIPRateLimiter(rlc)
	}
	s.rateLimiter = rc.RateLimiter

	rc.Profiling = rc.Profiling || cfg.Profiling
	if rc.BasicAuthUser == "" {
		rc.BasicAuthUser, rc.BasicAuthPass = cfg.BasicAuthUser, cfg.BasicAuthPass
	}
	s.router = NewRouter(rc)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SafeListenAddr keeps the debug server on loopback.
// CRITICAL: pprof must never be reachable from outside the machine.
func SafeListenAddr(addr string) string {
	if addr == "" {
		return defaultDebugAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Printf("⚠️ Invalid debug address %q, using %s", addr, defaultDebugAddr)
		return defaultDebugAddr
	}
	if host == "localhost" {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr
	}
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		return addr
	}
	log.Println("⚠️ Debug server forced to localhost for security")
	return net.JoinHostPort("127.0.0.1", port)
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("debug server listen %s: %w", s.addr, err)
	}
	s.listener = ln

	log.Printf("📊 Debug server starting on %s", ln.Addr())
	log.Printf("   - state:   http://%s/api/state", ln.Addr())
	log.Printf("   - metrics: http://%s/metrics", ln.Addr())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops the listener and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.listener == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
