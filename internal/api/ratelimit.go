package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rey-arena/internal/metrics"
)

// RateLimitConfig configures the per-client limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Sustained requests per client IP
	Burst             int           // Requests allowed at once
	CleanupInterval   time.Duration // How often idle clients are forgotten
}

// DefaultRateLimitConfig returns debug-server defaults
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

// visitor is one client's bucket
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles debug API requests per client IP. A rejected
// request gets a Retry-After telling the client when a token frees up.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimitConfig
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once

	// Stats
	allowed  atomic.Uint64
	rejected atomic.Uint64
	evicted  atomic.Uint64
}

// NewIPRateLimiter creates a limiter and starts its eviction loop. Zero
// fields in cfg take the defaults.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRateLimitConfig.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}

	rl := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		config:   cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the eviction loop. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

// reserve takes a token for ip. It returns 0 when the request may proceed,
// otherwise how long until a token is available.
func (rl *IPRateLimiter) reserve(ip string, now time.Time) time.Duration {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		// Give the token back; this request is rejected, not queued.
		r.CancelAt(now)
		return delay
	}
	return 0
}

// Allow reports whether a request from ip may proceed now.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.reserve(ip, rl.now()) > 0 {
		rl.rejected.Add(1)
		return false
	}
	rl.allowed.Add(1)
	return true
}

// Middleware rejects over-limit requests with 429.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wait := rl.reserve(GetClientIP(r), rl.now())
		if wait > 0 {
			rl.rejected.Add(1)
			metrics.RecordRejected("rate_limit")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		rl.allowed.Add(1)
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.cleanup(rl.now())
		}
	}
}

// cleanup forgets clients idle for two intervals. Their buckets have long
// refilled, so a returning client starts exactly as a new one would.
func (rl *IPRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-2 * rl.config.CleanupInterval)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			rl.evicted.Add(1)
		}
	}
}

// GetStats returns limiter statistics
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	rl.mu.Lock()
	clients := uint64(len(rl.visitors))
	rl.mu.Unlock()

	return map[string]uint64{
		"allowed":  rl.allowed.Load(),
		"rejected": rl.rejected.Load(),
		"evicted":  rl.evicted.Load(),
		"clients":  clients,
	}
}

// GetClientIP returns the first forwarded address, then X-Real-IP, then the
// connection's host. The debug server only listens on loopback, so proxy
// headers are trusted.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
