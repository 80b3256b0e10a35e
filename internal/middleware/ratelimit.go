package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bytebazaar/storefront/internal/httputil"
	"github.com/bytebazaar/storefront/internal/logging"
)

const (
	// Entries idle longer than this are dropped on the next sweep.
	limiterMaxIdle = 3 * time.Minute
	// How often getLimiter sweeps the map.
	limiterSweepEvery = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-key token bucket. Authenticated requests are
// keyed by user id, anonymous ones by remote address.
type RateLimiter struct {
	visitors  map[string]*visitor
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	nextSweep time.Time
	logger    *logging.Logger
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(requestsPerSecond, burst int, logger *logging.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.NewDefault("ratelimit")
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		rate:      rate.Limit(requestsPerSecond),
		burst:     burst,
		nextSweep: time.Now().Add(limiterSweepEvery),
		logger:    logger,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		rl.sweepLocked(now)
		rl.nextSweep = now.Add(limiterSweepEvery)
	}

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweepLocked drops entries not seen within limiterMaxIdle. Anonymous traffic
// keys by remote address, so without eviction the map grows without bound.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterMaxIdle {
			delete(rl.visitors, key)
		}
	}
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := GetUserID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		if !rl.getLimiter(key).Allow() {
			rl.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"key":  key,
				"path": r.URL.Path,
			})
			httputil.WriteErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
