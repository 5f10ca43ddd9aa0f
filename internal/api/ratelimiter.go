package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 10 * time.Minute
	// limiterMaxClients caps the number of tracked buckets.
	limiterMaxClients = 10000
)

type rateLimiter interface {
	Allow(key string) bool
}

// clientLimiter keeps one token bucket per client key so a single noisy
// browser cannot starve everybody else.
type clientLimiter struct {
	limit      rate.Limit
	burst      int
	maxClients int
	now        func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) *clientLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &clientLimiter{
		limit:      rate.Limit(ratePerSecond),
		burst:      burst,
		maxClients: limiterMaxClients,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

func (l *clientLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxClients {
			l.sweep(now)
			// Unknown clients are refused while the table is full of active ones.
			if len(l.buckets) >= l.maxClients {
				return false
			}
		}
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *clientLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit returns a middleware that gives every client its own token bucket
// refilled at ratePerSecond up to burst. Zero for either value disables limiting.
// Clients are keyed by RemoteAddr, so forwarded headers only count when a
// trusted-proxy middleware has already rewritten it.
func RateLimit(ratePerSecond float64, burst int) func(http.Handler) http.Handler {
	if ratePerSecond <= 0 || burst <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newTokenBucketLimiter(ratePerSecond, burst)
	return func(next http.Handler) http.Handler {
		return rateLimitMiddleware(limiter, next)
	}
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		WriteError(w, http.StatusTooManyRequests, "rate limit exceeded, please retry shortly")
	})
}
