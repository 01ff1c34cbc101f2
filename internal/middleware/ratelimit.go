package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/advanced-ai/backend/pkg/logger"
)

// WindowCounter counts requests per key inside a fixed window that starts at
// the first increment and closes after the window duration. The Redis cache
// satisfies this so the limit holds across replicas; a nil counter falls back
// to per-process token buckets.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	mu                sync.Mutex
	limiters          map[string]*rate.Limiter
	requestsPerMinute int
	counter           WindowCounter
	log               *logger.Logger
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute per client.
// counter may be nil.
func NewRateLimiter(requestsPerMinute int, counter WindowCounter, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &RateLimiter{
		limiters:          make(map[string]*rate.Limiter),
		requestsPerMinute: requestsPerMinute,
		counter:           counter,
		log:               log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(rl.requestsPerMinute)/60.0), rl.requestsPerMinute)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)

		if !rl.allow(r.Context(), key) {
			rl.log.WithField("client", key).WithField("path", r.URL.Path).Warn("rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	if rl.counter != nil {
		count, err := rl.counter.IncrWindow(ctx, "ratelimit:"+key, time.Minute)
		if err == nil {
			return count <= int64(rl.requestsPerMinute)
		}
		rl.log.WithError(err).Warn("window counter unavailable, falling back to local limiter")
	}
	return rl.getLimiter(key).Allow()
}

// Cleanup drops accumulated limiters once the map grows past a bound.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup periodically runs Cleanup until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
