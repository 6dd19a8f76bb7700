package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/metrics"
	"github.com/orderdesk/orderdesk/internal/store"
)

// RateLimit defines the request budget for an endpoint pattern within a
// fixed window.
type RateLimit struct {
	Requests int64
	Window   time.Duration
}

// RateLimiter throttles credential endpoints per client IP using Redis
// counters. When Redis is not configured the limiter passes everything
// through.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
	limits map[string]RateLimit
}

// NewRateLimiter creates a rate limiter over the given Redis store, which
// may be nil.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limits: map[string]RateLimit{
			"POST /login":                    {20, time.Minute},
			"POST /api/client/login":         {20, time.Minute},
			"POST /api/client/register":      {10, time.Hour},
			"POST /api/client/auth-telegram": {20, time.Minute},
		},
	}
}

// RealIP extracts the client IP from proxy headers or the connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		limit, ok := rl.limits[r.Method+" "+r.URL.Path]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ip := RealIP(r)
		count, err := rl.redis.CountRequest(r.Context(), r.URL.Path, ip, limit.Window)
		if err != nil {
			// Fail open: a Redis outage must not take down login.
			rl.logger.Warn().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		remaining := limit.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit.Requests, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit.Requests {
			metrics.RateLimitHits.WithLabelValues(r.URL.Path).Inc()
			rl.logger.Warn().
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Int64("count", count).
				Msg("rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
