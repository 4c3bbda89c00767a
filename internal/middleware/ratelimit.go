package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harborview/adinsights/internal/config"
)

// RateLimitMiddleware implements token bucket rate limiting. Report reads
// are fan-out-heavy against the platform APIs, so the service protects
// itself with one global bucket rather than per-IP ones.
type RateLimitMiddleware struct {
	cfg     config.RateLimitConfig
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled || rl.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.limiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) isExempt(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/metrics")
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded"}`))
}
