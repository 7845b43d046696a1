package middleware

import (
	"net"
	"net/http"

	apperrors "rndindex/pkg/errors"
	"rndindex/pkg/ratelimit"

	"go.uber.org/zap"
)

// RateLimit rejects callers that exceed limiter with 429, keyed by client address.
// Run it after chi's RealIP so proxied requests are keyed by the original client.
func RateLimit(limiter ratelimit.Limiter, operation string, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// Fail open
				logger.Warn("Rate limiter failed", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				errorHandler.Handle(w, r, apperrors.NewRateLimitError(operation))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
