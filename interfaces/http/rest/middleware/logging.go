package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger creates a logging middleware. Health check paths log at Debug so they do
// not drown out lookups.
func Logger(logger *zap.Logger, quietPaths ...string) func(next http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// Process request
			next.ServeHTTP(ww, r)

			level := zapcore.InfoLevel
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			case isQuiet(quiet, r.URL.Path):
				level = zapcore.DebugLevel
			}

			if ce := logger.Check(level, "HTTP Request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("requestID", middleware.GetReqID(r.Context())),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("userAgent", r.UserAgent()),
				)
			}
		})
	}
}

func isQuiet(quiet map[string]struct{}, path string) bool {
	_, ok := quiet[path]
	return ok
}
