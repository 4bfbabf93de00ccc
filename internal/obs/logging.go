package obs

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewLogger builds the root zerolog logger. Development environments get a
// human-readable console writer; everything else emits JSON.
func NewLogger(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var logger zerolog.Logger
	if env == "development" || env == "test" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.With().Timestamp().Str("service", "pustaka").Logger()
}

// RequestLogger emits one structured log line per request.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := NewStatusRecorder(w)

			ctx := logger.WithContext(r.Context())
			next.ServeHTTP(recorder, r.WithContext(ctx))

			route := RoutePatternFromContext(r.Context())
			if route == "" {
				route = r.URL.Path
			}
			evt := logger.Info()
			if recorder.Status() >= http.StatusInternalServerError {
				evt = logger.Error()
			} else if recorder.Status() >= http.StatusBadRequest {
				evt = logger.Warn()
			}
			evt.
				Str("method", r.Method).
				Str("route", route).
				Str("path", r.URL.Path).
				Int("status", recorder.Status()).
				Int64("bytes", recorder.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote", r.RemoteAddr).
				Msg("http_request")
		})
	}
}
