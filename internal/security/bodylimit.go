package security

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

// BodyLimit caps request payload size. Multipart uploads are exempt; the
// asset handler enforces its own, larger limit for those.
type BodyLimit struct {
	Max int64
}

// Middleware rejects oversized payloads with HTTP 413. The declared
// Content-Length is checked up front; bodies that lie about their length are
// caught by MaxBytesReader when the handler reads them.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the allowed size", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}

// IsMaxBytesError reports whether err came from a body that exceeded the
// MaxBytesReader limit, so decoders can map it to a 413.
func IsMaxBytesError(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
