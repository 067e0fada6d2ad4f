package telemetry

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonquils-io/jonquils/internal/sink"
)

// skipPaths are operational endpoints excluded from request telemetry.
var skipPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// UserIDResolver extracts the authenticated listener from a request.
// Returns 0 for anonymous traffic.
type UserIDResolver func(r *http.Request) uint32

// Interceptor creates middleware that records one api_requests_log event per
// request. Recording is fire-and-forget through the dispatcher: the response
// is never delayed or failed on behalf of telemetry.
func Interceptor(d *Dispatcher, resolveUser UserIDResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)

				return
			}

			start := time.Now()

			rw := &captureWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			var userID uint32
			if resolveUser != nil {
				userID = resolveUser(r)
			}

			event := sink.APIRequestEvent{
				EventID:        uuid.NewString(),
				Timestamp:      start.UTC(),
				Method:         r.Method,
				Path:           r.URL.Path,
				StatusCode:     uint16(rw.statusCode),
				ResponseTimeMs: uint32(time.Since(start).Milliseconds()),
				UserID:         userID,
				RequestSize:    uint64(max(r.ContentLength, 0)),
				ResponseSize:   rw.written,
				IPAddress:      clientIP(r),
				UserAgent:      r.UserAgent(),
				Platform:       platformOf(r),
			}

			if rw.statusCode >= http.StatusInternalServerError {
				event.ErrorMessage = http.StatusText(rw.statusCode)
			}

			d.Enqueue(event)
		})
	}
}

// captureWriter wraps http.ResponseWriter to capture status code and the
// number of body bytes written.
type captureWriter struct {
	http.ResponseWriter

	statusCode int
	written    uint64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.statusCode = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	cw.written += uint64(n)

	return n, err
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}

		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// platformOf classifies the client from the X-Platform header or, failing
// that, the user agent.
func platformOf(r *http.Request) string {
	if p := r.Header.Get("X-Platform"); p != "" {
		return strings.ToLower(p)
	}

	ua := strings.ToLower(r.UserAgent())

	switch {
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "ios"
	case ua == "":
		return "unknown"
	default:
		return "web"
	}
}
