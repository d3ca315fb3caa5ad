// Package trace logs and measures every HTTP request.
package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

// Middleware records one access log line and one latency sample per request.
type Middleware struct {
	clientIP func(*http.Request) string
	logger   *log.StructuredLogger
	metrics  *metrics.Metrics
	total    atomic.Int64
}

// New creates the middleware. m may be nil.
func New(logger *log.Logger, m *metrics.Metrics, clientIP func(*http.Request) string) *Middleware {
	return &Middleware{
		clientIP: clientIP,
		logger:   log.NewStructuredLogger(logger),
		metrics:  m,
	}
}

// Handler must run inside the chi router so the matched route pattern is
// known once the request completes.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		if id := RequestID(r); id != "" {
			ww.Header().Set("X-Request-ID", id)
		}

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		m.total.Add(1)
		m.metrics.ObserveHTTP(Route(r), status, elapsed)

		clientIP := ""
		if m.clientIP != nil {
			clientIP = m.clientIP(r)
		}
		m.logger.LogHTTPEnd(r.Context(), r, status, elapsed.Milliseconds(), clientIP)
	})
}

// TotalRequests returns how many requests completed.
func (m *Middleware) TotalRequests() int64 {
	return m.total.Load()
}

// RequestID returns the id assigned by chi's RequestID middleware.
func RequestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}

// Route returns the matched route pattern, used as a low-cardinality label.
func Route(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
