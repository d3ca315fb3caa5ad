package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "text", Component: log.ComponentHTTP, Output: &buf})
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	mw := New(logger, m, func(*http.Request) string { return "203.0.113.7" })

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.Handler)
	r.Get("/settlement", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/settlement?ym=2025-03", "/ok", "/missing"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID header", path)
		}
	}

	if got := mw.TotalRequests(); got != 3 {
		t.Fatalf("TotalRequests() = %d, want 3", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/settlement", "418")); got != 1 {
		t.Errorf("settlement requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/ok", "200")); got != 1 {
		t.Errorf("ok requests = %v, want 1", got)
	}
	out := buf.String()
	if !strings.Contains(out, "HTTP request completed") || !strings.Contains(out, "203.0.113.7") {
		t.Fatalf("unexpected access log:\n%s", out)
	}
}
