// Package http serves the ledger pages: the entry form and table, the
// settlement view, the category list, the CSV download and the health and
// metrics endpoints.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
	appweb "kakeibo/web"
)

type Server struct {
	http.Server
	svc       *services.LedgerService
	templates *template.Template
	metrics   *metrics.Metrics
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	startedAt time.Time

	shutdownOnce sync.Once
}

// Options carries the optional collaborators of the server.
type Options struct {
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

var templateFuncs = template.FuncMap{
	"yen":     core.FormatYen,
	"orUnset": orUnset,
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		svc:       svc,
		metrics:   opts.Metrics,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(),
		startedAt: time.Now(),
	}
	s.tracer = trace.New(logger, opts.Metrics, s.detector.ClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Handler)
	r.Use(log.Middleware(s.logger, trace.RequestID))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticCache(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.detector.Middleware)
		r.Use(security.Headers(security.DefaultHeadersConfig()))
		r.Use(s.limiter.Middleware(s.detector.ClientIP))

		r.Get("/", s.handleIndex)
		r.Get("/entries", s.handleEntriesTable)
		r.Post("/entries", s.handleCreateEntry)
		r.Post("/entries/delete", s.handleDeleteEntries)
		r.Get("/entries.csv", s.handleExportCSV)
		r.Get("/settlement", s.handleSettlement)
		r.Get("/categories", s.handleCategories)
		r.Get("/categories/list", s.handleCategoryList)
		r.Post("/categories", s.handleAddCategory)
		r.Post("/categories/delete", s.handleRemoveCategory)
	})
	return r
}

// Shutdown stops accepting requests, then ends the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
		s.limiter.Stop()
	})
	return err
}
