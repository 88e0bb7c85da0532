package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"tracker/internal/cache"
	"tracker/internal/core"
	applog "tracker/internal/log"
	"tracker/internal/middleware/ratelimit"
	"tracker/internal/middleware/security"
	"tracker/internal/middleware/trace"
	appweb "tracker/web"
)

// ExpenseService is the application layer the handlers drive.
type ExpenseService interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, q core.ListQuery) (core.Page, error)
	UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ChangeMarker(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Options tunes the server. Zero values pick sensible defaults.
type Options struct {
	PageSize           int
	RateLimitPerMinute int
	CacheTTL           time.Duration
	CacheSize          int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	service   ExpenseService
	logger    *applog.Logger
	pageSize  int

	// Listing pages keyed by normalized query. Entries are tagged with the
	// storage change marker they were read at, so writes from other
	// processes are picked up too.
	pageCache    *cache.LRUCache[cachedPage]
	cacheManager *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc ExpenseService, opts Options) (*Server, error) {
	if opts.PageSize < 1 || opts.PageSize > core.MaxPageSize {
		opts.PageSize = core.DefaultPageSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	s := &Server{
		templates:    t,
		service:      svc,
		logger:       opts.Logger,
		pageSize:     opts.PageSize,
		pageCache:    cache.NewLRUCache[cachedPage](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
	}
	s.cacheManager.Register(s.pageCache)
	s.cacheManager.StartCleanup(5 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.GetRequestID))
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.detector.Middleware)
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
		}))
		r.Use(security.NoStore)

		r.Get("/", s.handleIndex)
		r.Get("/ui/expenses", s.handleExpensesTable)

		r.Post("/expenses", s.handleCreateExpense)
		r.Put("/expenses", s.handleUpdateExpense)
		r.Put("/expenses/{id}", s.handleUpdateExpense)
		r.Post("/expenses/{id}", s.handleUpdateExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Post("/expenses/{id}/delete", s.handleDeleteExpense)

		r.Get("/api/expenses", s.handleAPIListExpenses)
		r.Get("/api/expenses/{id}", s.handleAPIGetExpense)
		r.Get("/api/stats", s.handleAPIStats)
	})

	return r
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidate drops every cached listing page after a write.
func (s *Server) invalidate() {
	s.pageCache.Clear()
}

type cachedPage struct {
	marker int64
	page   core.Page
}

// listPage serves a listing page from the cache when storage has not changed
// since it was read, or from the service otherwise.
func (s *Server) listPage(ctx context.Context, q core.ListQuery) (core.Page, error) {
	marker, err := s.service.ChangeMarker(ctx)
	if err != nil {
		s.logger.Warn("Failed to read change marker, bypassing page cache", "error", err)
		return s.service.ListExpenses(ctx, q)
	}

	key := cacheKey(q)
	if entry, ok := s.pageCache.Get(key); ok && entry.marker == marker {
		return entry.page, nil
	}
	page, err := s.service.ListExpenses(ctx, q)
	if err != nil {
		return core.Page{}, err
	}
	// Tagged with the marker read before listing; a concurrent write forces a
	// refetch next time.
	s.pageCache.Set(key, cachedPage{marker: marker, page: page})
	return page, nil
}
