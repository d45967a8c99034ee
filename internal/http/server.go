package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budget/internal/currency"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// RateRefresher is satisfied by *rates.Refresher.
type RateRefresher interface {
	Refresh(ctx context.Context) (currency.RateTable, error)
	LastError() (time.Time, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server's dependencies and limits.
type Options struct {
	Budget     *services.BudgetService
	Reports    *services.ReportService
	Reconciler *services.Reconciler
	Rates      RateRefresher // nil when no provider is configured
	Store      Pinger
	Logger     *log.Logger

	// Locale and Placement override the default display format of every currency.
	Locale    string
	Placement currency.Placement

	RateLimitPerMinute int
	TrustedProxies     []string
	RequestTimeout     time.Duration
}

type Server struct {
	http.Server
	opts     Options
	logger   *log.Logger
	router   *mux.Router
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	clientIP *security.ClientIP
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	clientIP, err := security.NewClientIP(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:     opts,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		router:   mux.NewRouter(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		clientIP: clientIP,
		started:  time.Now(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(clientIP.Extract, opts.Logger)
	s.routes()

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.RequestTimeout,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.clientIP.MethodGuard)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(s.clientIP.Extract, ratelimit.IsWrite, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
	}))
	api.Use(s.withTimeout)

	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/reorder", s.handleReorderGroups).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}", s.handleUpdateGroup).Methods(http.MethodPut)
	api.HandleFunc("/groups/{id:[0-9]+}", s.handleDeleteGroup).Methods(http.MethodDelete)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/reorder", s.handleReorderCategories).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleGetCategory).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleUpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleDeleteCategory).Methods(http.MethodDelete)
	api.HandleFunc("/categories/{id:[0-9]+}/move", s.handleMoveCategory).Methods(http.MethodPost)

	api.HandleFunc("/budgets/{categoryID:[0-9]+}/{year:[0-9]+}/{month:[0-9]+}", s.handleSetBudget).Methods(http.MethodPut)
	api.HandleFunc("/budgets/{categoryID:[0-9]+}/{year:[0-9]+}/{month:[0-9]+}", s.handleClearBudget).Methods(http.MethodDelete)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleUpdateAccount).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleDeleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{id:[0-9]+}/reconcile", s.handleReconcileAccount).Methods(http.MethodPost)

	api.HandleFunc("/rates", s.handleRates).Methods(http.MethodGet)
	api.HandleFunc("/rates/refresh", s.handleRefreshRates).Methods(http.MethodPost)
	api.HandleFunc("/convert", s.handleConvert).Methods(http.MethodGet)
	api.HandleFunc("/format", s.handleFormat).Methods(http.MethodGet)

	api.HandleFunc("/reports/{year:[0-9]+}/{month:[0-9]+}", s.handleMonthReport).Methods(http.MethodGet)
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// formatFor returns the display format for code with the configured overrides.
func (s *Server) formatFor(code string) currency.Format {
	return currency.DefaultFormat(code).With(s.opts.Locale, s.opts.Placement)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
