package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fxledger/internal/cache"
	"fxledger/internal/log"
	"fxledger/internal/middleware/ratelimit"
	"fxledger/internal/middleware/security"
	"fxledger/internal/middleware/trace"
	"fxledger/internal/services"
)

const (
	// UserHeader names the user a request acts for.
	UserHeader  = "X-User-ID"
	defaultUser = "anonymous"

	maxBodyBytes   = 1 << 20
	maxImportBytes = 8 << 20
)

// Dependencies is everything the API server needs.
type Dependencies struct {
	Ledger *services.LedgerService
	Proxy  *services.RatesProxy
	// Ready reports whether the backing stores are reachable. Optional.
	Ready     func(context.Context) error
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	ledger *services.LedgerService
	proxy  *services.RatesProxy
	ready  func(context.Context) error
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	cacheManager     *cache.Manager
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:           deps.Ledger,
		proxy:            deps.Proxy,
		ready:            deps.Ready,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(deps.RateLimit),
		securityDetector: security.NewDetector(),
		cacheManager:     cache.NewManager(),
		started:          time.Now(),
	}

	if s.proxy != nil {
		s.cacheManager.Register(s.proxy.Cache())
	}
	if s.ledger != nil {
		s.cacheManager.Register(s.ledger.Coordinators())
	}
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/rates", s.handleRates)
	mux.HandleFunc("GET /api/convert", s.handleConvert)
	mux.HandleFunc("GET /api/display-currency", s.handleGetDisplayCurrency)
	mux.HandleFunc("POST /api/display-currency", s.handleSelectDisplayCurrency)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/import", s.handleImport)
	mux.HandleFunc("GET /api/transactions/export", s.handleExport)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets/{month}", s.handlePutBudget)
	mux.HandleFunc("DELETE /api/budgets/{month}", s.handleDeleteBudget)

	s.Handler = s.chain(mux)
	return s
}

// chain wraps h with the middleware stack, outermost first.
func (s *Server) chain(h http.Handler) http.Handler {
	tracer := trace.NewMiddleware(s.securityDetector.ExtractClientIP, s.logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.limitKey, ratelimit.Mutating, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
			"Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})

	h = limit(h)
	h = s.securityDetector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest, userID)(h)
	h = tracer.Middleware(h)
	h = log.Middleware(s.logger)(h)
	h = headers.Middleware(h)
	return h
}

func (s *Server) limitKey(r *http.Request) string {
	return s.securityDetector.ExtractClientIP(r) + "|" + userID(r)
}

// Shutdown gracefully shuts down the server and its background loops
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the backing stores and reports tracked clients
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
	}
	if s.ledger == nil {
		checks["ledger"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
