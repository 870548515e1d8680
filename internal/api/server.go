package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/kjannette/portfolio-analytics/internal/repository"
)

const maxIDs = 250

var idRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

// Analyzer is the orchestration call surface.
type Analyzer interface {
	AnalyzePortfolio(ctx context.Context, portfolioID, timeframe string) (*models.PortfolioReport, error)
	AnalyzeToken(ctx context.Context, tokenID, timeframe string) (*models.TokenReport, error)
	Prices(ctx context.Context, ids []string) (map[string]models.SimplePriceQuote, error)
}

type ReportReader interface {
	GetReport(ctx context.Context, key string) (*repository.StoredReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
	// Reports, DB, Cache and Metrics are optional.
	Reports ReportReader
	DB      Pinger
	Cache   Pinger
	Metrics http.Handler
}

type Server struct {
	analyzer   Analyzer
	reports    ReportReader
	db         Pinger
	cache      Pinger
	httpServer *http.Server
	apiKey     string
}

func NewServer(analyzer Analyzer, opts Options) *Server {
	s := &Server{
		analyzer: analyzer,
		reports:  opts.Reports,
		db:       opts.DB,
		cache:    opts.Cache,
		apiKey:   opts.APIKey,
	}

	mux := http.NewServeMux()

	// Analysis routes
	mux.HandleFunc("GET /v1/portfolios/{id}/analysis", s.handlePortfolioAnalysis)
	mux.HandleFunc("GET /v1/tokens/{id}/analysis", s.handleTokenAnalysis)
	mux.HandleFunc("GET /v1/prices", s.handlePrices)
	mux.HandleFunc("GET /v1/reports/{kind}/{id}", s.handleStoredReport)

	// No auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	handler := s.authMiddleware(corsMiddleware(mux, opts.CORSOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
	}

	return s
}

// Handler exposes the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	logger := logging.For("api")
	logger.Info().Str("addr", s.httpServer.Addr).Msg("REST API server started")
	if s.apiKey != "" {
		logger.Info().Msg("authentication: enabled (Bearer token)")
	} else {
		logger.Warn().Msg("authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateID(id string) bool {
	return idRegexp.MatchString(id)
}

// parseIDs splits a comma list, dropping blanks and duplicates.
func parseIDs(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func timeframe(r *http.Request, fallback string) string {
	if tf := r.URL.Query().Get("timeframe"); tf != "" {
		return tf
	}
	return fallback
}

// --- response helpers ---

type errorResponse struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
