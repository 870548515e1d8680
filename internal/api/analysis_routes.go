package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/kjannette/portfolio-analytics/internal/analytics"
	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/logging"
)

const (
	defaultPortfolioTimeframe = "30d"
	defaultTokenTimeframe     = "7d"
)

func (s *Server) handlePortfolioAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validateID(id) {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}
	report, err := s.analyzer.AnalyzePortfolio(r.Context(), id, timeframe(r, defaultPortfolioTimeframe))
	if err != nil {
		writeAnalysisError(w, "portfolio analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTokenAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validateID(id) {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}
	report, err := s.analyzer.AnalyzeToken(r.Context(), id, timeframe(r, defaultTokenTimeframe))
	if err != nil {
		writeAnalysisError(w, "token analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	ids := parseIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	if len(ids) > maxIDs {
		writeError(w, http.StatusBadRequest, "too many ids")
		return
	}
	for _, id := range ids {
		if !validateID(id) {
			writeError(w, http.StatusBadRequest, "invalid token id: "+id)
			return
		}
	}
	quotes, err := s.analyzer.Prices(r.Context(), ids)
	if err != nil {
		writeAnalysisError(w, "prices", err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleStoredReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store not configured")
		return
	}
	kind, id := r.PathValue("kind"), r.PathValue("id")
	fallback := defaultTokenTimeframe
	switch kind {
	case "portfolio":
		fallback = defaultPortfolioTimeframe
	case "token":
	default:
		writeError(w, http.StatusBadRequest, "kind must be portfolio or token")
		return
	}
	if !validateID(id) {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	stored, err := s.reports.GetReport(r.Context(), analytics.ReportKey(kind, id, timeframe(r, fallback)))
	if err != nil {
		logging.For("api").Error().Err(err).Str("kind", kind).Str("id", id).Msg("read stored report")
		writeError(w, http.StatusInternalServerError, "failed to read report")
		return
	}
	if stored == nil {
		writeError(w, http.StatusNotFound, "no stored report")
		return
	}
	w.Header().Set("Last-Modified", stored.UpdatedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(stored.Payload)
}

// writeAnalysisError maps the error taxonomy onto HTTP statuses.
func writeAnalysisError(w http.ResponseWriter, op string, err error) {
	logger := logging.For("api")
	switch {
	case errors.Is(err, analytics.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, httputil.ErrUpstreamUnavailable):
		logger.Warn().Err(err).Str("op", op).Msg("upstream unavailable")
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:          err.Error(),
			UpstreamStatus: httputil.StatusOf(err),
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, op+" timed out")
	default:
		logger.Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
