package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/analytics"
	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/kjannette/portfolio-analytics/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	err       error
	timeframe string
	ids       []string
}

func (f *fakeAnalyzer) AnalyzePortfolio(_ context.Context, id, tf string) (*models.PortfolioReport, error) {
	f.timeframe = tf
	if f.err != nil {
		return nil, f.err
	}
	return &models.PortfolioReport{PortfolioID: id, Timeframe: tf, TotalValue: 1234.5}, nil
}

func (f *fakeAnalyzer) AnalyzeToken(_ context.Context, id, tf string) (*models.TokenReport, error) {
	f.timeframe = tf
	if f.err != nil {
		return nil, f.err
	}
	return &models.TokenReport{TokenID: id, Timeframe: tf}, nil
}

func (f *fakeAnalyzer) Prices(_ context.Context, ids []string) (map[string]models.SimplePriceQuote, error) {
	f.ids = ids
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.SimplePriceQuote, len(ids))
	for i, id := range ids {
		out[id] = models.SimplePriceQuote{USD: float64(i + 1)}
	}
	return out, nil
}

type fakeReports map[string]*repository.StoredReport

func (f fakeReports) GetReport(_ context.Context, key string) (*repository.StoredReport, error) {
	return f[key], nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func serve(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	}
	return rr, body
}

func TestPortfolioAnalysis_DefaultTimeframe(t *testing.T) {
	a := &fakeAnalyzer{}
	rr, body := serve(t, NewServer(a, Options{}), "/v1/portfolios/main/analysis")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "30d", a.timeframe)
	assert.Equal(t, "main", body["portfolioId"])
	assert.Equal(t, 1234.5, body["totalValue"])
}

func TestTokenAnalysis_ExplicitTimeframe(t *testing.T) {
	a := &fakeAnalyzer{}
	rr, body := serve(t, NewServer(a, Options{}), "/v1/tokens/bitcoin/analysis?timeframe=24h")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "24h", a.timeframe)
	assert.Equal(t, "bitcoin", body["tokenId"])
}

func TestAnalysis_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		upstream float64
	}{
		{"invalid input", fmt.Errorf("%w: Timeframe must be one of [24h 7d 30d]", analytics.ErrInvalidInput), http.StatusBadRequest, 0},
		{"upstream", fmt.Errorf("history: %w", &httputil.FetchError{StatusCode: 503, Attempts: 3, Err: errors.New("HTTP 503")}), http.StatusBadGateway, 503},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, 0},
		{"internal", errors.New("boom"), http.StatusInternalServerError, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(&fakeAnalyzer{err: tc.err}, Options{})
			rr, body := serve(t, s, "/v1/tokens/bitcoin/analysis")

			assert.Equal(t, tc.status, rr.Code)
			assert.NotEmpty(t, body["error"])
			if tc.upstream != 0 {
				assert.Equal(t, tc.upstream, body["upstreamStatus"])
			} else {
				assert.NotContains(t, body, "upstreamStatus")
			}
		})
	}
}

func TestAnalysis_RejectsBadID(t *testing.T) {
	rr, _ := serve(t, NewServer(&fakeAnalyzer{}, Options{}), "/v1/tokens/BTC%20X/analysis")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrices(t *testing.T) {
	a := &fakeAnalyzer{}
	s := NewServer(a, Options{})

	rr, body := serve(t, s, "/v1/prices?ids=bitcoin,ethereum,bitcoin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, a.ids)
	assert.Len(t, body, 2)

	rr, _ = serve(t, s, "/v1/prices")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStoredReport(t *testing.T) {
	key := analytics.ReportKey("portfolio", "main", "30d")
	reports := fakeReports{key: {
		Key:       key,
		Kind:      "portfolio",
		Payload:   json.RawMessage(`{"portfolioId":"main","totalValue":10}`),
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	s := NewServer(&fakeAnalyzer{}, Options{Reports: reports})

	rr, body := serve(t, s, "/v1/reports/portfolio/main")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "main", body["portfolioId"])
	assert.NotEmpty(t, rr.Header().Get("Last-Modified"))

	rr, _ = serve(t, s, "/v1/reports/portfolio/main?timeframe=1y")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = serve(t, s, "/v1/reports/bogus/main")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStoredReport_NoStore(t *testing.T) {
	rr, _ := serve(t, NewServer(&fakeAnalyzer{}, Options{}), "/v1/reports/token/bitcoin")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealth(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{
		APIKey: "secret",
		DB:     fakePinger{},
		Cache:  fakePinger{err: errors.New("down")},
	})
	rr, body := serve(t, s, "/health")

	require.Equal(t, http.StatusOK, rr.Code)
	services := body["services"].(map[string]any)
	assert.Equal(t, "connected", services["database"])
	assert.Equal(t, "disconnected", services["cache"])
}

func TestMetricsRoute(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	})

	with := NewServer(&fakeAnalyzer{}, Options{Metrics: metricsHandler})
	rr := httptest.NewRecorder()
	with.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	without := NewServer(&fakeAnalyzer{}, Options{})
	rr = httptest.NewRecorder()
	without.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
