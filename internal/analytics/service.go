// Package analytics orchestrates fetching, valuation and the metric engines
// into portfolio and token reports.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/indicators"
	"github.com/kjannette/portfolio-analytics/internal/metrics"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/kjannette/portfolio-analytics/internal/strategy"
)

type Store interface {
	ReadHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error)
	ReadTransactions(ctx context.Context, portfolioID string) ([]models.Transaction, error)
	ReadSentiment(ctx context.Context, tokenID string) (*models.SentimentRecord, error)
	UpsertReport(ctx context.Context, key, kind string, generatedAt time.Time, report any) error
}

type MarketData interface {
	GetPriceHistory(ctx context.Context, tokenID, vsCurrency string, days int) (*models.PriceHistory, error)
	GetSimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePriceQuote, error)
	GetCoinDetails(ctx context.Context, tokenID string) (*models.CoinDetails, error)
}

type DeveloperActivity interface {
	RepoActivity(ctx context.Context, repoURL string, since time.Time) (*models.RepoActivity, error)
}

type Notifier interface {
	NotifyRebalance(ctx context.Context, report *models.PortfolioReport, thresholdPct float64)
}

type Options struct {
	BatchSize             int
	BatchDelay            time.Duration
	RebalanceThresholdPct float64
	SignalMode            indicators.SignalMode

	// Developer and Notifier are optional.
	Developer DeveloperActivity
	Notifier  Notifier
	Metrics   *metrics.Registry
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	store     Store
	market    MarketData
	developer DeveloperActivity
	notifier  Notifier
	metrics   *metrics.Registry
	now       func() time.Time
	newID     func() string

	batchSize  int
	batchDelay time.Duration
	threshold  float64
	signalMode indicators.SignalMode
}

// NewService wires the orchestrator. store may be nil, in which case
// portfolio analysis is unavailable and token reports have no social section.
func NewService(store Store, market MarketData, opts Options) *Service {
	s := &Service{
		store:      store,
		market:     market,
		developer:  opts.Developer,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		now:        opts.Now,
		newID:      opts.NewID,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		threshold:  opts.RebalanceThresholdPct,
		signalMode: opts.SignalMode,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.batchSize <= 0 {
		s.batchSize = 3
	}
	if s.threshold <= 0 {
		s.threshold = strategy.DefaultThresholdPct
	}
	if s.signalMode == "" {
		s.signalMode = indicators.SignalPoint
	}
	return s
}

// Prices returns the current simple price snapshot for ids.
func (s *Service) Prices(ctx context.Context, ids []string) (map[string]models.SimplePriceQuote, error) {
	if err := check(PriceRequest{TokenIDs: ids}); err != nil {
		return nil, err
	}
	return s.market.GetSimplePrice(ctx, ids)
}

func (s *Service) observe(kind string, start time.Time, err error) {
	s.metrics.AnalysisDuration.WithLabelValues(kind, resultLabel(err)).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, httputil.ErrUpstreamUnavailable):
		return "upstream"
	default:
		return "error"
	}
}
