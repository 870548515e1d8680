package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/batch"
	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/kjannette/portfolio-analytics/internal/performance"
	"github.com/kjannette/portfolio-analytics/internal/risk"
	"github.com/kjannette/portfolio-analytics/internal/strategy"
	"github.com/kjannette/portfolio-analytics/internal/timeseries"
)

// AnalyzePortfolio values the portfolio over the timeframe and computes
// returns, risk, allocation and rebalance recommendations. A failed history
// fetch for one asset is reported in FailedAssets; the call fails only when
// every asset fails.
func (s *Service) AnalyzePortfolio(ctx context.Context, portfolioID, timeframe string) (report *models.PortfolioReport, err error) {
	start := s.now()
	defer func() { s.observe("portfolio", start, err) }()

	req := PortfolioRequest{PortfolioID: portfolioID, Timeframe: timeframe}
	if err := check(req); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, fmt.Errorf("portfolio analysis needs a store")
	}
	logger := logging.For("analytics").With().Str("portfolio", portfolioID).Str("timeframe", timeframe).Logger()

	holdings, err := s.store.ReadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("read holdings: %w", err)
	}
	txs, err := s.store.ReadTransactions(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	pf := models.Portfolio{ID: portfolioID, Holdings: strategy.ReplayTransactions(holdings, txs), Transactions: txs}

	report = &models.PortfolioReport{
		ID:           s.newID(),
		PortfolioID:  portfolioID,
		Timeframe:    timeframe,
		GeneratedAt:  s.now().UTC(),
		Transactions: len(txs),
	}

	ids := pf.TokenIDs()
	series, err := s.fetchHistories(ctx, ids, req.Days(), report)
	if err != nil {
		return nil, err
	}

	amounts := make(map[string]float64, len(pf.Holdings))
	for _, h := range pf.Holdings {
		if _, ok := series[h.TokenID]; ok {
			amounts[h.TokenID] += h.Amount
		}
	}
	grid := timeseries.BuildDailyGrid(series, s.now().UnixMilli())
	report.History = timeseries.Valuate(grid, amounts, series)
	report.Periods = performance.Windows(report.History)

	returns, err := performance.Returns(report.History)
	if err != nil {
		report.Warnings = append(report.Warnings, "returns unavailable: "+err.Error())
	} else {
		report.Returns = returns
		if returns.AnnualizedReturn == nil {
			report.Warnings = append(report.Warnings, "annualized return is not finite")
		}
		stats := performance.Stats(returns.DailyReturns)
		report.DailyStats = &stats
		if m, err := risk.Compute(returns.DailyReturns); err == nil {
			report.Risk = m
		} else {
			report.Warnings = append(report.Warnings, "risk metrics unavailable: "+err.Error())
		}
	}

	prices := s.snapshot(ctx, ids, series, report)
	entries, total, missing := strategy.CurrentAllocation(pf.Holdings, prices)
	for _, id := range missing {
		report.Warnings = append(report.Warnings, "no current price for "+id)
	}
	report.Allocation = entries
	report.TotalValue = total
	report.Rebalance = strategy.Recommend(entries, total)
	report.RebalanceNeeded = strategy.NeedsRebalance(report.Rebalance, s.threshold)

	logger.Info().
		Int("assets", len(ids)).
		Int("failed", len(report.FailedAssets)).
		Int("gridDays", len(grid)).
		Float64("totalValue", total).
		Bool("rebalance", report.RebalanceNeeded).
		Msg("portfolio analyzed")

	s.persist(ctx, ReportKey("portfolio", portfolioID, timeframe), "portfolio", report.GeneratedAt, report, &report.Warnings)

	if report.RebalanceNeeded && s.notifier != nil {
		s.notifier.NotifyRebalance(ctx, report, s.threshold)
	}
	return report, nil
}

// fetchHistories runs the history fetches in batches and returns the
// non-empty series by token. Failures are recorded on report.
func (s *Service) fetchHistories(ctx context.Context, ids []string, days int, report *models.PortfolioReport) (map[string]models.PriceSeries, error) {
	logger := logging.For("analytics")
	tasks := make([]batch.Task[*models.PriceHistory], len(ids))
	for i, id := range ids {
		tasks[i] = func(ctx context.Context) (*models.PriceHistory, error) {
			return s.market.GetPriceHistory(ctx, id, "usd", days)
		}
	}

	results := batch.Run(ctx, tasks, batch.Options{
		Size:  s.batchSize,
		Delay: s.batchDelay,
		OnGroup: func(group, size int) {
			logger.Debug().Int("group", group).Int("size", size).Msg("fetching price histories")
		},
	})

	series := make(map[string]models.PriceSeries, len(ids))
	var firstErr error
	for i, r := range results {
		id := ids[i]
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			s.metrics.AssetFailures.Inc()
			logger.Warn().Str("token", id).Err(r.Err).Msg("price history unavailable")
			report.FailedAssets = append(report.FailedAssets, models.AssetFailure{
				TokenID:        id,
				Error:          r.Err.Error(),
				UpstreamStatus: httputil.StatusOf(r.Err),
			})
			continue
		}
		if r.Value == nil || len(r.Value.Prices) == 0 {
			report.Warnings = append(report.Warnings, "no price history for "+id)
			continue
		}
		series[id] = r.Value.Prices
	}

	if len(ids) > 0 && len(report.FailedAssets) == len(ids) {
		return nil, fmt.Errorf("all %d price histories failed: %w", len(ids), firstErr)
	}
	return series, nil
}

// snapshot prices every token from the simple price endpoint, falling back to
// the last history point when the token is missing or the call fails.
func (s *Service) snapshot(ctx context.Context, ids []string, series map[string]models.PriceSeries, report *models.PortfolioReport) map[string]float64 {
	logger := logging.For("analytics")
	prices := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return prices
	}

	quotes, err := s.market.GetSimplePrice(ctx, ids)
	if err != nil {
		logger.Warn().Err(err).Msg("simple price snapshot failed, using history")
		report.Warnings = append(report.Warnings, "price snapshot unavailable, using last history price")
	}
	for _, id := range ids {
		if q, ok := quotes[id]; ok {
			prices[id] = q.USD
			continue
		}
		if last, ok := series[id].Last(); ok {
			logger.Debug().Str("token", id).Msg("no snapshot quote, using last history price")
			prices[id] = last.Price
		}
	}
	return prices
}

// persist stores the report. A store failure is logged and noted on the
// report, never returned.
func (s *Service) persist(ctx context.Context, key, kind string, generatedAt time.Time, report any, warnings *[]string) {
	if s.store == nil {
		return
	}
	if err := s.store.UpsertReport(ctx, key, kind, generatedAt, report); err != nil {
		logging.For("analytics").Error().Str("key", key).Err(err).Msg("persist report failed")
		*warnings = append(*warnings, "report not persisted")
	}
}
