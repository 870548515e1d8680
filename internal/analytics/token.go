package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/indicators"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/kjannette/portfolio-analytics/internal/timeseries"
	"golang.org/x/sync/errgroup"
)

// AnalyzeToken fetches price history, the price snapshot, developer activity
// and the stored sentiment concurrently and combines them into a report.
// The price history is required; every other input only nulls its section.
func (s *Service) AnalyzeToken(ctx context.Context, tokenID, timeframe string) (report *models.TokenReport, err error) {
	start := s.now()
	defer func() { s.observe("token", start, err) }()

	req := TokenRequest{TokenID: tokenID, Timeframe: timeframe}
	if err := check(req); err != nil {
		return nil, err
	}
	logger := logging.For("analytics").With().Str("token", tokenID).Str("timeframe", timeframe).Logger()

	var (
		history   *models.PriceHistory
		quote     *models.SimplePriceQuote
		developer *models.DeveloperSection
		sentiment *models.SentimentRecord
		warnings  = make([]string, 3)
	)

	var g errgroup.Group
	g.Go(func() error {
		h, err := s.market.GetPriceHistory(ctx, tokenID, "usd", req.Days())
		if err != nil {
			return fmt.Errorf("price history %s: %w", tokenID, err)
		}
		history = h
		return nil
	})
	g.Go(func() error {
		quotes, err := s.market.GetSimplePrice(ctx, []string{tokenID})
		if err != nil {
			warnings[0] = "price snapshot unavailable: " + err.Error()
			return nil
		}
		if q, ok := quotes[tokenID]; ok {
			quote = &q
		}
		return nil
	})
	g.Go(func() error {
		d, warn := s.developerSection(ctx, tokenID, req.Days())
		developer, warnings[1] = d, warn
		return nil
	})
	g.Go(func() error {
		if s.store == nil {
			return nil
		}
		rec, err := s.store.ReadSentiment(ctx, tokenID)
		if err != nil {
			warnings[2] = "sentiment unavailable: " + err.Error()
			return nil
		}
		sentiment = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if history == nil {
		history = &models.PriceHistory{TokenID: tokenID}
	}

	report = &models.TokenReport{
		ID:          s.newID(),
		TokenID:     tokenID,
		Timeframe:   timeframe,
		GeneratedAt: s.now().UTC(),
		Developer:   developer,
		Social:      sentiment,
	}
	for _, w := range warnings {
		if w != "" {
			report.Warnings = append(report.Warnings, w)
		}
	}

	closes := timeseries.Closes(history.Prices)
	report.Price = priceSection(history.Prices, quote)
	if report.Price == nil {
		report.Warnings = append(report.Warnings, "no price history")
	}
	report.Volume = indicators.Volume(history.Volumes)
	report.Technical = indicators.Compute(closes, s.signalMode)
	if report.Technical == nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("technical indicators need %d prices, have %d", indicators.MinHistory, len(closes)))
	}

	logger.Info().
		Int("points", len(closes)).
		Bool("technical", report.Technical != nil).
		Bool("developer", report.Developer != nil).
		Bool("social", report.Social != nil).
		Msg("token analyzed")

	s.persist(ctx, ReportKey("token", tokenID, timeframe), "token", report.GeneratedAt, report, &report.Warnings)
	return report, nil
}

// priceSection is nil for an empty series. Current comes from the snapshot
// when present, otherwise from the last history point.
func priceSection(prices models.PriceSeries, quote *models.SimplePriceQuote) *models.PriceSection {
	first, ok := prices.First()
	if !ok {
		return nil
	}
	last, _ := prices.Last()

	sec := &models.PriceSection{
		Current: last.Price,
		High:    first.Price,
		Low:     first.Price,
		Points:  len(prices),
	}
	for _, p := range prices {
		sec.High = max(sec.High, p.Price)
		sec.Low = min(sec.Low, p.Price)
	}
	if first.Price != 0 {
		change := (last.Price - first.Price) / first.Price * 100
		sec.TimeframeChange = &change
	}
	if quote != nil {
		sec.Current = quote.USD
		sec.Change24hPct = quote.Change24hPct
		sec.Volume24h = quote.Volume24h
	}
	return sec
}

// developerSection combines the provider's developer data with GitHub commit
// activity over the window. It returns a warning instead of an error.
func (s *Service) developerSection(ctx context.Context, tokenID string, days int) (*models.DeveloperSection, string) {
	details, err := s.market.GetCoinDetails(ctx, tokenID)
	if err != nil {
		return nil, "developer data unavailable: " + err.Error()
	}
	if details == nil {
		return nil, ""
	}

	sec := &models.DeveloperSection{
		Stars:         details.Stars,
		Forks:         details.Forks,
		Subscribers:   details.Subscribers,
		OpenIssues:    details.OpenIssues,
		Commits4Weeks: details.Commits4Weeks,
	}
	if len(details.GitHubRepos) == 0 {
		return sec, ""
	}
	sec.Repository = details.GitHubRepos[0]
	if s.developer == nil {
		return sec, ""
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	act, err := s.developer.RepoActivity(ctx, sec.Repository, since)
	if err != nil {
		return sec, "github activity unavailable: " + err.Error()
	}
	if act != nil {
		commits := act.Commits
		sec.CommitsInWindow = &commits
		sec.OpenIssues = act.OpenIssues
		sec.Stars = max(sec.Stars, act.Stars)
		sec.Forks = max(sec.Forks, act.Forks)
	}
	return sec, ""
}
