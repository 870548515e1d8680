package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/models"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func daily(prices ...float64) models.PriceSeries {
	out := make(models.PriceSeries, len(prices))
	for i, p := range prices {
		ts := now.Add(-time.Duration(len(prices)-1-i) * day)
		out[i] = models.PricePoint{Timestamp: ts.UnixMilli(), Price: p}
	}
	return out
}

type fakeMarket struct {
	mu         sync.Mutex
	histories  map[string]*models.PriceHistory
	historyErr map[string]error
	quotes     map[string]models.SimplePriceQuote
	quoteErr   error
	details    map[string]*models.CoinDetails
	detailsErr error
	days       []int
}

func (f *fakeMarket) GetPriceHistory(_ context.Context, tokenID, _ string, days int) (*models.PriceHistory, error) {
	f.mu.Lock()
	f.days = append(f.days, days)
	f.mu.Unlock()
	if err := f.historyErr[tokenID]; err != nil {
		return nil, err
	}
	if h, ok := f.histories[tokenID]; ok {
		return h, nil
	}
	return &models.PriceHistory{TokenID: tokenID}, nil
}

func (f *fakeMarket) GetSimplePrice(_ context.Context, ids []string) (map[string]models.SimplePriceQuote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	out := make(map[string]models.SimplePriceQuote)
	for _, id := range ids {
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (f *fakeMarket) GetCoinDetails(_ context.Context, tokenID string) (*models.CoinDetails, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details[tokenID], nil
}

type fakeStore struct {
	mu        sync.Mutex
	holdings  []models.Holding
	txs       []models.Transaction
	sentiment map[string]*models.SentimentRecord
	upsertErr error
	saved     map[string]any
}

func (f *fakeStore) ReadHoldings(context.Context, string) ([]models.Holding, error) {
	return f.holdings, nil
}

func (f *fakeStore) ReadTransactions(context.Context, string) ([]models.Transaction, error) {
	return f.txs, nil
}

func (f *fakeStore) ReadSentiment(_ context.Context, tokenID string) (*models.SentimentRecord, error) {
	return f.sentiment[tokenID], nil
}

func (f *fakeStore) UpsertReport(_ context.Context, key, _ string, _ time.Time, report any) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]any)
	}
	f.saved[key] = report
	return nil
}

type fakeNotifier struct {
	calls     int
	threshold float64
}

func (f *fakeNotifier) NotifyRebalance(_ context.Context, _ *models.PortfolioReport, thresholdPct float64) {
	f.calls++
	f.threshold = thresholdPct
}

type fakeDeveloper struct {
	activity *models.RepoActivity
	err      error
	repo     string
	since    time.Time
}

func (f *fakeDeveloper) RepoActivity(_ context.Context, repoURL string, since time.Time) (*models.RepoActivity, error) {
	f.repo, f.since = repoURL, since
	return f.activity, f.err
}

var errBoom = errors.New("boom")
