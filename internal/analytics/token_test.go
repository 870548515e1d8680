package analytics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/indicators"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(n int, price func(i int) float64) models.PriceSeries {
	out := make(models.PriceSeries, n)
	for i := range out {
		ts := now.Add(-time.Duration(n-1-i) * time.Hour)
		out[i] = models.PricePoint{Timestamp: ts.UnixMilli(), Price: price(i)}
	}
	return out
}

func tokenFixture() (*fakeStore, *fakeMarket, *fakeDeveloper) {
	change := 2.5
	market := &fakeMarket{
		histories: map[string]*models.PriceHistory{
			"bitcoin": {
				TokenID: "bitcoin",
				Prices:  hourly(60, func(i int) float64 { return float64(i + 1) }),
				Volumes: hourly(60, func(int) float64 { return 100 }),
			},
		},
		quotes: map[string]models.SimplePriceQuote{"bitcoin": {USD: 61.5, Change24hPct: &change}},
		details: map[string]*models.CoinDetails{
			"bitcoin": {ID: "bitcoin", GitHubRepos: []string{"https://github.com/bitcoin/bitcoin"}, Stars: 100, Commits4Weeks: 40},
		},
	}
	store := &fakeStore{sentiment: map[string]*models.SentimentRecord{
		"bitcoin": {TokenID: "bitcoin", Score: 0.3, Label: "bullish", SampleSize: 50},
	}}
	dev := &fakeDeveloper{activity: &models.RepoActivity{Commits: 12, Stars: 120, OpenIssues: 7}}
	return store, market, dev
}

func TestAnalyzeToken_AllSections(t *testing.T) {
	store, market, dev := tokenFixture()
	svc := newTestService(store, market, Options{Developer: dev})

	r, err := svc.AnalyzeToken(context.Background(), "bitcoin", "7d")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, market.days)

	require.NotNil(t, r.Price)
	assert.Equal(t, 61.5, r.Price.Current)
	assert.Equal(t, 60.0, r.Price.High)
	assert.Equal(t, 1.0, r.Price.Low)
	require.NotNil(t, r.Price.TimeframeChange)
	assert.InDelta(t, 5900.0, *r.Price.TimeframeChange, 1e-9)
	require.NotNil(t, r.Price.Change24hPct)
	assert.Equal(t, 2.5, *r.Price.Change24hPct)

	require.NotNil(t, r.Volume)
	assert.Zero(t, r.Volume.Spikes)
	assert.False(t, r.Volume.Unusual)

	require.NotNil(t, r.Developer)
	assert.Equal(t, "https://github.com/bitcoin/bitcoin", r.Developer.Repository)
	require.NotNil(t, r.Developer.CommitsInWindow)
	assert.Equal(t, 12, *r.Developer.CommitsInWindow)
	assert.Equal(t, 120, r.Developer.Stars)
	assert.Equal(t, 40, r.Developer.Commits4Weeks)
	assert.Equal(t, now.Add(-7*day), dev.since)

	require.NotNil(t, r.Social)
	assert.Equal(t, "bullish", r.Social.Label)

	require.NotNil(t, r.Technical)
	assert.Equal(t, 100.0, *r.Technical.RSI14)
	assert.Equal(t, string(indicators.SignalPoint), r.Technical.MACD.SignalMode)

	assert.Empty(t, r.Warnings)
	assert.Contains(t, store.saved, "token:bitcoin:7d")
}

func TestAnalyzeToken_SeriesSignalMode(t *testing.T) {
	store, market, _ := tokenFixture()
	svc := newTestService(store, market, Options{SignalMode: indicators.SignalSeries})

	r, err := svc.AnalyzeToken(context.Background(), "bitcoin", "24h")
	require.NoError(t, err)
	require.NotNil(t, r.Technical)
	assert.Equal(t, "series", r.Technical.MACD.SignalMode)
	assert.Equal(t, []int{1}, market.days)
}

func TestAnalyzeToken_VolumeSpikesOnFiveMinuteSamples(t *testing.T) {
	store, market, _ := tokenFixture()
	n := 288
	every5m := func(v func(i int) float64) models.PriceSeries {
		out := make(models.PriceSeries, n)
		for i := range out {
			ts := now.Add(-time.Duration(n-1-i) * 5 * time.Minute)
			out[i] = models.PricePoint{Timestamp: ts.UnixMilli(), Price: v(i)}
		}
		return out
	}
	market.histories["bitcoin"] = &models.PriceHistory{
		TokenID: "bitcoin",
		Prices:  every5m(func(int) float64 { return 100 }),
		// the last 2.5h trade at double volume
		Volumes: every5m(func(i int) float64 {
			if i >= n-30 {
				return 200
			}
			return 100
		}),
	}
	svc := newTestService(store, market, Options{})

	r, err := svc.AnalyzeToken(context.Background(), "bitcoin", "24h")
	require.NoError(t, err)
	require.NotNil(t, r.Volume)
	// 25 clock hours; only the last has a full 24h trailing window
	assert.Equal(t, 1, r.Volume.Spikes)
	assert.False(t, r.Volume.Unusual)
	assert.Equal(t, 200.0, r.Volume.Latest)
}

func TestAnalyzeToken_PriceHistoryRequired(t *testing.T) {
	store, market, _ := tokenFixture()
	market.historyErr = map[string]error{"bitcoin": &httputil.FetchError{StatusCode: http.StatusBadGateway, Attempts: 4}}
	svc := newTestService(store, market, Options{})

	_, err := svc.AnalyzeToken(context.Background(), "bitcoin", "30d")
	require.ErrorIs(t, err, httputil.ErrUpstreamUnavailable)
	assert.Equal(t, http.StatusBadGateway, httputil.StatusOf(err))
	assert.Empty(t, store.saved)
}

func TestAnalyzeToken_SectionsDegradeIndependently(t *testing.T) {
	store, market, dev := tokenFixture()
	market.detailsErr = errBoom
	market.quoteErr = errBoom
	store.sentiment = nil
	svc := newTestService(store, market, Options{Developer: dev})

	r, err := svc.AnalyzeToken(context.Background(), "bitcoin", "7d")
	require.NoError(t, err)
	assert.Nil(t, r.Developer)
	assert.Nil(t, r.Social)
	require.NotNil(t, r.Price)
	assert.Equal(t, 60.0, r.Price.Current, "falls back to the last history price")
	assert.Nil(t, r.Price.Change24hPct)
	assert.Len(t, r.Warnings, 2)
}

func TestAnalyzeToken_GitHubFailureKeepsProviderData(t *testing.T) {
	store, market, dev := tokenFixture()
	dev.err = errBoom
	svc := newTestService(store, market, Options{Developer: dev})

	r, err := svc.AnalyzeToken(context.Background(), "bitcoin", "7d")
	require.NoError(t, err)
	require.NotNil(t, r.Developer)
	assert.Nil(t, r.Developer.CommitsInWindow)
	assert.Equal(t, 100, r.Developer.Stars)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "github")
}

func TestAnalyzeToken_ShortAndEmptyHistory(t *testing.T) {
	store, market, _ := tokenFixture()
	market.histories["bitcoin"].Prices = hourly(20, func(i int) float64 { return 10 })
	svc := newTestService(store, market, Options{})

	r, err := svc.AnalyzeToken(context.Background(), "bitcoin", "7d")
	require.NoError(t, err)
	assert.Nil(t, r.Technical)
	assert.NotNil(t, r.Price)

	r, err = svc.AnalyzeToken(context.Background(), "unknown-coin", "7d")
	require.NoError(t, err)
	assert.Nil(t, r.Price)
	assert.Nil(t, r.Volume)
	assert.Nil(t, r.Technical)
	assert.Contains(t, r.Warnings, "no price history")
}

func TestAnalyzeToken_InvalidInput(t *testing.T) {
	svc := newTestService(nil, &fakeMarket{}, Options{})
	_, err := svc.AnalyzeToken(context.Background(), "bitcoin", "1y")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AnalyzeToken(context.Background(), "", "7d")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
