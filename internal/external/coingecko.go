package external

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/cache"
	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/kjannette/portfolio-analytics/internal/timeseries"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGeckoOptions struct {
	BaseURL string
	APIKey  string
	// HistoryTTL caches market charts and coin details; PriceTTL caches
	// simple price snapshots.
	HistoryTTL time.Duration
	PriceTTL   time.Duration
}

// CoinGeckoClient is the market-data provider. Every call goes through the
// shared resilient client and is memoized in the response cache.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	keyHeader  string
	http       *httputil.Client
	cache      *cache.Cache
	historyTTL time.Duration
	priceTTL   time.Duration
}

func NewCoinGeckoClient(client *httputil.Client, c *cache.Cache, opts CoinGeckoOptions) *CoinGeckoClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultCoinGeckoURL
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = 5 * time.Minute
	}
	if opts.PriceTTL <= 0 {
		opts.PriceTTL = time.Minute
	}
	header := "x-cg-demo-api-key"
	if strings.Contains(base, "pro-api.") {
		header = "x-cg-pro-api-key"
	}
	return &CoinGeckoClient{
		baseURL:    base,
		apiKey:     opts.APIKey,
		keyHeader:  header,
		http:       client,
		cache:      c,
		historyTTL: opts.HistoryTTL,
		priceTTL:   opts.PriceTTL,
	}
}

func (c *CoinGeckoClient) get(ctx context.Context, path string, q url.Values) (*httputil.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.http.Fetch(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(c.keyHeader, c.apiKey)
		}
		return req, nil
	})
}

// GetPriceHistory returns prices and volumes for the last days days. An
// unknown token yields an empty history.
func (c *CoinGeckoClient) GetPriceHistory(ctx context.Context, tokenID, vsCurrency string, days int) (*models.PriceHistory, error) {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	key := fmt.Sprintf("history:%s:%s:%d", tokenID, vsCurrency, days)
	return cache.GetOrCompute(ctx, c.cache, key, c.historyTTL, func(ctx context.Context) (*models.PriceHistory, error) {
		return c.fetchPriceHistory(ctx, tokenID, vsCurrency, days)
	})
}

func (c *CoinGeckoClient) fetchPriceHistory(ctx context.Context, tokenID, vsCurrency string, days int) (*models.PriceHistory, error) {
	logger := logging.For("coingecko")
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("days", strconv.Itoa(days))

	resp, err := c.get(ctx, "/coins/"+url.PathEscape(tokenID)+"/market_chart", q)
	if err != nil {
		return nil, fmt.Errorf("coingecko market chart %s: %w", tokenID, err)
	}
	out := &models.PriceHistory{TokenID: tokenID, VsCurrency: vsCurrency}
	if resp.NotFound() {
		return out, nil
	}

	var data struct {
		Prices       [][2]float64 `json:"prices"`
		TotalVolumes [][2]float64 `json:"total_volumes"`
	}
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("decode market chart %s: %w", tokenID, err)
	}
	out.Prices = timeseries.Normalize(toSeries(data.Prices))
	out.Volumes = timeseries.Normalize(toSeries(data.TotalVolumes))

	logger.Debug().Str("token", tokenID).Int("days", days).Int("points", len(out.Prices)).Msg("price history fetched")
	return out, nil
}

func toSeries(raw [][2]float64) models.PriceSeries {
	out := make(models.PriceSeries, 0, len(raw))
	for _, p := range raw {
		out = append(out, models.PricePoint{Timestamp: int64(p[0]), Price: p[1]})
	}
	return out
}

// GetSimplePrice returns USD quotes for ids. Tokens the provider does not
// know are absent from the map.
func (c *CoinGeckoClient) GetSimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePriceQuote, error) {
	if len(ids) == 0 {
		return map[string]models.SimplePriceQuote{}, nil
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	joined := strings.Join(sorted, ",")

	return cache.GetOrCompute(ctx, c.cache, "price:"+joined, c.priceTTL, func(ctx context.Context) (map[string]models.SimplePriceQuote, error) {
		return c.fetchSimplePrice(ctx, joined)
	})
}

func (c *CoinGeckoClient) fetchSimplePrice(ctx context.Context, joined string) (map[string]models.SimplePriceQuote, error) {
	q := url.Values{}
	q.Set("ids", joined)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_24hr_vol", "true")

	resp, err := c.get(ctx, "/simple/price", q)
	if err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}
	out := make(map[string]models.SimplePriceQuote)
	if resp.NotFound() {
		return out, nil
	}

	var data map[string]struct {
		USD       *float64 `json:"usd"`
		Change24h *float64 `json:"usd_24h_change"`
		Vol24h    *float64 `json:"usd_24h_vol"`
	}
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("decode simple price: %w", err)
	}
	for id, q := range data {
		if q.USD == nil || !finite(*q.USD) || *q.USD < 0 {
			logging.For("coingecko").Warn().Str("token", id).Msg("quote without usd price, skipping")
			continue
		}
		out[id] = models.SimplePriceQuote{
			USD:          *q.USD,
			Change24hPct: finiteOrNil(q.Change24h),
			Volume24h:    finiteOrNil(q.Vol24h),
		}
	}
	return out, nil
}

// GetCoinDetails returns the developer fields of a coin record, or nil for an
// unknown coin.
func (c *CoinGeckoClient) GetCoinDetails(ctx context.Context, tokenID string) (*models.CoinDetails, error) {
	return cache.GetOrCompute(ctx, c.cache, "coin:"+tokenID, c.historyTTL, func(ctx context.Context) (*models.CoinDetails, error) {
		return c.fetchCoinDetails(ctx, tokenID)
	})
}

func (c *CoinGeckoClient) fetchCoinDetails(ctx context.Context, tokenID string) (*models.CoinDetails, error) {
	q := url.Values{}
	for _, k := range []string{"localization", "tickers", "market_data", "community_data", "sparkline"} {
		q.Set(k, "false")
	}
	q.Set("developer_data", "true")

	resp, err := c.get(ctx, "/coins/"+url.PathEscape(tokenID), q)
	if err != nil {
		return nil, fmt.Errorf("coingecko coin %s: %w", tokenID, err)
	}
	if resp.NotFound() {
		return nil, nil
	}

	var data struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Links  struct {
			ReposURL struct {
				GitHub []string `json:"github"`
			} `json:"repos_url"`
		} `json:"links"`
		Developer struct {
			Forks        int `json:"forks"`
			Stars        int `json:"stars"`
			Subscribers  int `json:"subscribers"`
			TotalIssues  int `json:"total_issues"`
			ClosedIssues int `json:"closed_issues"`
			Commits4w    int `json:"commit_count_4_weeks"`
		} `json:"developer_data"`
	}
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("decode coin %s: %w", tokenID, err)
	}

	repos := make([]string, 0, len(data.Links.ReposURL.GitHub))
	for _, r := range data.Links.ReposURL.GitHub {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}
	return &models.CoinDetails{
		ID:            data.ID,
		Symbol:        data.Symbol,
		Name:          data.Name,
		GitHubRepos:   repos,
		Stars:         data.Developer.Stars,
		Forks:         data.Developer.Forks,
		Subscribers:   data.Developer.Subscribers,
		OpenIssues:    max(data.Developer.TotalIssues-data.Developer.ClosedIssues, 0),
		Commits4Weeks: data.Developer.Commits4w,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || !finite(*v) {
		return nil
	}
	return v
}
