// Package app wires configuration into a ready analytics service. Both the
// server and the CLI build their dependencies here.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/portfolio-analytics/internal/analytics"
	"github.com/kjannette/portfolio-analytics/internal/cache"
	"github.com/kjannette/portfolio-analytics/internal/config"
	"github.com/kjannette/portfolio-analytics/internal/db"
	"github.com/kjannette/portfolio-analytics/internal/external"
	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/indicators"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/metrics"
	"github.com/kjannette/portfolio-analytics/internal/notifications"
	"github.com/kjannette/portfolio-analytics/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	// RequireDB fails Build when Postgres is unreachable. Without it the
	// service runs storeless: token and price analysis only.
	RequireDB bool
	// Registerer receives the collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

type App struct {
	Config  *config.Config
	Service *analytics.Service
	Metrics *metrics.Registry

	Pool        *pgxpool.Pool
	Store       *repository.Store
	RedisCache  *cache.RedisBackend
	Notifier    *notifications.Sender
	MetricsHTTP http.Handler
}

func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := logging.For("app")
	a := &App{Config: cfg, Metrics: metrics.Nop()}

	if opts.Registerer != nil {
		a.Metrics = metrics.New(opts.Registerer)
		if g, ok := opts.Registerer.(prometheus.Gatherer); ok {
			a.MetricsHTTP = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
	}

	// Database
	logger.Info().Str("host", cfg.DBHost).Int("port", cfg.DBPort).Str("db", cfg.DBName).Msg("connecting to database")
	pool, err := db.Connect(ctx, cfg.DSN(), cfg.Pool())
	switch {
	case err != nil && opts.RequireDB:
		return nil, fmt.Errorf("database: %w", err)
	case err != nil:
		logger.Warn().Err(err).Msg("database unavailable, portfolio analysis disabled")
	default:
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("schema: %w", err)
		}
		a.Pool = pool
		a.Store = repository.NewStore(pool)
	}

	// Response cache
	var backend cache.Backend = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rb := cache.NewRedisFromAddr(cfg.RedisAddr)
		if err := rb.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, falling back to in-process cache")
			rb.Close()
		} else {
			a.RedisCache = rb
			backend = rb
		}
	}
	responses := cache.New(backend, cache.WithMetrics(a.Metrics))

	// Upstream clients
	fetcher := httputil.NewClient(httputil.Options{
		Name:    "coingecko",
		Timeout: cfg.FetchTimeout,
		Retry: httputil.RetryConfig{
			MaxAttempts: cfg.FetchMaxAttempts,
			BaseDelay:   cfg.FetchBaseDelay,
			MaxDelay:    cfg.FetchMaxDelay,
			Jitter:      httputil.DefaultRetry.Jitter,
		},
		RPS:             cfg.UpstreamRPS,
		Burst:           cfg.UpstreamBurst,
		BreakerFailures: uint32(max(cfg.BreakerFailures, 0)),
		BreakerCooldown: cfg.BreakerCooldown,
		Metrics:         a.Metrics,
	})
	market := external.NewCoinGeckoClient(fetcher, responses, external.CoinGeckoOptions{
		BaseURL:    cfg.CoinGeckoBaseURL,
		APIKey:     cfg.CoinGeckoAPIKey,
		HistoryTTL: cfg.CacheTTL,
		PriceTTL:   cfg.PriceCacheTTL,
	})
	devActivity := external.NewGitHubClient(cfg.GitHubToken, cfg.FetchTimeout)

	a.Notifier = notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	mode, err := indicators.ParseSignalMode(cfg.MACDSignalMode)
	if err != nil {
		a.Close()
		return nil, err
	}

	var store analytics.Store
	if a.Store != nil {
		store = a.Store
	}
	a.Service = analytics.NewService(store, market, analytics.Options{
		BatchSize:             cfg.BatchSize,
		BatchDelay:            cfg.BatchDelay,
		RebalanceThresholdPct: cfg.RebalanceThresholdPct,
		SignalMode:            mode,
		Developer:             devActivity,
		Notifier:              a.Notifier,
		Metrics:               a.Metrics,
	})
	return a, nil
}

func (a *App) Close() {
	logger := logging.For("app")
	if a.RedisCache != nil {
		if err := a.RedisCache.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		logger.Info().Msg("connection pool closed")
	}
}
