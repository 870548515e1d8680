package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kjannette/portfolio-analytics/internal/db"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// Secrets (from .env)
	CoinGeckoAPIKey string
	GitHubToken     string
	WebhookURL      string
	BotName         string
	APIKey          string
	CORSAllowOrigin string

	// Upstream
	CoinGeckoBaseURL string
	FetchTimeout     time.Duration
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	FetchMaxDelay    time.Duration
	UpstreamRPS      float64
	UpstreamBurst    int
	BreakerFailures  int
	BreakerCooldown  time.Duration

	// Batching
	BatchSize  int
	BatchDelay time.Duration

	// Cache
	RedisAddr     string
	CacheTTL      time.Duration
	PriceCacheTTL time.Duration

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	DBMaxConns        int
	DBMinConns        int
	DBMaxConnIdleTime time.Duration
	DBMaxConnLifetime time.Duration

	// Analytics
	RebalanceThresholdPct float64
	MACDSignalMode        string

	// API
	APIPort        int
	MetricsEnabled bool

	// Scheduling
	Schedule            string
	ScheduledPortfolios []string
	ScheduledTimeframe  string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		CoinGeckoAPIKey: envStr("COINGECKO_API_KEY", ""),
		GitHubToken:     envStr("GITHUB_TOKEN", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		BotName:         envStr("BOT_NAME", "PortfolioAnalytics"),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Upstream
		CoinGeckoBaseURL: envStr("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		FetchTimeout:     envDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchMaxAttempts: envInt("FETCH_MAX_ATTEMPTS", 4),
		FetchBaseDelay:   envDuration("FETCH_BASE_DELAY", time.Second),
		FetchMaxDelay:    envDuration("FETCH_MAX_DELAY", 20*time.Second),
		UpstreamRPS:      envFloat("UPSTREAM_RPS", 0.5),
		UpstreamBurst:    envInt("UPSTREAM_BURST", 3),
		BreakerFailures:  envInt("BREAKER_FAILURES", 5),
		BreakerCooldown:  envDuration("BREAKER_COOLDOWN", time.Minute),

		// Batching
		BatchSize:  envInt("BATCH_SIZE", 3),
		BatchDelay: envDuration("BATCH_DELAY", 1500*time.Millisecond),

		// Cache
		RedisAddr:     envStr("REDIS_ADDR", ""),
		CacheTTL:      envDuration("CACHE_TTL", 5*time.Minute),
		PriceCacheTTL: envDuration("PRICE_CACHE_TTL", time.Minute),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "portfolio_analytics"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		DBMaxConns:        envInt("DB_MAX_CONNS", 20),
		DBMinConns:        envInt("DB_MIN_CONNS", 2),
		DBMaxConnIdleTime: envDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Second),
		DBMaxConnLifetime: envDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),

		// Analytics
		RebalanceThresholdPct: envFloat("REBALANCE_THRESHOLD_PCT", 5),
		MACDSignalMode:        envStr("MACD_SIGNAL_MODE", "point"),

		// API
		APIPort:        envInt("API_PORT", 3001),
		MetricsEnabled: envBool("METRICS_ENABLED", true),

		// Scheduling
		Schedule:            envStr("SCHEDULE", "@every 1h"),
		ScheduledPortfolios: envList("SCHEDULED_PORTFOLIOS"),
		ScheduledTimeframe:  envStr("SCHEDULED_TIMEFRAME", "30d"),

		// Logging
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	logger := logging.For("config")

	if c.BatchSize <= 0 {
		errs = append(errs, "BATCH_SIZE must be positive")
	}
	if c.FetchMaxAttempts <= 0 {
		errs = append(errs, "FETCH_MAX_ATTEMPTS must be positive")
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, "FETCH_TIMEOUT must be positive")
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d)", c.DBMaxConns))
	}
	if c.RebalanceThresholdPct < 0 {
		errs = append(errs, "REBALANCE_THRESHOLD_PCT must not be negative")
	}
	switch c.MACDSignalMode {
	case "point", "series":
	default:
		errs = append(errs, fmt.Sprintf("MACD_SIGNAL_MODE must be point or series, got %q", c.MACDSignalMode))
	}
	switch c.ScheduledTimeframe {
	case "30d", "90d", "1y":
	default:
		errs = append(errs, fmt.Sprintf("SCHEDULED_TIMEFRAME must be one of 30d, 90d, 1y, got %q", c.ScheduledTimeframe))
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("SCHEDULE %q: %v", c.Schedule, err))
		}
	}

	if c.CoinGeckoAPIKey == "" {
		logger.Warn().Msg("COINGECKO_API_KEY not set, using the anonymous rate limit")
	}
	if c.GitHubToken == "" {
		logger.Warn().Msg("GITHUB_TOKEN not set, developer activity uses CoinGecko data only")
	}
	if c.APIKey == "" {
		logger.Warn().Msg("API_KEY not set, REST API has no authentication")
	}
	if c.RedisAddr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, response cache is in-process only")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Portfolio Analytics Configuration ===")
	fmt.Printf("Market data: %s (key %s)\n", c.CoinGeckoBaseURL, boolLabel(c.CoinGeckoAPIKey != "", "configured", "not set"))
	fmt.Printf("GitHub: %s\n", boolLabel(c.GitHubToken != "", "token configured", "anonymous"))
	fmt.Println("--------------------------------------")
	fmt.Println("Fetching:")
	fmt.Printf("  Timeout: %s, attempts: %d, backoff: %s..%s\n", c.FetchTimeout, c.FetchMaxAttempts, c.FetchBaseDelay, c.FetchMaxDelay)
	fmt.Printf("  Rate limit: %.2f rps (burst %d)\n", c.UpstreamRPS, c.UpstreamBurst)
	fmt.Printf("  Batches: %d per group, %s between groups\n", c.BatchSize, c.BatchDelay)
	fmt.Printf("  Cache: %s (ttl %s, prices %s)\n", boolLabel(c.RedisAddr != "", "redis "+c.RedisAddr, "memory"), c.CacheTTL, c.PriceCacheTTL)
	fmt.Println("--------------------------------------")
	fmt.Printf("Database: %s:%d/%s (pool %d..%d, idle %s, lifetime %s)\n",
		c.DBHost, c.DBPort, c.DBName, c.DBMinConns, c.DBMaxConns, c.DBMaxConnIdleTime, c.DBMaxConnLifetime)
	fmt.Println("--------------------------------------")
	fmt.Println("Analytics:")
	fmt.Printf("  Rebalance threshold: %.1f pp\n", c.RebalanceThresholdPct)
	fmt.Printf("  MACD signal: %s\n", c.MACDSignalMode)
	if len(c.ScheduledPortfolios) > 0 {
		fmt.Printf("  Schedule: %s for %s (%s)\n", c.Schedule, strings.Join(c.ScheduledPortfolios, ","), c.ScheduledTimeframe)
	} else {
		fmt.Println("  Schedule: no portfolios configured")
	}
	fmt.Printf("  Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

// Pool returns the connection pool sizing for db.Connect.
func (c *Config) Pool() db.PoolOptions {
	return db.PoolOptions{
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
		MaxConnLifetime: c.DBMaxConnLifetime,
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or bare seconds ("90").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
