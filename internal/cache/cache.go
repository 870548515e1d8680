package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/metrics"
)

// Entry is a stored value together with the time it was produced.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Backend stores entries. Freshness is decided by Cache, not the backend.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
}

// Cache memoizes producer results for a TTL. There is no single-flight:
// two concurrent misses on the same key both run the producer and the last
// write wins. Callers that need one in-flight producer per key must add it.
type Cache struct {
	backend Backend
	metrics *metrics.Registry
	now     func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Cache) { c.metrics = m }
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{backend: backend, metrics: metrics.Nop(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCompute returns the cached value for key if it was produced less than
// ttl ago, otherwise runs producer and stores its result. Producer errors are
// returned and never cached. Backend errors degrade to a miss.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	var zero T
	logger := logging.For("cache")
	ns := namespace(key)

	e, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		logger.Warn().Str("key", key).Err(err).Msg("backend read failed, treating as miss")
	}
	if ok && c.now().Sub(e.FetchedAt) < ttl {
		var v T
		err := json.Unmarshal(e.Value, &v)
		if err == nil {
			c.metrics.CacheHits.WithLabelValues(ns).Inc()
			logger.Debug().Str("key", key).Dur("age", c.now().Sub(e.FetchedAt)).Msg("hit")
			return v, nil
		}
		logger.Warn().Str("key", key).Err(err).Msg("undecodable entry, recomputing")
	}
	c.metrics.CacheMisses.WithLabelValues(ns).Inc()

	v, err := producer(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.backend.Set(ctx, key, Entry{Value: raw, FetchedAt: c.now()}, ttl); err != nil {
		logger.Warn().Str("key", key).Err(err).Msg("backend write failed")
	}
	return v, nil
}

// namespace is the key prefix before the first ':' and labels metrics.
func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "default"
}
