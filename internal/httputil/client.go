package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/metrics"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 16 << 20

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) NotFound() bool {
	return r.StatusCode == http.StatusNotFound
}

type Options struct {
	Name    string
	Timeout time.Duration
	Retry   RetryConfig

	// RPS <= 0 disables rate limiting.
	RPS   float64
	Burst int

	// BreakerFailures consecutive exhausted requests open the breaker for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Metrics *metrics.Registry
	// Transport overrides the base round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Client is the resilient fetch primitive: per-request timeout, token-bucket
// throttling per attempt, retry with backoff, and an optional circuit breaker
// around the whole retried call.
type Client struct {
	name    string
	http    *http.Client
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

func NewClient(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "upstream"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetry
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = &meteredTransport{base: base, metrics: opts.Metrics}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		rt = &limitedTransport{base: rt, limiter: rate.NewLimiter(rate.Limit(opts.RPS), burst)}
	}

	c := &Client{
		name:    opts.Name,
		http:    &http.Client{Timeout: opts.Timeout, Transport: rt},
		retry:   opts.Retry,
		metrics: opts.Metrics,
	}

	if opts.BreakerFailures > 0 {
		cooldown := opts.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 60 * time.Second
		}
		threshold := opts.BreakerFailures
		logger := logging.For("httputil")
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     opts.Name,
			Interval: 60 * time.Second,
			Timeout:  cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			},
		})
	}
	return c
}

// Fetch runs buildReq through the retry loop and returns the read body. A 404
// is a successful *Response with NotFound() true.
func (c *Client) Fetch(ctx context.Context, buildReq func() (*http.Request, error)) (*Response, error) {
	call := func() (*Response, error) {
		resp, err := Do(ctx, c.http, c.retry, buildReq)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				c.metrics.FetchFailures.WithLabelValues(c.name).Inc()
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	if c.breaker == nil {
		return call()
	}

	out, err := c.breaker.Execute(func() (any, error) { return call() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.BreakerRejects.Inc()
		return nil, &FetchError{Attempts: 0, Err: fmt.Errorf("%s: %w", c.name, err)}
	}
	if err != nil {
		return nil, err
	}
	return out.(*Response), nil
}

// limitedTransport waits on a token bucket before every attempt.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

type meteredTransport struct {
	base    http.RoundTripper
	metrics *metrics.Registry
}

func (t *meteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	t.metrics.FetchAttempts.WithLabelValues(req.URL.Host, outcome(resp, err)).Inc()
	return resp, err
}

func outcome(resp *http.Response, err error) string {
	switch {
	case err != nil:
		return "network_error"
	case resp.StatusCode == http.StatusNotFound:
		return "not_found"
	case RetryableStatus(resp.StatusCode):
		return "retryable"
	case resp.StatusCode >= 400:
		return "client_error"
	default:
		return "ok"
	}
}
