package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/logging"
)

// ErrUpstreamUnavailable matches every *FetchError via errors.Is.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// FetchError is returned once retries are exhausted, or immediately for a
// non-retryable client error other than 404.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream unavailable after %d attempt(s) (status %d): %v", e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of each delay that is randomized, 0..1.
	Jitter float64
}

var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
	Jitter:      0.2,
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(code int) bool {
	return retryableStatus[code]
}

// Backoff returns the delay before attempt+1, exponential from BaseDelay and
// capped at MaxDelay, before jitter.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if cfg.MaxDelay > 0 && d >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

func jittered(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	if frac > 1 {
		frac = 1
	}
	spread := float64(d) * frac
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

// Do executes an idempotent HTTP request with exponential backoff retry.
// The buildReq function is called on each attempt to produce a fresh request
// (required because request bodies are consumed on each attempt).
//
// Network errors and 429/500/502/503/504 are retried. A 404 is returned as a
// normal response so callers can treat it as "absent". Any other 4xx fails
// immediately with a *FetchError.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}
	logger := logging.For("httputil")

	var lastErr error
	lastStatus := 0
	url := ""

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		url = req.URL.Redacted()

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			lastStatus = 0
		} else {
			switch {
			case resp.StatusCode < 400:
				return resp, nil
			case resp.StatusCode == http.StatusNotFound:
				logger.Info().Str("url", url).Msg("not found, treating as empty")
				return resp, nil
			}

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))

			if !RetryableStatus(resp.StatusCode) {
				return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempt, Err: lastErr}
			}
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := jittered(Backoff(cfg, attempt), cfg.Jitter)
		logger.Warn().
			Int("attempt", attempt).
			Int("max", cfg.MaxAttempts).
			Int("status", lastStatus).
			Dur("delay", delay).
			Err(lastErr).
			Msg("request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Error().Str("url", url).Int("attempts", cfg.MaxAttempts).Int("status", lastStatus).Err(lastErr).Msg("retries exhausted")
	return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: cfg.MaxAttempts, Err: lastErr}
}
