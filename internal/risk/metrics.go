// Package risk computes risk statistics over a daily return series.
package risk

import (
	"errors"
	"math"
	"sort"

	"github.com/kjannette/portfolio-analytics/internal/models"
)

const (
	// RiskFreeRate is the fixed annual rate subtracted in the Sharpe ratio.
	RiskFreeRate = 0.02
	daysPerYear  = 365.0
	// PlaceholderBeta is reported until a benchmark series exists.
	PlaceholderBeta = 1.0
)

var ErrNoReturns = errors.New("no returns")

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Volatility annualizes the population std by calendar days.
func Volatility(returns []float64) float64 {
	return StdDev(returns) * math.Sqrt(daysPerYear)
}

// Sharpe is (mean*365 - RiskFreeRate) / volatility, and 0 when volatility is 0.
func Sharpe(returns []float64, volatility float64) float64 {
	if len(returns) == 0 || volatility == 0 {
		return 0
	}
	return (mean(returns)*daysPerYear - RiskFreeRate) / volatility
}

// MaxDrawdown walks compounded value from 1 and returns the largest
// fractional decline from a running peak.
func MaxDrawdown(returns []float64) float64 {
	value, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if peak > 0 {
			worst = max(worst, (peak-value)/peak)
		}
	}
	return worst
}

// VaR95 is the one-tailed 95% historical VaR, -sorted[floor(0.05n)],
// floored at 0: a positive 5th-percentile return is no loss.
func VaR95(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	return max(0, -sorted[int(math.Floor(0.05*float64(len(sorted))))])
}

// Compute fills RiskMetrics. Beta is always the placeholder and flagged so.
func Compute(returns []float64) (*models.RiskMetrics, error) {
	if len(returns) == 0 {
		return nil, ErrNoReturns
	}
	vol := Volatility(returns)
	m := &models.RiskMetrics{
		Volatility:        vol,
		SharpeRatio:       Sharpe(returns, vol),
		MaxDrawdown:       MaxDrawdown(returns),
		VaR95:             VaR95(returns),
		Beta:              PlaceholderBeta,
		BetaIsPlaceholder: true,
	}
	for _, v := range []float64{m.Volatility, m.SharpeRatio, m.MaxDrawdown, m.VaR95} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("risk metrics: non-finite result")
		}
	}
	return m, nil
}
