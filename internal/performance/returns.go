// Package performance derives returns and trailing-window performance from
// an aligned valuation history.
package performance

import (
	"errors"
	"fmt"
	"math"

	"github.com/kjannette/portfolio-analytics/internal/models"
)

const daysPerYear = 365.0

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrZeroValue           = errors.New("zero value denominator")
	ErrNonFinite           = errors.New("non-finite result")
)

// DailyReturns returns (v[i]-v[i-1])/v[i-1] for i >= 1. It fails with
// ErrZeroValue if any denominator is zero.
func DailyReturns(values []models.DailyValue) ([]float64, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("%d values: %w", len(values), ErrInsufficientHistory)
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1].Value
		if prev == 0 {
			return nil, fmt.Errorf("value at index %d: %w", i-1, ErrZeroValue)
		}
		out[i-1] = (values[i].Value - prev) / prev
	}
	return out, nil
}

func TotalReturn(values []models.DailyValue) (float64, error) {
	if len(values) < 2 {
		return 0, fmt.Errorf("%d values: %w", len(values), ErrInsufficientHistory)
	}
	first := values[0].Value
	if first == 0 {
		return 0, fmt.Errorf("first value: %w", ErrZeroValue)
	}
	return (values[len(values)-1].Value - first) / first, nil
}

// Compound folds returns with acc = (1+acc)*(1+r)-1.
func Compound(returns []float64) float64 {
	acc := 0.0
	for _, r := range returns {
		acc = (1+acc)*(1+r) - 1
	}
	return acc
}

// AnnualizedReturn is (1+Compound(returns))^(365/n) - 1 with n the number of
// observations. A single observation is annualized as-is, which can produce
// very large numbers; results that overflow return ErrNonFinite.
func AnnualizedReturn(returns []float64) (float64, error) {
	n := len(returns)
	if n == 0 {
		return 0, ErrInsufficientHistory
	}
	total := Compound(returns)
	v := math.Pow(1+total, daysPerYear/float64(n)) - 1
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("annualized return of %g over %d days: %w", total, n, ErrNonFinite)
	}
	return v, nil
}

// Returns builds the full ReturnSeries. Annualization overflow leaves
// AnnualizedReturn nil instead of failing the whole series.
func Returns(values []models.DailyValue) (*models.ReturnSeries, error) {
	daily, err := DailyReturns(values)
	if err != nil {
		return nil, err
	}
	total, err := TotalReturn(values)
	if err != nil {
		return nil, err
	}
	rs := &models.ReturnSeries{DailyReturns: daily, TotalReturn: total}
	if ann, err := AnnualizedReturn(daily); err == nil {
		rs.AnnualizedReturn = &ann
	}
	return rs, nil
}
