// Package indicators implements moving-average and momentum indicators over a
// close-price sequence. Every function returns nil when its input is shorter
// than the window it needs.
package indicators

import (
	"fmt"
	"math"

	"github.com/kjannette/portfolio-analytics/internal/models"
)

const (
	// MinHistory is the length below which Compute does not attempt anything.
	MinHistory = 50

	rsiPeriod       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bollingerPeriod = 20
	bollingerWidth  = 2.0
)

// SignalMode selects how the MACD signal line is smoothed.
type SignalMode string

const (
	// SignalPoint smooths the single latest MACD value, so the signal equals
	// the line and the histogram is zero.
	SignalPoint SignalMode = "point"
	// SignalSeries takes a 9-period EMA over the MACD line history.
	SignalSeries SignalMode = "series"
)

func ParseSignalMode(s string) (SignalMode, error) {
	switch SignalMode(s) {
	case SignalPoint, SignalSeries:
		return SignalMode(s), nil
	case "":
		return SignalPoint, nil
	}
	return "", fmt.Errorf("unknown MACD signal mode %q", s)
}

func ptr(v float64) *float64 { return &v }

func SMA(prices []float64, k int) *float64 {
	if k <= 0 || len(prices) < k {
		return nil
	}
	sum := 0.0
	for _, p := range prices[len(prices)-k:] {
		sum += p
	}
	return ptr(sum / float64(k))
}

// EMA seeds with the SMA of the first k prices and folds the rest with
// multiplier 2/(k+1).
func EMA(prices []float64, k int) *float64 {
	if k <= 0 || len(prices) < k {
		return nil
	}
	ema := *SMA(prices[:k], k)
	mult := 2.0 / float64(k+1)
	for _, p := range prices[k:] {
		ema = (p-ema)*mult + ema
	}
	return ptr(ema)
}

// RSI uses simple averages of the gains and losses over the last 14
// differences. No losses gives 100.
func RSI(prices []float64) *float64 {
	if len(prices) < rsiPeriod+1 {
		return nil
	}
	window := prices[len(prices)-rsiPeriod-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/rsiPeriod, loss/rsiPeriod
	if avgLoss == 0 {
		return ptr(100)
	}
	return ptr(100 - 100/(1+avgGain/avgLoss))
}

func MACD(prices []float64, mode SignalMode) *models.MACD {
	fast, slow := EMA(prices, macdFast), EMA(prices, macdSlow)
	if fast == nil || slow == nil {
		return nil
	}
	line := *fast - *slow
	out := &models.MACD{Line: line, Signal: line, SignalMode: string(SignalPoint)}

	if mode == SignalSeries {
		series := make([]float64, 0, len(prices)-macdSlow+1)
		for end := macdSlow; end <= len(prices); end++ {
			series = append(series, *EMA(prices[:end], macdFast)-*EMA(prices[:end], macdSlow))
		}
		if sig := EMA(series, macdSignal); sig != nil {
			out.Signal = *sig
			out.SignalMode = string(SignalSeries)
		}
	}
	out.Histogram = out.Line - out.Signal
	return out
}

// Bollinger bands at two population standard deviations of the last 20
// prices around their mean.
func Bollinger(prices []float64) *models.Bollinger {
	mid := SMA(prices, bollingerPeriod)
	if mid == nil {
		return nil
	}
	ss := 0.0
	for _, p := range prices[len(prices)-bollingerPeriod:] {
		ss += (p - *mid) * (p - *mid)
	}
	sd := math.Sqrt(ss / bollingerPeriod)
	return &models.Bollinger{
		Lower:  *mid - bollingerWidth*sd,
		Middle: *mid,
		Upper:  *mid + bollingerWidth*sd,
	}
}

// Compute returns nil when fewer than MinHistory prices are available.
func Compute(prices []float64, mode SignalMode) *models.IndicatorSet {
	if len(prices) < MinHistory {
		return nil
	}
	return &models.IndicatorSet{
		SMA20:     SMA(prices, 20),
		SMA50:     SMA(prices, 50),
		RSI14:     RSI(prices),
		MACD:      MACD(prices, mode),
		Bollinger: Bollinger(prices),
	}
}
