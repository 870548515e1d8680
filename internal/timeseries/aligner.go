package timeseries

import (
	"math"
	"sort"

	"github.com/kjannette/portfolio-analytics/internal/models"
)

// DayMillis is one calendar day in epoch milliseconds.
const DayMillis int64 = 24 * 60 * 60 * 1000

// BuildDailyGrid returns timestamps from the earliest first point across all
// series to nowMillis inclusive, one day apart. Empty series are ignored; if
// every series is empty the grid is empty.
func BuildDailyGrid(seriesByAsset map[string]models.PriceSeries, nowMillis int64) []int64 {
	start := int64(math.MaxInt64)
	for _, s := range seriesByAsset {
		if first, ok := s.First(); ok && first.Timestamp < start {
			start = first.Timestamp
		}
	}
	if start == math.MaxInt64 || start > nowMillis {
		return nil
	}

	grid := make([]int64, 0, (nowMillis-start)/DayMillis+1)
	for t := start; t <= nowMillis; t += DayMillis {
		grid = append(grid, t)
	}
	return grid
}

// PriceAt returns the price of the point nearest to ts. Ties go to the first
// point in series order. ok is false only for an empty series.
func PriceAt(series models.PriceSeries, ts int64) (price float64, ok bool) {
	if len(series) == 0 {
		return 0, false
	}
	best := 0
	bestDist := absDiff(series[0].Timestamp, ts)
	for i := 1; i < len(series); i++ {
		if d := absDiff(series[i].Timestamp, ts); d < bestDist {
			best, bestDist = i, d
		}
	}
	return series[best].Price, true
}

// Valuate sums amount*PriceAt over every asset at each grid timestamp. An
// asset with no resolvable price contributes 0.
func Valuate(grid []int64, amounts map[string]float64, seriesByAsset map[string]models.PriceSeries) []models.DailyValue {
	ids := make([]string, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.DailyValue, len(grid))
	for i, ts := range grid {
		total := 0.0
		for _, id := range ids {
			if p, ok := PriceAt(seriesByAsset[id], ts); ok {
				total += amounts[id] * p
			}
		}
		out[i] = models.DailyValue{Timestamp: ts, Value: total}
	}
	return out
}

// Closes extracts the price column of a series.
func Closes(series models.PriceSeries) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Price
	}
	return out
}

// Values extracts the value column of a valuation history.
func Values(history []models.DailyValue) []float64 {
	out := make([]float64, len(history))
	for i, v := range history {
		out[i] = v.Value
	}
	return out
}

// Normalize sorts a series ascending by timestamp and drops negative or
// non-finite prices and duplicate timestamps (first one wins).
func Normalize(series models.PriceSeries) models.PriceSeries {
	out := make(models.PriceSeries, 0, len(series))
	for _, p := range series {
		if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	dedup := make(models.PriceSeries, 0, len(out))
	for _, p := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp == p.Timestamp {
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
