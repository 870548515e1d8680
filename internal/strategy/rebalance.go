package strategy

import (
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultThresholdPct is the absolute delta, in percentage points, above
// which a recommendation set is worth notifying about.
const DefaultThresholdPct = 5.0

var hundred = decimal.NewFromInt(100)

// Recommend returns one recommendation per entry that has a target. The
// adjustment is in token units: (delta/100 * total) / price. Entries with a
// zero price get a zero adjustment. Out-of-range targets are skipped.
func Recommend(entries []models.AllocationEntry, totalValue float64) []models.RebalanceRecommendation {
	total := decimal.NewFromFloat(totalValue)
	var out []models.RebalanceRecommendation

	for _, e := range entries {
		if e.TargetPct == nil || validateTarget(e.TokenID, *e.TargetPct) != nil {
			continue
		}
		current := decimal.Zero
		if !total.IsZero() {
			current = decimal.NewFromFloat(e.Value).Div(total).Mul(hundred)
		}
		target := decimal.NewFromFloat(*e.TargetPct)
		delta := target.Sub(current)

		adjustment := decimal.Zero
		if e.Price != 0 {
			adjustment = delta.Div(hundred).Mul(total).Div(decimal.NewFromFloat(e.Price))
		}
		out = append(out, models.RebalanceRecommendation{
			TokenID:              e.TokenID,
			CurrentAllocationPct: current.InexactFloat64(),
			TargetAllocationPct:  *e.TargetPct,
			DeltaPct:             delta.InexactFloat64(),
			AdjustmentAmount:     adjustment.InexactFloat64(),
		})
	}
	return out
}

// NeedsRebalance reports whether any |delta| exceeds thresholdPct.
func NeedsRebalance(recs []models.RebalanceRecommendation, thresholdPct float64) bool {
	limit := decimal.NewFromFloat(thresholdPct)
	for _, r := range recs {
		if decimal.NewFromFloat(r.DeltaPct).Abs().GreaterThan(limit) {
			return true
		}
	}
	return false
}
