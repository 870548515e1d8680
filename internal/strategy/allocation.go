// Package strategy derives the current allocation of a portfolio and the
// trades that would bring it back to its targets.
package strategy

import (
	"fmt"

	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/shopspring/decimal"
)

// CurrentAllocation values every holding at its snapshot price. Holdings with
// no price in the snapshot are valued at 0 and also returned in missing.
// Weights are 0 when the total value is 0.
func CurrentAllocation(holdings []models.Holding, prices map[string]float64) (entries []models.AllocationEntry, total float64, missing []string) {
	values := make([]decimal.Decimal, 0, len(holdings))
	sum := decimal.Zero

	for _, h := range holdings {
		price, ok := prices[h.TokenID]
		if !ok {
			missing = append(missing, h.TokenID)
		}
		amount := decimal.NewFromFloat(h.Amount)
		p := decimal.NewFromFloat(price)
		value := amount.Mul(p)
		cost := amount.Mul(decimal.NewFromFloat(h.PurchasePrice))

		entries = append(entries, models.AllocationEntry{
			TokenID:       h.TokenID,
			Amount:        h.Amount,
			Price:         price,
			Value:         value.InexactFloat64(),
			CostBasis:     cost.InexactFloat64(),
			UnrealizedPnL: value.Sub(cost).InexactFloat64(),
			TargetPct:     h.TargetAllocationPct,
		})
		values = append(values, value)
		sum = sum.Add(value)
	}

	if !sum.IsZero() {
		for i := range entries {
			entries[i].Weight = values[i].Div(sum).InexactFloat64()
		}
	}
	return entries, sum.InexactFloat64(), missing
}

// TotalCostBasis sums the cost basis of the entries.
func TotalCostBasis(entries []models.AllocationEntry) float64 {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(decimal.NewFromFloat(e.CostBasis))
	}
	return sum.InexactFloat64()
}

func validateTarget(tokenID string, pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%s: target allocation %.2f%% out of range", tokenID, pct)
	}
	return nil
}
