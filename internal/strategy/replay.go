package strategy

import (
	"sort"

	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/shopspring/decimal"
)

type position struct {
	amount decimal.Decimal
	cost   decimal.Decimal
	first  models.Transaction
}

// ReplayTransactions returns holdings plus one derived holding for every token
// that only appears in txs. Derived amounts apply buys and deposits, subtract
// sells and withdrawals clamped at 0, in timestamp order. The purchase price
// is the average cost of the units added. Zero amounts are kept.
func ReplayTransactions(holdings []models.Holding, txs []models.Transaction) []models.Holding {
	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		held[h.TokenID] = true
	}

	ordered := append([]models.Transaction(nil), txs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	positions := make(map[string]*position)
	var order []string
	for _, tx := range ordered {
		if held[tx.TokenID] {
			continue
		}
		p, ok := positions[tx.TokenID]
		if !ok {
			p = &position{first: tx}
			positions[tx.TokenID] = p
			order = append(order, tx.TokenID)
		}
		amt := decimal.NewFromFloat(tx.Amount)
		if tx.Increases() {
			p.amount = p.amount.Add(amt)
			p.cost = p.cost.Add(amt.Mul(decimal.NewFromFloat(tx.Price)))
			continue
		}
		if p.amount.IsZero() {
			continue
		}
		remaining := decimal.Max(p.amount.Sub(amt), decimal.Zero)
		// cost leaves at the average price
		p.cost = p.cost.Mul(remaining).Div(p.amount)
		p.amount = remaining
	}

	out := append([]models.Holding(nil), holdings...)
	for _, id := range order {
		p := positions[id]
		avg := decimal.Zero
		if !p.amount.IsZero() {
			avg = p.cost.Div(p.amount)
		}
		out = append(out, models.Holding{
			TokenID:       id,
			Amount:        p.amount.InexactFloat64(),
			PurchasePrice: avg.InexactFloat64(),
			CreatedAt:     p.first.Timestamp,
		})
	}
	return out
}
