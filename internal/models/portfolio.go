package models

import "time"

// Holding is never deleted; a zero amount is retained for history.
type Holding struct {
	TokenID             string    `json:"tokenId"`
	Amount              float64   `json:"amount"`
	PurchasePrice       float64   `json:"purchasePrice"`
	TargetAllocationPct *float64  `json:"targetAllocationPct,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

type Portfolio struct {
	ID           string        `json:"id"`
	Holdings     []Holding     `json:"holdings"`
	Transactions []Transaction `json:"transactions"`
}

// TokenIDs returns the distinct token ids of the holdings in holding order.
func (p *Portfolio) TokenIDs() []string {
	seen := make(map[string]bool, len(p.Holdings))
	ids := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		if seen[h.TokenID] {
			continue
		}
		seen[h.TokenID] = true
		ids = append(ids, h.TokenID)
	}
	return ids
}

// DailyValue is one point of the aligned daily valuation grid.
type DailyValue struct {
	Timestamp int64   `json:"t"`
	Value     float64 `json:"v"`
}

type AllocationEntry struct {
	TokenID       string   `json:"tokenId"`
	Amount        float64  `json:"amount"`
	Price         float64  `json:"price"`
	Value         float64  `json:"value"`
	Weight        float64  `json:"weight"`
	CostBasis     float64  `json:"costBasis"`
	UnrealizedPnL float64  `json:"unrealizedPnl"`
	TargetPct     *float64 `json:"targetPct,omitempty"`
}

type RebalanceRecommendation struct {
	TokenID              string  `json:"tokenId"`
	CurrentAllocationPct float64 `json:"currentAllocationPct"`
	TargetAllocationPct  float64 `json:"targetAllocationPct"`
	DeltaPct             float64 `json:"deltaPct"`
	AdjustmentAmount     float64 `json:"adjustmentAmount"`
}
