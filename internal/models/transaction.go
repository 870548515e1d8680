package models

import "time"

const (
	TxBuy      = "buy"
	TxSell     = "sell"
	TxDeposit  = "deposit"
	TxWithdraw = "withdraw"
)

// Transaction is append-only and ordered by Timestamp within a portfolio.
type Transaction struct {
	ID          int64     `json:"id"`
	PortfolioID string    `json:"portfolioId"`
	TokenID     string    `json:"tokenId"`
	Type        string    `json:"type"` // buy, sell, deposit, withdraw
	Amount      float64   `json:"amount"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
}

// Increases reports whether the transaction adds units to the holding.
func (t Transaction) Increases() bool {
	return t.Type == TxBuy || t.Type == TxDeposit
}
