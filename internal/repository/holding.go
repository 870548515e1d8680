package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/portfolio-analytics/internal/models"
)

type HoldingRepo struct {
	pool *pgxpool.Pool
}

func NewHoldingRepo(pool *pgxpool.Pool) *HoldingRepo {
	return &HoldingRepo{pool: pool}
}

// Upsert inserts a holding or replaces its amount, price and target. Rows are
// never deleted; a zero amount is kept for history.
func (r *HoldingRepo) Upsert(ctx context.Context, portfolioID string, h models.Holding) (*models.Holding, error) {
	created := h.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO holdings (portfolio_id, token_id, amount, purchase_price, target_allocation_pct, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (portfolio_id, token_id) DO UPDATE SET
		   amount = EXCLUDED.amount,
		   purchase_price = EXCLUDED.purchase_price,
		   target_allocation_pct = EXCLUDED.target_allocation_pct
		 RETURNING `+holdingColumns,
		portfolioID, h.TokenID, h.Amount, h.PurchasePrice, h.TargetAllocationPct, created,
	)
	return scanHolding(row)
}

func (r *HoldingRepo) ByPortfolio(ctx context.Context, portfolioID string) ([]models.Holding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = $1 ORDER BY id ASC`,
		portfolioID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanHolding)
}

const holdingColumns = `token_id, amount, purchase_price, target_allocation_pct, created_at`

func scanHolding(row scannable) (*models.Holding, error) {
	var h models.Holding
	if err := row.Scan(&h.TokenID, &h.Amount, &h.PurchasePrice, &h.TargetAllocationPct, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}
