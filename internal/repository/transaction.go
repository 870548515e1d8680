package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/portfolio-analytics/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Record appends a transaction. The log is append-only.
func (r *TransactionRepo) Record(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	switch tx.Type {
	case models.TxBuy, models.TxSell, models.TxDeposit, models.TxWithdraw:
	default:
		return nil, fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	ts := tx.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (portfolio_id, token_id, type, amount, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+transactionColumns,
		tx.PortfolioID, tx.TokenID, tx.Type, tx.Amount, tx.Price, ts,
	)
	return scanTransaction(row)
}

func (r *TransactionRepo) ByPortfolio(ctx context.Context, portfolioID string) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE portfolio_id = $1 ORDER BY timestamp ASC, id ASC`,
		portfolioID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanTransaction)
}

const transactionColumns = `id, portfolio_id, token_id, type, amount, price, timestamp`

func scanTransaction(row scannable) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(&t.ID, &t.PortfolioID, &t.TokenID, &t.Type, &t.Amount, &t.Price, &t.Timestamp); err != nil {
		return nil, err
	}
	return &t, nil
}
