package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/portfolio-analytics/internal/models"
)

// Store bundles the repos behind the read/upsert surface the analytics
// service depends on. Reads are point-in-time snapshots with no transaction
// spanning them.
type Store struct {
	Holdings     *HoldingRepo
	Transactions *TransactionRepo
	Sentiment    *SentimentRepo
	Reports      *ReportRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Holdings:     NewHoldingRepo(pool),
		Transactions: NewTransactionRepo(pool),
		Sentiment:    NewSentimentRepo(pool),
		Reports:      NewReportRepo(pool),
	}
}

func (s *Store) ReadHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error) {
	return s.Holdings.ByPortfolio(ctx, portfolioID)
}

func (s *Store) ReadTransactions(ctx context.Context, portfolioID string) ([]models.Transaction, error) {
	return s.Transactions.ByPortfolio(ctx, portfolioID)
}

func (s *Store) ReadSentiment(ctx context.Context, tokenID string) (*models.SentimentRecord, error) {
	return s.Sentiment.Get(ctx, tokenID)
}

func (s *Store) UpsertReport(ctx context.Context, key, kind string, generatedAt time.Time, report any) error {
	return s.Reports.Upsert(ctx, key, kind, generatedAt, report)
}

func (s *Store) GetReport(ctx context.Context, key string) (*StoredReport, error) {
	return s.Reports.Get(ctx, key)
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collect[T any](rows rowsIter, scan func(scannable) (*T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
