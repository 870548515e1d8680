package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/portfolio-analytics/internal/models"
)

type SentimentRepo struct {
	pool *pgxpool.Pool
}

func NewSentimentRepo(pool *pgxpool.Pool) *SentimentRepo {
	return &SentimentRepo{pool: pool}
}

// Get returns nil, nil when no record exists for the token.
func (r *SentimentRepo) Get(ctx context.Context, tokenID string) (*models.SentimentRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT token_id, score, label, sample_size, updated_at FROM token_sentiment WHERE token_id = $1`,
		tokenID,
	)
	var s models.SentimentRecord
	err := row.Scan(&s.TokenID, &s.Score, &s.Label, &s.SampleSize, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert is used by the external scorer and by tests.
func (r *SentimentRepo) Upsert(ctx context.Context, s models.SentimentRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO token_sentiment (token_id, score, label, sample_size, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (token_id) DO UPDATE SET
		   score = EXCLUDED.score,
		   label = EXCLUDED.label,
		   sample_size = EXCLUDED.sample_size,
		   updated_at = EXCLUDED.updated_at`,
		s.TokenID, s.Score, s.Label, s.SampleSize, s.UpdatedAt,
	)
	return err
}
