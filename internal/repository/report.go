package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// StoredReport is a persisted report payload.
type StoredReport struct {
	Key         string          `json:"key"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	GeneratedAt time.Time       `json:"generatedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Upsert stores report as jsonb under key, replacing any earlier version.
func (r *ReportRepo) Upsert(ctx context.Context, key, kind string, generatedAt time.Time, report any) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", key, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO analysis_reports (report_key, kind, payload, generated_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (report_key) DO UPDATE SET
		   kind = EXCLUDED.kind,
		   payload = EXCLUDED.payload,
		   generated_at = EXCLUDED.generated_at,
		   updated_at = NOW()`,
		key, kind, payload, generatedAt,
	)
	return err
}

// Get returns nil, nil when no report is stored under key.
func (r *ReportRepo) Get(ctx context.Context, key string) (*StoredReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT report_key, kind, payload, generated_at, updated_at FROM analysis_reports WHERE report_key = $1`,
		key,
	)
	var s StoredReport
	err := row.Scan(&s.Key, &s.Kind, &s.Payload, &s.GeneratedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
