package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungminna/marketer/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository.
type UsageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new usage ledger repository backed by
// PostgreSQL.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepositoryPG {
	return &UsageRepositoryPG{pool: pool}
}

// Create appends a ledger entry.
func (r *UsageRepositoryPG) Create(ctx context.Context, log *domain.UsageLog) error {
	query := `
INSERT INTO usage_logs (id, user_id, job_id, provider, resource_type, quantity, cost_usd, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		log.ID,
		log.UserID,
		log.JobID,
		log.Provider,
		log.ResourceType,
		log.Quantity,
		log.CostUSD,
		log.CreatedAt,
	)
	return err
}

// ListByUser returns a page of the user's ledger entries within [from, to),
// newest first.
func (r *UsageRepositoryPG) ListByUser(ctx context.Context, userID string, from, to time.Time, limit, offset int) ([]domain.UsageLog, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, job_id, provider, resource_type, quantity, cost_usd, created_at
FROM usage_logs
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5;`, userID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.UsageLog
	for rows.Next() {
		var log domain.UsageLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.JobID,
			&log.Provider,
			&log.ResourceType,
			&log.Quantity,
			&log.CostUSD,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// SummaryByUser aggregates the user's consumption per resource type within
// [from, to).
func (r *UsageRepositoryPG) SummaryByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.UsageTotals, error) {
	rows, err := r.pool.Query(ctx, `
SELECT resource_type, COALESCE(SUM(quantity), 0), COALESCE(SUM(cost_usd), 0), COUNT(*)
FROM usage_logs
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
GROUP BY resource_type
ORDER BY resource_type;`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []domain.UsageTotals
	for rows.Next() {
		var t domain.UsageTotals
		if err := rows.Scan(&t.ResourceType, &t.Quantity, &t.CostUSD, &t.Events); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
