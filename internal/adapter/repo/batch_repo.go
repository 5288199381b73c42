package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungminna/marketer/internal/domain"
)

// BatchRepositoryPG implements domain.BatchRepository.
type BatchRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new batch repository backed by PostgreSQL.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepositoryPG {
	return &BatchRepositoryPG{pool: pool}
}

// Create inserts a new batch record.
func (r *BatchRepositoryPG) Create(ctx context.Context, batch *domain.Batch) error {
	query := `
INSERT INTO batches (id, user_id, name, description, batch_type, status, total_jobs, completed_jobs, failed_jobs, total_cost_usd, job_ids, config, error_message, created_at, updated_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
`
	_, err := r.pool.Exec(ctx, query,
		batch.ID,
		batch.UserID,
		batch.Name,
		batch.Description,
		batch.Type,
		batch.Status,
		batch.TotalJobs,
		batch.CompletedJobs,
		batch.FailedJobs,
		batch.TotalCostUSD,
		batch.JobIDs,
		domain.MarshalParams(batch.Config),
		batch.ErrorMessage,
		batch.CreatedAt,
		batch.UpdatedAt,
		batch.CompletedAt,
	)
	return err
}

// GetByID fetches a batch by its identifier.
func (r *BatchRepositoryPG) GetByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	row := r.pool.QueryRow(ctx, selectBatch+` WHERE id = $1;`, batchID)
	return scanBatch(row)
}

// GetForUser fetches a batch only if it belongs to userID.
func (r *BatchRepositoryPG) GetForUser(ctx context.Context, batchID, userID string) (*domain.Batch, error) {
	row := r.pool.QueryRow(ctx, selectBatch+` WHERE id = $1 AND user_id = $2;`, batchID, userID)
	return scanBatch(row)
}

// Update persists the mutable lifecycle fields of a batch.
func (r *BatchRepositoryPG) Update(ctx context.Context, batch *domain.Batch) error {
	query := `
UPDATE batches
SET status = $2,
    completed_jobs = $3,
    failed_jobs = $4,
    total_cost_usd = $5,
    job_ids = $6,
    error_message = $7,
    updated_at = $8,
    completed_at = $9
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		batch.ID,
		batch.Status,
		batch.CompletedJobs,
		batch.FailedJobs,
		batch.TotalCostUSD,
		batch.JobIDs,
		batch.ErrorMessage,
		batch.UpdatedAt,
		batch.CompletedAt,
	)
	return err
}

// ListByUser returns a page of the user's batches, newest first, plus the
// total row count.
func (r *BatchRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Batch, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batches WHERE user_id = $1;`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, selectBatch+`
 WHERE user_id = $1
 ORDER BY created_at DESC
 LIMIT $2 OFFSET $3;`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		batches = append(batches, *batch)
	}
	return batches, total, rows.Err()
}

const selectBatch = `
SELECT id, user_id, name, description, batch_type, status, total_jobs, completed_jobs, failed_jobs, total_cost_usd, job_ids, config, error_message, created_at, updated_at, completed_at
FROM batches`

func scanBatch(row pgx.Row) (*domain.Batch, error) {
	var batch domain.Batch
	var config []byte
	if err := row.Scan(
		&batch.ID,
		&batch.UserID,
		&batch.Name,
		&batch.Description,
		&batch.Type,
		&batch.Status,
		&batch.TotalJobs,
		&batch.CompletedJobs,
		&batch.FailedJobs,
		&batch.TotalCostUSD,
		&batch.JobIDs,
		&config,
		&batch.ErrorMessage,
		&batch.CreatedAt,
		&batch.UpdatedAt,
		&batch.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	batch.Config = domain.UnmarshalParams(config)
	return &batch, nil
}
