package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungminna/marketer/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, user_id, job_type, provider, model, input_params, status, output_urls, cost_usd, error_message, metadata, created_at, updated_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Kind,
		job.Provider,
		job.Model,
		domain.MarshalParams(job.InputParams),
		job.Status,
		job.OutputURLs,
		job.CostUSD,
		job.ErrorMessage,
		domain.MarshalParams(job.Metadata),
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, selectJob+` WHERE id = $1;`, jobID)
	return scanJob(row)
}

// GetForUser fetches a job only if it belongs to userID.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, selectJob+` WHERE id = $1 AND user_id = $2;`, jobID, userID)
	return scanJob(row)
}

// Update persists the mutable lifecycle fields of a job.
func (r *JobRepositoryPG) Update(ctx context.Context, job *domain.Job) error {
	query := `
UPDATE jobs
SET status = $2,
    output_urls = $3,
    cost_usd = $4,
    error_message = $5,
    metadata = $6,
    updated_at = $7,
    completed_at = $8
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.OutputURLs,
		job.CostUSD,
		job.ErrorMessage,
		domain.MarshalParams(job.Metadata),
		job.UpdatedAt,
		job.CompletedAt,
	)
	return err
}

// ListByUser returns a page of the user's jobs, newest first, plus the total
// row count for pagination.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE user_id = $1;`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, selectJob+`
 WHERE user_id = $1
 ORDER BY created_at DESC
 LIMIT $2 OFFSET $3;`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, total, rows.Err()
}

const selectJob = `
SELECT id, user_id, job_type, provider, model, input_params, status, output_urls, cost_usd, error_message, metadata, created_at, updated_at, completed_at
FROM jobs`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var inputParams, metadata []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Kind,
		&job.Provider,
		&job.Model,
		&inputParams,
		&job.Status,
		&job.OutputURLs,
		&job.CostUSD,
		&job.ErrorMessage,
		&metadata,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.InputParams = domain.UnmarshalParams(inputParams)
	job.Metadata = domain.UnmarshalParams(metadata)
	return &job, nil
}
