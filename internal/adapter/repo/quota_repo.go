package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungminna/marketer/internal/domain"
)

// QuotaRepositoryPG implements domain.QuotaRepository.
type QuotaRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewQuotaRepository creates a new quota repository backed by PostgreSQL.
func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepositoryPG {
	return &QuotaRepositoryPG{pool: pool}
}

// GetQuota fetches a user's plan limits.
func (r *QuotaRepositoryPG) GetQuota(ctx context.Context, userID string) (*domain.UserQuota, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, plan, monthly_image_limit, monthly_video_limit, monthly_cost_limit, created_at, updated_at
FROM user_quotas
WHERE user_id = $1;
`, userID)

	var quota domain.UserQuota
	if err := row.Scan(
		&quota.ID,
		&quota.UserID,
		&quota.Plan,
		&quota.MonthlyImageLimit,
		&quota.MonthlyVideoLimit,
		&quota.MonthlyCostLimit,
		&quota.CreatedAt,
		&quota.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &quota, nil
}

// SaveQuota upserts a user's plan limits.
func (r *QuotaRepositoryPG) SaveQuota(ctx context.Context, quota *domain.UserQuota) error {
	query := `
INSERT INTO user_quotas (id, user_id, plan, monthly_image_limit, monthly_video_limit, monthly_cost_limit, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET
    plan = EXCLUDED.plan,
    monthly_image_limit = EXCLUDED.monthly_image_limit,
    monthly_video_limit = EXCLUDED.monthly_video_limit,
    monthly_cost_limit = EXCLUDED.monthly_cost_limit,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query,
		quota.ID,
		quota.UserID,
		quota.Plan,
		quota.MonthlyImageLimit,
		quota.MonthlyVideoLimit,
		quota.MonthlyCostLimit,
	)
	return err
}

// GetOrCreateUsage returns the (user, month) consumption row, inserting a
// zeroed one on first touch.
func (r *QuotaRepositoryPG) GetOrCreateUsage(ctx context.Context, userID string, month time.Time) (*domain.QuotaUsage, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO quota_usage (id, user_id, month, images_used, video_seconds_used, cost_used_usd, created_at, updated_at)
VALUES ($1, $2, $3, 0, 0, 0, NOW(), NOW())
ON CONFLICT (user_id, month) DO UPDATE SET updated_at = quota_usage.updated_at
RETURNING id, user_id, month, images_used, video_seconds_used, cost_used_usd, created_at, updated_at;
`, uuid.NewString(), userID, month)

	var usage domain.QuotaUsage
	if err := row.Scan(
		&usage.ID,
		&usage.UserID,
		&usage.Month,
		&usage.ImagesUsed,
		&usage.VideoSecondsUsed,
		&usage.CostUsedUSD,
		&usage.CreatedAt,
		&usage.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &usage, nil
}

// AddUsage increments the month's counters atomically, creating the row if
// it does not exist yet.
func (r *QuotaRepositoryPG) AddUsage(ctx context.Context, userID string, month time.Time, images, videoSeconds int, costUSD float64) error {
	query := `
INSERT INTO quota_usage (id, user_id, month, images_used, video_seconds_used, cost_used_usd, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
ON CONFLICT (user_id, month) DO UPDATE SET
    images_used = quota_usage.images_used + EXCLUDED.images_used,
    video_seconds_used = quota_usage.video_seconds_used + EXCLUDED.video_seconds_used,
    cost_used_usd = quota_usage.cost_used_usd + EXCLUDED.cost_used_usd,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query, uuid.NewString(), userID, month, images, videoSeconds, costUSD)
	return err
}
