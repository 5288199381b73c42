package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungminna/marketer/internal/domain"
)

// WebhookRepositoryPG implements domain.WebhookRepository.
type WebhookRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new webhook repository backed by PostgreSQL.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepositoryPG {
	return &WebhookRepositoryPG{pool: pool}
}

// CreateSubscription inserts a new subscription record.
func (r *WebhookRepositoryPG) CreateSubscription(ctx context.Context, sub *domain.WebhookSubscription) error {
	query := `
INSERT INTO webhook_subscriptions (id, user_id, url, events, secret, active, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.URL,
		sub.Events,
		sub.Secret,
		sub.Active,
		sub.Description,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

// GetSubscription fetches a subscription owned by userID.
func (r *WebhookRepositoryPG) GetSubscription(ctx context.Context, id, userID string) (*domain.WebhookSubscription, error) {
	row := r.pool.QueryRow(ctx, selectSubscription+` WHERE id = $1 AND user_id = $2;`, id, userID)
	return scanSubscription(row)
}

// GetSubscriptionByID fetches a subscription regardless of owner. Used by the
// retry sweeper, which operates across users.
func (r *WebhookRepositoryPG) GetSubscriptionByID(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	row := r.pool.QueryRow(ctx, selectSubscription+` WHERE id = $1;`, id)
	return scanSubscription(row)
}

// UpdateSubscription persists the mutable fields of a subscription.
func (r *WebhookRepositoryPG) UpdateSubscription(ctx context.Context, sub *domain.WebhookSubscription) error {
	query := `
UPDATE webhook_subscriptions
SET url = $2,
    events = $3,
    secret = $4,
    active = $5,
    description = $6,
    updated_at = $7
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.URL,
		sub.Events,
		sub.Secret,
		sub.Active,
		sub.Description,
		sub.UpdatedAt,
	)
	return err
}

// DeleteSubscription removes a subscription owned by userID.
func (r *WebhookRepositoryPG) DeleteSubscription(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1 AND user_id = $2;`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSubscriptions returns all subscriptions of a user, newest first.
func (r *WebhookRepositoryPG) ListSubscriptions(ctx context.Context, userID string) ([]domain.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, selectSubscription+`
 WHERE user_id = $1
 ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ActiveSubscriptionsForEvent returns the user's active subscriptions whose
// event filter contains event.
func (r *WebhookRepositoryPG) ActiveSubscriptionsForEvent(ctx context.Context, userID, event string) ([]domain.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, selectSubscription+`
 WHERE user_id = $1 AND active AND $2 = ANY(events);`, userID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// CreateAttempt inserts a delivery attempt record.
func (r *WebhookRepositoryPG) CreateAttempt(ctx context.Context, attempt *domain.WebhookDeliveryAttempt) error {
	query := `
INSERT INTO webhook_deliveries (id, subscription_id, event_type, payload, response_status_code, response_body, error_message, delivered, retry_count, created_at, delivered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.SubscriptionID,
		attempt.EventType,
		attempt.Payload,
		attempt.ResponseStatusCode,
		attempt.ResponseBody,
		attempt.ErrorMessage,
		attempt.Delivered,
		attempt.RetryCount,
		attempt.CreatedAt,
		attempt.DeliveredAt,
	)
	return err
}

// UpdateAttempt overwrites the outcome fields of an existing attempt.
func (r *WebhookRepositoryPG) UpdateAttempt(ctx context.Context, attempt *domain.WebhookDeliveryAttempt) error {
	query := `
UPDATE webhook_deliveries
SET response_status_code = $2,
    response_body = $3,
    error_message = $4,
    delivered = $5,
    retry_count = $6,
    delivered_at = $7
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.ResponseStatusCode,
		attempt.ResponseBody,
		attempt.ErrorMessage,
		attempt.Delivered,
		attempt.RetryCount,
		attempt.DeliveredAt,
	)
	return err
}

// ListUndelivered returns failed attempts created after since that still have
// retries left, oldest first.
func (r *WebhookRepositoryPG) ListUndelivered(ctx context.Context, since time.Time, maxRetries int) ([]domain.WebhookDeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, selectAttempt+`
 WHERE NOT delivered AND retry_count < $1 AND created_at > $2
 ORDER BY created_at ASC;`, maxRetries, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListAttemptsByUser returns a page of delivery attempts across the user's
// subscriptions, newest first.
func (r *WebhookRepositoryPG) ListAttemptsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WebhookDeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, `
SELECT d.id, d.subscription_id, d.event_type, d.payload, d.response_status_code, d.response_body, d.error_message, d.delivered, d.retry_count, d.created_at, d.delivered_at
FROM webhook_deliveries d
JOIN webhook_subscriptions s ON s.id = d.subscription_id
WHERE s.user_id = $1
ORDER BY d.created_at DESC
LIMIT $2 OFFSET $3;`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

const selectSubscription = `
SELECT id, user_id, url, events, secret, active, description, created_at, updated_at
FROM webhook_subscriptions`

const selectAttempt = `
SELECT id, subscription_id, event_type, payload, response_status_code, response_body, error_message, delivered, retry_count, created_at, delivered_at
FROM webhook_deliveries`

func scanSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	if err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.URL,
		&sub.Events,
		&sub.Secret,
		&sub.Active,
		&sub.Description,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]domain.WebhookSubscription, error) {
	var subs []domain.WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func collectAttempts(rows pgx.Rows) ([]domain.WebhookDeliveryAttempt, error) {
	var attempts []domain.WebhookDeliveryAttempt
	for rows.Next() {
		var a domain.WebhookDeliveryAttempt
		if err := rows.Scan(
			&a.ID,
			&a.SubscriptionID,
			&a.EventType,
			&a.Payload,
			&a.ResponseStatusCode,
			&a.ResponseBody,
			&a.ErrorMessage,
			&a.Delivered,
			&a.RetryCount,
			&a.CreatedAt,
			&a.DeliveredAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
