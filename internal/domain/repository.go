package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetForUser(ctx context.Context, jobID, userID string) (*Job, error)
	Update(ctx context.Context, job *Job) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, int, error)
}

// BatchRepository defines persistence for batch entities.
type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	GetByID(ctx context.Context, batchID string) (*Batch, error)
	GetForUser(ctx context.Context, batchID, userID string) (*Batch, error)
	Update(ctx context.Context, batch *Batch) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Batch, int, error)
}

// QuotaRepository persists plan limits and monthly consumption counters.
type QuotaRepository interface {
	GetQuota(ctx context.Context, userID string) (*UserQuota, error)
	SaveQuota(ctx context.Context, quota *UserQuota) error
	GetOrCreateUsage(ctx context.Context, userID string, month time.Time) (*QuotaUsage, error)
	// AddUsage increments the month's counters atomically.
	AddUsage(ctx context.Context, userID string, month time.Time, images, videoSeconds int, costUSD float64) error
}

// WebhookRepository persists subscriptions and delivery attempts.
type WebhookRepository interface {
	CreateSubscription(ctx context.Context, sub *WebhookSubscription) error
	GetSubscription(ctx context.Context, id, userID string) (*WebhookSubscription, error)
	GetSubscriptionByID(ctx context.Context, id string) (*WebhookSubscription, error)
	UpdateSubscription(ctx context.Context, sub *WebhookSubscription) error
	DeleteSubscription(ctx context.Context, id, userID string) error
	ListSubscriptions(ctx context.Context, userID string) ([]WebhookSubscription, error)
	ActiveSubscriptionsForEvent(ctx context.Context, userID, event string) ([]WebhookSubscription, error)

	CreateAttempt(ctx context.Context, attempt *WebhookDeliveryAttempt) error
	UpdateAttempt(ctx context.Context, attempt *WebhookDeliveryAttempt) error
	ListUndelivered(ctx context.Context, since time.Time, maxRetries int) ([]WebhookDeliveryAttempt, error)
	ListAttemptsByUser(ctx context.Context, userID string, limit, offset int) ([]WebhookDeliveryAttempt, error)
}

// UsageRepository appends and queries the usage ledger.
type UsageRepository interface {
	Create(ctx context.Context, log *UsageLog) error
	ListByUser(ctx context.Context, userID string, from, to time.Time, limit, offset int) ([]UsageLog, error)
	SummaryByUser(ctx context.Context, userID string, from, to time.Time) ([]UsageTotals, error)
}

// CredentialRepository supplies decrypted provider credentials on demand. The
// core treats them as opaque strings; encryption at rest is the identity
// collaborator's concern.
type CredentialRepository interface {
	Token(ctx context.Context, userID, provider string) (string, error)
}
