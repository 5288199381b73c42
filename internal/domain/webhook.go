package domain

import "time"

// Webhook event types users may subscribe to.
const (
	EventJobCompleted   = "job.completed"
	EventJobFailed      = "job.failed"
	EventBatchCompleted = "batch.completed"
	EventBatchFailed    = "batch.failed"
)

// KnownEvent reports whether event is part of the closed event set.
func KnownEvent(event string) bool {
	switch event {
	case EventJobCompleted, EventJobFailed, EventBatchCompleted, EventBatchFailed:
		return true
	}
	return false
}

// WebhookSubscription registers a user endpoint for push notifications.
type WebhookSubscription struct {
	ID          string
	UserID      string
	URL         string
	Events      []string
	Secret      string
	Active      bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WantsEvent reports whether the subscription's event filter contains event.
func (s *WebhookSubscription) WantsEvent(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookDeliveryAttempt is the append-only audit record of one logical
// delivery. Retries update the same record, bumping RetryCount.
type WebhookDeliveryAttempt struct {
	ID                 string
	SubscriptionID     string
	EventType          string
	Payload            []byte
	ResponseStatusCode *int
	ResponseBody       string
	ErrorMessage       string
	Delivered          bool
	RetryCount         int
	CreatedAt          time.Time
	DeliveredAt        *time.Time
}
