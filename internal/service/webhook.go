package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
)

const (
	webhookTimeout     = 30 * time.Second
	webhookMaxRetries  = 3
	webhookRetryWindow = 24 * time.Hour
	webhookUserAgent   = "GTM-Asset-Generator-Webhook/1.0"
	signatureHeader    = "X-Webhook-Signature"

	maxResponseBodyLen = 1000
	maxErrorSnippetLen = 200
)

// WebhookService manages subscriptions and delivers event notifications with
// signing and bounded retry.
type WebhookService struct {
	repo       domain.WebhookRepository
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

func NewWebhookService(repo domain.WebhookRepository, httpClient *http.Client, logger zerolog.Logger) *WebhookService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookService{repo: repo, httpClient: httpClient, logger: logger, now: time.Now}
}

// CreateSubscription registers a new endpoint after validating the URL and
// event filter against the closed event set.
func (s *WebhookService) CreateSubscription(ctx context.Context, userID, target, secret, description string, events []string) (*domain.WebhookSubscription, error) {
	if err := validateSubscription(target, events); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub := &domain.WebhookSubscription{
		ID:          uuid.NewString(),
		UserID:      userID,
		URL:         target,
		Events:      events,
		Secret:      secret,
		Active:      true,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (s *WebhookService) GetSubscription(ctx context.Context, id, userID string) (*domain.WebhookSubscription, error) {
	return s.repo.GetSubscription(ctx, id, userID)
}

func (s *WebhookService) ListSubscriptions(ctx context.Context, userID string) ([]domain.WebhookSubscription, error) {
	return s.repo.ListSubscriptions(ctx, userID)
}

// UpdateSubscription applies non-zero fields onto an existing subscription.
func (s *WebhookService) UpdateSubscription(ctx context.Context, id, userID string, target *string, events []string, active *bool) (*domain.WebhookSubscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if target != nil {
		sub.URL = *target
	}
	if events != nil {
		sub.Events = events
	}
	if active != nil {
		sub.Active = *active
	}
	if err := validateSubscription(sub.URL, sub.Events); err != nil {
		return nil, err
	}
	sub.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return sub, nil
}

func (s *WebhookService) DeleteSubscription(ctx context.Context, id, userID string) error {
	return s.repo.DeleteSubscription(ctx, id, userID)
}

func (s *WebhookService) ListDeliveries(ctx context.Context, userID string, limit, offset int) ([]domain.WebhookDeliveryAttempt, error) {
	return s.repo.ListAttemptsByUser(ctx, userID, limit, offset)
}

// SendEventToSubscriptions delivers event to every active subscription of
// userID whose filter contains it. Each delivery is independent; one failing
// endpoint never blocks siblings, and nothing propagates to the caller.
func (s *WebhookService) SendEventToSubscriptions(ctx context.Context, userID, event string, payload map[string]any) {
	subs, err := s.repo.ActiveSubscriptionsForEvent(ctx, userID, event)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("event", event).
			Msg("webhook: subscription lookup failed")
		return
	}
	for i := range subs {
		if _, err := s.Deliver(ctx, &subs[i], event, payload); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", subs[i].ID).
				Msg("webhook: delivery bookkeeping failed")
		}
	}
}

// Deliver stamps the payload, signs it, POSTs it and records one delivery
// attempt. The attempt records the outcome; the returned error covers only
// bookkeeping failures, not the remote endpoint's verdict.
func (s *WebhookService) Deliver(ctx context.Context, sub *domain.WebhookSubscription, event string, payload map[string]any) (*domain.WebhookDeliveryAttempt, error) {
	stamped := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		stamped[k] = v
	}
	stamped["event"] = event
	stamped["timestamp"] = s.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(stamped)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	attempt := &domain.WebhookDeliveryAttempt{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		EventType:      event,
		Payload:        body,
		CreatedAt:      s.now().UTC(),
	}
	s.send(ctx, sub, body, attempt)

	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record delivery attempt: %w", err)
	}
	return attempt, nil
}

// RetryFailed sweeps undelivered attempts inside the retry window that are
// still below the retry cap and re-delivers each, bumping its retry count on
// the same record. Returns the number of attempts retried.
func (s *WebhookService) RetryFailed(ctx context.Context) (int, error) {
	since := s.now().UTC().Add(-webhookRetryWindow)
	attempts, err := s.repo.ListUndelivered(ctx, since, webhookMaxRetries)
	if err != nil {
		return 0, fmt.Errorf("list undelivered: %w", err)
	}

	retried := 0
	for i := range attempts {
		attempt := &attempts[i]
		sub, err := s.repo.GetSubscriptionByID(ctx, attempt.SubscriptionID)
		if err != nil || !sub.Active {
			continue
		}
		attempt.RetryCount++
		s.send(ctx, sub, attempt.Payload, attempt)
		if err := s.repo.UpdateAttempt(ctx, attempt); err != nil {
			s.logger.Error().Err(err).Str("attempt_id", attempt.ID).
				Msg("webhook: retry bookkeeping failed")
			continue
		}
		retried++
	}
	return retried, nil
}

// send executes the POST and fills the attempt's outcome fields. Delivered
// means a status in [200, 300).
func (s *WebhookService) send(ctx context.Context, sub *domain.WebhookSubscription, body []byte, attempt *domain.WebhookDeliveryAttempt) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		attempt.ErrorMessage = "invalid webhook url: " + err.Error()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if sub.Secret != "" {
		req.Header.Set(signatureHeader, "sha256="+Signature(sub.Secret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		attempt.ErrorMessage = "request error: " + err.Error()
		s.logger.Warn().Err(err).Str("url", sub.URL).Msg("webhook: request failed")
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen))
	code := resp.StatusCode
	attempt.ResponseStatusCode = &code
	attempt.ResponseBody = string(respBody)

	if code >= 200 && code < 300 {
		attempt.Delivered = true
		deliveredAt := s.now().UTC()
		attempt.DeliveredAt = &deliveredAt
		attempt.ErrorMessage = ""
		return
	}

	snippet := attempt.ResponseBody
	if len(snippet) > maxErrorSnippetLen {
		snippet = snippet[:maxErrorSnippetLen]
	}
	attempt.ErrorMessage = fmt.Sprintf("HTTP %d: %s", code, snippet)
}

// Signature computes the hex HMAC-SHA256 of body under secret. Exposed so
// receivers in tests and docs can verify what the dispatcher sends.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validateSubscription(target string, events []string) error {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: invalid webhook url", domain.ErrValidation)
	}
	if len(events) == 0 {
		return fmt.Errorf("%w: at least one event is required", domain.ErrValidation)
	}
	for _, e := range events {
		if !domain.KnownEvent(e) {
			return fmt.Errorf("%w: unknown event %q", domain.ErrValidation, e)
		}
	}
	return nil
}
