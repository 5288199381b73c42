package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sungminna/marketer/internal/domain"
)

type subscriptionRequest struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Secret      string   `json:"secret"`
	Description string   `json:"description"`
}

type subscriptionPatch struct {
	URL    *string  `json:"url"`
	Events []string `json:"events"`
	Active *bool    `json:"active"`
}

// CreateWebhook registers a new subscription endpoint.
func (a *App) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req subscriptionRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sub, err := a.Webhooks.CreateSubscription(r.Context(), userID, req.URL, req.Secret, req.Description, req.Events)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, subscriptionResponse(sub))
}

// ListWebhooks returns the caller's subscriptions.
func (a *App) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	subs, err := a.Webhooks.ListSubscriptions(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(subs))
	for i := range subs {
		items = append(items, subscriptionResponse(&subs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"webhooks": items})
}

// GetWebhook returns one subscription the caller owns.
func (a *App) GetWebhook(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	sub, err := a.Webhooks.GetSubscription(r.Context(), chi.URLParam(r, "webhook_id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, subscriptionResponse(sub))
}

// UpdateWebhook patches URL, event filter or active flag.
func (a *App) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req subscriptionPatch
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sub, err := a.Webhooks.UpdateSubscription(r.Context(), chi.URLParam(r, "webhook_id"), userID, req.URL, req.Events, req.Active)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, subscriptionResponse(sub))
}

// DeleteWebhook removes a subscription.
func (a *App) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Webhooks.DeleteSubscription(r.Context(), chi.URLParam(r, "webhook_id"), userID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestWebhook fires a synthetic job.completed delivery at the subscription so
// integrators can verify their receiver and signature code.
func (a *App) TestWebhook(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	sub, err := a.Webhooks.GetSubscription(r.Context(), chi.URLParam(r, "webhook_id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	attempt, err := a.Webhooks.Deliver(r.Context(), sub, domain.EventJobCompleted, map[string]any{
		"job_id": "test",
		"status": "completed",
		"test":   true,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, attemptResponse(attempt))
}

// ListWebhookDeliveries returns recent delivery attempts across the caller's
// subscriptions.
func (a *App) ListWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, offset := pagination(r)
	attempts, err := a.Webhooks.ListDeliveries(r.Context(), userID, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(attempts))
	for i := range attempts {
		items = append(items, attemptResponse(&attempts[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"deliveries": items})
}

func subscriptionResponse(sub *domain.WebhookSubscription) map[string]any {
	return map[string]any{
		"webhook_id":  sub.ID,
		"url":         sub.URL,
		"events":      sub.Events,
		"active":      sub.Active,
		"description": sub.Description,
		"has_secret":  sub.Secret != "",
		"created_at":  sub.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":  sub.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func attemptResponse(attempt *domain.WebhookDeliveryAttempt) map[string]any {
	resp := map[string]any{
		"delivery_id": attempt.ID,
		"webhook_id":  attempt.SubscriptionID,
		"event_type":  attempt.EventType,
		"delivered":   attempt.Delivered,
		"retry_count": attempt.RetryCount,
		"created_at":  attempt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if attempt.ResponseStatusCode != nil {
		resp["response_status_code"] = *attempt.ResponseStatusCode
	}
	if attempt.ErrorMessage != "" {
		resp["error_message"] = attempt.ErrorMessage
	}
	if attempt.DeliveredAt != nil {
		resp["delivered_at"] = attempt.DeliveredAt.UTC().Format(time.RFC3339)
	}
	return resp
}
