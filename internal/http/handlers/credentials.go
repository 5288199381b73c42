package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/providers"
)

type credentialRequest struct {
	Token string `json:"token"`
}

// PutCredential stores or replaces the caller's API key for a provider.
func (a *App) PutCredential(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if !providers.Known(provider) {
		a.error(w, http.StatusBadRequest, "unsupported", "unsupported provider: "+provider)
		return
	}
	var req credentialRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		a.error(w, http.StatusBadRequest, "validation_error", "token is required")
		return
	}

	cred := &domain.ProviderCredential{
		ID:       uuid.NewString(),
		UserID:   userID,
		Provider: provider,
		Token:    strings.TrimSpace(req.Token),
	}
	if err := a.Creds.Upsert(r.Context(), cred); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"provider": provider, "stored": true})
}

// ListCredentials returns the caller's registered providers. Token values are
// never echoed back.
func (a *App) ListCredentials(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	creds, err := a.Creds.List(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(creds))
	for _, c := range creds {
		items = append(items, map[string]any{
			"provider":   c.Provider,
			"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
			"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"credentials": items})
}

// DeleteCredential removes the caller's API key for a provider.
func (a *App) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if err := a.Creds.Delete(r.Context(), userID, provider); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
