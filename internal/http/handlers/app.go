package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/middleware"
	"github.com/sungminna/marketer/internal/service"
	"github.com/sungminna/marketer/internal/task"
)

// App bundles the services behind the HTTP surface.
type App struct {
	Images   *service.ImageService
	Videos   *service.VideoService
	Batches  *service.BatchService
	Quota    *service.QuotaService
	Usage    *service.UsageService
	Webhooks *service.WebhookService
	Creds    domain.CredentialStore
	Executor task.Executor
	Logger   zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// domainError maps sentinel error kinds onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrInvalidCredential):
		a.error(w, http.StatusBadRequest, "invalid_credential", err.Error())
	case errors.Is(err, domain.ErrUnsupportedProvider), errors.Is(err, domain.ErrUnsupportedOperation):
		a.error(w, http.StatusBadRequest, "unsupported", err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, "quota_exceeded", err.Error())
	case errors.Is(err, domain.ErrBatchNotCancellable):
		a.error(w, http.StatusConflict, "not_cancellable", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// pagination reads limit/offset query parameters with sane caps.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
