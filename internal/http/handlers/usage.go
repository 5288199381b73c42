package handlers

import (
	"net/http"
	"time"

	"github.com/sungminna/marketer/internal/domain"
)

// GetQuota returns the caller's current-month consumption against plan
// limits.
func (a *App) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	summary, err := a.Quota.GetCurrentUsage(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, summary)
}

type updatePlanRequest struct {
	Plan domain.Plan `json:"plan"`
}

// UpdatePlan resets the caller's limits to the named plan's table values.
func (a *App) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req updatePlanRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	quota, err := a.Quota.UpdateQuota(r.Context(), userID, req.Plan)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"plan":                string(quota.Plan),
		"monthly_image_limit": quota.MonthlyImageLimit,
		"monthly_video_limit": quota.MonthlyVideoLimit,
		"monthly_cost_limit":  quota.MonthlyCostLimit,
	})
}

// ListUsage returns ledger entries for the caller inside an optional
// from/to window.
func (a *App) ListUsage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid time range")
		return
	}
	limit, offset := pagination(r)
	logs, err := a.Usage.List(r.Context(), userID, from, to, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(logs))
	for _, log := range logs {
		items = append(items, map[string]any{
			"id":            log.ID,
			"job_id":        log.JobID,
			"provider":      log.Provider,
			"resource_type": string(log.ResourceType),
			"quantity":      log.Quantity,
			"cost_usd":      log.CostUSD,
			"created_at":    log.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"usage": items})
}

// UsageSummary returns per-resource totals for the caller inside an optional
// from/to window.
func (a *App) UsageSummary(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid time range")
		return
	}
	totals, err := a.Usage.Summary(r.Context(), userID, from, to)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"summary": totals})
}

func timeRange(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return
		}
	}
	return
}
