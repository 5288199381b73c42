package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
	"github.com/sungminna/marketer/internal/providers"
	"github.com/sungminna/marketer/internal/service"
	"github.com/sungminna/marketer/internal/task"
)

type createJobRequest struct {
	JobType     domain.JobKind `json:"job_type"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	InputParams domain.Params  `json:"input_params"`
}

// CreateJob admits a generation job, runs the advisory quota check, persists
// the pending record and schedules processing.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Provider == "" {
		req.Provider = "gemini"
	}
	if !providers.Known(req.Provider) {
		a.error(w, http.StatusBadRequest, "unsupported", "unsupported provider: "+req.Provider)
		return
	}

	resource := req.JobType.Resource()
	quantity := req.InputParams.GetInt("number_of_images", 1)
	if resource == domain.ResourceTypeVideo {
		quantity = req.InputParams.GetInt("length", 4)
	}
	ok, msg, err := a.Quota.CheckQuota(r.Context(), userID, resource, quantity)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if !ok {
		a.error(w, http.StatusForbidden, "quota_exceeded", msg)
		return
	}

	job, err := a.orchestratorFor(req.JobType).CreateJob(r.Context(), userID, req.JobType, req.Provider, req.Model, req.InputParams)
	if err != nil {
		a.domainError(w, err)
		return
	}

	if err := a.Executor.Submit(r.Context(), task.Task{Kind: task.KindProcessJob, ID: job.ID, UserID: userID}); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("submit job task")
		a.error(w, http.StatusInternalServerError, "internal", "failed to schedule job")
		return
	}
	a.json(w, http.StatusAccepted, jobResponse(job))
}

// GetJob returns one of the caller's jobs.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Images.GetJob(r.Context(), chi.URLParam(r, "job_id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, jobResponse(job))
}

// ListJobs returns a page of the caller's jobs, newest first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, offset := pagination(r)
	jobs, total, err := a.Images.ListJobs(r.Context(), userID, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobResponse(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs":   items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type estimateRequest struct {
	Params       domain.Params `json:"params"`
	Requirements domain.Params `json:"requirements"`
}

// EstimateCost prices a prospective job and recommends a provider without
// touching any vendor API.
func (a *App) EstimateCost(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	resp := map[string]any{
		"estimated_cost_usd": a.Images.EstimateCost(req.Params),
	}
	if req.Requirements != nil {
		resp["recommended_provider"] = pricing.RecommendProvider(req.Requirements)
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) orchestratorFor(kind domain.JobKind) service.JobOrchestrator {
	if kind.Resource() == domain.ResourceTypeVideo {
		return a.Videos
	}
	return a.Images
}

func jobResponse(job *domain.Job) map[string]any {
	resp := map[string]any{
		"job_id":       job.ID,
		"job_type":     string(job.Kind),
		"provider":     job.Provider,
		"model":        job.Model,
		"status":       string(job.Status),
		"input_params": job.InputParams,
		"created_at":   job.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   job.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if len(job.OutputURLs) > 0 {
		resp["output_urls"] = job.OutputURLs
	}
	if job.CostUSD != nil {
		resp["cost_usd"] = *job.CostUSD
	}
	if job.ErrorMessage != "" {
		resp["error_message"] = job.ErrorMessage
	}
	if len(job.Metadata) > 0 {
		resp["metadata"] = job.Metadata
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
