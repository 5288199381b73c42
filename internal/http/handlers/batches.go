package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/task"
)

type createBatchRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Jobs        []domain.JobSpec `json:"jobs"`
	Config      domain.Params    `json:"config"`
}

// CreateBatch admits a batch submission: all member jobs are pre-created in
// pending state and one batch-processing task is scheduled.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createBatchRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Name == "" {
		a.error(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	batch, err := a.Batches.CreateBatch(r.Context(), userID, req.Name, req.Description, req.Jobs, req.Config)
	if err != nil {
		a.domainError(w, err)
		return
	}

	if err := a.Executor.Submit(r.Context(), task.Task{Kind: task.KindProcessBatch, ID: batch.ID, UserID: userID}); err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batch.ID).Msg("submit batch task")
		a.error(w, http.StatusInternalServerError, "internal", "failed to schedule batch")
		return
	}
	a.json(w, http.StatusAccepted, batchResponse(batch))
}

// GetBatch returns one of the caller's batches with progress.
func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	batch, err := a.Batches.GetBatch(r.Context(), chi.URLParam(r, "batch_id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, batchResponse(batch))
}

// ListBatches returns a page of the caller's batches.
func (a *App) ListBatches(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, offset := pagination(r)
	batches, total, err := a.Batches.ListBatches(r.Context(), userID, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(batches))
	for i := range batches {
		items = append(items, batchResponse(&batches[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"batches": items,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// BatchJobs returns the member jobs of one of the caller's batches.
func (a *App) BatchJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Batches.GetBatchJobs(r.Context(), chi.URLParam(r, "batch_id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobResponse(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": items})
}

// CancelBatch stops future member dispatch of a pending or processing batch.
func (a *App) CancelBatch(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	batch, err := a.Batches.CancelBatch(r.Context(), chi.URLParam(r, "batch_id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, batchResponse(batch))
}

func batchResponse(batch *domain.Batch) map[string]any {
	resp := map[string]any{
		"batch_id":            batch.ID,
		"name":                batch.Name,
		"description":         batch.Description,
		"batch_type":          string(batch.Type),
		"status":              string(batch.Status),
		"total_jobs":          batch.TotalJobs,
		"completed_jobs":      batch.CompletedJobs,
		"failed_jobs":         batch.FailedJobs,
		"total_cost_usd":      batch.TotalCostUSD,
		"progress_percentage": batch.Progress(),
		"job_ids":             batch.JobIDs,
		"created_at":          batch.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":          batch.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if batch.ErrorMessage != "" {
		resp["error_message"] = batch.ErrorMessage
	}
	if batch.CompletedAt != nil {
		resp["completed_at"] = batch.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
