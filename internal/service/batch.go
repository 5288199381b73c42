package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
)

// BatchService fans a submission of job specs out to the image and video
// orchestrators and rolls member outcomes up into one terminal batch state.
type BatchService struct {
	batches  domain.BatchRepository
	jobs     domain.JobRepository
	creds    domain.CredentialRepository
	images   JobOrchestrator
	videos   JobOrchestrator
	notifier EventNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBatchService(
	batches domain.BatchRepository,
	jobs domain.JobRepository,
	creds domain.CredentialRepository,
	images JobOrchestrator,
	videos JobOrchestrator,
	notifier EventNotifier,
	logger zerolog.Logger,
) *BatchService {
	return &BatchService{
		batches:  batches,
		jobs:     jobs,
		creds:    creds,
		images:   images,
		videos:   videos,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateBatch persists the batch row, then creates one pending job per spec
// with the shared config merged under per-job params (per-job keys win).
// Creation is a multi-step sequence without rollback: if a member fails to
// create, the batch is marked failed with the members created so far kept.
func (s *BatchService) CreateBatch(ctx context.Context, userID, name, description string, specs []domain.JobSpec, config domain.Params) (*domain.Batch, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one job is required", domain.ErrValidation)
	}
	for i, spec := range specs {
		if !spec.Kind.Valid() {
			return nil, fmt.Errorf("%w: job %d has unknown job_type %q", domain.ErrValidation, i, spec.Kind)
		}
	}

	now := s.now().UTC()
	batch := &domain.Batch{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Type:        batchTypeOf(specs),
		Status:      domain.BatchStatusPending,
		TotalJobs:   len(specs),
		Config:      config.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	for i, spec := range specs {
		params := spec.InputParams.Merge(config)
		job, err := s.orchestratorFor(spec.Kind).CreateJob(ctx, userID, spec.Kind, spec.Provider, spec.Model, params)
		if err != nil {
			batch.Status = domain.BatchStatusFailed
			batch.ErrorMessage = fmt.Sprintf("failed to create job %d: %v", i, err)
			batch.UpdatedAt = s.now().UTC()
			if uerr := s.batches.Update(ctx, batch); uerr != nil {
				s.logger.Error().Err(uerr).Str("batch_id", batch.ID).Msg("persist batch creation failure")
			}
			return nil, fmt.Errorf("create batch job %d: %w", i, err)
		}
		batch.JobIDs = append(batch.JobIDs, job.ID)
	}

	batch.UpdatedAt = s.now().UTC()
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch members: %w", err)
	}
	s.logger.Info().Str("batch_id", batch.ID).Str("user_id", userID).
		Int("total_jobs", batch.TotalJobs).Msg("batch created")
	return batch, nil
}

// ProcessBatch sequentially processes every member job, re-checking the batch
// row between members so a cancel stops further dispatch. Member failures are
// counted, never re-thrown. Afterwards counts and aggregate cost are recomputed
// from the members' final state and exactly one rollup webhook event fires.
func (s *BatchService) ProcessBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	if batch.Status != domain.BatchStatusPending && batch.Status != domain.BatchStatusProcessing {
		s.logger.Warn().Str("batch_id", batchID).Str("status", string(batch.Status)).
			Msg("batch already finalized, skipping")
		return batch, nil
	}

	batch.Status = domain.BatchStatusProcessing
	batch.UpdatedAt = s.now().UTC()
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("mark batch processing: %w", err)
	}

	for _, jobID := range batch.JobIDs {
		current, err := s.batches.GetByID(ctx, batchID)
		if err == nil && current.Status != domain.BatchStatusProcessing {
			s.logger.Info().Str("batch_id", batchID).Str("status", string(current.Status)).
				Msg("batch no longer processing, stopping dispatch")
			return current, nil
		}
		s.processMember(ctx, batch, jobID)
	}

	return s.finalize(ctx, batch)
}

// CancelBatch marks a pending or processing batch failed. In-flight member
// calls are not interrupted; only future dispatch is prevented.
func (s *BatchService) CancelBatch(ctx context.Context, batchID, userID string) (*domain.Batch, error) {
	batch, err := s.batches.GetForUser(ctx, batchID, userID)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusPending && batch.Status != domain.BatchStatusProcessing {
		return nil, fmt.Errorf("%w: batch is %s", domain.ErrBatchNotCancellable, batch.Status)
	}

	now := s.now().UTC()
	batch.Status = domain.BatchStatusFailed
	batch.ErrorMessage = "Cancelled by user"
	batch.CompletedAt = &now
	batch.UpdatedAt = now
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("cancel batch: %w", err)
	}
	s.logger.Info().Str("batch_id", batchID).Msg("batch cancelled")
	return batch, nil
}

func (s *BatchService) GetBatch(ctx context.Context, batchID, userID string) (*domain.Batch, error) {
	return s.batches.GetForUser(ctx, batchID, userID)
}

func (s *BatchService) ListBatches(ctx context.Context, userID string, limit, offset int) ([]domain.Batch, int, error) {
	return s.batches.ListByUser(ctx, userID, limit, offset)
}

// GetBatchJobs returns the member jobs of a batch the caller owns.
func (s *BatchService) GetBatchJobs(ctx context.Context, batchID, userID string) ([]domain.Job, error) {
	batch, err := s.batches.GetForUser(ctx, batchID, userID)
	if err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, 0, len(batch.JobIDs))
	for _, jobID := range batch.JobIDs {
		job, err := s.jobs.GetByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("load batch job %s: %w", jobID, err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// processMember resolves the member's credential and runs its orchestrator.
// Failures are absorbed: the member job carries its own failed state.
func (s *BatchService) processMember(ctx context.Context, batch *domain.Batch, jobID string) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("batch_id", batch.ID).Str("job_id", jobID).
			Msg("batch member lookup failed")
		return
	}
	if job.Status.Terminal() {
		return
	}

	credential, err := s.creds.Token(ctx, batch.UserID, job.Provider)
	if err != nil {
		s.failMember(ctx, job, fmt.Sprintf("credential not found for provider: %s", job.Provider))
		return
	}

	if _, err := s.orchestratorFor(job.Kind).ProcessJob(ctx, jobID, credential); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batch.ID).Str("job_id", jobID).
			Msg("batch member failed")
	}
}

func (s *BatchService) failMember(ctx context.Context, job *domain.Job, message string) {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist member failure")
	}
}

// finalize recomputes counters and cost from the members' terminal state,
// derives the batch status and emits the single rollup event. The event fires
// after the record is saved; a delivery failure never re-fails the batch.
func (s *BatchService) finalize(ctx context.Context, batch *domain.Batch) (*domain.Batch, error) {
	completed, failed := 0, 0
	totalCost := 0.0
	for _, jobID := range batch.JobIDs {
		job, err := s.jobs.GetByID(ctx, jobID)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", jobID).Msg("batch finalize member lookup")
			failed++
			continue
		}
		switch job.Status {
		case domain.JobStatusCompleted:
			completed++
			if job.CostUSD != nil {
				totalCost += *job.CostUSD
			}
		default:
			failed++
		}
	}

	now := s.now().UTC()
	batch.CompletedJobs = completed
	batch.FailedJobs = failed
	batch.TotalCostUSD = totalCost
	batch.Status = domain.DeriveStatus(completed, failed)
	batch.CompletedAt = &now
	batch.UpdatedAt = now
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("finalize batch: %w", err)
	}

	event := domain.EventBatchFailed
	if batch.Status == domain.BatchStatusCompleted || batch.Status == domain.BatchStatusPartial {
		event = domain.EventBatchCompleted
	}
	if s.notifier != nil {
		s.notifier.SendEventToSubscriptions(ctx, batch.UserID, event, batchEventPayload(batch))
	}
	s.logger.Info().Str("batch_id", batch.ID).Str("status", string(batch.Status)).
		Int("completed", completed).Int("failed", failed).
		Float64("total_cost_usd", totalCost).Msg("batch finalized")
	return batch, nil
}

func (s *BatchService) orchestratorFor(kind domain.JobKind) JobOrchestrator {
	if kind.Resource() == domain.ResourceTypeVideo {
		return s.videos
	}
	return s.images
}

// batchTypeOf classifies the submission by what its members produce.
func batchTypeOf(specs []domain.JobSpec) domain.BatchType {
	images, videos := false, false
	for _, spec := range specs {
		if spec.Kind.Resource() == domain.ResourceTypeVideo {
			videos = true
		} else {
			images = true
		}
	}
	switch {
	case images && videos:
		return domain.BatchTypeMixed
	case videos:
		return domain.BatchTypeVideo
	default:
		return domain.BatchTypeImage
	}
}

// batchEventPayload is the stable JSON shape carried by batch.* events.
func batchEventPayload(batch *domain.Batch) map[string]any {
	return map[string]any{
		"batch_id":            batch.ID,
		"name":                batch.Name,
		"status":              string(batch.Status),
		"total_jobs":          batch.TotalJobs,
		"completed_jobs":      batch.CompletedJobs,
		"failed_jobs":         batch.FailedJobs,
		"total_cost_usd":      batch.TotalCostUSD,
		"progress_percentage": batch.Progress(),
	}
}
