package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
	"github.com/sungminna/marketer/internal/providers"
	"github.com/sungminna/marketer/internal/storage"
)

// ImageService owns the lifecycle of image jobs: generation, editing and
// prototype rendering.
type ImageService struct {
	jobs     domain.JobRepository
	usage    domain.UsageRepository
	quota    *QuotaService
	store    storage.ObjectStore
	resolver GatewayResolver
	notifier EventNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewImageService(
	jobs domain.JobRepository,
	usage domain.UsageRepository,
	quota *QuotaService,
	store storage.ObjectStore,
	resolver GatewayResolver,
	notifier EventNotifier,
	logger zerolog.Logger,
) *ImageService {
	return &ImageService{
		jobs:     jobs,
		usage:    usage,
		quota:    quota,
		store:    store,
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateJob records a pending image job. No provider traffic happens here;
// dispatch is ProcessJob's responsibility.
func (s *ImageService) CreateJob(ctx context.Context, userID string, kind domain.JobKind, provider, model string, params domain.Params) (*domain.Job, error) {
	if !kind.Valid() || kind.Resource() != domain.ResourceTypeImage {
		return nil, fmt.Errorf("%w: unsupported image job type %q", domain.ErrValidation, kind)
	}
	if params.GetString("prompt", "") == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Provider:    provider,
		Model:       model,
		InputParams: params.Clone(),
		Status:      domain.JobStatusPending,
		Metadata:    domain.Params{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create image job: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Str("user_id", userID).
		Str("job_type", string(kind)).Str("provider", provider).
		Msg("image job created")
	return job, nil
}

// ProcessJob runs one pending image job end to end: mark processing, call the
// provider, persist artifacts, record cost and usage, finalize. Re-processing
// a terminal job mutates nothing and reports ErrJobTerminal.
func (s *ImageService) ProcessJob(ctx context.Context, jobID, credential string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		s.logger.Warn().Str("job_id", jobID).Str("status", string(job.Status)).
			Msg("image job already terminal, skipping")
		return job, fmt.Errorf("%w: job %s is %s", domain.ErrJobTerminal, jobID, job.Status)
	}

	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	credential, err = validateCredential(credential)
	if err != nil {
		return s.failJob(ctx, job, err)
	}

	gateway, err := s.resolver.Resolve(job.Provider, credential)
	if err != nil {
		return s.failJob(ctx, job, err)
	}

	artifacts, err := s.dispatch(ctx, gateway, job)
	if err != nil {
		return s.failJob(ctx, job, err)
	}
	if len(artifacts) == 0 {
		return s.failJob(ctx, job, fmt.Errorf("%w: provider returned no images", domain.ErrProviderRejected))
	}

	urls, err := s.persistArtifacts(ctx, job, artifacts)
	if err != nil {
		return s.failJob(ctx, job, err)
	}

	cost := gateway.CalculateCost(domain.ResourceTypeImage, len(urls), job.InputParams)
	format := artifacts[0].MIME
	if format == "" {
		format = "image/png"
	}
	completedAt := s.now().UTC()
	job.Status = domain.JobStatusCompleted
	job.OutputURLs = urls
	job.CostUSD = &cost
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt
	job.Metadata = job.Metadata.Merge(domain.Params{
		"number_of_images": len(urls),
		"format":           extensionForMIME(format),
		"generated_at":     completedAt.Format(time.RFC3339),
	})
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("finalize job: %w", err)
	}

	s.recordUsage(ctx, job, len(urls), cost)
	if s.notifier != nil {
		s.notifier.SendEventToSubscriptions(ctx, job.UserID, domain.EventJobCompleted, jobEventPayload(job))
	}
	s.logger.Info().Str("job_id", job.ID).Int("images", len(urls)).
		Float64("cost_usd", cost).Msg("image job completed")
	return job, nil
}

func (s *ImageService) GetJob(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	return s.jobs.GetForUser(ctx, jobID, userID)
}

func (s *ImageService) ListJobs(ctx context.Context, userID string, limit, offset int) ([]domain.Job, int, error) {
	return s.jobs.ListByUser(ctx, userID, limit, offset)
}

// EstimateCost predicts the cost of a job described by params without
// touching any provider.
func (s *ImageService) EstimateCost(params domain.Params) float64 {
	return pricing.EstimateCost(params)
}

// dispatch routes the job kind to the matching gateway operation. Prototype
// rendering is plain generation; its framing lives in the prompt enhancement
// the adapters already apply.
func (s *ImageService) dispatch(ctx context.Context, gateway providers.Gateway, job *domain.Job) ([]providers.Artifact, error) {
	switch job.Kind {
	case domain.JobKindImageEdit:
		return gateway.EditImage(ctx, job.InputParams)
	case domain.JobKindImageGenerate, domain.JobKindPrototypeGenerate:
		return gateway.GenerateImage(ctx, job.InputParams)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedOperation, job.Kind)
	}
}

// persistArtifacts uploads inline image bytes to the object store and passes
// provider-hosted URLs through untouched.
func (s *ImageService) persistArtifacts(ctx context.Context, job *domain.Job, artifacts []providers.Artifact) ([]string, error) {
	urls := make([]string, 0, len(artifacts))
	for i, art := range artifacts {
		if len(art.Data) == 0 {
			if art.URL == "" {
				return nil, fmt.Errorf("%w: artifact %d has neither data nor url", domain.ErrProviderRejected, i)
			}
			urls = append(urls, art.URL)
			continue
		}
		key := fmt.Sprintf("generated/%s/%s/image-%02d.%s", job.UserID, job.ID, i, extensionForMIME(art.MIME))
		contentType := art.MIME
		if contentType == "" {
			contentType = "image/png"
		}
		url, err := s.store.Put(ctx, key, art.Data, contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: store image %d: %v", domain.ErrStorage, i, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// failJob marks the job failed, emits the failure event and returns the
// cause so the queue layer can decide whether to retry.
func (s *ImageService) failJob(ctx context.Context, job *domain.Job, cause error) (*domain.Job, error) {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist job failure")
	}
	if s.notifier != nil {
		s.notifier.SendEventToSubscriptions(ctx, job.UserID, domain.EventJobFailed, jobEventPayload(job))
	}
	s.logger.Error().Err(cause).Str("job_id", job.ID).Msg("image job failed")
	return job, cause
}

// recordUsage appends the ledger entry and bumps the monthly counters.
// Failures here are logged and swallowed; the job already completed.
func (s *ImageService) recordUsage(ctx context.Context, job *domain.Job, quantity int, cost float64) {
	entry := &domain.UsageLog{
		ID:           uuid.NewString(),
		UserID:       job.UserID,
		JobID:        job.ID,
		Provider:     job.Provider,
		ResourceType: domain.ResourceTypeImage,
		Quantity:     quantity,
		CostUSD:      cost,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.usage.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("record usage log")
	}
	if err := s.quota.RecordUsage(ctx, job.UserID, domain.ResourceTypeImage, quantity, cost); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("record quota usage")
	}
}
