package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
	"github.com/sungminna/marketer/internal/providers"
	"github.com/sungminna/marketer/internal/storage"
)

// maxVideoDownloadBytes caps re-hosted provider output at 512 MiB.
const maxVideoDownloadBytes = 512 << 20

// BackgroundRemover strips the background from an already-rendered video.
// This is a post-processing call, not a generation provider, so it sits
// outside the gateway registry.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, videoURL string, params domain.Params) (*providers.Artifact, error)
}

// VideoService owns the lifecycle of video jobs: text-to-video, image-to-video
// and background removal.
type VideoService struct {
	jobs       domain.JobRepository
	usage      domain.UsageRepository
	quota      *QuotaService
	store      storage.ObjectStore
	resolver   GatewayResolver
	notifier   EventNotifier
	bgRemover  BackgroundRemover
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

func NewVideoService(
	jobs domain.JobRepository,
	usage domain.UsageRepository,
	quota *QuotaService,
	store storage.ObjectStore,
	resolver GatewayResolver,
	notifier EventNotifier,
	bgRemover BackgroundRemover,
	httpClient *http.Client,
	logger zerolog.Logger,
) *VideoService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &VideoService{
		jobs:       jobs,
		usage:      usage,
		quota:      quota,
		store:      store,
		resolver:   resolver,
		notifier:   notifier,
		bgRemover:  bgRemover,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateJob records a pending video job.
func (s *VideoService) CreateJob(ctx context.Context, userID string, kind domain.JobKind, provider, model string, params domain.Params) (*domain.Job, error) {
	if !kind.Valid() || kind.Resource() != domain.ResourceTypeVideo {
		return nil, fmt.Errorf("%w: unsupported video job type %q", domain.ErrValidation, kind)
	}
	switch kind {
	case domain.JobKindVideoBgRemove:
		if params.GetString("video_url", "") == "" {
			return nil, fmt.Errorf("%w: video_url is required", domain.ErrValidation)
		}
	default:
		if params.GetString("prompt", "") == "" {
			return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
		}
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
		return nil, fmt.Errorf("create video job: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Str("user_id", userID).
		Str("job_type", string(kind)).Str("provider", provider).
		Msg("video job created")
	return job, nil
}

// ProcessJob runs one pending video job end to end. Re-processing a terminal
// job mutates nothing and reports ErrJobTerminal.
func (s *VideoService) ProcessJob(ctx context.Context, jobID, credential string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		s.logger.Warn().Str("job_id", jobID).Str("status", string(job.Status)).
			Msg("video job already terminal, skipping")
		return job, fmt.Errorf("%w: job %s is %s", domain.ErrJobTerminal, jobID, job.Status)
	}

	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	var artifact *providers.Artifact
	if job.Kind == domain.JobKindVideoBgRemove {
		artifact, err = s.removeBackground(ctx, job)
	} else {
		artifact, err = s.generate(ctx, job, credential)
	}
	if err != nil {
		return s.failJob(ctx, job, err)
	}

	url, err := s.persistArtifact(ctx, job, artifact)
	if err != nil {
		return s.failJob(ctx, job, err)
	}

	duration := artifact.Seconds
	if duration <= 0 {
		duration = job.InputParams.GetInt("length", 4)
	}
	cost := s.jobCost(job, duration)

	completedAt := s.now().UTC()
	job.Status = domain.JobStatusCompleted
	job.OutputURLs = []string{url}
	job.CostUSD = &cost
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt
	job.Metadata = job.Metadata.Merge(domain.Params{
		"duration_seconds": duration,
		"resolution":       job.InputParams.GetString("resolution", "720p"),
		"aspect_ratio":     job.InputParams.GetString("aspect_ratio", "16:9"),
		"has_audio":        job.InputParams.GetString("audio", "") != "false",
		"generated_at":     completedAt.Format(time.RFC3339),
	})
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("finalize job: %w", err)
	}

	s.recordUsage(ctx, job, duration, cost)
	if s.notifier != nil {
		s.notifier.SendEventToSubscriptions(ctx, job.UserID, domain.EventJobCompleted, jobEventPayload(job))
	}
	s.logger.Info().Str("job_id", job.ID).Int("duration_seconds", duration).
		Float64("cost_usd", cost).Msg("video job completed")
	return job, nil
}

func (s *VideoService) GetJob(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	return s.jobs.GetForUser(ctx, jobID, userID)
}

func (s *VideoService) ListJobs(ctx context.Context, userID string, limit, offset int) ([]domain.Job, int, error) {
	return s.jobs.ListByUser(ctx, userID, limit, offset)
}

func (s *VideoService) EstimateCost(params domain.Params) float64 {
	return pricing.EstimateCost(params)
}

func (s *VideoService) generate(ctx context.Context, job *domain.Job, credential string) (*providers.Artifact, error) {
	credential, err := validateCredential(credential)
	if err != nil {
		return nil, err
	}
	gateway, err := s.resolver.Resolve(job.Provider, credential)
	if err != nil {
		return nil, err
	}
	if job.Kind == domain.JobKindImageToVideo {
		return gateway.VideoFromImages(ctx, job.InputParams)
	}
	return gateway.GenerateVideo(ctx, job.InputParams)
}

func (s *VideoService) removeBackground(ctx context.Context, job *domain.Job) (*providers.Artifact, error) {
	if s.bgRemover == nil {
		return nil, fmt.Errorf("%w: background removal is not configured", domain.ErrUnsupportedOperation)
	}
	return s.bgRemover.RemoveBackground(ctx, job.InputParams.GetString("video_url", ""), job.InputParams)
}

// jobCost prices generation by provider rate card; background removal is
// post-processing and carries no provider charge.
func (s *VideoService) jobCost(job *domain.Job, duration int) float64 {
	if job.Kind == domain.JobKindVideoBgRemove {
		return 0
	}
	resolution := job.InputParams.GetString("resolution", "")
	return pricing.CalculateVideoCost(job.Provider, job.Model, duration, resolution)
}

// persistArtifact re-hosts the rendered video in our object store. Providers
// return either raw bytes or a short-lived URL; URL output is downloaded so
// the stored link outlives the vendor's expiry.
func (s *VideoService) persistArtifact(ctx context.Context, job *domain.Job, artifact *providers.Artifact) (string, error) {
	data := artifact.Data
	if len(data) == 0 {
		if artifact.URL == "" {
			return "", fmt.Errorf("%w: artifact has neither data nor url", domain.ErrProviderRejected)
		}
		var err error
		data, err = s.download(ctx, artifact.URL)
		if err != nil {
			return "", err
		}
	}
	contentType := artifact.MIME
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := fmt.Sprintf("generated/%s/%s/video.%s", job.UserID, job.ID, extensionForMIME(contentType))
	url, err := s.store.Put(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: store video: %v", domain.ErrStorage, err)
	}
	return url, nil
}

func (s *VideoService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad video url: %v", domain.ErrProviderRejected, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download video: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download video: HTTP %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVideoDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read video body: %v", domain.ErrProviderUnavailable, err)
	}
	return data, nil
}

func (s *VideoService) failJob(ctx context.Context, job *domain.Job, cause error) (*domain.Job, error) {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist job failure")
	}
	if s.notifier != nil {
		s.notifier.SendEventToSubscriptions(ctx, job.UserID, domain.EventJobFailed, jobEventPayload(job))
	}
	s.logger.Error().Err(cause).Str("job_id", job.ID).Msg("video job failed")
	return job, cause
}

func (s *VideoService) recordUsage(ctx context.Context, job *domain.Job, durationSeconds int, cost float64) {
	entry := &domain.UsageLog{
		ID:           uuid.NewString(),
		UserID:       job.UserID,
		JobID:        job.ID,
		Provider:     job.Provider,
		ResourceType: domain.ResourceTypeVideo,
		Quantity:     durationSeconds,
		CostUSD:      cost,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.usage.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("record usage log")
	}
	if err := s.quota.RecordUsage(ctx, job.UserID, domain.ResourceTypeVideo, durationSeconds, cost); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("record quota usage")
	}
}
