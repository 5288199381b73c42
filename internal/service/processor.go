package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/task"
)

// Processor routes submitted tasks to the right orchestrator. It is the one
// task.Handler shared by the in-process executor and the AMQP consumer, so
// both deployment shapes process work identically.
type Processor struct {
	jobs    domain.JobRepository
	creds   domain.CredentialRepository
	images  JobOrchestrator
	videos  JobOrchestrator
	batches *BatchService
	logger  zerolog.Logger
}

func NewProcessor(
	jobs domain.JobRepository,
	creds domain.CredentialRepository,
	images JobOrchestrator,
	videos JobOrchestrator,
	batches *BatchService,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		jobs:    jobs,
		creds:   creds,
		images:  images,
		videos:  videos,
		batches: batches,
		logger:  logger,
	}
}

// Handle processes one task. A job or batch ending up failed is a completed
// unit of work; only infrastructure errors propagate so the executor retries.
func (p *Processor) Handle(ctx context.Context, t task.Task) error {
	switch t.Kind {
	case task.KindProcessJob:
		return p.processJob(ctx, t.ID)
	case task.KindProcessBatch:
		_, err := p.batches.ProcessBatch(ctx, t.ID)
		return err
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

func (p *Processor) processJob(ctx context.Context, jobID string) error {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	credential, err := p.creds.Token(ctx, job.UserID, job.Provider)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load credential for %s: %w", job.Provider, err)
	}

	var orch JobOrchestrator
	switch job.Kind.Resource() {
	case domain.ResourceTypeVideo:
		orch = p.videos
	default:
		orch = p.images
	}

	if _, err := orch.ProcessJob(ctx, jobID, credential); err != nil {
		// A redelivered task for a finished job is done work, not a failure.
		if errors.Is(err, domain.ErrJobTerminal) {
			p.logger.Debug().Str("job_id", jobID).Msg("job already terminal")
			return nil
		}
		// The orchestrator marks conclusive failures terminal itself; those
		// must not be retried by the executor.
		if current, loadErr := p.jobs.GetByID(ctx, jobID); loadErr == nil && current.Status.Terminal() {
			p.logger.Warn().Str("job_id", jobID).Err(err).Msg("job finished failed")
			return nil
		}
		return err
	}
	return nil
}
