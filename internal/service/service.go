package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/providers"
)

// GatewayResolver turns a provider name plus caller credential into a bound
// provider adapter. Implemented by providers.Registry.
type GatewayResolver interface {
	Resolve(provider, credential string) (providers.Gateway, error)
}

// EventNotifier pushes an event to every matching webhook subscription of a
// user. Delivery is best-effort; implementations never return an error to
// the orchestration path.
type EventNotifier interface {
	SendEventToSubscriptions(ctx context.Context, userID, event string, payload map[string]any)
}

// JobOrchestrator is the shared surface of the image and video services used
// by the batch orchestrator.
type JobOrchestrator interface {
	CreateJob(ctx context.Context, userID string, kind domain.JobKind, provider, model string, params domain.Params) (*domain.Job, error)
	ProcessJob(ctx context.Context, jobID, credential string) (*domain.Job, error)
}

// validateCredential enforces the pre-dispatch credential check shared by all
// orchestrators.
func validateCredential(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", fmt.Errorf("%w: empty credential", domain.ErrInvalidCredential)
	}
	return credential, nil
}

// jobEventPayload is the stable JSON shape carried by job.* webhook events.
func jobEventPayload(job *domain.Job) map[string]any {
	payload := map[string]any{
		"job_id":   job.ID,
		"job_type": string(job.Kind),
		"provider": job.Provider,
		"model":    job.Model,
		"status":   string(job.Status),
	}
	if job.CostUSD != nil {
		payload["cost_usd"] = *job.CostUSD
	}
	if len(job.OutputURLs) > 0 {
		payload["output_urls"] = job.OutputURLs
	}
	if job.ErrorMessage != "" {
		payload["error_message"] = job.ErrorMessage
	}
	if job.CompletedAt != nil {
		payload["completed_at"] = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	default:
		return "bin"
	}
}
