package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
)

// planLimits mirrors the published plan table. Unknown plans fall back to
// free so a bad plan string can never unlock unlimited usage.
var planLimits = map[domain.Plan]domain.PlanLimits{
	domain.PlanFree:       {Images: 100, VideoSeconds: 60, CostUSD: 10.00},
	domain.PlanStarter:    {Images: 1000, VideoSeconds: 600, CostUSD: 100.00},
	domain.PlanPro:        {Images: 10000, VideoSeconds: 6000, CostUSD: 1000.00},
	domain.PlanEnterprise: {Images: 100000, VideoSeconds: 60000, CostUSD: 10000.00},
}

// LimitsForPlan returns the monthly caps for plan, defaulting to free.
func LimitsForPlan(plan domain.Plan) domain.PlanLimits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[domain.PlanFree]
}

// QuotaService tracks monthly consumption against plan limits. Checks are
// advisory reads: nothing is reserved, so concurrent admission under quota
// pressure can overshoot.
type QuotaService struct {
	repo   domain.QuotaRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewQuotaService(repo domain.QuotaRepository, logger zerolog.Logger) *QuotaService {
	return &QuotaService{repo: repo, logger: logger, now: time.Now}
}

// GetCurrentUsage returns used/limit/remaining for the current month,
// lazily creating both the usage row and a default free-plan quota.
func (s *QuotaService) GetCurrentUsage(ctx context.Context, userID string) (*domain.UsageSummary, error) {
	month := domain.MonthStart(s.now())
	usage, err := s.repo.GetOrCreateUsage(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("load quota usage: %w", err)
	}

	quota, err := s.quotaOrDefault(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.UsageSummary{
		ImagesUsed:            usage.ImagesUsed,
		ImagesLimit:           quota.MonthlyImageLimit,
		ImagesRemaining:       quota.MonthlyImageLimit - usage.ImagesUsed,
		VideoSecondsUsed:      usage.VideoSecondsUsed,
		VideoSecondsLimit:     quota.MonthlyVideoLimit,
		VideoSecondsRemaining: quota.MonthlyVideoLimit - usage.VideoSecondsUsed,
		CostUsedUSD:           usage.CostUsedUSD,
		CostLimitUSD:          quota.MonthlyCostLimit,
		CostRemainingUSD:      quota.MonthlyCostLimit - usage.CostUsedUSD,
	}, nil
}

// CheckQuota reports whether quantity more units of resource fit in this
// month's limits. Pure read check; it does not reserve anything.
func (s *QuotaService) CheckQuota(ctx context.Context, userID string, resource domain.ResourceType, quantity int) (bool, string, error) {
	summary, err := s.GetCurrentUsage(ctx, userID)
	if err != nil {
		return false, "", err
	}

	switch resource {
	case domain.ResourceTypeImage:
		if summary.ImagesUsed+quantity > summary.ImagesLimit {
			return false, fmt.Sprintf("Image quota exceeded. Limit: %d", summary.ImagesLimit), nil
		}
	case domain.ResourceTypeVideo:
		if summary.VideoSecondsUsed+quantity > summary.VideoSecondsLimit {
			return false, fmt.Sprintf("Video quota exceeded. Limit: %d seconds", summary.VideoSecondsLimit), nil
		}
	}
	return true, "Quota available", nil
}

// UpdateQuota resets a user's limits to plan's table values. Accumulated
// usage is left untouched.
func (s *QuotaService) UpdateQuota(ctx context.Context, userID string, plan domain.Plan) (*domain.UserQuota, error) {
	limits := LimitsForPlan(plan)

	quota, err := s.repo.GetQuota(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		quota = s.defaultQuota(userID)
	} else if err != nil {
		return nil, fmt.Errorf("load quota: %w", err)
	}

	quota.Plan = plan
	quota.MonthlyImageLimit = limits.Images
	quota.MonthlyVideoLimit = limits.VideoSeconds
	quota.MonthlyCostLimit = limits.CostUSD
	if err := s.repo.SaveQuota(ctx, quota); err != nil {
		return nil, fmt.Errorf("save quota: %w", err)
	}
	return quota, nil
}

// RecordUsage adds a completed job's consumption to the current month.
func (s *QuotaService) RecordUsage(ctx context.Context, userID string, resource domain.ResourceType, quantity int, costUSD float64) error {
	month := domain.MonthStart(s.now())
	images, videoSeconds := 0, 0
	if resource == domain.ResourceTypeVideo {
		videoSeconds = quantity
	} else {
		images = quantity
	}
	if err := s.repo.AddUsage(ctx, userID, month, images, videoSeconds, costUSD); err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	return nil
}

func (s *QuotaService) quotaOrDefault(ctx context.Context, userID string) (*domain.UserQuota, error) {
	quota, err := s.repo.GetQuota(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		quota = s.defaultQuota(userID)
		if err := s.repo.SaveQuota(ctx, quota); err != nil {
			return nil, fmt.Errorf("initialize quota: %w", err)
		}
		return quota, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load quota: %w", err)
	}
	return quota, nil
}

func (s *QuotaService) defaultQuota(userID string) *domain.UserQuota {
	limits := LimitsForPlan(domain.PlanFree)
	return &domain.UserQuota{
		ID:                uuid.NewString(),
		UserID:            userID,
		Plan:              domain.PlanFree,
		MonthlyImageLimit: limits.Images,
		MonthlyVideoLimit: limits.VideoSeconds,
		MonthlyCostLimit:  limits.CostUSD,
	}
}
