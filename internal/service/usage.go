package service

import (
	"context"
	"time"

	"github.com/sungminna/marketer/internal/domain"
)

// UsageService exposes the append-only usage ledger for billing views.
type UsageService struct {
	repo domain.UsageRepository
}

func NewUsageService(repo domain.UsageRepository) *UsageService {
	return &UsageService{repo: repo}
}

// List returns ledger entries for userID inside [from, to). A zero to means
// now; a zero from means the last 30 days.
func (s *UsageService) List(ctx context.Context, userID string, from, to time.Time, limit, offset int) ([]domain.UsageLog, error) {
	from, to = normalizeRange(from, to)
	return s.repo.ListByUser(ctx, userID, from, to, limit, offset)
}

// Summary returns per-provider/resource totals for userID inside [from, to).
func (s *UsageService) Summary(ctx context.Context, userID string, from, to time.Time) ([]domain.UsageTotals, error) {
	from, to = normalizeRange(from, to)
	return s.repo.SummaryByUser(ctx, userID, from, to)
}

func normalizeRange(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return from, to
}
