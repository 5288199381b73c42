package domain

import "time"

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// PlanLimits holds the monthly caps granted by a plan.
type PlanLimits struct {
	Images       int
	VideoSeconds int
	CostUSD      float64
}

// UserQuota stores the active limits for one user.
type UserQuota struct {
	ID                string
	UserID            string
	Plan              Plan
	MonthlyImageLimit int
	MonthlyVideoLimit int
	MonthlyCostLimit  float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// QuotaUsage tracks consumption for one (user, calendar month) pair. Rows are
// created lazily on first read and only ever incremented.
type QuotaUsage struct {
	ID               string
	UserID           string
	Month            time.Time
	ImagesUsed       int
	VideoSecondsUsed int
	CostUsedUSD      float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UsageSummary is the read model returned to callers checking their quota.
type UsageSummary struct {
	ImagesUsed            int     `json:"images_used"`
	ImagesLimit           int     `json:"images_limit"`
	ImagesRemaining       int     `json:"images_remaining"`
	VideoSecondsUsed      int     `json:"video_seconds_used"`
	VideoSecondsLimit     int     `json:"video_seconds_limit"`
	VideoSecondsRemaining int     `json:"video_seconds_remaining"`
	CostUsedUSD           float64 `json:"cost_used_usd"`
	CostLimitUSD          float64 `json:"cost_limit_usd"`
	CostRemainingUSD      float64 `json:"cost_remaining_usd"`
}

// MonthStart truncates t to the first instant of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
