package domain

import "time"

// UsageLog records resource consumption of one completed job for billing and
// analytics. Written exactly once, on successful completion.
type UsageLog struct {
	ID           string
	UserID       string
	JobID        string
	Provider     string
	ResourceType ResourceType
	Quantity     int
	CostUSD      float64
	CreatedAt    time.Time
}

// UsageTotals aggregates usage logs per resource type.
type UsageTotals struct {
	ResourceType ResourceType `json:"resource_type"`
	Quantity     int          `json:"quantity"`
	CostUSD      float64      `json:"cost_usd"`
	Events       int          `json:"events"`
}
