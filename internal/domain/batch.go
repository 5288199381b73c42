package domain

import (
	"math"
	"time"
)

// BatchType declares what the member jobs produce.
type BatchType string

const (
	BatchTypeImage BatchType = "image"
	BatchTypeVideo BatchType = "video"
	BatchTypeMixed BatchType = "mixed"
)

// BatchStatus enumerates batch lifecycle states. Partial marks a finalized
// batch with both completed and failed members.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusPartial    BatchStatus = "partial"
)

// Batch groups N jobs submitted together under a shared config overlay.
type Batch struct {
	ID            string
	UserID        string
	Name          string
	Description   string
	Type          BatchType
	Status        BatchStatus
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	TotalCostUSD  float64
	JobIDs        []string
	Config        Params
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Progress returns the share of members in a terminal state as a percentage
// rounded to two decimals.
func (b *Batch) Progress() float64 {
	if b.TotalJobs == 0 {
		return 0
	}
	pct := float64(b.CompletedJobs+b.FailedJobs) / float64(b.TotalJobs) * 100
	return math.Round(pct*100) / 100
}

// DeriveStatus computes the terminal batch status from member counts.
func DeriveStatus(completed, failed int) BatchStatus {
	switch {
	case failed == 0:
		return BatchStatusCompleted
	case completed == 0:
		return BatchStatusFailed
	default:
		return BatchStatusPartial
	}
}

// JobSpec describes one member job inside a batch submission.
type JobSpec struct {
	Kind        JobKind `json:"job_type"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	InputParams Params  `json:"input_params"`
}
