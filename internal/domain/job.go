package domain

import "time"

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImageGenerate     JobKind = "image_generate"
	JobKindImageEdit         JobKind = "image_edit"
	JobKindPrototypeGenerate JobKind = "prototype_generate"
	JobKindVideoGenerate     JobKind = "video_generate"
	JobKindImageToVideo      JobKind = "image_to_video"
	JobKindVideoBgRemove     JobKind = "video_bg_remove"
)

// ResourceType identifies which resource dimension a job consumes.
type ResourceType string

const (
	ResourceTypeImage ResourceType = "image"
	ResourceTypeVideo ResourceType = "video"
)

// Resource maps a job kind to the resource dimension it produces and is
// billed against. Image-to-video jobs consume video seconds even though the
// kind name carries an image prefix.
func (k JobKind) Resource() ResourceType {
	switch k {
	case JobKindVideoGenerate, JobKindImageToVideo, JobKindVideoBgRemove:
		return ResourceTypeVideo
	default:
		return ResourceTypeImage
	}
}

// Valid reports whether k is one of the closed set of job kinds.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindImageGenerate, JobKindImageEdit, JobKindPrototypeGenerate,
		JobKindVideoGenerate, JobKindImageToVideo, JobKindVideoBgRemove:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job encapsulates one generation request and its lifecycle.
type Job struct {
	ID           string
	UserID       string
	Kind         JobKind
	Provider     string
	Model        string
	InputParams  Params
	Status       JobStatus
	OutputURLs   []string
	CostUSD      *float64
	ErrorMessage string
	Metadata     Params
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}
