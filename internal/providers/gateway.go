package providers

import (
	"context"

	"github.com/sungminna/marketer/internal/domain"
)

// Feature names the optional capabilities a provider may implement.
type Feature string

const (
	FeatureImageGeneration Feature = "image_generation"
	FeatureImageEditing    Feature = "image_editing"
	FeatureVideoGeneration Feature = "video_generation"
	FeatureVideoFromImages Feature = "video_from_images"
)

// Artifact is the normalized output of any provider call. Either Data or URL
// is populated depending on how the vendor returns assets.
type Artifact struct {
	Data    []byte
	URL     string
	MIME    string
	Width   int
	Height  int
	Seconds int
}

// Gateway is the capability contract every provider adapter implements.
// Adapters route opaque params to the correct vendor call and map
// vendor-specific failures into the uniform error kinds; they never mutate
// persisted state. Operations outside the adapter's feature set return
// domain.ErrUnsupportedOperation.
type Gateway interface {
	GenerateImage(ctx context.Context, params domain.Params) ([]Artifact, error)
	EditImage(ctx context.Context, params domain.Params) ([]Artifact, error)
	GenerateVideo(ctx context.Context, params domain.Params) (*Artifact, error)
	VideoFromImages(ctx context.Context, params domain.Params) (*Artifact, error)
	CalculateCost(resource domain.ResourceType, quantity int, extra domain.Params) float64
	Supports(feature Feature) bool
}
