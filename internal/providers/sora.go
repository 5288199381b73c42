package providers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
)

const soraModel = "sora-2"

// Sora adapts the standalone Sora 2 video API. Video only; image operations
// are unsupported. Shares the OpenAI wire shapes but is addressed as its own
// provider with its own credential.
type Sora struct {
	api apiClient
}

func NewSora(apiKey, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Sora {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &Sora{
		api: newAPIClient(baseURL, httpClient, logger.With().Str("provider", "sora").Logger(), map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
	}
}

func (s *Sora) GenerateImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	return nil, unsupported("sora", FeatureImageGeneration)
}

func (s *Sora) EditImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	return nil, unsupported("sora", FeatureImageEditing)
}

func (s *Sora) GenerateVideo(ctx context.Context, params domain.Params) (*Artifact, error) {
	length := params.GetInt("length", 4)
	req := openaiVideoRequest{
		Model:   params.GetString("model", soraModel),
		Prompt:  enhanceVideoPrompt(params.GetString("prompt", ""), params),
		Seconds: length,
		Size:    soraSize(params.GetString("aspect_ratio", "16:9"), params.GetString("resolution", "720p")),
	}
	var resp openaiVideoResponse
	if err := s.api.postJSON(ctx, "/videos", req, &resp); err != nil {
		return nil, err
	}
	return &Artifact{URL: resp.URL, MIME: "video/mp4", Seconds: length}, nil
}

func (s *Sora) VideoFromImages(ctx context.Context, params domain.Params) (*Artifact, error) {
	length := params.GetInt("length", 8)
	req := openaiVideoRequest{
		Model:   params.GetString("model", soraModel),
		Prompt:  buildReferencePrompt(params),
		Seconds: length,
		Size:    soraSize(params.GetString("aspect_ratio", "16:9"), params.GetString("resolution", "720p")),
	}
	var resp openaiVideoResponse
	if err := s.api.postJSON(ctx, "/videos", req, &resp); err != nil {
		return nil, err
	}
	return &Artifact{URL: resp.URL, MIME: "video/mp4", Seconds: length}, nil
}

func (s *Sora) CalculateCost(resource domain.ResourceType, quantity int, extra domain.Params) float64 {
	if resource != domain.ResourceTypeVideo {
		return 0.0
	}
	return pricing.CalculateVideoCost("sora", extra.GetString("model", soraModel), quantity,
		extra.GetString("resolution", ""))
}

func (s *Sora) Supports(feature Feature) bool {
	return feature == FeatureVideoGeneration || feature == FeatureVideoFromImages
}

var _ Gateway = (*Sora)(nil)
