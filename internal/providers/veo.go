package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
)

const (
	veoDefaultModel   = "veo-3.1-fast-generate-preview-001"
	veoMaxRefImages   = 3
	veoDefaultSeconds = 4
)

// Veo adapts the Vertex AI Veo 3.1 video models. Video only.
type Veo struct {
	api       apiClient
	projectID string
}

func NewVeo(apiKey, projectID, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Veo {
	if baseURL == "" {
		baseURL = vertexDefaultBaseURL
	}
	return &Veo{
		api: newAPIClient(baseURL, httpClient, logger.With().Str("provider", "veo").Logger(), map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
		projectID: projectID,
	}
}

func (v *Veo) GenerateImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	return nil, unsupported("veo", FeatureImageGeneration)
}

func (v *Veo) EditImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	return nil, unsupported("veo", FeatureImageEditing)
}

func (v *Veo) GenerateVideo(ctx context.Context, params domain.Params) (*Artifact, error) {
	model := params.GetString("model", veoDefaultModel)
	length := params.GetInt("length", veoDefaultSeconds)
	req := vertexPredictRequest{
		Instances: []map[string]any{{
			"prompt": enhanceVideoPrompt(params.GetString("prompt", ""), params),
		}},
		Parameters: map[string]any{
			"resolution":   veoSize(params.GetString("resolution", "720p")),
			"includeAudio": audioEnabled(params),
		},
	}
	return v.predictVideo(ctx, model, req, length)
}

func (v *Veo) VideoFromImages(ctx context.Context, params domain.Params) (*Artifact, error) {
	length := params.GetInt("length", veoDefaultSeconds)
	refs := referenceImageURLs(params, veoMaxRefImages)
	motion := params.GetString("motion_type", "camera_pan")
	req := vertexPredictRequest{
		Instances: []map[string]any{{
			"prompt":          "Generate smooth video with " + motion,
			"referenceImages": refs,
		}},
		Parameters: map[string]any{
			"resolution":   veoSize(params.GetString("resolution", "720p")),
			"includeAudio": audioEnabled(params),
		},
	}
	return v.predictVideo(ctx, veoDefaultModel, req, length)
}

func (v *Veo) predictVideo(ctx context.Context, model string, req vertexPredictRequest, seconds int) (*Artifact, error) {
	path := fmt.Sprintf("/projects/%s/locations/%s/publishers/google/models/%s:predict",
		v.projectID, vertexLocation, model)
	var resp vertexPredictResponse
	if err := v.api.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].VideoURI == "" {
		return nil, fmt.Errorf("%w: empty video response", domain.ErrProviderUnavailable)
	}
	return &Artifact{URL: resp.Predictions[0].VideoURI, MIME: "video/mp4", Seconds: seconds}, nil
}

func audioEnabled(params domain.Params) bool {
	if v, ok := params["audio"].(bool); ok {
		return v
	}
	return true
}

func referenceImageURLs(params domain.Params, max int) []string {
	images, ok := params["input_images"].([]any)
	if !ok {
		return nil
	}
	if len(images) > max {
		images = images[:max]
	}
	var refs []string
	for _, img := range images {
		if m, ok := img.(map[string]any); ok {
			if u, ok := m["url"].(string); ok && u != "" {
				refs = append(refs, u)
			}
		}
	}
	return refs
}

func (v *Veo) CalculateCost(resource domain.ResourceType, quantity int, extra domain.Params) float64 {
	if resource != domain.ResourceTypeVideo {
		return 0.0
	}
	return pricing.CalculateVideoCost("veo", extra.GetString("model", "veo-3.1-fast"), quantity, "")
}

func (v *Veo) Supports(feature Feature) bool {
	return feature == FeatureVideoGeneration || feature == FeatureVideoFromImages
}

var _ Gateway = (*Veo)(nil)
