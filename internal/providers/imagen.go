package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
)

const (
	vertexDefaultBaseURL = "https://aiplatform.googleapis.com/v1"
	vertexLocation       = "us-central1"
	imagenModel          = "imagen-4.0-fast-generate-001"
	imagenMaxImages      = 4
)

// Imagen adapts the Vertex AI Imagen predict API. Requires a project id in
// addition to the API key; both arrive via the JSON credential blob.
type Imagen struct {
	api       apiClient
	projectID string
}

func NewImagen(apiKey, projectID, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Imagen {
	if baseURL == "" {
		baseURL = vertexDefaultBaseURL
	}
	return &Imagen{
		api: newAPIClient(baseURL, httpClient, logger.With().Str("provider", "imagen").Logger(), map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
		projectID: projectID,
	}
}

type vertexPredictRequest struct {
	Instances  []map[string]any `json:"instances"`
	Parameters map[string]any   `json:"parameters,omitempty"`
}

type vertexPredictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
		MimeType           string `json:"mimeType,omitempty"`
		VideoURI           string `json:"videoUri,omitempty"`
	} `json:"predictions"`
}

func (i *Imagen) predictPath(model string) string {
	return fmt.Sprintf("/projects/%s/locations/%s/publishers/google/models/%s:predict",
		i.projectID, vertexLocation, model)
}

func (i *Imagen) GenerateImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	quantity := params.GetInt("number_of_images", 1)
	if quantity > imagenMaxImages {
		quantity = imagenMaxImages
	}
	if quantity < 1 {
		quantity = 1
	}
	req := vertexPredictRequest{
		Instances: []map[string]any{{
			"prompt": enhanceImagePrompt(params.GetString("prompt", ""), params),
		}},
		Parameters: map[string]any{
			"sampleCount": quantity,
			"aspectRatio": params.GetString("aspect_ratio", "1:1"),
		},
	}
	return i.predictImages(ctx, params.GetString("model", imagenModel), req)
}

func (i *Imagen) EditImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	instance := map[string]any{
		"prompt": params.GetString("transformation", ""),
	}
	if data, mime, ok := decodeInlineImage(params.GetString("base_image", "")); ok {
		instance["image"] = map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(data),
			"mimeType":           mime,
		}
	}
	req := vertexPredictRequest{
		Instances:  []map[string]any{instance},
		Parameters: map[string]any{"sampleCount": 1, "editMode": params.GetString("edit_type", "inpaint")},
	}
	return i.predictImages(ctx, params.GetString("model", imagenModel), req)
}

func (i *Imagen) predictImages(ctx context.Context, model string, req vertexPredictRequest) ([]Artifact, error) {
	var resp vertexPredictResponse
	if err := i.api.postJSON(ctx, i.predictPath(model), req, &resp); err != nil {
		return nil, err
	}
	var artifacts []Artifact
	for _, p := range resp.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			continue
		}
		mime := p.MimeType
		if mime == "" {
			mime = "image/png"
		}
		artifacts = append(artifacts, Artifact{Data: data, MIME: mime})
	}
	return artifacts, nil
}

func (i *Imagen) GenerateVideo(ctx context.Context, params domain.Params) (*Artifact, error) {
	return nil, unsupported("imagen", FeatureVideoGeneration)
}

func (i *Imagen) VideoFromImages(ctx context.Context, params domain.Params) (*Artifact, error) {
	return nil, unsupported("imagen", FeatureVideoFromImages)
}

func (i *Imagen) CalculateCost(resource domain.ResourceType, quantity int, extra domain.Params) float64 {
	if resource != domain.ResourceTypeImage {
		return 0.0
	}
	return pricing.CalculateImageCost("imagen", extra.GetString("model", imagenModel), quantity, "", "")
}

func (i *Imagen) Supports(feature Feature) bool {
	return feature == FeatureImageGeneration || feature == FeatureImageEditing
}

var _ Gateway = (*Imagen)(nil)
