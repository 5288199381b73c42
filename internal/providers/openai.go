package providers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	openaiImageModel     = "gpt-image-1"
	openaiVideoModel     = "sora-2"
	openaiMaxImages      = 4
)

// OpenAI adapts GPT Image 1 and Sora 2 behind one Gateway. It is the only
// provider implementing the full capability set.
type OpenAI struct {
	api apiClient
}

func NewOpenAI(apiKey, baseURL string, httpClient *http.Client, logger zerolog.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &OpenAI{
		api: newAPIClient(baseURL, httpClient, logger.With().Str("provider", "openai").Logger(), map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
	}
}

type openaiImageRequest struct {
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	Size       string `json:"size,omitempty"`
	Quality    string `json:"quality,omitempty"`
	Background string `json:"background,omitempty"`
	N          int    `json:"n,omitempty"`
	Image      string `json:"image,omitempty"`
}

type openaiImageResponse struct {
	Data []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
}

type openaiVideoRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Seconds int    `json:"seconds,omitempty"`
	Size    string `json:"size,omitempty"`
}

type openaiVideoResponse struct {
	URL string `json:"url"`
}

func (o *OpenAI) GenerateImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	n := params.GetInt("number_of_images", 1)
	if n > openaiMaxImages {
		n = openaiMaxImages
	}
	if n < 1 {
		n = 1
	}
	req := openaiImageRequest{
		Model:      openaiImageModel,
		Prompt:     enhanceImagePrompt(params.GetString("prompt", ""), params),
		Size:       params.GetString("size", "1024x1024"),
		Quality:    params.GetString("quality", "medium"),
		Background: params.GetString("background", "auto"),
		N:          n,
	}
	return o.images(ctx, "/images/generations", req)
}

func (o *OpenAI) EditImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	req := openaiImageRequest{
		Model:   openaiImageModel,
		Prompt:  params.GetString("transformation", ""),
		Size:    params.GetString("size", "1024x1024"),
		Quality: params.GetString("quality", "medium"),
		Image:   params.GetString("base_image", ""),
		N:       1,
	}
	return o.images(ctx, "/images/edits", req)
}

func (o *OpenAI) images(ctx context.Context, path string, req openaiImageRequest) ([]Artifact, error) {
	var resp openaiImageResponse
	if err := o.api.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(resp.Data))
	for _, item := range resp.Data {
		artifact := Artifact{URL: item.URL, MIME: "image/png"}
		if item.B64JSON != "" {
			if data, err := base64.StdEncoding.DecodeString(item.B64JSON); err == nil {
				artifact.Data = data
			}
		}
		if artifact.URL == "" && len(artifact.Data) == 0 {
			continue
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (o *OpenAI) GenerateVideo(ctx context.Context, params domain.Params) (*Artifact, error) {
	length := params.GetInt("length", 4)
	req := openaiVideoRequest{
		Model:   params.GetString("model", openaiVideoModel),
		Prompt:  enhanceVideoPrompt(params.GetString("prompt", ""), params),
		Seconds: length,
		Size:    soraSize(params.GetString("aspect_ratio", "16:9"), params.GetString("resolution", "720p")),
	}
	var resp openaiVideoResponse
	if err := o.api.postJSON(ctx, "/videos", req, &resp); err != nil {
		return nil, err
	}
	return &Artifact{URL: resp.URL, MIME: "video/mp4", Seconds: length}, nil
}

func (o *OpenAI) VideoFromImages(ctx context.Context, params domain.Params) (*Artifact, error) {
	length := params.GetInt("length", 8)
	prompt := buildReferencePrompt(params)
	req := openaiVideoRequest{
		Model:   params.GetString("model", openaiVideoModel),
		Prompt:  prompt,
		Seconds: length,
		Size:    soraSize(params.GetString("aspect_ratio", "16:9"), params.GetString("resolution", "720p")),
	}
	var resp openaiVideoResponse
	if err := o.api.postJSON(ctx, "/videos", req, &resp); err != nil {
		return nil, err
	}
	return &Artifact{URL: resp.URL, MIME: "video/mp4", Seconds: length}, nil
}

func buildReferencePrompt(params domain.Params) string {
	motion := params.GetString("motion_type", "camera_pan")
	transition := params.GetString("transition_style", "fade")
	prompt := "Create smooth video with " + motion + " and " + transition + " transitions"

	if images, ok := params["input_images"].([]any); ok && len(images) > 0 {
		var refs []string
		for _, img := range images {
			if m, ok := img.(map[string]any); ok {
				if u, ok := m["url"].(string); ok && u != "" {
					refs = append(refs, u)
				}
			}
		}
		if len(refs) > 0 {
			prompt += ". Reference images: " + strings.Join(refs, ", ")
		}
	}
	return prompt
}

func (o *OpenAI) CalculateCost(resource domain.ResourceType, quantity int, extra domain.Params) float64 {
	switch resource {
	case domain.ResourceTypeImage:
		return pricing.CalculateImageCost("openai", openaiImageModel, quantity,
			extra.GetString("size", "1024x1024"), extra.GetString("quality", "medium"))
	case domain.ResourceTypeVideo:
		return pricing.CalculateVideoCost("openai", extra.GetString("model", openaiVideoModel),
			quantity, extra.GetString("resolution", ""))
	}
	return 0.0
}

func (o *OpenAI) Supports(feature Feature) bool {
	switch feature {
	case FeatureImageGeneration, FeatureImageEditing, FeatureVideoGeneration, FeatureVideoFromImages:
		return true
	}
	return false
}

var _ Gateway = (*OpenAI)(nil)
