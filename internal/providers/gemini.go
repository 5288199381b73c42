package providers

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/pricing"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiImageModel     = "gemini-2.5-flash-image"
	geminiMaxImages      = 4
)

// Gemini adapts the Gemini 2.5 Flash Image API to the Gateway contract.
// Image generation and editing only; video operations are unsupported.
type Gemini struct {
	api apiClient
}

func NewGemini(apiKey, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Gemini {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &Gemini{
		api: newAPIClient(baseURL, httpClient, logger.With().Str("provider", "gemini").Logger(), map[string]string{
			"x-goog-api-key": apiKey,
		}),
	}
}

type geminiPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	} `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig *struct {
		CandidateCount int `json:"candidateCount,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) GenerateImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	prompt := enhanceImagePrompt(params.GetString("prompt", ""), params)
	quantity := params.GetInt("number_of_images", 4)
	if quantity > geminiMaxImages {
		quantity = geminiMaxImages
	}
	if quantity < 1 {
		quantity = 1
	}
	return g.invoke(ctx, []geminiPart{{Text: prompt}}, quantity)
}

func (g *Gemini) EditImage(ctx context.Context, params domain.Params) ([]Artifact, error) {
	transformation := params.GetString("transformation", "")
	editType := params.GetString("edit_type", "modify")
	baseImage := params.GetString("base_image", "")

	parts := []geminiPart{{Text: "Apply " + editType + " edit: " + transformation}}
	if data, mime, ok := decodeInlineImage(baseImage); ok {
		part := geminiPart{}
		part.InlineData = &struct {
			MimeType string `json:"mimeType,omitempty"`
			Data     string `json:"data,omitempty"`
		}{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}
		parts = append(parts, part)
	}
	return g.invoke(ctx, parts, 1)
}

func (g *Gemini) invoke(ctx context.Context, parts []geminiPart, quantity int) ([]Artifact, error) {
	req := geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	var resp geminiGenerateResponse
	if err := g.api.postJSON(ctx, "/models/"+geminiImageModel+":generateContent", req, &resp); err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				continue
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			artifacts = append(artifacts, Artifact{Data: data, MIME: mime})
			if len(artifacts) >= quantity {
				return artifacts, nil
			}
		}
	}
	return artifacts, nil
}

func (g *Gemini) GenerateVideo(ctx context.Context, params domain.Params) (*Artifact, error) {
	return nil, unsupported("gemini", FeatureVideoGeneration)
}

func (g *Gemini) VideoFromImages(ctx context.Context, params domain.Params) (*Artifact, error) {
	return nil, unsupported("gemini", FeatureVideoFromImages)
}

func (g *Gemini) CalculateCost(resource domain.ResourceType, quantity int, extra domain.Params) float64 {
	if resource != domain.ResourceTypeImage {
		return 0.0
	}
	return pricing.CalculateImageCost("gemini", extra.GetString("model", geminiImageModel), quantity, "", "")
}

func (g *Gemini) Supports(feature Feature) bool {
	return feature == FeatureImageGeneration || feature == FeatureImageEditing
}

var _ Gateway = (*Gemini)(nil)
