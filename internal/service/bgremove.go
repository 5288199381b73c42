package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/providers"
)

// HTTPBackgroundRemover calls a hosted video matting endpoint. The endpoint
// accepts a source video URL and returns a URL to the processed clip.
type HTTPBackgroundRemover struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewHTTPBackgroundRemover(endpoint, apiKey string, httpClient *http.Client, logger zerolog.Logger) *HTTPBackgroundRemover {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPBackgroundRemover{endpoint: endpoint, apiKey: apiKey, httpClient: httpClient, logger: logger}
}

type bgRemoveRequest struct {
	VideoURL     string `json:"video_url"`
	OutputFormat string `json:"output_format"`
}

type bgRemoveResponse struct {
	VideoURL string `json:"video_url"`
	Error    string `json:"error,omitempty"`
}

func (r *HTTPBackgroundRemover) RemoveBackground(ctx context.Context, videoURL string, params domain.Params) (*providers.Artifact, error) {
	if videoURL == "" {
		return nil, fmt.Errorf("%w: video_url is required", domain.ErrValidation)
	}
	body, err := json.Marshal(bgRemoveRequest{
		VideoURL:     videoURL,
		OutputFormat: params.GetString("output_format", "mp4"),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: background removal: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: background removal: HTTP %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var out bgRemoveResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: background removal: bad response: %v", domain.ErrProviderRejected, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: background removal: %s", domain.ErrProviderRejected, out.Error)
	}
	if out.VideoURL == "" {
		return nil, fmt.Errorf("%w: background removal returned no video", domain.ErrProviderRejected)
	}
	return &providers.Artifact{URL: out.VideoURL, MIME: "video/mp4"}, nil
}
