package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
)

const defaultCallTimeout = 120 * time.Second

// apiClient carries the shared plumbing for vendor REST calls: base URL,
// credential header injection and uniform error mapping.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	headers    map[string]string
}

func newAPIClient(baseURL string, httpClient *http.Client, logger zerolog.Logger, headers map[string]string) apiClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultCallTimeout}
	}
	return apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		headers:    headers,
	}
}

type vendorError struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// postJSON executes one vendor call and decodes the response into out.
// Transport and status failures are translated into the uniform provider
// failure kinds so no caller depends on vendor-specific error shapes.
func (c apiClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return mapStatusError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
		}
	}
	return nil
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrProviderTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}

func mapStatusError(status int, body []byte) error {
	message := vendorMessage(body)
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderTimeout, status, message)
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, status, message)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderRejected, status, message)
	}
}

func vendorMessage(body []byte) string {
	var apiErr vendorError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

func unsupported(provider string, feature Feature) error {
	return fmt.Errorf("%w: %s does not support %s", domain.ErrUnsupportedOperation, provider, feature)
}
