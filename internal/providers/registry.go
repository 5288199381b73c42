package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
)

// Options configures vendor endpoints for the registry. Zero values fall back
// to the public API hosts, so tests can point adapters at a local server.
type Options struct {
	GeminiBaseURL string
	OpenAIBaseURL string
	VertexBaseURL string
	HTTPClient    *http.Client
}

// Registry constructs provider adapters on demand. Adapters are cheap
// per-request values bound to a caller credential; the registry only holds
// shared immutable wiring (HTTP client, endpoints, logger).
type Registry struct {
	opts   Options
	logger zerolog.Logger
}

func NewRegistry(opts Options, logger zerolog.Logger) *Registry {
	return &Registry{opts: opts, logger: logger}
}

// vertexCredential is the JSON credential blob providers on Vertex AI expect.
type vertexCredential struct {
	APIKey    string `json:"api_key"`
	ProjectID string `json:"project_id"`
}

// Resolve returns the Gateway for the named provider bound to credential.
// Unknown providers fail with domain.ErrUnsupportedProvider.
func (r *Registry) Resolve(provider, credential string) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini":
		return NewGemini(credential, r.opts.GeminiBaseURL, r.opts.HTTPClient, r.logger), nil
	case "openai":
		return NewOpenAI(credential, r.opts.OpenAIBaseURL, r.opts.HTTPClient, r.logger), nil
	case "sora":
		return NewSora(credential, r.opts.OpenAIBaseURL, r.opts.HTTPClient, r.logger), nil
	case "imagen":
		cred, err := parseVertexCredential(credential)
		if err != nil {
			return nil, fmt.Errorf("%w: imagen requires a JSON credential with api_key and project_id", domain.ErrInvalidCredential)
		}
		return NewImagen(cred.APIKey, cred.ProjectID, r.opts.VertexBaseURL, r.opts.HTTPClient, r.logger), nil
	case "veo":
		cred, err := parseVertexCredential(credential)
		if err != nil {
			// Plain API-key credentials are accepted for Veo; the project is
			// then expected to be encoded in the key's scope.
			cred = &vertexCredential{APIKey: credential}
		}
		return NewVeo(cred.APIKey, cred.ProjectID, r.opts.VertexBaseURL, r.opts.HTTPClient, r.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, provider)
	}
}

// Known reports whether name is a provider the registry can resolve.
func Known(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini", "openai", "sora", "imagen", "veo":
		return true
	}
	return false
}

func parseVertexCredential(credential string) (*vertexCredential, error) {
	var cred vertexCredential
	if err := json.Unmarshal([]byte(credential), &cred); err != nil {
		return nil, err
	}
	if cred.APIKey == "" {
		return nil, fmt.Errorf("api_key missing")
	}
	return &cred, nil
}
