package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(Options{}, testLogger())

	cases := []struct {
		provider   string
		credential string
	}{
		{"gemini", "key"},
		{"openai", "key"},
		{"sora", "key"},
		{"imagen", `{"api_key":"k","project_id":"p"}`},
		{"veo", `{"api_key":"k","project_id":"p"}`},
	}
	for _, tc := range cases {
		gw, err := reg.Resolve(tc.provider, tc.credential)
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", tc.provider, err)
		}
		if gw == nil {
			t.Fatalf("Resolve(%s) returned nil gateway", tc.provider)
		}
	}
}

func TestRegistryResolveUnknownProvider(t *testing.T) {
	reg := NewRegistry(Options{}, testLogger())
	_, err := reg.Resolve("midjourney", "key")
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Fatalf("err = %v, want ErrUnsupportedProvider", err)
	}
}

func TestRegistryResolveImagenBadCredential(t *testing.T) {
	reg := NewRegistry(Options{}, testLogger())
	_, err := reg.Resolve("imagen", "plain-key")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestCapabilitySets(t *testing.T) {
	reg := NewRegistry(Options{}, testLogger())
	cases := []struct {
		provider   string
		credential string
		supported  []Feature
		denied     []Feature
	}{
		{"gemini", "k", []Feature{FeatureImageGeneration, FeatureImageEditing}, []Feature{FeatureVideoGeneration, FeatureVideoFromImages}},
		{"imagen", `{"api_key":"k"}`, []Feature{FeatureImageGeneration, FeatureImageEditing}, []Feature{FeatureVideoGeneration}},
		{"veo", "k", []Feature{FeatureVideoGeneration, FeatureVideoFromImages}, []Feature{FeatureImageGeneration, FeatureImageEditing}},
		{"sora", "k", []Feature{FeatureVideoGeneration, FeatureVideoFromImages}, []Feature{FeatureImageGeneration}},
		{"openai", "k", []Feature{FeatureImageGeneration, FeatureImageEditing, FeatureVideoGeneration, FeatureVideoFromImages}, nil},
	}
	for _, tc := range cases {
		gw, err := reg.Resolve(tc.provider, tc.credential)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tc.provider, err)
		}
		for _, f := range tc.supported {
			if !gw.Supports(f) {
				t.Fatalf("%s should support %s", tc.provider, f)
			}
		}
		for _, f := range tc.denied {
			if gw.Supports(f) {
				t.Fatalf("%s should not support %s", tc.provider, f)
			}
		}
	}
}

func TestUnsupportedOperationsFailExplicitly(t *testing.T) {
	gemini := NewGemini("k", "", nil, testLogger())
	if _, err := gemini.GenerateVideo(context.Background(), domain.Params{}); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("gemini GenerateVideo err = %v, want ErrUnsupportedOperation", err)
	}

	veo := NewVeo("k", "p", "", nil, testLogger())
	if _, err := veo.GenerateImage(context.Background(), domain.Params{}); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("veo GenerateImage err = %v, want ErrUnsupportedOperation", err)
	}

	sora := NewSora("k", "", nil, testLogger())
	if _, err := sora.EditImage(context.Background(), domain.Params{}); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("sora EditImage err = %v, want ErrUnsupportedOperation", err)
	}
}

func TestGeminiGenerateImageDecodesInlineData(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash-image:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "secret" {
			t.Errorf("api key header = %q", got)
		}
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{
						{"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(png)}},
						{"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(png)}},
					},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	gemini := NewGemini("secret", srv.URL, srv.Client(), testLogger())
	artifacts, err := gemini.GenerateImage(context.Background(), domain.Params{"prompt": "logo", "number_of_images": 2})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}
	if string(artifacts[0].Data) != string(png) || artifacts[0].MIME != "image/png" {
		t.Fatalf("unexpected artifact %+v", artifacts[0])
	}
}

func TestErrorMappingByStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrProviderRejected},
		{http.StatusUnauthorized, domain.ErrProviderRejected},
		{http.StatusRequestTimeout, domain.ErrProviderTimeout},
		{http.StatusTooManyRequests, domain.ErrProviderUnavailable},
		{http.StatusInternalServerError, domain.ErrProviderUnavailable},
		{http.StatusGatewayTimeout, domain.ErrProviderTimeout},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"nope"}}`, tc.status)
		}))
		openai := NewOpenAI("k", srv.URL, srv.Client(), testLogger())
		_, err := openai.GenerateImage(context.Background(), domain.Params{"prompt": "x"})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d mapped to %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestOpenAIVideoCarriesRequestedSeconds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiVideoRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Seconds != 8 {
			t.Errorf("seconds = %d, want 8", req.Seconds)
		}
		if req.Size != "1024x1792" {
			t.Errorf("size = %q, want 1024x1792", req.Size)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/v.mp4"})
	}))
	defer srv.Close()

	sora := NewSora("k", srv.URL, srv.Client(), testLogger())
	artifact, err := sora.GenerateVideo(context.Background(), domain.Params{
		"prompt":     "hero clip",
		"length":     8,
		"resolution": "1080p",
	})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if artifact.Seconds != 8 || artifact.URL != "https://cdn.example.com/v.mp4" {
		t.Fatalf("artifact = %+v", artifact)
	}
}

func TestEnhanceImagePrompt(t *testing.T) {
	params := domain.Params{
		"style_preset": "photoreal",
		"design_tokens": map[string]any{
			"primary_color": "#ff0000",
			"tone":          "bold",
		},
	}
	got := enhanceImagePrompt("a sneaker", params)
	want := "a sneaker. Style: photorealistic, high detail, professional photography. Primary color: #ff0000. Tone: bold"
	if got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
}
