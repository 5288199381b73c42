package pricing

import (
	"math"
	"testing"

	"github.com/sungminna/marketer/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateImageCostGemini(t *testing.T) {
	got := CalculateImageCost("gemini", "gemini-2.5-flash-image", 4, "", "")
	if want := 4 * 0.039; !almostEqual(got, want) {
		t.Fatalf("cost = %v, want %v", got, want)
	}
}

func TestCalculateImageCostOpenAITiers(t *testing.T) {
	cases := []struct {
		size    string
		quality string
		want    float64
	}{
		{"1024x1024", "medium", 0.042},
		{"1024x1024", "high", 0.167},
		{"1024x1536", "high", 0.250},
		{"", "", 0.042},
		{"800x600", "ultra", 0.042},
	}
	for _, tc := range cases {
		got := CalculateImageCost("openai", "gpt-image-1", 1, tc.size, tc.quality)
		if !almostEqual(got, tc.want) {
			t.Fatalf("openai (%q,%q) = %v, want %v", tc.size, tc.quality, got, tc.want)
		}
	}
}

func TestCalculateImageCostUnknownProvider(t *testing.T) {
	if got := CalculateImageCost("midjourney", "v6", 10, "", ""); got != 0 {
		t.Fatalf("unknown provider cost = %v, want 0", got)
	}
}

func TestCalculateImageCostUnknownModelFallsBack(t *testing.T) {
	got := CalculateImageCost("imagen", "imagen-5.0-preview", 2, "", "")
	if want := 2 * 0.02; !almostEqual(got, want) {
		t.Fatalf("cost = %v, want %v", got, want)
	}
}

func TestCalculateVideoCostVeo(t *testing.T) {
	if got := CalculateVideoCost("veo", "veo-3.1-fast", 10, ""); !almostEqual(got, 1.50) {
		t.Fatalf("veo fast cost = %v, want 1.50", got)
	}
	if got := CalculateVideoCost("veo", "veo-3.1-standard", 10, ""); !almostEqual(got, 4.00) {
		t.Fatalf("veo standard cost = %v, want 4.00", got)
	}
}

func TestCalculateVideoCostSoraResolutionTiers(t *testing.T) {
	if got := CalculateVideoCost("sora", "sora-2", 8, "720x1280"); !almostEqual(got, 0.80) {
		t.Fatalf("sora base cost = %v, want 0.80", got)
	}
	if got := CalculateVideoCost("sora", "sora-2", 8, "1024x1792"); !almostEqual(got, 4.00) {
		t.Fatalf("sora pro cost = %v, want 4.00", got)
	}
	if got := CalculateVideoCost("openai", "sora-2", 5, "1792x1024"); !almostEqual(got, 2.50) {
		t.Fatalf("openai landscape pro cost = %v, want 2.50", got)
	}
}

func TestEstimateCostDispatchesOnResourceType(t *testing.T) {
	image := domain.Params{
		"provider":         "gemini",
		"model":            "gemini-2.5-flash-image",
		"resource_type":    "image",
		"number_of_images": 3,
	}
	if got := EstimateCost(image); !almostEqual(got, 3*0.039) {
		t.Fatalf("image estimate = %v, want %v", got, 3*0.039)
	}

	video := domain.Params{
		"provider":      "veo",
		"model":         "veo-3.1-fast",
		"resource_type": "video",
		"length":        8,
	}
	if got := EstimateCost(video); !almostEqual(got, 1.20) {
		t.Fatalf("video estimate = %v, want 1.20", got)
	}

	// Missing fields read defaults: 1 image, 4 seconds.
	if got := EstimateCost(domain.Params{"provider": "imagen"}); !almostEqual(got, 0.02) {
		t.Fatalf("default image estimate = %v, want 0.02", got)
	}
}

func TestRecommendProvider(t *testing.T) {
	cases := []struct {
		resource string
		priority string
		want     string
	}{
		{"image", "cost", "imagen"},
		{"image", "quality", "openai"},
		{"image", "balanced", "gemini"},
		{"video", "cost", "sora"},
		{"video", "quality", "sora"},
		{"video", "balanced", "veo"},
		{"audio", "cost", "gemini"},
	}
	for _, tc := range cases {
		req := domain.Params{"resource_type": tc.resource, "priority": tc.priority}
		if got := RecommendProvider(req); got != tc.want {
			t.Fatalf("recommend(%s,%s) = %q, want %q", tc.resource, tc.priority, got, tc.want)
		}
	}
}
