package pricing

import (
	"strings"

	"github.com/sungminna/marketer/internal/domain"
)

// Per-image rates keyed by provider then model.
var imageRates = map[string]map[string]float64{
	"gemini": {
		"gemini-2.5-flash-image": 0.039,
	},
	"imagen": {
		"imagen-4.0-fast-generate-001": 0.02,
	},
}

// openaiImageRates prices gpt-image-1 by (size, quality).
var openaiImageRates = map[[2]string]float64{
	{"1024x1024", "medium"}: 0.042,
	{"1024x1024", "high"}:   0.167,
	{"1024x1536", "medium"}: 0.063,
	{"1024x1536", "high"}:   0.250,
	{"1536x1024", "medium"}: 0.063,
	{"1536x1024", "high"}:   0.250,
}

const openaiImageDefaultRate = 0.042

// imageDefaultRates covers models missing from the table above so that a
// pricing gap never blocks job creation.
var imageDefaultRates = map[string]float64{
	"gemini": 0.039,
	"imagen": 0.02,
}

// Per-second video rates.
const (
	veoStandardRate = 0.40
	veoFastRate     = 0.15
	soraBaseRate    = 0.10
	soraProRate     = 0.50
)

// CalculateImageCost returns the USD cost of generating quantity images.
// Unknown (provider, model) combinations fall back to a provider default, or
// zero for entirely unknown providers, so admission is never blocked by a
// pricing-table gap.
func CalculateImageCost(provider, model string, quantity int, size, quality string) float64 {
	switch provider {
	case "openai":
		if size == "" {
			size = "1024x1024"
		}
		if quality == "" {
			quality = "medium"
		}
		rate, ok := openaiImageRates[[2]string{size, quality}]
		if !ok {
			rate = openaiImageDefaultRate
		}
		return float64(quantity) * rate
	case "gemini", "imagen":
		rate, ok := imageRates[provider][model]
		if !ok {
			rate = imageDefaultRates[provider]
		}
		return float64(quantity) * rate
	}
	return 0.0
}

// CalculateVideoCost returns the USD cost of durationSeconds of generated
// video. Sora pricing is resolution-tiered; veo pricing follows the model
// family (standard vs fast).
func CalculateVideoCost(provider, model string, durationSeconds int, resolution string) float64 {
	switch provider {
	case "veo":
		rate := veoFastRate
		if strings.Contains(model, "standard") {
			rate = veoStandardRate
		}
		return float64(durationSeconds) * rate
	case "sora", "openai":
		rate := soraBaseRate
		if strings.Contains(resolution, "1024x1792") || strings.Contains(resolution, "1792x1024") {
			rate = soraProRate
		}
		return float64(durationSeconds) * rate
	}
	return 0.0
}

// EstimateCost computes an advisory pre-admission estimate from opaque job
// params, dispatching on the declared resource_type.
func EstimateCost(params domain.Params) float64 {
	provider := params.GetString("provider", "")
	model := params.GetString("model", "")

	switch params.GetString("resource_type", "image") {
	case "video":
		duration := params.GetInt("length", 4)
		resolution := params.GetString("resolution", "720p")
		return CalculateVideoCost(provider, model, duration, resolution)
	default:
		quantity := params.GetInt("number_of_images", 1)
		size := params.GetString("size", "1024x1024")
		quality := params.GetString("quality", "medium")
		return CalculateImageCost(provider, model, quantity, size, quality)
	}
}

// RecommendProvider picks a provider for the given requirements. It is a pure
// lookup keyed by resource type and priority (cost, quality or balanced).
func RecommendProvider(requirements domain.Params) string {
	resourceType := requirements.GetString("resource_type", "image")
	priority := requirements.GetString("priority", "balanced")

	switch resourceType {
	case "image":
		switch priority {
		case "cost":
			return "imagen"
		case "quality":
			return "openai"
		default:
			return "gemini"
		}
	case "video":
		switch priority {
		case "cost", "quality":
			return "sora"
		default:
			return "veo"
		}
	}
	return "gemini"
}
