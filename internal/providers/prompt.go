package providers

import (
	"encoding/base64"
	"strings"

	"github.com/sungminna/marketer/internal/domain"
)

var stylePresets = map[string]string{
	"photoreal":    "photorealistic, high detail, professional photography",
	"illustration": "digital illustration, artistic, hand-drawn style",
	"technical":    "technical diagram, clean lines, precise",
	"minimal":      "minimalist design, simple, clean aesthetic",
}

// enhanceImagePrompt appends style preset and design-token hints to the user
// prompt. Keys are optional; absent keys leave the prompt untouched.
func enhanceImagePrompt(prompt string, params domain.Params) string {
	var b strings.Builder
	b.WriteString(prompt)

	if preset, ok := stylePresets[params.GetString("style_preset", "")]; ok {
		b.WriteString(". Style: " + preset)
	}

	if tokens, ok := params["design_tokens"].(map[string]any); ok {
		appendToken(&b, tokens, "primary_color", "Primary color")
		appendToken(&b, tokens, "tone", "Tone")
		appendToken(&b, tokens, "lighting", "Lighting")
	}
	return b.String()
}

// enhanceVideoPrompt appends cinematography hints and brand intro/outro text.
func enhanceVideoPrompt(prompt string, params domain.Params) string {
	enhanced := prompt

	if cine, ok := params["cinematography"].(map[string]any); ok {
		var parts []string
		if v, ok := cine["camera_movement"].(string); ok && v != "" {
			parts = append(parts, "camera movement: "+v)
		}
		if v, ok := cine["shot_type"].(string); ok && v != "" {
			parts = append(parts, v+" shot")
		}
		if v, ok := cine["lighting"].(string); ok && v != "" {
			parts = append(parts, v+" lighting")
		}
		if v, ok := cine["color_grading"].(string); ok && v != "" {
			parts = append(parts, v+" color grading")
		}
		if len(parts) > 0 {
			enhanced += ". " + strings.Join(parts, ", ")
		}
	}

	if brand, ok := params["brand_elements"].(map[string]any); ok {
		if v, ok := brand["intro_text"].(string); ok && v != "" {
			enhanced = "Start with text: " + v + ". " + enhanced
		}
		if v, ok := brand["outro_text"].(string); ok && v != "" {
			enhanced += ". End with text: " + v
		}
	}
	return enhanced
}

func appendToken(b *strings.Builder, tokens map[string]any, key, label string) {
	if v, ok := tokens[key].(string); ok && v != "" {
		b.WriteString(". " + label + ": " + v)
	}
}

// decodeInlineImage accepts a raw or data-URI base64 image string and returns
// the decoded bytes plus a MIME guess. HTTP URLs are not fetched here.
func decodeInlineImage(value string) ([]byte, string, bool) {
	if value == "" || strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return nil, "", false
	}
	mime := "image/png"
	if strings.HasPrefix(value, "data:") {
		rest := strings.TrimPrefix(value, "data:")
		if idx := strings.Index(rest, ";base64,"); idx >= 0 {
			mime = rest[:idx]
			value = rest[idx+len(";base64,"):]
		}
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(data) == 0 {
		return nil, "", false
	}
	return data, mime, true
}

// soraSizeMap maps (aspect ratio, resolution) pairs onto Sora size strings.
var soraSizeMap = map[[2]string]string{
	{"16:9", "720p"}:  "720x1280",
	{"16:9", "1080p"}: "1024x1792",
	{"9:16", "720p"}:  "1280x720",
	{"9:16", "1080p"}: "1792x1024",
	{"1:1", "720p"}:   "720x720",
	{"1:1", "1080p"}:  "1024x1024",
}

func soraSize(aspectRatio, resolution string) string {
	if size, ok := soraSizeMap[[2]string{aspectRatio, resolution}]; ok {
		return size
	}
	return "720x1280"
}

func veoSize(resolution string) string {
	if resolution == "1080p" {
		return "1280x720"
	}
	return "720x1280"
}
