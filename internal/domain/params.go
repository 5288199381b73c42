package domain

import "encoding/json"

// Params is an opaque key-value bag validated at the edge. The core never
// assumes a key exists; callers read optional fields with defaults.
type Params map[string]any

// GetString returns the string stored under key, or fallback when the key is
// absent or holds a non-string value.
func (p Params) GetString(key, fallback string) string {
	if p == nil {
		return fallback
	}
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// GetInt returns the integer stored under key. JSON decoding produces
// float64 for numbers, so both representations are accepted.
func (p Params) GetInt(key string, fallback int) int {
	if p == nil {
		return fallback
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// Merge overlays p on top of base and returns the combined map. Keys in p win
// on conflict; neither input is mutated.
func (p Params) Merge(base Params) Params {
	merged := make(Params, len(base)+len(p))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range p {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of the params map.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// MarshalParams serializes params for JSONB storage, defaulting to an empty
// object so the column never holds SQL null.
func MarshalParams(p Params) []byte {
	if p == nil {
		p = Params{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// UnmarshalParams decodes JSONB bytes into params, tolerating empty input.
func UnmarshalParams(raw []byte) Params {
	if len(raw) == 0 {
		return Params{}
	}
	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return Params{}
	}
	if p == nil {
		return Params{}
	}
	return p
}
