package audit

import "strings"

// sensitiveKeys are matched case-insensitively as substrings of detail keys.
var sensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",
	"credential",
}

// IsSensitiveKey reports whether a details key must be stripped before storage.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of details without sensitive keys. Nested maps and
// slices of maps are sanitized recursively. The input is never modified.
func Sanitize(details map[string]any) map[string]any {
	if details == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if IsSensitiveKey(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Sanitize(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			if !IsSensitiveKey(k) {
				m[k] = s
			}
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = sanitizeValue(t[i])
		}
		return out
	default:
		return v
	}
}
