package masking

import "strings"

const maskToken = "****"

// sensitiveKeys are metadata keys whose values never reach the audit table
// or logs in clear text.
var sensitiveKeys = []string{"token", "secret", "password", "signature"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
// Provider prefixes such as "cus_" are preserved.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	return prefix + maskTail(remainder)
}

// MaskURLToken masks the final path segment of a URL, e.g. an invite link.
func MaskURLToken(rawURL string) string {
	idx := strings.LastIndex(rawURL, "/")
	if idx == -1 || idx == len(rawURL)-1 {
		return MaskSecret(rawURL)
	}
	// Tokens are base64url and may contain underscores, so no prefix is kept.
	return rawURL[:idx+1] + maskTail(rawURL[idx+1:])
}

func maskTail(value string) string {
	if len(value) <= 4 {
		return maskToken
	}
	return maskToken + value[len(value)-4:]
}

// RedactSensitive returns a copy of input with values under sensitive keys
// masked. Nested maps are walked.
func RedactSensitive(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if isSensitive(trimmedKey) {
			out[trimmedKey] = maskValue(value)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[trimmedKey] = RedactSensitive(nested)
			continue
		}
		out[trimmedKey] = value
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range sensitiveKeys {
		if strings.Contains(lower, candidate) {
			return true
		}
	}
	return false
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case map[string]any:
		masked := make(map[string]any, len(cast))
		for k, v := range cast {
			masked[k] = maskValue(v)
		}
		return masked
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return maskToken
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
