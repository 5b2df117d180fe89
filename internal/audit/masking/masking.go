package masking

import "strings"

const maskToken = "****"

var secretKeys = map[string]struct{}{
	"key_secret":     {},
	"webhook_secret": {},
	"signature":      {},
	"authorization":  {},
}

var emailKeys = map[string]struct{}{
	"donor_email": {},
	"email":       {},
}

// MaskSecret keeps the provider prefix (rzp_live_, whsec_) and the last four
// characters.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskEmail keeps the first letter of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskSecret(trimmed)
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}

// MaskMetadata returns a copy of audit metadata with gateway credentials,
// signatures and donor emails masked. Nested maps are masked by the same
// key rules. Empty keys are dropped.
func MaskMetadata(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		out[trimmedKey] = maskValue(strings.ToLower(trimmedKey), value)
	}
	return out
}

func maskValue(key string, value any) any {
	switch cast := value.(type) {
	case string:
		if _, ok := secretKeys[key]; ok {
			return MaskSecret(cast)
		}
		if _, ok := emailKeys[key]; ok {
			return MaskEmail(cast)
		}
		return cast
	case map[string]any:
		return MaskMetadata(cast)
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
