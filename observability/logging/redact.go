package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log lines.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"passphrase":    {},
	"password":      {},
	"secret":        {},
	"token":         {},
	"sig":           {},
	"signature":     {},
	"privatekey":    {},
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("_", "", "-", "").Replace(normalized)
	_, ok := sensitiveKeys[normalized]
	return ok
}

// MaskField returns an attribute that hides value when key is sensitive.
// Empty values are kept so missing credentials stay visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
