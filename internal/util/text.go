package util

import "strings"

// SanitizePostgresText strips invalid UTF-8 and NUL bytes, which postgres
// rejects in text columns. Chunk text coming out of arbitrary readers is
// sanitized before any store write.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// TruncateText shortens a string for log output, appending an ellipsis when
// anything was cut. Runes are respected so multi-byte text stays valid.
func TruncateText(value string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= maxRunes {
		return value
	}
	return string(runes[:maxRunes]) + "..."
}
