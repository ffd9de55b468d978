// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
)

// MaxHandleLen is the longest handle accepted anywhere in the system.
const MaxHandleLen = 30

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeHandle lowercases a social handle, trims whitespace and a leading
// "@". Handles are compared case-insensitively throughout.
func NormalizeHandle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(s)
}

// ValidHandle reports whether a normalized handle is non-empty, within the
// length limit, and made of the characters the platform allows.
func ValidHandle(s string) bool {
	if s == "" || len(s) > MaxHandleLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Preview truncates s to at most n bytes on a rune boundary.
func Preview(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, n)
	size := 0
	for _, r := range runes {
		size += len(string(r))
		if size > n {
			break
		}
		out = append(out, r)
	}
	return string(out)
}
