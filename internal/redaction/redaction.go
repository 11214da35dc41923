// Package redaction scrubs credentials out of text that may reach logs,
// error messages, or terminal output.
package redaction

import (
	"regexp"
	"strings"
)

// sensitivePatterns are compiled once at package init.
var sensitivePatterns = []*regexp.Regexp{
	// Authorization header values.
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]+`),
	// JWT tokens.
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+`),
	// Session payloads echoed back by the platform.
	regexp.MustCompile(`(?i)"(?:session|machine_token|token)"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*["']?\S+`),
	regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*["']?\S+`),
}

const replacement = "[REDACTED]"

// Redact applies two layers to text:
//
//  1. Literal secrets supplied by the caller (e.g. the configured session
//     token), so they are removed even when they match no pattern.
//  2. Built-in credential patterns.
func Redact(text string, secrets ...string) string {
	for _, s := range secrets {
		if len(s) < 4 {
			continue
		}
		text = strings.ReplaceAll(text, s, replacement)
	}
	for _, re := range sensitivePatterns {
		text = re.ReplaceAllString(text, replacement)
	}
	return text
}

// Mask hides a configured secret for display, keeping only whether it is set.
func Mask(secret string) string {
	if secret != "" {
		return "<redacted>"
	}
	return ""
}
