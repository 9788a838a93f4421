package server

import (
	"regexp"
	"strings"

	"github.com/cloudtriage/cloudtriage/internal/session"
)

// sensitiveKeyFragments flags evidence keys whose values must be masked
// before entering session memory.
var sensitiveKeyFragments = []string{
	"password", "secret", "token", "key", "credential",
	"connectionstring", "connection_string", "sas",
}

// sensitiveValuePatterns catches secrets embedded in free text.
var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|pwd|secret|token|apikey|api_key)\s*[=:]\s*\S+`),
	regexp.MustCompile(`(?i)AccountKey=[^;\s]+`),
	regexp.MustCompile(`(?i)SharedAccessSignature=[^;\s]+`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.]+`),
}

const masked = "***REDACTED***"

// SensitiveDataFilter masks credentials in submitted evidence before it
// is stored or shown to the reasoning backend.
type SensitiveDataFilter struct{}

// FilterText masks secret-shaped substrings in free text.
func (SensitiveDataFilter) FilterText(text string) string {
	for _, p := range sensitiveValuePatterns {
		text = p.ReplaceAllStringFunc(text, func(m string) string {
			// Keep the key name visible, mask everything after it.
			if i := strings.IndexAny(m, "=:"); i >= 0 {
				return m[:i+1] + masked
			}
			return masked
		})
	}
	return text
}

// FilterHints masks values of hint keys that look credential-bearing and
// scrubs the remaining values for embedded secrets.
func (f SensitiveDataFilter) FilterHints(hints map[string]string) map[string]string {
	if hints == nil {
		return nil
	}
	out := make(map[string]string, len(hints))
	for k, v := range hints {
		if isSensitiveKey(k) {
			out[k] = masked
			continue
		}
		out[k] = f.FilterText(v)
	}
	return out
}

// FilterEvidence scrubs evidence item contents in place.
func (f SensitiveDataFilter) FilterEvidence(items []session.EvidenceItem) []session.EvidenceItem {
	for i := range items {
		items[i].Content = f.FilterText(items[i].Content)
	}
	return items
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
