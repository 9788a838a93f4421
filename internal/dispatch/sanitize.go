package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// injectionPatterns match argument values that could smuggle commands or
// script fragments into downstream query strings. Matched values are
// rejected outright rather than silently rewritten.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bexec\s*\(`),
	regexp.MustCompile(`(?i)\bsystem\s*\(`),
	regexp.MustCompile("`[^`]*`"),          // command substitution
	regexp.MustCompile(`\$\(`),             // subshell
	regexp.MustCompile(`\|\s*\w`),          // pipe to command
	regexp.MustCompile(`&&\s*\w`),          // command chaining
	regexp.MustCompile(`;\s*(rm|curl|wget|sh|bash)\b`), // command separation
}

// sanitizeParams validates and normalizes action parameters. String
// values are screened against the injection patterns and stripped of
// control characters; nested structures are walked recursively. The
// original map is never mutated.
func sanitizeParams(params map[string]any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	clean := make(map[string]any, len(params))
	for key, value := range params {
		sanitized, err := sanitizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
		clean[key] = sanitized
	}
	return clean, nil
}

func sanitizeValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return sanitizeString(v)
	case map[string]any:
		return sanitizeParams(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			sanitized, err := sanitizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = sanitized
		}
		return out, nil
	case nil, bool, float64, int, int64:
		return v, nil
	default:
		// Reasoner output is decoded JSON, but registered callers may pass
		// other scalar types; coerce them to strings and screen those.
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported parameter type %T", v)
		}
		return sanitizeString(s)
	}
}

func sanitizeString(s string) (string, error) {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(s) {
			return "", fmt.Errorf("value matches unsafe pattern %q", pattern.String())
		}
	}
	return stripControlChars(s), nil
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}
