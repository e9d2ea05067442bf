// Package validation holds input sanitisation, the password policy and proposal payload checks.
package validation

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	// a tag opens with a letter, "/" or "!", so comparisons like "< 100" survive
	htmlTagRegex    = regexp.MustCompile(`<[A-Za-z/!][^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// StripHTML removes HTML tags, including tags hidden behind encoded entities
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	return htmlTagRegex.ReplaceAllString(result, "")
}

// SanitizeText strips HTML, drops control characters and collapses whitespace.
// Use for free-text fields such as observations, reasons and chat messages.
func SanitizeText(s string) string {
	return cleanLine(StripHTML(s))
}

// SanitizeMultiline is SanitizeText for fields where line breaks carry meaning
func SanitizeMultiline(s string) string {
	lines := strings.Split(StripHTML(s), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, cleanLine(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// cleanLine drops control characters and collapses whitespace of already stripped text
func cleanLine(s string) string {
	result := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// SanitizePtr is a helper for optional string pointers
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := SanitizeText(*s)
	return &result
}
