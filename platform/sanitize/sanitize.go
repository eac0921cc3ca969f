// Package sanitize cleans free-text fields before they are stored or relayed.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Text strips markup and collapses runs of whitespace.
func Text(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'").Replace(result)
	// entities can hide tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(result, " "))
}

// Email lower-cases and trims an address. Validation happens elsewhere.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Host extracts a comparable host from a source URL or bare domain:
// scheme, path, port and a leading "www." are removed and the result is lower-cased.
func Host(source string) string {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	return strings.TrimPrefix(s, "www.")
}
