package taxonomy

import (
	"net/url"
	"strings"
	"unicode"
)

// Slug derives a URL-safe identifier from label. Runs of whitespace, "/", "|"
// and "-" become a single "-", leading and trailing dashes are removed and
// the result is lowercased. A label made only of separators falls back to its
// percent-encoded form so a non-empty label never yields an empty slug.
func Slug(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	dash := false
	for _, r := range strings.ToLower(trimmed) {
		if isSlugSeparator(r) {
			if !dash {
				b.WriteByte('-')
				dash = true
			}
			continue
		}
		b.WriteRune(r)
		dash = false
	}

	s := strings.TrimSuffix(strings.TrimPrefix(b.String(), "-"), "-")
	if s == "" {
		return url.PathEscape(trimmed)
	}
	return s
}

func isSlugSeparator(r rune) bool {
	return r == '-' || r == '/' || r == '|' || unicode.IsSpace(r)
}
