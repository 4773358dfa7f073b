package taxonomy

import (
	"strings"

	"github.com/spf13/cast"
)

// NormalizeField turns a raw frontmatter value into an ordered list of distinct,
// non-empty labels. A nil value yields an empty list, a string is split on
// "/", "," and "|", and a sequence contributes each element as one label.
// Labels are trimmed; exact (case-sensitive) duplicates are dropped, the first
// occurrence wins.
func NormalizeField(value any) []string {
	var candidates []string

	switch v := value.(type) {
	case nil:
		return []string{}
	case string:
		candidates = splitLabels(v)
	case []string:
		candidates = v
	case []any:
		candidates = make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			s, err := cast.ToStringE(item)
			if err != nil {
				continue
			}
			candidates = append(candidates, s)
		}
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return []string{}
		}
		candidates = splitLabels(s)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		name := strings.TrimSpace(c)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func splitLabels(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == ',' || r == '|'
	})
}
