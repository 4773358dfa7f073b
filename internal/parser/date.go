package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/starford/folio/internal/models"
)

// Layouts tried before falling back to cast, covering what the post
// scaffolder writes.
var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006/01/02",
}

// resolveDate reads "date", falling back to "updateTime" only when "date" is
// absent. Values that cannot be parsed yield the zero PostDate.
func resolveDate(fm map[string]any) models.PostDate {
	raw := lookup(fm, "date")
	if raw == nil {
		raw = lookup(fm, "updateTime")
	}
	t, err := parseDate(raw)
	if err != nil {
		return models.PostDate{}
	}
	return models.NewPostDate(t)
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("parser: no date")
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
		return cast.ToTimeInDefaultLocationE(s, time.UTC)
	case fmt.Stringer:
		// TOML local dates and datetimes.
		return parseDate(d.String())
	default:
		return cast.ToTimeInDefaultLocationE(d, time.UTC)
	}
}
