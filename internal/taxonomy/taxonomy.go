// Package taxonomy normalizes post tags and categories and groups posts by label.
package taxonomy

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/folio/internal/models"
)

// Field selects which post taxonomy to group by.
type Field string

const (
	Tags       Field = "tags"
	Categories Field = "categories"
)

// Fields lists every supported taxonomy in display order.
var Fields = []Field{Categories, Tags}

// ParseField converts a user-supplied name into a Field.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case Tags, Categories:
		return f, nil
	default:
		return "", fmt.Errorf("taxonomy: unknown field %q", s)
	}
}

// Values returns the labels p carries for f.
func (f Field) Values(p *models.Post) []string {
	switch f {
	case Tags:
		return p.Tags
	case Categories:
		return p.Categories
	}
	return nil
}

// Group is one label of a taxonomy and the posts carrying it. Posts are shared
// with the caller and must be treated as read-only.
type Group struct {
	Label string         `json:"label"`
	ID    string         `json:"id"`
	Count int            `json:"count"`
	Posts []*models.Post `json:"posts"`
}

type buildConfig struct {
	lang language.Tag
}

// Option configures Build.
type Option func(*buildConfig)

// WithLanguage sets the locale used to order labels with equal counts.
func WithLanguage(tag language.Tag) Option {
	return func(c *buildConfig) {
		c.lang = tag
	}
}

// NewCollator returns the label comparator used by Build: case and accent
// insensitive, with digit runs compared numerically. Collators are not safe
// for concurrent use.
func NewCollator(tag language.Tag) *collate.Collator {
	return collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics, collate.Numeric)
}

// Build groups posts by the labels of field. Groups are ordered by count
// descending, then by label; posts within a group are ordered newest first.
// Both sorts are stable. The input slice is not modified.
func Build(posts []*models.Post, field Field, opts ...Option) []*Group {
	cfg := buildConfig{lang: language.Und}
	for _, opt := range opts {
		opt(&cfg)
	}

	byLabel := make(map[string]*Group)
	groups := make([]*Group, 0)

	for _, post := range posts {
		if post == nil {
			continue
		}
		for _, raw := range field.Values(post) {
			label := strings.TrimSpace(raw)
			if label == "" {
				continue
			}
			if g, ok := byLabel[label]; ok {
				g.Count++
				g.Posts = append(g.Posts, post)
				continue
			}
			g := &Group{
				Label: label,
				ID:    Slug(label),
				Count: 1,
				Posts: []*models.Post{post},
			}
			byLabel[label] = g
			groups = append(groups, g)
		}
	}

	for _, g := range groups {
		slices.SortStableFunc(g.Posts, func(a, b *models.Post) int {
			return cmp.Compare(b.Date.Time, a.Date.Time)
		})
	}

	col := NewCollator(cfg.lang)
	slices.SortStableFunc(groups, func(a, b *Group) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return col.CompareString(a.Label, b.Label)
	})

	return groups
}
