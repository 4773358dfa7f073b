// Package parser extracts frontmatter, title, date, and taxonomy labels from Markdown posts.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/taxonomy"
)

// Frontmatter formats accepted at the head of a post. yaml.v3 is used instead
// of the library default so nested mappings decode to map[string]any.
var formats = []*frontmatter.Format{
	frontmatter.NewFormat("---", "---", yaml.Unmarshal),
	frontmatter.NewFormat("+++", "+++", toml.Unmarshal),
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Description string
	Hidden      bool
	Outline     string
	Date        models.PostDate
	Tags        []string
	Categories  []string
}

// meta is the typed view of the frontmatter keys Folio understands.
type meta struct {
	Title       string `mapstructure:"title"`
	Desc        string `mapstructure:"desc"`
	Description string `mapstructure:"description"`
	Hidden      bool   `mapstructure:"hidden"`
	Outline     any    `mapstructure:"outline"`
}

// Parse extracts frontmatter, body, title, date, tags, and categories from raw
// Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	var m meta
	if fm != nil {
		if err := mapstructure.WeakDecode(fm, &m); err != nil {
			return nil, fmt.Errorf("parser: frontmatter: %w", err)
		}
	}

	desc := m.Desc
	if desc == "" {
		desc = m.Description
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(m.Title, body),
		Description: desc,
		Hidden:      m.Hidden,
		Outline:     outlineString(m.Outline),
		Date:        resolveDate(fm),
		Tags:        taxonomy.NormalizeField(lookup(fm, "tags")),
		Categories:  taxonomy.NormalizeField(lookup(fm, "categories")),
	}, nil
}

// splitFrontmatter separates the frontmatter block from the Markdown body.
// Content without frontmatter, or whose frontmatter fails to decode, is
// returned whole as the body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	var fm map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(data), &fm, formats...)
	if err != nil {
		return nil, string(data)
	}
	if fm == nil {
		return nil, string(body)
	}
	return fm, strings.TrimLeft(string(body), "\n\r")
}

func lookup(fm map[string]any, key string) any {
	if fm == nil {
		return nil
	}
	return fm[key]
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fmTitle, body string) string {
	if t := strings.TrimSpace(fmTitle); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// outlineString flattens the outline setting, which is either a keyword
// ("deep") or a heading range such as [2, 3].
func outlineString(v any) string {
	if items, ok := v.([]any); ok {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, cast.ToString(it))
		}
		return strings.Join(parts, ",")
	}
	return cast.ToString(v)
}
