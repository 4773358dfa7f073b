package content

import (
	"path"
	"strings"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
)

// URLFor maps a content path to its published URL: posts/go/intro.md becomes
// /posts/go/intro.html.
func URLFor(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return "/" + strings.TrimSuffix(p, ".md") + ".html"
}

// IsPage reports whether a content path is published as a standalone post.
// Directory index files render as section pages and are not posts.
func IsPage(p string) bool {
	return strings.HasSuffix(p, ".md") && path.Base(p) != "index.md"
}

// NewPost parses data and builds the Post stored at path p. The parser result
// is returned alongside so callers can reuse the body and flags.
func NewPost(p string, data []byte) (*models.Post, *parser.Result, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return &models.Post{
		URL:         URLFor(p),
		Path:        p,
		Title:       res.Title,
		Description: res.Description,
		Frontmatter: res.Frontmatter,
		Date:        res.Date,
		Tags:        res.Tags,
		Categories:  res.Categories,
		Checksum:    checksum.Sum(data),
	}, res, nil
}
