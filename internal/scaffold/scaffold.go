// Package scaffold creates new post files with a frontmatter skeleton.
package scaffold

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/storage"
)

// PostsDir is the directory, relative to the content root, that holds posts.
const PostsDir = "posts"

// DefaultOutline is the outline depth written when none is given.
const DefaultOutline = "deep"

var (
	titleSepRe   = regexp.MustCompile(`[-_]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Options describes the post to create.
type Options struct {
	Path    string
	Title   string
	Desc    string
	Tags    string
	Outline string
	Force   bool
}

// Validate validates the options.
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Path, validation.Required),
		validation.Field(&o.Outline, validation.Length(0, 32)),
	)
}

// Scaffolder writes new posts into a storage provider.
type Scaffolder struct {
	store storage.Provider
	now   func() time.Time
}

// New creates a Scaffolder. A nil clock defaults to time.Now.
func New(store storage.Provider, now func() time.Time) *Scaffolder {
	if now == nil {
		now = time.Now
	}
	return &Scaffolder{store: store, now: now}
}

// Create writes a new post and returns its path relative to the content root.
// An existing file is only replaced when opts.Force is set.
func (s *Scaffolder) Create(opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidPath, err)
	}

	rel, err := NormalizeRelativePath(opts.Path)
	if err != nil {
		return "", err
	}
	target := path.Join(PostsDir, rel)
	if !strings.HasPrefix(target, PostsDir+"/") {
		return "", fmt.Errorf("%w: target must stay under %s/: %s", apperr.ErrInvalidPath, PostsDir, opts.Path)
	}

	if !opts.Force {
		exists, err := s.store.Exists(target)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("scaffold: %s: %w", target, apperr.ErrAlreadyExists)
		}
	}

	if err := s.store.Write(target, Render(opts, s.now())); err != nil {
		return "", err
	}
	return target, nil
}

// NormalizeRelativePath turns user input such as "docs/src/posts/go/intro" into
// a path relative to the posts directory ending in ".md".
func NormalizeRelativePath(input string) (string, error) {
	rel := strings.ReplaceAll(strings.TrimSpace(input), "\\", "/")
	rel = strings.TrimLeft(strings.TrimPrefix(rel, "."), "/")

	rel = strings.TrimPrefix(rel, "docs/src/")
	rel = strings.TrimPrefix(rel, PostsDir+"/")

	if !strings.HasSuffix(rel, ".md") {
		rel += ".md"
	}
	if rel == ".md" {
		return "", fmt.Errorf("%w: empty file name", apperr.ErrInvalidPath)
	}
	return rel, nil
}

// FormatTitle converts a file name into a heading: dashes and underscores
// become spaces and whitespace is collapsed.
func FormatTitle(raw string) string {
	s := titleSepRe.ReplaceAllString(raw, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Render produces the file content for a new post created at now.
func Render(opts Options, now time.Time) []byte {
	title := opts.Title
	if title == "" {
		rel, err := NormalizeRelativePath(opts.Path)
		if err == nil {
			title = strings.TrimSuffix(path.Base(rel), ".md")
		}
	}
	outline := opts.Outline
	if outline == "" {
		outline = DefaultOutline
	}

	lines := []string{
		"---",
		fmt.Sprintf("updateTime: %s", quote(now.Format("2006-01-02 15:04"))),
		fmt.Sprintf("date: %s", quote(now.Format("2006-01-02"))),
		fmt.Sprintf("desc: %s", quote(opts.Desc)),
		fmt.Sprintf("tags: %s", quote(opts.Tags)),
		fmt.Sprintf("outline: %s", outline),
		"---",
		"",
		"# " + FormatTitle(title),
		"",
		"> TODO: summarize this post",
		"",
	}
	return []byte(strings.Join(lines, "\n"))
}

// quote renders s as a double-quoted scalar that YAML reads back verbatim.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
