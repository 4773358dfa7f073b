// Package postservice coordinates the content collection, the search index,
// and the scaffolder for the API and MCP layers.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/scaffold"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/taxonomy"
)

// PostListItem is a lightweight item in a list response.
type PostListItem struct {
	URL         string          `json:"url"`
	Path        string          `json:"path"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Date        models.PostDate `json:"date"`
	Tags        []string        `json:"tags"`
	Categories  []string        `json:"categories"`
}

// PostDetail is the full representation of a post.
type PostDetail struct {
	PostListItem
	Checksum    string         `json:"checksum"`
	Content     string         `json:"content"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// GroupSummary is one taxonomy group with its posts as list items.
type GroupSummary struct {
	Label string         `json:"label"`
	ID    string         `json:"id"`
	Count int            `json:"count"`
	Posts []PostListItem `json:"posts,omitempty"`
}

// Notifier is told about posts the service writes itself. kind is one of
// the index.Change kinds.
type Notifier func(kind, path string)

// Option configures a Service.
type Option func(*Service)

// WithNotifier registers fn to be called after CreatePost succeeds.
func WithNotifier(fn Notifier) Option {
	return func(s *Service) {
		s.notify = fn
	}
}

// Service coordinates content, index, and scaffolding operations.
type Service struct {
	store      storage.Provider
	db         *index.DB
	posts      *content.Collection
	scaffolder *scaffold.Scaffolder
	logger     *slog.Logger
	notify     Notifier
}

// NewService creates a new post service.
func NewService(store storage.Provider, db *index.DB, posts *content.Collection, scaffolder *scaffold.Scaffolder, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, db: db, posts: posts, scaffolder: scaffolder, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version identifies the current content snapshot.
func (s *Service) Version() string {
	return s.posts.Version()
}

// Rebuild re-syncs the search index and reloads the collection.
func (s *Service) Rebuild(ctx context.Context) error {
	if err := index.Sync(s.db, s.store, s.posts.Match, s.logger); err != nil {
		return fmt.Errorf("postservice: sync index: %w", err)
	}
	return s.posts.Rebuild(ctx)
}

// ListPosts returns paginated posts, newest first, optionally filtered by an
// exact tag and/or category label. A non-positive limit returns every match.
func (s *Service) ListPosts(_ context.Context, limit, offset int, tag, category string) ([]PostListItem, int, error) {
	var matched []*models.Post
	for _, p := range s.posts.Posts() {
		if tag != "" && !contains(p.Tags, tag) {
			continue
		}
		if category != "" && !contains(p.Categories, category) {
			continue
		}
		matched = append(matched, p)
	}

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && limit < total-offset {
		end = offset + limit
	}
	return toListItems(matched[offset:end]), total, nil
}

// GetPost returns the post published at url with its raw content.
func (s *Service) GetPost(_ context.Context, url string) (*PostDetail, error) {
	p, err := s.posts.Post(url)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &PostDetail{
		PostListItem: toListItem(p),
		Checksum:     p.Checksum,
		Content:      string(data),
		Frontmatter:  p.Frontmatter,
	}, nil
}

// Taxonomy returns every group of field with its posts.
func (s *Service) Taxonomy(_ context.Context, field taxonomy.Field) []GroupSummary {
	groups := s.posts.Taxonomy(field)
	out := make([]GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = toGroupSummary(g, true)
	}
	return out
}

// Group returns the group of field addressed by id.
func (s *Service) Group(_ context.Context, field taxonomy.Field, id string) (*GroupSummary, error) {
	g, err := s.posts.Group(field, id)
	if err != nil {
		return nil, err
	}
	gs := toGroupSummary(g, true)
	return &gs, nil
}

// Suggest returns groups whose id starts with prefix, without their posts.
func (s *Service) Suggest(_ context.Context, field taxonomy.Field, prefix string, limit int) []GroupSummary {
	groups := s.posts.Suggest(field, prefix, limit)
	out := make([]GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = toGroupSummary(g, false)
	}
	return out
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// TermCounts returns per-label post counts straight from the index.
func (s *Service) TermCounts(_ context.Context, field taxonomy.Field) ([]index.TermCount, error) {
	return s.db.TermCounts(string(field))
}

// CreatePost scaffolds a new post, indexes it, and reloads the collection.
func (s *Service) CreatePost(ctx context.Context, opts scaffold.Options) (*PostDetail, error) {
	target, err := s.scaffolder.Create(opts)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(target)
	if err != nil {
		return nil, err
	}
	previous, err := s.db.GetChecksum(target)
	if err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, target, data); err != nil {
		return nil, err
	}
	if err := s.posts.Rebuild(ctx); err != nil {
		return nil, err
	}

	kind := index.ChangeCreated
	if previous != "" {
		kind = index.ChangeUpdated
	}
	s.logger.Info("post scaffolded", slog.String("path", target), slog.String("op", kind))
	if s.notify != nil {
		s.notify(kind, target)
	}
	return s.GetPost(ctx, content.URLFor(target))
}

func toListItem(p *models.Post) PostListItem {
	return PostListItem{
		URL:         p.URL,
		Path:        p.Path,
		Title:       p.Title,
		Description: p.Description,
		Date:        p.Date,
		Tags:        nonNilSlice(p.Tags),
		Categories:  nonNilSlice(p.Categories),
	}
}

func toListItems(posts []*models.Post) []PostListItem {
	out := make([]PostListItem, len(posts))
	for i, p := range posts {
		out[i] = toListItem(p)
	}
	return out
}

func toGroupSummary(g *taxonomy.Group, withPosts bool) GroupSummary {
	gs := GroupSummary{Label: g.Label, ID: g.ID, Count: g.Count}
	if withPosts {
		gs.Posts = toListItems(g.Posts)
	}
	return gs
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
