// Package content loads posts from the content root and keeps the current
// post set and its taxonomies in memory.
package content

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	radix "github.com/armon/go-radix"
	"github.com/gobwas/glob"
	"github.com/mitchellh/hashstructure"
	"golang.org/x/text/language"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/taxonomy"
)

// DefaultPattern selects the files under posts/ at any depth.
const DefaultPattern = "posts/**.md"

// Option is a functional option for configuring a Collection.
type Option func(*Collection)

// WithPattern sets the glob, relative to the content root, that selects post files.
func WithPattern(pattern string) Option {
	return func(c *Collection) {
		c.patternSrc = pattern
	}
}

// WithLanguage sets the locale used to order taxonomy labels.
func WithLanguage(tag language.Tag) Option {
	return func(c *Collection) {
		c.lang = tag
	}
}

// WithLogger sets the logger used for rebuild diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// Collection owns the loaded post set. Rebuild replaces the whole snapshot;
// readers always observe a complete build.
type Collection struct {
	store      storage.Provider
	patternSrc string
	pattern    glob.Glob
	lang       language.Tag
	logger     *slog.Logger

	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	posts      []*models.Post
	byURL      map[string]*models.Post
	taxonomies map[taxonomy.Field][]*taxonomy.Group
	ids        map[taxonomy.Field]*radix.Tree
	version    string
	builtAt    time.Time
}

// entry is a radix tree value: the groups sharing one id, in taxonomy order.
type entry struct {
	positions []int
}

// NewCollection creates an empty collection over store. Call Rebuild to load it.
func NewCollection(store storage.Provider, opts ...Option) (*Collection, error) {
	c := &Collection{
		store:      store,
		patternSrc: DefaultPattern,
		lang:       language.Und,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	g, err := glob.Compile(c.patternSrc, '/')
	if err != nil {
		return nil, fmt.Errorf("content: compile pattern %q: %w", c.patternSrc, err)
	}
	c.pattern = g
	c.snap = newSnapshot(nil, c.lang)
	return c, nil
}

// Match reports whether a content path is selected by the collection pattern.
func (c *Collection) Match(path string) bool {
	return c.pattern.Match(path) && IsPage(path)
}

// Rebuild reloads every post from storage and recomputes the taxonomies.
// Files that cannot be read or parsed are skipped with a warning. Hidden posts
// are dropped. Posts are ordered newest first.
func (c *Collection) Rebuild(ctx context.Context) error {
	metas, err := c.store.List("")
	if err != nil {
		return fmt.Errorf("content: list: %w", err)
	}

	posts := make([]*models.Post, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.Match(m.Path) {
			continue
		}
		data, err := c.store.Read(m.Path)
		if err != nil {
			c.logger.Warn("content: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		post, res, err := NewPost(m.Path, data)
		if err != nil {
			c.logger.Warn("content: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if res.Hidden {
			c.logger.Debug("content: skipped hidden", slog.String("path", m.Path))
			continue
		}
		posts = append(posts, post)
	}

	slices.SortStableFunc(posts, func(a, b *models.Post) int {
		return cmp.Compare(b.Date.Time, a.Date.Time)
	})

	snap := newSnapshot(posts, c.lang)

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	c.logger.Info("content: rebuilt",
		slog.Int("posts", len(posts)),
		slog.Int("tags", len(snap.taxonomies[taxonomy.Tags])),
		slog.Int("categories", len(snap.taxonomies[taxonomy.Categories])),
		slog.String("version", snap.version))
	return nil
}

func newSnapshot(posts []*models.Post, lang language.Tag) *snapshot {
	s := &snapshot{
		posts:      posts,
		byURL:      make(map[string]*models.Post, len(posts)),
		taxonomies: make(map[taxonomy.Field][]*taxonomy.Group, len(taxonomy.Fields)),
		ids:        make(map[taxonomy.Field]*radix.Tree, len(taxonomy.Fields)),
		builtAt:    time.Now(),
	}
	for _, p := range posts {
		s.byURL[p.URL] = p
	}
	for _, f := range taxonomy.Fields {
		groups := taxonomy.Build(posts, f, taxonomy.WithLanguage(lang))
		s.taxonomies[f] = groups

		tree := radix.New()
		for i, g := range groups {
			if v, ok := tree.Get(g.ID); ok {
				e := v.(*entry)
				e.positions = append(e.positions, i)
				continue
			}
			tree.Insert(g.ID, &entry{positions: []int{i}})
		}
		s.ids[f] = tree
	}
	s.version = snapshotVersion(posts)
	return s
}

type versionKey struct {
	URL      string
	Checksum string
	Date     int64
}

func snapshotVersion(posts []*models.Post) string {
	keys := make([]versionKey, len(posts))
	for i, p := range posts {
		keys[i] = versionKey{URL: p.URL, Checksum: p.Checksum, Date: p.Date.Time}
	}
	h, err := hashstructure.Hash(keys, nil)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", h)
}

func (c *Collection) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Posts returns all visible posts, newest first. The posts are shared and
// must not be modified.
func (c *Collection) Posts() []*models.Post {
	return slices.Clone(c.current().posts)
}

// Post returns the post published at url.
func (c *Collection) Post(url string) (*models.Post, error) {
	p, ok := c.current().byURL[url]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// Taxonomy returns the ordered groups of field.
func (c *Collection) Taxonomy(field taxonomy.Field) []*taxonomy.Group {
	return slices.Clone(c.current().taxonomies[field])
}

// Group returns the group of field addressed by id. When several labels share
// a slug the first one in taxonomy order owns the id.
func (c *Collection) Group(field taxonomy.Field, id string) (*taxonomy.Group, error) {
	snap := c.current()
	tree, ok := snap.ids[field]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	v, ok := tree.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return snap.taxonomies[field][v.(*entry).positions[0]], nil
}

// Suggest returns up to limit groups of field whose id starts with the slug of
// prefix, in taxonomy order. A non-positive limit means no limit.
func (c *Collection) Suggest(field taxonomy.Field, prefix string, limit int) []*taxonomy.Group {
	snap := c.current()
	tree, ok := snap.ids[field]
	if !ok {
		return []*taxonomy.Group{}
	}

	var positions []int
	tree.WalkPrefix(taxonomy.Slug(prefix), func(_ string, v interface{}) bool {
		positions = append(positions, v.(*entry).positions...)
		return false
	})
	sort.Ints(positions)
	if limit > 0 && len(positions) > limit {
		positions = positions[:limit]
	}

	groups := snap.taxonomies[field]
	out := make([]*taxonomy.Group, len(positions))
	for i, pos := range positions {
		out[i] = groups[pos]
	}
	return out
}

// Version identifies the current snapshot; it changes whenever a post is
// added, removed, or edited.
func (c *Collection) Version() string {
	return c.current().version
}

// BuiltAt returns the time of the last rebuild.
func (c *Collection) BuiltAt() time.Time {
	return c.current().builtAt
}
