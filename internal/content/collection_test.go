package content

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/taxonomy"
)

func testCollection(t *testing.T, files map[string]string, opts ...Option) (*Collection, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for p, body := range files {
		if err := store.Write(p, []byte(body)); err != nil {
			t.Fatalf("Write %s: %v", p, err)
		}
	}
	c, err := NewCollection(store, opts...)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	if err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return c, store
}

var sampleFiles = map[string]string{
	"posts/go/intro.md":   "---\ntitle: Intro\ndate: 2024-01-10\ntags: go, basics\ncategories: [Backend]\n---\nbody\n",
	"posts/go/context.md": "---\ntitle: Context\ndate: 2024-03-05\ntags: [go, concurrency]\ncategories: Backend\n---\nbody\n",
	"posts/web/vue.md":    "---\ntitle: Vue\ndate: 2023-11-20\ntags: Vue|frontend\ncategories: Frontend\n---\nbody\n",
	"posts/secret.md":     "---\ntitle: Secret\ndate: 2024-06-01\ntags: go\nhidden: true\n---\nbody\n",
	"posts/index.md":      "---\ntitle: Index\n---\nsection page\n",
	"about.md":            "---\ntitle: About\ntags: go\n---\nnot a post\n",
}

func TestRebuild_LoadsVisiblePostsNewestFirst(t *testing.T) {
	c, _ := testCollection(t, sampleFiles)

	posts := c.Posts()
	if len(posts) != 3 {
		t.Fatalf("len(posts) = %d, want 3", len(posts))
	}
	want := []string{"/posts/go/context.html", "/posts/go/intro.html", "/posts/web/vue.html"}
	for i, p := range posts {
		if p.URL != want[i] {
			t.Errorf("posts[%d] = %q, want %q", i, p.URL, want[i])
		}
	}
}

func TestRebuild_SkipsMistypedFrontmatter(t *testing.T) {
	c, _ := testCollection(t, map[string]string{
		"posts/ok.md":  "---\ntitle: OK\ntags: go\n---\nbody\n",
		"posts/bad.md": "---\ntitle:\n  nested: value\ntags: go\n---\nbody\n",
	})

	posts := c.Posts()
	if len(posts) != 1 || posts[0].URL != "/posts/ok.html" {
		t.Errorf("posts = %v, want only /posts/ok.html", posts)
	}
}

func TestRebuild_Taxonomies(t *testing.T) {
	c, _ := testCollection(t, sampleFiles)

	tags := c.Taxonomy(taxonomy.Tags)
	if len(tags) == 0 || tags[0].Label != "go" || tags[0].Count != 2 {
		t.Fatalf("first tag = %+v, want go x2", tags[0])
	}
	if tags[0].Posts[0].URL != "/posts/go/context.html" {
		t.Errorf("newest go post = %q", tags[0].Posts[0].URL)
	}

	cats := c.Taxonomy(taxonomy.Categories)
	if len(cats) != 2 || cats[0].Label != "Backend" || cats[1].Label != "Frontend" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestGroup_ByID(t *testing.T) {
	c, _ := testCollection(t, sampleFiles)

	g, err := c.Group(taxonomy.Tags, "vue")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if g.Label != "Vue" || g.Count != 1 {
		t.Errorf("group = %+v", g)
	}

	if _, err := c.Group(taxonomy.Tags, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSuggest_Prefix(t *testing.T) {
	c, _ := testCollection(t, sampleFiles)

	got := c.Suggest(taxonomy.Tags, "Co", 0)
	if len(got) != 1 || got[0].Label != "concurrency" {
		t.Errorf("suggest = %+v", got)
	}

	all := c.Suggest(taxonomy.Tags, "", 2)
	if len(all) != 2 || all[0].Label != "go" {
		t.Errorf("suggest all = %+v", all)
	}
}

func TestPost_LookupByURL(t *testing.T) {
	c, _ := testCollection(t, sampleFiles)

	p, err := c.Post("/posts/go/intro.html")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if p.Title != "Intro" || p.Date.String != "2024-01-10" {
		t.Errorf("post = %+v", p)
	}
	if _, err := c.Post("/posts/secret.html"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("hidden post should not be found, err = %v", err)
	}
}

func TestRebuild_ReplacesSnapshotAndVersion(t *testing.T) {
	c, store := testCollection(t, sampleFiles)
	before := c.Version()
	if before == "" {
		t.Fatal("expected a version")
	}

	if err := store.Write("posts/new.md", []byte("---\ntitle: New\ndate: 2025-01-01\ntags: rust\n---\n")); err != nil {
		t.Fatal(err)
	}
	if err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if c.Version() == before {
		t.Error("version should change after content changes")
	}
	if c.Posts()[0].URL != "/posts/new.html" {
		t.Errorf("newest = %q", c.Posts()[0].URL)
	}

	again := c.Version()
	if err := c.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Version() != again {
		t.Error("version should be stable across identical rebuilds")
	}
}

func TestWithPattern(t *testing.T) {
	c, _ := testCollection(t, sampleFiles, WithPattern("posts/go/*.md"))
	if n := len(c.Posts()); n != 2 {
		t.Errorf("len(posts) = %d, want 2", n)
	}
}

func TestNewCollection_BadPattern(t *testing.T) {
	store, _ := storage.NewFS(t.TempDir())
	if _, err := NewCollection(store, WithPattern("posts/[")); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestRebuild_CancelledContext(t *testing.T) {
	store, _ := storage.NewFS(t.TempDir())
	_ = store.Write("posts/a.md", []byte("a"))
	c, _ := NewCollection(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Rebuild(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestURLFor(t *testing.T) {
	cases := map[string]string{
		"posts/a.md":            "/posts/a.html",
		"posts/nest/b c.md":     "/posts/nest/b c.html",
		"./posts/../posts/x.md": "/posts/x.html",
	}
	for in, want := range cases {
		if got := URLFor(in); got != want {
			t.Errorf("URLFor(%q) = %q, want %q", in, got, want)
		}
	}
}
