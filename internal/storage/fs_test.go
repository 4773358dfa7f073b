package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/folio/internal/checksum"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRead(t *testing.T, s *FS, p string) string {
	t.Helper()
	got, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read(%q): %v", p, err)
	}
	return string(got)
}

// A post is drafted in a nested directory, renamed into place and removed.
func TestPostLifecycle(t *testing.T) {
	s := tempRoot(t)

	if err := s.Write("drafts/2024/go.md", []byte("# Draft\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := mustRead(t, s, "drafts/2024/go.md"); got != "# Draft\n" {
		t.Errorf("draft = %q", got)
	}

	if err := s.Move("drafts/2024/go.md", "posts/go/intro.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if ok, _ := s.Exists("drafts/2024/go.md"); ok {
		t.Error("draft still present after move")
	}
	if got := mustRead(t, s, "posts/go/intro.md"); got != "# Draft\n" {
		t.Errorf("moved = %q", got)
	}

	if err := s.Write("posts/go/intro.md", []byte("# Intro\n")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := mustRead(t, s, "posts/go/intro.md"); got != "# Intro\n" {
		t.Errorf("overwritten = %q", got)
	}

	if err := s.Delete("posts/go/intro.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("posts/go/intro.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read after delete err = %v, want fs.ErrNotExist", err)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		outside bool
	}{
		{in: "posts/a.md", want: "posts/a.md"},
		{in: "./posts//a.md", want: "posts/a.md"},
		{in: "posts/../a.md", want: "a.md"},
		{in: "", want: "."},
		{in: "../a.md", outside: true},
		{in: "/abs.md", outside: true},
	}
	for _, tt := range tests {
		got, err := clean(tt.in)
		if tt.outside {
			if !errors.Is(err, ErrOutsideRoot) {
				t.Errorf("clean(%q) err = %v, want ErrOutsideRoot", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("clean(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("posts/go/b.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	paths := map[string]string{}
	for _, it := range items {
		paths[it.Path] = it.Checksum
	}
	if _, ok := paths["posts/go/b.md"]; !ok {
		t.Errorf("expected slash-separated relative path, got %v", paths)
	}
	if paths["a.md"] != checksum.Sum([]byte("a")) {
		t.Errorf("checksum(a.md) = %q", paths["a.md"])
	}
}

func TestListSubdir(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("posts/b.md", []byte("b"))

	items, err := s.List("posts")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "posts/b.md" {
		t.Errorf("items = %+v", items)
	}
}

func TestExists(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("here.md", []byte("x"))

	ok, err := s.Exists("here.md")
	if err != nil || !ok {
		t.Errorf("Exists(here.md) = %v, %v", ok, err)
	}
	ok, err = s.Exists("missing.md")
	if err != nil || ok {
		t.Errorf("Exists(missing.md) = %v, %v", ok, err)
	}
	if _, err := s.Exists("../escape.md"); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Read(%q) err = %v, want ErrOutsideRoot", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	original := []byte("original content")
	_ = s.Write("atomic.md", original)

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.Root(), tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/folio-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "folio-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestSymlinkEscapeBlocked(t *testing.T) {
	s := tempRoot(t)
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(s.Root(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := s.Read("link/secret.md"); err == nil {
		t.Error("expected error reading through a symlink that leaves the root")
	}
}

func TestList_SkipsTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.md", []byte("a"))
	if err := os.WriteFile(filepath.Join(s.Root(), tmpPrefix+"x.md"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "a.md" {
		t.Errorf("items = %+v", items)
	}
}

func TestWrite_RootRejected(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("", []byte("x")); err == nil {
		t.Error("expected error writing the root itself")
	}
}
