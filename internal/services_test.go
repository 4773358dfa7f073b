package internal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/folio/internal/taxonomy"
)

func TestOpenServices(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Content.Root = filepath.Join(dir, "content")
	cfg.SQLite.Path = filepath.Join(dir, "folio.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := OpenServices(cfg, logger)
	if err != nil {
		t.Fatalf("OpenServices: %v", err)
	}
	defer s.Close()

	if err := s.Store.Write("posts/a.md", []byte("---\ntags: go\n---\n# A\n")); err != nil {
		t.Fatal(err)
	}
	if err := s.Service.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := s.Posts.Taxonomy(taxonomy.Tags); len(got) != 1 || got[0].ID != "go" {
		t.Errorf("tags = %+v", got)
	}
}

func TestNewLogger_NonTerminalIsJSON(t *testing.T) {
	logger := NewLogger(io.Discard, slog.LevelInfo, false)
	if _, ok := logger.Handler().(*slog.JSONHandler); !ok {
		t.Errorf("handler = %T, want *slog.JSONHandler", logger.Handler())
	}
}
