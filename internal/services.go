package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/scaffold"
	"github.com/starford/folio/internal/storage"
)

// Services bundles the components every command works with.
type Services struct {
	Store   *storage.FS
	DB      *index.DB
	Posts   *content.Collection
	Service *postservice.Service
}

// OpenServices opens the content root and the index described by cfg. The
// collection is empty until the caller rebuilds it.
func OpenServices(cfg *Config, logger *slog.Logger, opts ...postservice.Option) (*Services, error) {
	if err := os.MkdirAll(cfg.Content.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}

	store, err := storage.NewFS(cfg.Content.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	posts, err := content.NewCollection(store,
		content.WithPattern(cfg.Content.Pattern),
		content.WithLanguage(cfg.Content.Tag()),
		content.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init collection: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := postservice.NewService(store, db, posts, scaffold.New(store, nil), logger, opts...)
	return &Services{Store: store, DB: db, Posts: posts, Service: svc}, nil
}

// Close releases the index and the content root.
func (s *Services) Close() error {
	return errors.Join(s.DB.Close(), s.Store.Close())
}
