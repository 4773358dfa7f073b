package index

import (
	"log/slog"

	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/markdown"
	"github.com/starford/folio/internal/storage"
)

// Matcher reports whether a content path is a post that belongs in the index.
type Matcher func(path string) bool

// Sync walks the content root and brings the index up to date:
//   - new/changed posts are parsed and upserted
//   - hidden posts and files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, match Matcher, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !match(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeletePost(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the DB, or removes the row when
// the post is hidden. The body is stored as plain text.
func IndexFile(db *DB, path string, data []byte) error {
	return indexFile(db, path, data)
}

func indexFile(db *DB, path string, data []byte) error {
	post, res, err := content.NewPost(path, data)
	if err != nil {
		return err
	}
	if res.Hidden {
		return db.DeletePost(path)
	}

	row := PostRow{
		Path:        post.Path,
		URL:         post.URL,
		Title:       post.Title,
		Description: post.Description,
		Checksum:    post.Checksum,
		DateMs:      post.Date.Time,
		Tags:        post.Tags,
		Categories:  post.Categories,
	}
	return db.UpsertPost(row, markdown.Text([]byte(res.Body)))
}
