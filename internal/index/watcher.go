package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// DefaultDebounce is the quiet period the watcher waits for before applying
// a burst of file events.
const DefaultDebounce = 150 * time.Millisecond

// Change is one index mutation applied by the watcher.
type Change struct {
	Kind string
	Path string
}

// EventCallback receives the changes applied in one debounced batch, ordered
// by path. It runs on the watcher goroutine.
type EventCallback func(changes []Change)

// WatchOption configures Watch.
type WatchOption func(*watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *watcher) {
		if d > 0 {
			w.quiet = d
		}
	}
}

type watcher struct {
	db     *DB
	store  storage.Provider
	match  Matcher
	logger *slog.Logger
	cb     EventCallback
	root   string
	quiet  time.Duration
	fsw    *fsnotify.Watcher

	// pending holds the posts touched since the last flush. rescan is set
	// when a rename or a new directory means paths may have appeared that
	// produced no event of their own.
	pending map[string]struct{}
	rescan  bool
}

// Watch starts an fsnotify watcher on the content root and keeps the index in
// step with it until ctx is cancelled. Only paths accepted by match are
// indexed.
//
// Events are coalesced per path and applied once the tree has been quiet for
// the debounce period; each path is then compared against its indexed
// checksum, so editors that write a file several times produce one change.
// New directories are watched as they appear.
func Watch(ctx context.Context, db *DB, store storage.Provider, match Matcher, logger *slog.Logger, cb EventCallback, opts ...WatchOption) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		db:      db,
		store:   store,
		match:   match,
		logger:  logger,
		cb:      cb,
		root:    store.Root(),
		quiet:   DefaultDebounce,
		fsw:     fsw,
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirs(w.root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", w.root))

	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-timer.C:
			w.flush()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.note(ev) {
				timer.Reset(w.quiet)
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// note records ev and reports whether it may affect the index.
func (w *watcher) note(ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirs(ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
			}
			w.rescan = true
			return true
		}
	}

	if ev.Op&fsnotify.Rename != 0 {
		// fsnotify reports only the old name; the new one may arrive as a
		// Create or, when moved in from an unwatched place, not at all.
		w.rescan = true
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return w.rescan
	}
	rel = filepath.ToSlash(rel)
	if !w.match(rel) {
		return w.rescan
	}
	w.pending[rel] = struct{}{}
	return true
}

// flush applies every pending path and reports the resulting changes.
func (w *watcher) flush() {
	paths := w.pending
	w.pending = make(map[string]struct{})

	if w.rescan {
		w.rescan = false
		w.addStale(paths)
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var changes []Change
	for _, p := range sorted {
		if c, ok := w.apply(p); ok {
			changes = append(changes, c)
		}
	}
	if len(changes) > 0 && w.cb != nil {
		w.cb(changes)
	}
}

// addStale adds to paths every matched file whose checksum differs from the
// index, and every indexed path missing from disk.
func (w *watcher) addStale(paths map[string]struct{}) {
	indexed, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !w.match(m.Path) {
			continue
		}
		onDisk[m.Path] = struct{}{}
		if indexed[m.Path] != m.Checksum {
			paths[m.Path] = struct{}{}
		}
	}
	for p := range indexed {
		if _, ok := onDisk[p]; !ok {
			paths[p] = struct{}{}
		}
	}
}

// apply brings the index entry for p in line with the file on disk.
func (w *watcher) apply(p string) (Change, bool) {
	before, err := w.db.GetChecksum(p)
	if err != nil {
		w.logger.Warn("watcher: lookup failed", slog.String("path", p), slog.String("error", err.Error()))
		return Change{}, false
	}

	data, err := w.store.Read(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("watcher: read failed", slog.String("path", p), slog.String("error", err.Error()))
			return Change{}, false
		}
		if before == "" {
			return Change{}, false
		}
		if err := w.db.DeletePost(p); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			return Change{}, false
		}
		w.logger.Debug("watcher: deleted", slog.String("path", p))
		return Change{Kind: ChangeDeleted, Path: p}, true
	}

	if before == checksum.Sum(data) {
		return Change{}, false
	}
	if err := indexFile(w.db, p, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", p), slog.String("error", err.Error()))
		return Change{}, false
	}
	after, _ := w.db.GetChecksum(p)

	var kind string
	switch {
	case after == "" && before == "":
		// A hidden post that was never indexed.
		return Change{}, false
	case after == "":
		kind = ChangeDeleted
	case before == "":
		kind = ChangeCreated
	default:
		kind = ChangeUpdated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", p), slog.String("op", kind))
	return Change{Kind: kind, Path: p}, true
}

// addDirs adds dir and all its subdirectories to the watcher.
func (w *watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(p)
		}
		return nil
	})
}
