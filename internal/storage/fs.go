package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
)

const tmpPrefix = ".folio-tmp-"

// ErrOutsideRoot is returned for paths that are absolute or climb out of the
// content root.
var ErrOutsideRoot = errors.New("storage: path escapes content root")

// FS implements Provider on top of an os.Root, so every operation stays
// inside the content root even through symlinks.
type FS struct {
	dir  string // absolute path to the content root
	root *os.Root
}

// NewFS opens the content root at dir. The directory must already exist.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open root: %w", err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Root returns the absolute path of the content root.
func (f *FS) Root() string {
	return f.dir
}

// Close releases the root directory handle.
func (f *FS) Close() error {
	return f.root.Close()
}

// clean turns a slash- or OS-separated relative path into the canonical
// io/fs form ("." for the root itself).
func clean(rel string) (string, error) {
	p := path.Clean(filepath.ToSlash(rel))
	if rel == "" {
		p = "."
	}
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return p, nil
}

// List walks dir (relative to root) and returns metadata for every .md file,
// with slash-separated paths.
func (f *FS) List(dir string) ([]models.FileMetadata, error) {
	base, err := clean(dir)
	if err != nil {
		return nil, err
	}
	fsys := f.root.FS()

	var out []models.FileMetadata
	err = fs.WalkDir(fsys, base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		out = append(out, models.FileMetadata{
			Path:      p,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a content file.
func (f *FS) Read(p string) ([]byte, error) {
	rel, err := clean(p)
	if err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Exists reports whether a regular file exists at p.
func (f *FS) Exists(p string) (bool, error) {
	rel, err := clean(p)
	if err != nil {
		return false, err
	}
	info, err := f.root.Stat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", p, err)
	}
	return info.Mode().IsRegular(), nil
}

// Write atomically replaces p: temp file, fsync, rename.
func (f *FS) Write(p string, content []byte) error {
	rel, err := clean(p)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("storage: write: empty path")
	}
	dir := path.Dir(rel)
	if err := f.root.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmpName := path.Join(dir, tmpPrefix+uuid.NewString())
	tmp, err := f.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = f.root.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.root.Rename(tmpName, rel); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a file from the content root.
func (f *FS) Delete(p string) error {
	rel, err := clean(p)
	if err != nil {
		return err
	}
	if err := f.root.Remove(rel); err != nil {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}

// Move renames a file within the content root, creating parent directories.
func (f *FS) Move(oldPath, newPath string) error {
	from, err := clean(oldPath)
	if err != nil {
		return err
	}
	to, err := clean(newPath)
	if err != nil {
		return err
	}
	if err := f.root.MkdirAll(path.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := f.root.Rename(from, to); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}
