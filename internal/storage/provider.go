// Package storage defines the content-root file-system abstraction.
package storage

import "github.com/starford/folio/internal/models"

// Provider is the interface for content file operations.
type Provider interface {
	// Root returns the absolute path of the content root.
	Root() string
	// List returns metadata for every .md file under dir (relative to the root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Exists reports whether a file exists at path (relative to the root).
	Exists(path string) (bool, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to the root).
	Move(oldPath, newPath string) error
}
