// Package storage defines the slip-box file-system abstraction.
package storage

import "github.com/starford/slipbox/internal/models"

// Provider is the interface for workspace file operations. All paths are
// slash-separated and relative to the workspace root.
type Provider interface {
	// List returns every file under dir whose name ends with ext.
	// Hidden files and directories are skipped.
	List(dir, ext string) ([]models.FileInfo, error)
	// Stat returns size and modification time. Missing files yield an
	// error matching os.ErrNotExist.
	Stat(path string) (models.FileInfo, error)
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Append appends content to path, creating it if needed.
	Append(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
