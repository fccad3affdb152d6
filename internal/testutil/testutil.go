// Package testutil provides shared test helpers for setting up slip boxes and
// registries.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/slipbox/internal/registry"
	"github.com/starford/slipbox/internal/storage"
	"github.com/starford/slipbox/internal/workspace"
)

// TestRegistry creates a temporary SQLite registry that is automatically
// cleaned up.
func TestRegistry(t *testing.T) *registry.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "slipbox-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := registry.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a slip box with the default layout in a temporary
// directory and returns its root.
func TestWorkspace(t *testing.T) (string, *workspace.Workspace) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, workspace.New(store, TestRegistry(t), workspace.DefaultLayout())
}

// WriteFile writes content to rel under root, creating directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteNote writes a note and pushes its mtime forward by bump so
// consecutive writes are always observed as newer.
func WriteNote(t *testing.T, root string, ws *workspace.Workspace, filename, content string, bump time.Duration) {
	t.Helper()
	rel := ws.NotePath(filename)
	WriteFile(t, root, rel, content)
	if bump == 0 {
		return
	}
	p := filepath.Join(root, filepath.FromSlash(rel))
	at := time.Now().Add(bump)
	if err := os.Chtimes(p, at, at); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of rel under root.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
