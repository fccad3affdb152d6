// Package workspace bundles everything a reconciliation pass touches: the
// file tree, the manifest and the registry. A Workspace is passed explicitly;
// there is no process-wide current workspace.
package workspace

import (
	"path"
	"strings"

	"github.com/starford/slipbox/internal/manifest"
	"github.com/starford/slipbox/internal/registry"
	"github.com/starford/slipbox/internal/storage"
)

// Layout names the workspace-relative locations of notes, manifest and
// template.
type Layout struct {
	NotesDir  string
	Manifest  string
	Template  string
	Extension string
}

// DefaultLayout mirrors a classic LaTeX slip box.
func DefaultLayout() Layout {
	return Layout{
		NotesDir:  "notes",
		Manifest:  "documents.tex",
		Template:  "template/note.tex",
		Extension: ".tex",
	}
}

// Workspace is one slip box.
type Workspace struct {
	Layout   Layout
	Store    storage.Provider
	Registry registry.Registry
	Manifest *manifest.Manifest
}

// New assembles a Workspace.
func New(store storage.Provider, reg registry.Registry, layout Layout) *Workspace {
	return &Workspace{
		Layout:   layout,
		Store:    store,
		Registry: reg,
		Manifest: manifest.New(store, layout.Manifest),
	}
}

// NotePath maps a note filename to its workspace-relative path.
func (w *Workspace) NotePath(filename string) string {
	return path.Join(w.Layout.NotesDir, filename+w.Layout.Extension)
}

// Filename maps a workspace-relative note path back to its filename.
// ok is false for paths outside the notes directory or with another
// extension.
func (w *Workspace) Filename(p string) (string, bool) {
	prefix := path.Clean(w.Layout.NotesDir) + "/"
	if prefix == "./" {
		prefix = ""
	}
	p = path.Clean(p)
	if !strings.HasPrefix(p, prefix) || !strings.HasSuffix(p, w.Layout.Extension) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), w.Layout.Extension)
	if name == "" {
		return "", false
	}
	return name, true
}

// ListFilenames returns the filenames of every note on disk. The manifest
// and template are never notes, even when they live in the notes directory.
func (w *Workspace) ListFilenames() ([]string, error) {
	infos, err := w.Store.List(w.Layout.NotesDir, w.Layout.Extension)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.Path == path.Clean(w.Layout.Manifest) || fi.Path == path.Clean(w.Layout.Template) {
			continue
		}
		if name, ok := w.Filename(fi.Path); ok {
			out = append(out, name)
		}
	}
	return out, nil
}
