// Package manifest reads and edits the ordered list of
// \externaldocument[Ref-]{filename} declarations that binds references to
// note filenames.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/slipbox/internal/parser"
	"github.com/starford/slipbox/internal/storage"
)

// Entry is one declaration in file order. Line is 1-based.
type Entry struct {
	Line      int    `json:"line"`
	Reference string `json:"reference"`
	Filename  string `json:"filename"`
}

// Format renders a declaration.
func Format(reference, filename string) string {
	return `\externaldocument[` + reference + `-]{` + filename + `}`
}

// Parse returns every declaration in data in file order. Lines without a
// declaration are ignored.
func Parse(data []byte) []Entry {
	var out []Entry
	for i, line := range strings.Split(string(data), "\n") {
		for _, m := range parser.ManifestRule.Pattern.FindAllStringSubmatch(line, -1) {
			out = append(out, Entry{
				Line:      i + 1,
				Reference: strings.TrimSpace(m[1]),
				Filename:  strings.TrimSpace(m[2]),
			})
		}
	}
	return out
}

// Bindings maps filename to reference. When a filename is declared more than
// once the last declaration wins.
func Bindings(entries []Entry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Filename] = e.Reference
	}
	return out
}

// Winning returns the effective declaration of each filename, ordered by the
// position of that winning declaration.
func Winning(entries []Entry) []Entry {
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.Filename] = i
	}
	out := make([]Entry, 0, len(last))
	for i, e := range entries {
		if last[e.Filename] == i {
			out = append(out, e)
		}
	}
	return out
}

// Manifest is a declaration file inside a workspace.
type Manifest struct {
	store storage.Provider
	path  string
}

// New binds a manifest to path (relative to the store root).
func New(store storage.Provider, path string) *Manifest {
	return &Manifest{store: store, path: path}
}

// Path returns the manifest path relative to the store root.
func (m *Manifest) Path() string {
	return m.path
}

// Load parses the manifest. A missing file is an empty manifest.
func (m *Manifest) Load() ([]Entry, error) {
	data, err := m.read()
	if err != nil {
		return nil, err
	}
	return Parse(data), nil
}

// Append adds one declaration at the end of the file.
func (m *Manifest) Append(reference, filename string) error {
	data, err := m.read()
	if err != nil {
		return err
	}
	line := Format(reference, filename) + "\n"
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		line = "\n" + line
	}
	if err := m.store.Append(m.path, []byte(line)); err != nil {
		return fmt.Errorf("manifest: append: %w", err)
	}
	return nil
}

// SetReference rewrites every declaration of filename to use reference.
// It returns the number of declarations changed.
func (m *Manifest) SetReference(filename, reference string) (int, error) {
	return m.rewrite(func(e Entry) (string, bool) {
		if e.Filename != filename {
			return "", false
		}
		return Format(reference, e.Filename), true
	})
}

// SetFilename rebinds every declaration of oldName to newName.
func (m *Manifest) SetFilename(oldName, newName string) (int, error) {
	return m.rewrite(func(e Entry) (string, bool) {
		if e.Filename != oldName {
			return "", false
		}
		return Format(e.Reference, newName), true
	})
}

// Remove deletes every declaration of filename. Lines left empty by the
// removal are dropped.
func (m *Manifest) Remove(filename string) (int, error) {
	return m.rewrite(func(e Entry) (string, bool) {
		return "", e.Filename == filename
	})
}

// rewrite performs a full read-modify-write. fn returns the replacement for a
// declaration and whether to replace it; everything else is kept verbatim.
func (m *Manifest) rewrite(fn func(Entry) (string, bool)) (int, error) {
	data, err := m.read()
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, nil
	}
	re := parser.ManifestRule.Pattern
	lines := strings.Split(string(data), "\n")
	out := lines[:0]
	changed := 0
	for i, line := range lines {
		touched := false
		line = re.ReplaceAllStringFunc(line, func(decl string) string {
			sm := re.FindStringSubmatch(decl)
			repl, ok := fn(Entry{
				Line:      i + 1,
				Reference: strings.TrimSpace(sm[1]),
				Filename:  strings.TrimSpace(sm[2]),
			})
			if !ok {
				return decl
			}
			changed++
			touched = true
			return repl
		})
		if touched && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	if changed == 0 {
		return 0, nil
	}
	if err := m.store.Write(m.path, []byte(strings.Join(out, "\n"))); err != nil {
		return 0, fmt.Errorf("manifest: write: %w", err)
	}
	return changed, nil
}

func (m *Manifest) read() ([]byte, error) {
	data, err := m.store.Read(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	return data, nil
}
