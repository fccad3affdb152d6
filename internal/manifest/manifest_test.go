package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/slipbox/internal/storage"
)

func newManifest(t *testing.T, content string) (*Manifest, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	if content != "" {
		require.NoError(t, store.Write("documents.tex", []byte(content)))
	}
	return New(store, "documents.tex"), store
}

func TestParse_IgnoresNonDeclarations(t *testing.T) {
	data := []byte("% slip box\n\\externaldocument[Foo-]{note_a}\n\\usepackage{xr}\n\\externaldocument[Bar-]{sub/note_b}\n")
	entries := Parse(data)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Line: 2, Reference: "Foo", Filename: "note_a"}, entries[0])
	assert.Equal(t, Entry{Line: 4, Reference: "Bar", Filename: "sub/note_b"}, entries[1])
}

func TestBindings_LastDeclarationWins(t *testing.T) {
	entries := Parse([]byte("\\externaldocument[Old-]{note_a}\n\\externaldocument[New-]{note_a}\n"))
	assert.Equal(t, map[string]string{"note_a": "New"}, Bindings(entries))

	w := Winning(entries)
	require.Len(t, w, 1)
	assert.Equal(t, 2, w[0].Line)
}

func TestLoad_MissingIsEmpty(t *testing.T) {
	m, _ := newManifest(t, "")
	entries, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppend_AddsNewlineWhenMissing(t *testing.T) {
	m, store := newManifest(t, `\externaldocument[Foo-]{note_a}`)
	require.NoError(t, m.Append("NoteB", "note_b"))

	data, err := store.Read("documents.tex")
	require.NoError(t, err)
	assert.Equal(t, "\\externaldocument[Foo-]{note_a}\n\\externaldocument[NoteB-]{note_b}\n", string(data))
}

func TestSetReference_RewritesOnlyBinding(t *testing.T) {
	m, store := newManifest(t, "% keep me\n\\externaldocument[Foo-]{note_a}\n\\externaldocument[Bar-]{note_b}\n")
	n, err := m.SetReference("note_a", "Baz")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, _ := store.Read("documents.tex")
	assert.Equal(t, "% keep me\n\\externaldocument[Baz-]{note_a}\n\\externaldocument[Bar-]{note_b}\n", string(data))
}

func TestSetFilename(t *testing.T) {
	m, _ := newManifest(t, "\\externaldocument[Foo-]{note_a}\n")
	n, err := m.SetFilename("note_a", "renamed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"renamed": "Foo"}, Bindings(entries))
}

func TestRemove_DropsLine(t *testing.T) {
	m, store := newManifest(t, "\\externaldocument[Foo-]{note_a}\n\\externaldocument[Bar-]{note_b}\n")
	n, err := m.Remove("note_a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, _ := store.Read("documents.tex")
	assert.Equal(t, "\\externaldocument[Bar-]{note_b}\n", string(data))
}

func TestRewrite_NoMatchLeavesFileAlone(t *testing.T) {
	m, store := newManifest(t, "\\externaldocument[Foo-]{note_a}\n")
	before, _ := store.Stat("documents.tex")
	n, err := m.SetReference("missing", "X")
	require.NoError(t, err)
	assert.Zero(t, n)
	after, _ := store.Stat("documents.tex")
	assert.Equal(t, before.ModTime, after.ModTime)
}
