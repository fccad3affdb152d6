package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/slipbox/internal/apperr"
	"github.com/starford/slipbox/internal/manifest"
	"github.com/starford/slipbox/internal/testutil"
)

func TestResync_DeclaresUntrackedNotes(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_a}\n")
	testutil.WriteNote(t, root, ws, "note_a", `\label{x}`, 0)
	testutil.WriteNote(t, root, ws, "note_b", `\excref[x]{Foo}`, 0)

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.NoError(t, rep.Err())

	docs, err := ws.Registry.ListDocuments()
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	b, err := ws.Registry.GetDocumentByFilename("note_b")
	require.NoError(t, err)
	assert.Equal(t, "NoteB", b.Reference)
	assert.Equal(t, []string{"note_b"}, rep.ManifestAppended)

	entries, err := ws.Manifest.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"note_a": "Foo", "note_b": "NoteB"}, manifest.Bindings(entries))
	assert.Contains(t, testutil.ReadFile(t, root, ws.Layout.Manifest), `\externaldocument[NoteB-]{note_b}`)
	assert.Len(t, rep.LinksCreated, 1)
}

func TestResync_DeclineLeavesUntracked(t *testing.T) {
	root, ws, eng := newTestEngine(t, WithResolver(DeclineAll{}))
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_a}\n")
	testutil.WriteNote(t, root, ws, "note_a", "", 0)
	testutil.WriteNote(t, root, ws, "note_b", "", 0)

	rep, err := eng.Resync()
	require.NoError(t, err)

	docs, err := ws.Registry.ListDocuments()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	require.Len(t, rep.Declined, 1)
	assert.Equal(t, Untracked, rep.Declined[0].Kind)
	assert.Equal(t, "NoteB", rep.Declined[0].Reference)
	assert.Empty(t, rep.ManifestAppended)
}

func TestResync_OverrideReference(t *testing.T) {
	root, ws, eng := newTestEngine(t, WithResolver(ResolverFunc(func(c Conflict) Decision {
		return Decision{Action: Override, Value: "Custom"}
	})))
	testutil.WriteNote(t, root, ws, "note_b", "", 0)

	_, err := eng.Resync()
	require.NoError(t, err)

	d, err := ws.Registry.GetDocumentByFilename("note_b")
	require.NoError(t, err)
	assert.Equal(t, "Custom", d.Reference)
}

func TestResync_CreatesMissingFromTemplate(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	testutil.WriteFile(t, root, ws.Layout.Template, "\\currentdoc{note}\n")
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_c}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	assert.Equal(t, []string{"note_c"}, rep.FromTemplate)
	assert.Equal(t, "\\currentdoc{note}\n", testutil.ReadFile(t, root, ws.NotePath("note_c")))

	d, err := ws.Registry.GetDocumentByFilename("note_c")
	require.NoError(t, err)
	assert.True(t, d.Scanned())
}

func TestResync_MissingTemplateReported(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_c}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	assert.ErrorIs(t, rep.Err(), apperr.ErrIO)
	assert.Empty(t, rep.FromTemplate)

	_, err = ws.Registry.GetDocumentByFilename("note_c")
	assert.NoError(t, err, "declared note stays tracked while absent")
}

func TestResync_FilenameRenameKeepsIdentity(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	seed(t, root, ws, eng)
	a, err := ws.Registry.GetDocumentByFilename("note_a")
	require.NoError(t, err)

	content := testutil.ReadFile(t, root, ws.NotePath("note_a"))
	require.NoError(t, ws.Store.Delete(ws.NotePath("note_a")))
	testutil.WriteNote(t, root, ws, "note_x", content, 0)
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_x}\n\\externaldocument[Bar-]{note_b}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	assert.Equal(t, []Rebind{{Reference: "Foo", OldFilename: "note_a", NewFilename: "note_x"}}, rep.Rebound)
	assert.Empty(t, rep.Created)

	x, err := ws.Registry.GetDocumentByFilename("note_x")
	require.NoError(t, err)
	assert.Equal(t, a.ID, x.ID)

	links, err := ws.Registry.ListLinks()
	require.NoError(t, err)
	assert.Len(t, links, 2, "links into the renamed note survive")
}

func TestResync_ManifestReferenceWins(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	seed(t, root, ws, eng)
	writeManifest(t, root, ws, "\\externaldocument[Baz-]{note_a}\n\\externaldocument[Bar-]{note_b}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.Len(t, rep.Rereferenced, 1)
	assert.Equal(t, "Foo", rep.Rereferenced[0].OldReference)

	a, err := ws.Registry.GetDocumentByFilename("note_a")
	require.NoError(t, err)
	assert.Equal(t, "Baz", a.Reference)

	// note_b still says Foo, which no longer resolves.
	assert.Contains(t, rep.Dangling, Dangling{Source: "note_b", Reference: "Foo", Label: "thm"})
}

func TestResync_ReferenceCollisionReported(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	testutil.WriteNote(t, root, ws, "note_a", "", 0)
	testutil.WriteNote(t, root, ws, "note_b", "", 0)
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_a}\n\\externaldocument[Foo-]{note_b}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.Len(t, rep.Conflicts, 1)
	assert.Equal(t, ReferenceCollision, rep.Conflicts[0].Kind)
	assert.Equal(t, "note_b", rep.Conflicts[0].Filename)
	assert.ErrorIs(t, rep.Err(), apperr.ErrConflict)

	_, err = ws.Registry.GetDocumentByFilename("note_b")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResync_AmbiguousRenameEscalated(t *testing.T) {
	var asked []Conflict
	root, ws, eng := newTestEngine(t, WithResolver(ResolverFunc(func(c Conflict) Decision {
		if c.Kind == AmbiguousRename {
			asked = append(asked, c)
			return Decision{Action: Override, Value: c.Candidates[0]}
		}
		return Decision{Action: Accept}
	})))
	testutil.WriteNote(t, root, ws, "note_a", "", 0)
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_a}\n")
	_, err := eng.Resync()
	require.NoError(t, err)
	a, err := ws.Registry.GetDocumentByFilename("note_a")
	require.NoError(t, err)

	require.NoError(t, ws.Store.Delete(ws.NotePath("note_a")))
	testutil.WriteNote(t, root, ws, "note_z", "", 0)
	writeManifest(t, root, ws, "\\externaldocument[Qux-]{note_z}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	require.Len(t, asked, 1)
	assert.Equal(t, []string{"note_a"}, asked[0].Candidates)
	assert.Equal(t, []Rebind{{Reference: "Qux", OldFilename: "note_a", NewFilename: "note_z", OldReference: "Foo"}}, rep.Rebound)

	z, err := ws.Registry.GetDocumentByFilename("note_z")
	require.NoError(t, err)
	assert.Equal(t, a.ID, z.ID)
	assert.Equal(t, "Qux", z.Reference)
}

func TestResync_AmbiguousRenameAcceptCreates(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	testutil.WriteNote(t, root, ws, "note_a", "", 0)
	writeManifest(t, root, ws, "\\externaldocument[Foo-]{note_a}\n")
	_, err := eng.Resync()
	require.NoError(t, err)

	require.NoError(t, ws.Store.Delete(ws.NotePath("note_a")))
	testutil.WriteNote(t, root, ws, "note_z", "", 0)
	writeManifest(t, root, ws, "\\externaldocument[Qux-]{note_z}\n")

	rep, err := eng.Resync()
	require.NoError(t, err)
	require.Len(t, rep.Created, 1)
	assert.Equal(t, "note_z", rep.Created[0].Filename)
	// the orphan stays registered and is reported as missing
	assert.ErrorIs(t, rep.Err(), apperr.ErrNotFound)
}

func TestResync_RoundTripExtraction(t *testing.T) {
	root, ws, eng := newTestEngine(t)
	seed(t, root, ws, eng)
	linksBefore, err := ws.Registry.ListLinks()
	require.NoError(t, err)
	a, err := ws.Registry.GetDocumentByFilename("note_a")
	require.NoError(t, err)
	labelsBefore, err := ws.Registry.ListLabels(a.ID)
	require.NoError(t, err)

	rep, err := eng.Resync()
	require.NoError(t, err)
	assert.Empty(t, rep.LinksCreated)
	assert.Empty(t, rep.LinksDeleted)

	linksAfter, err := ws.Registry.ListLinks()
	require.NoError(t, err)
	labelsAfter, err := ws.Registry.ListLabels(a.ID)
	require.NoError(t, err)
	assert.Equal(t, linksBefore, linksAfter)
	assert.Equal(t, labelsBefore, labelsAfter)
}
