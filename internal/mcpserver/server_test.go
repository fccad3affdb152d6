package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/slipbox/internal/noteservice"
	"github.com/starford/slipbox/internal/reconcile"
	"github.com/starford/slipbox/internal/testutil"
	"github.com/starford/slipbox/internal/workspace"
)

func testServer(t *testing.T) (*Server, string, *workspace.Workspace) {
	t.Helper()
	root, ws := testutil.TestWorkspace(t)
	testutil.WriteNote(t, root, ws, "note_a", `\label{thm}`, 0)
	testutil.WriteNote(t, root, ws, "note_b", `\excref[thm]{Foo}`, 0)
	testutil.WriteFile(t, root, ws.Layout.Manifest, "\\externaldocument[Foo-]{note_a}\n\\externaldocument[Bar-]{note_b}\n")

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := New(noteservice.NewService(reconcile.New(ws, reconcile.WithLogger(logger))))
	return srv, root, ws
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "sync_notes":
		result, err = srv.syncNotes(ctx, req)
	case "resync_notes":
		result, err = srv.resyncNotes(ctx, req)
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "get_document":
		result, err = srv.getDocument(ctx, req)
	case "list_unreferenced":
		result, err = srv.listUnreferenced(ctx, req)
	case "rename_reference":
		result, err = srv.renameReference(ctx, req)
	case "rename_filename":
		result, err = srv.renameFilename(ctx, req)
	case "get_marker_syntax":
		result, err = srv.getMarkerSyntax(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestResyncAndGetDocument(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "resync_notes", map[string]interface{}{"accept": true})
	if r.IsError {
		t.Fatalf("resync error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"run_id"`) {
		t.Errorf("resync result = %q", resultText(r))
	}

	r = callTool(t, srv, "get_document", map[string]interface{}{"reference": "Foo"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, `"filename": "note_a"`) || !strings.Contains(text, `"note_b"`) {
		t.Errorf("get_document = %q", text)
	}

	r = callTool(t, srv, "list_documents", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"reference": "Bar"`) {
		t.Errorf("list_documents = %q", resultText(r))
	}
}

func TestGetDocumentMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_document", map[string]interface{}{"reference": "Nope"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestListUnreferenced(t *testing.T) {
	srv, _, _ := testServer(t)
	callTool(t, srv, "resync_notes", map[string]interface{}{"accept": true})

	r := callTool(t, srv, "list_unreferenced", map[string]interface{}{})
	if text := resultText(r); text != "Bar\tnote_b" {
		t.Errorf("unreferenced = %q, want Bar\\tnote_b", text)
	}
}

func TestRenameReference(t *testing.T) {
	srv, root, ws := testServer(t)
	callTool(t, srv, "resync_notes", map[string]interface{}{"accept": true})

	r := callTool(t, srv, "rename_reference", map[string]interface{}{"old": "Foo", "new": "Baz"})
	if r.IsError {
		t.Fatalf("rename error: %s", resultText(r))
	}
	if got := testutil.ReadFile(t, root, ws.NotePath("note_b")); got != `\excref[thm]{Baz}` {
		t.Errorf("note_b = %q", got)
	}

	r = callTool(t, srv, "rename_reference", map[string]interface{}{"old": "Baz", "new": "Bar"})
	if !r.IsError {
		t.Error("expected conflict renaming onto an existing reference")
	}
}

func TestRenameFilename(t *testing.T) {
	srv, _, _ := testServer(t)
	callTool(t, srv, "resync_notes", map[string]interface{}{"accept": true})

	r := callTool(t, srv, "rename_filename", map[string]interface{}{"old": "note_a", "new": "note_c"})
	if text := resultText(r); text != "renamed: note_a -> note_c" {
		t.Errorf("rename result = %q", text)
	}
	r = callTool(t, srv, "rename_filename", map[string]interface{}{"old": "note_a"})
	if !r.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestSyncNotes(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "sync_notes", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("sync error: %s", resultText(r))
	}
}

func TestGetMarkerSyntax(t *testing.T) {
	srv, _, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_marker_syntax", nil))
	for _, want := range []string{`\externaldocument[`, `\excref{Reference}`, "parencite"} {
		if !strings.Contains(text, want) {
			t.Errorf("marker syntax missing %q", want)
		}
	}
}
