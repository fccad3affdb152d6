// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes slip box tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/slipbox/internal/noteservice"
)

const syntaxURI = "slipbox://marker-syntax"

// Server wraps the MCP server with slip box tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Slipbox",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_notes",
		mcp.WithDescription("Rescan notes changed since the last scan and update labels, citations and links."),
	), s.syncNotes)

	s.mcp.AddTool(mcp.NewTool("resync_notes",
		mcp.WithDescription("Rebuild the registry from the manifest and the notes on disk. "+
			"Without accept, notes that would need a decision (undeclared or missing) are only reported."),
		mcp.WithBoolean("accept", mcp.Description("Declare untracked notes under derived references and create missing notes from the template")),
	), s.resyncNotes)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List registered notes with their references."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read a note by reference with its labels, citations, links and backlinks."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Reference of the note, as declared in the manifest")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("list_unreferenced",
		mcp.WithDescription("List notes that no other note links to."),
	), s.listUnreferenced)

	s.mcp.AddTool(mcp.NewTool("rename_reference",
		mcp.WithDescription("Rename a reference, rewriting the manifest and every cross-reference to it."),
		mcp.WithString("old", mcp.Required(), mcp.Description("Current reference")),
		mcp.WithString("new", mcp.Required(), mcp.Description("New reference")),
	), s.renameReference)

	s.mcp.AddTool(mcp.NewTool("rename_filename",
		mcp.WithDescription("Move a note to a new filename and update its manifest declaration."),
		mcp.WithString("old", mcp.Required(), mcp.Description("Current filename (relative to the notes directory, no extension)")),
		mcp.WithString("new", mcp.Required(), mcp.Description("New filename")),
	), s.renameFilename)

	s.mcp.AddTool(mcp.NewTool("get_marker_syntax",
		mcp.WithDescription("Returns the LaTeX marker syntax the slip box understands. "+
			"Call this before writing cross-references or citations."),
	), s.getMarkerSyntax)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Marker Syntax",
			mcp.WithResourceDescription("Manifest, anchor, cross-reference and citation syntax."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkerSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) syncNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"report": rep, "failures": rep.FailureMessages()}), nil
}

func (s *Server) resyncNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Resync(ctx, req.GetBool("accept", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"report": rep, "failures": rep.FailureMessages()}), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListDocuments(ctx, req.GetString("tag", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items), nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) listUnreferenced(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.svc.Unreferenced(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(nodes) == 0 {
		return mcp.NewToolResultText("every note is referenced"), nil
	}
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, n.Reference+"\t"+n.Filename)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func renameArgs(req mcp.CallToolRequest) (noteservice.Rename, error) {
	oldName, err := req.RequireString("old")
	if err != nil {
		return noteservice.Rename{}, err
	}
	newName, err := req.RequireString("new")
	if err != nil {
		return noteservice.Rename{}, err
	}
	return noteservice.Rename{Old: oldName, New: newName}, nil
}

func (s *Server) renameReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := renameArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.RenameReference(ctx, r)
	if err != nil && (rep == nil || len(rep.Failures) == 0) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	failures := make([]string, 0, len(rep.Failures))
	for _, f := range rep.Failures {
		failures = append(failures, f.Error())
	}
	return jsonResult(map[string]any{
		"manifest_lines": rep.ManifestLines,
		"rewritten":      rep.Rewritten,
		"failures":       failures,
	}), nil
}

func (s *Server) renameFilename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := renameArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.RenameFilename(ctx, r); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("renamed: " + r.Old + " -> " + r.New), nil
}

func (s *Server) getMarkerSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkerSyntax), nil
}

func (s *Server) readMarkerSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     MarkerSyntax,
		},
	}, nil
}
