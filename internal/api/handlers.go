package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/slipbox/internal/apperr"
	"github.com/starford/slipbox/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded chi URL parameter. Filenames may carry encoded
// slashes (topic%2Fnote).
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List registered documents
//	@Tags			documents
//	@Produce		json
//	@Param			tag	query		string	false	"Filter by tag"
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListDocuments(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// GetDocument handles GET /api/documents/{reference}.
//
//	@Summary		Get a document with its markers and backlinks
//	@Tags			documents
//	@Produce		json
//	@Param			reference	path		string	true	"Document reference"
//	@Success		200			{object}	DocumentDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{reference} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), urlParam(r, "reference"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// RemoveDocument handles DELETE /api/documents/{reference}. The file stays
// on disk.
//
//	@Summary		Forget a document
//	@Tags			documents
//	@Param			reference	path	string	true	"Document reference"
//	@Success		204			"Document removed"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{reference} [delete]
func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), urlParam(r, "reference"))
	if err != nil {
		writeError(w, "remove document", err)
		return
	}
	if err := h.svc.Remove(r.Context(), doc.Filename); err != nil {
		writeError(w, "remove document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTag handles PUT /api/documents/{reference}/tags/{tag}.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AddTag(r.Context(), urlParam(r, "reference"), urlParam(r, "tag")); err != nil {
		writeError(w, "add tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTag handles DELETE /api/documents/{reference}/tags/{tag}.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveTag(r.Context(), urlParam(r, "reference"), urlParam(r, "tag")); err != nil {
		writeError(w, "remove tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the document adjacency matrix
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Matrix: m, Edges: m.Edges(), Unreferenced: m.Unreferenced()})
}

// Unreferenced handles GET /api/graph/unreferenced.
//
//	@Summary		List documents nothing links to
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	UnreferencedResponse
//	@Security		BearerAuth
//	@Router			/graph/unreferenced [get]
func (h *Handler) Unreferenced(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Unreferenced(r.Context())
	if err != nil {
		writeError(w, "unreferenced", err)
		return
	}
	writeJSON(w, http.StatusOK, UnreferencedResponse{Documents: nodes})
}

// Sync handles POST /api/sync.
//
//	@Summary		Run an incremental reconciliation pass
//	@Tags			reconcile
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Report: rep, Failures: rep.FailureMessages()})
}

// Resync handles POST /api/resync. With accept=true every conflict takes its
// proposed default; otherwise conflicts are declined and reported.
//
//	@Summary		Run a full rebuild
//	@Tags			reconcile
//	@Produce		json
//	@Param			accept	query		bool	false	"Accept proposed defaults"
//	@Success		200		{object}	ResyncResponse
//	@Security		BearerAuth
//	@Router			/resync [post]
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	accept, _ := strconv.ParseBool(r.URL.Query().Get("accept"))
	rep, err := h.svc.Resync(r.Context(), accept)
	if err != nil {
		writeError(w, "resync", err)
		return
	}
	writeJSON(w, http.StatusOK, ResyncResponse{ResyncReport: rep, Failures: rep.FailureMessages()})
}

// RenameReference handles POST /api/rename/reference.
//
//	@Summary		Rename a reference and rewrite every linking note
//	@Tags			rename
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"Old and new reference"
//	@Success		200		{object}	RenameResponse
//	@Success		207		{object}	RenameResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename/reference [post]
func (h *Handler) RenameReference(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RenameRequest](w, r)
	if !ok {
		return
	}
	rep, err := h.svc.RenameReference(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newRenameResponse(rep))
	case rep != nil && len(rep.Failures) > 0:
		// some sources could not be rewritten; the rename itself went through
		writeJSON(w, http.StatusMultiStatus, newRenameResponse(rep))
	default:
		writeError(w, "rename reference", err)
	}
}

// RenameFilename handles POST /api/rename/filename.
//
//	@Summary		Move a note to a new filename
//	@Tags			rename
//	@Accept			json
//	@Param			body	body	RenameRequest	true	"Old and new filename"
//	@Success		204		"Renamed"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename/filename [post]
func (h *Handler) RenameFilename(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RenameRequest](w, r)
	if !ok {
		return
	}
	if err := h.svc.RenameFilename(r.Context(), req); err != nil {
		writeError(w, "rename filename", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
