package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/slipbox/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{reference}", h.GetDocument)
	r.Delete("/documents/{reference}", h.RemoveDocument)
	r.Put("/documents/{reference}/tags/{tag}", h.AddTag)
	r.Delete("/documents/{reference}/tags/{tag}", h.RemoveTag)

	r.Get("/graph", h.Graph)
	r.Get("/graph/unreferenced", h.Unreferenced)

	r.Post("/sync", h.Sync)
	r.Post("/resync", h.Resync)
	r.Post("/rename/reference", h.RenameReference)
	r.Post("/rename/filename", h.RenameFilename)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
