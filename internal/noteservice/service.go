// Package noteservice is the read/write facade over a reconciled slip box
// shared by the HTTP and MCP surfaces.
package noteservice

import (
	"context"
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/slipbox/internal/apperr"
	"github.com/starford/slipbox/internal/graph"
	"github.com/starford/slipbox/internal/models"
	"github.com/starford/slipbox/internal/parser"
	"github.com/starford/slipbox/internal/reconcile"
	"github.com/starford/slipbox/internal/registry"
)

// DocumentItem is a lightweight item in a list response.
type DocumentItem struct {
	Filename   string    `json:"filename"`
	Reference  string    `json:"reference"`
	Tags       []string  `json:"tags"`
	LastEditAt time.Time `json:"last_edit_at"`
}

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	models.Document
	Content   string           `json:"content"`
	Labels    []string         `json:"labels"`
	Citations []string         `json:"citations"`
	Tags      []string         `json:"tags"`
	Links     []parser.LinkRef `json:"links"`
	Backlinks []string         `json:"backlinks"`
}

// Service coordinates the engine and the registry.
type Service struct {
	eng *reconcile.Engine
	reg registry.Registry
}

// NewService creates a service over eng's workspace.
func NewService(eng *reconcile.Engine) *Service {
	return &Service{eng: eng, reg: eng.Workspace().Registry}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *reconcile.Engine {
	return s.eng
}

// ListDocuments lists registered documents, optionally filtered by tag.
func (s *Service) ListDocuments(_ context.Context, tag string) ([]DocumentItem, error) {
	var docs []models.Document
	var err error
	if tag != "" {
		docs, err = s.reg.DocumentsByTag(tag)
	} else {
		docs, err = s.reg.ListDocuments()
	}
	if err != nil {
		return nil, err
	}
	items := make([]DocumentItem, 0, len(docs))
	for _, d := range docs {
		tags, err := s.reg.ListTags(d.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, DocumentItem{
			Filename:   d.Filename,
			Reference:  d.Reference,
			Tags:       tags,
			LastEditAt: d.LastEditAt,
		})
	}
	return items, nil
}

// GetDocument returns a document by reference with its markers, content and
// backlinks. The content is empty when the file cannot be read.
func (s *Service) GetDocument(_ context.Context, reference string) (*DocumentDetail, error) {
	doc, err := s.reg.GetDocumentByReference(reference)
	if err != nil {
		return nil, err
	}
	detail := &DocumentDetail{
		Document:  *doc,
		Labels:    []string{},
		Citations: []string{},
		Links:     []parser.LinkRef{},
		Backlinks: []string{},
	}

	ws := s.eng.Workspace()
	if data, err := ws.Store.Read(ws.NotePath(doc.Filename)); err == nil {
		detail.Content = string(data)
	}

	labels, err := s.reg.ListLabels(doc.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, l := range labels {
		detail.Labels = append(detail.Labels, l.Value)
		inbound, err := s.reg.ListLinksTo(l.ID)
		if err != nil {
			return nil, err
		}
		for _, k := range inbound {
			src, err := s.reg.GetDocument(k.SourceID)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[src.Filename]; !dup {
				seen[src.Filename] = struct{}{}
				detail.Backlinks = append(detail.Backlinks, src.Filename)
			}
		}
	}
	sort.Strings(detail.Backlinks)

	citations, err := s.reg.ListCitations(doc.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range citations {
		detail.Citations = append(detail.Citations, c.Key)
	}

	links, err := s.reg.ListLinksFrom(doc.ID)
	if err != nil {
		return nil, err
	}
	for _, k := range links {
		detail.Links = append(detail.Links, parser.LinkRef{Reference: k.TargetReference, Label: k.Label})
	}

	if detail.Tags, err = s.reg.ListTags(doc.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// Graph builds the adjacency matrix.
func (s *Service) Graph(_ context.Context) (*graph.Matrix, error) {
	return graph.Build(s.reg)
}

// Unreferenced lists documents nothing links to.
func (s *Service) Unreferenced(ctx context.Context) ([]graph.Node, error) {
	m, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return m.Unreferenced(), nil
}

// Sync runs an incremental pass.
func (s *Service) Sync(_ context.Context) (*reconcile.Report, error) {
	return s.eng.Sync()
}

// Resync runs a full rebuild. With acceptAll every conflict takes its
// proposed default; otherwise the engine's own resolver decides.
func (s *Service) Resync(_ context.Context, acceptAll bool) (*reconcile.ResyncReport, error) {
	if acceptAll {
		return s.eng.ResyncWith(reconcile.AcceptAll{})
	}
	return s.eng.Resync()
}

// Rename identifies the old and new value of a rename.
type Rename struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ValidateReference checks both values are usable references.
func (r Rename) ValidateReference() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Old, validation.Required),
		validation.Field(&r.New, validation.Required, validation.Match(referencePattern)),
	)
}

// ValidateFilename checks both values are usable note filenames.
func (r Rename) ValidateFilename() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Old, validation.Required),
		validation.Field(&r.New, validation.Required, validation.Match(filenamePattern)),
	)
}

// RenameReference renames a reference and rewrites the notes linking to it.
func (s *Service) RenameReference(_ context.Context, r Rename) (*reconcile.RenameReport, error) {
	if err := r.ValidateReference(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return s.eng.RenameReference(r.Old, r.New)
}

// RenameFilename moves a note.
func (s *Service) RenameFilename(_ context.Context, r Rename) error {
	if err := r.ValidateFilename(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return s.eng.RenameFilename(r.Old, r.New)
}

// Remove forgets a note.
func (s *Service) Remove(_ context.Context, filename string) error {
	return s.eng.Remove(filename)
}

// AddTag tags the document with the given reference.
func (s *Service) AddTag(_ context.Context, reference, tag string) error {
	doc, err := s.reg.GetDocumentByReference(reference)
	if err != nil {
		return err
	}
	return s.reg.AddTag(doc.ID, tag)
}

// RemoveTag untags the document with the given reference.
func (s *Service) RemoveTag(_ context.Context, reference, tag string) error {
	doc, err := s.reg.GetDocumentByReference(reference)
	if err != nil {
		return err
	}
	return s.reg.RemoveTag(doc.ID, tag)
}
