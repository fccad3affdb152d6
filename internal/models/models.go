// Package models defines the domain types for slipbox.
package models

import "time"

// Build formats tracked per document for the render collaborator.
const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

// Document is one tracked note file.
type Document struct {
	ID         int64                `json:"id"`
	Filename   string               `json:"filename"`
	Reference  string               `json:"reference"`
	CreatedAt  time.Time            `json:"created_at"`
	LastEditAt time.Time            `json:"last_edit_at"`
	Builds     map[string]time.Time `json:"builds,omitempty"`
}

// Scanned reports whether the document has been scanned at least once.
func (d *Document) Scanned() bool {
	return !d.LastEditAt.IsZero()
}

// Label is a named anchor inside a document.
type Label struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Value      string `json:"value"`
}

// Citation records that a document cites a bibliography key.
type Citation struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Key        string `json:"key"`
}

// Link is a directed edge from a source document to a label.
// TargetID, TargetReference and Label are denormalised from the label's owner.
type Link struct {
	ID              int64  `json:"id"`
	SourceID        int64  `json:"source_id"`
	LabelID         int64  `json:"label_id"`
	TargetID        int64  `json:"target_id"`
	TargetReference string `json:"target_reference"`
	Label           string `json:"label"`
}

// Tag is a free-form label attached to documents.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FileInfo is the on-disk view of a note returned by storage listings.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
