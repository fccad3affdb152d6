package registry

import (
	"time"

	"github.com/starford/slipbox/internal/models"
)

// Registry is the persistence contract the reconciliation engine depends on:
// create / get-by-unique-key / update / delete per entity type. Deletes
// cascade along ownership (document → labels, citations, tags, build times;
// label → links; document → outgoing links).
//
// Lookups that miss return an error matching apperr.ErrNotFound; unique-key
// collisions return an error matching apperr.ErrConflict.
type Registry interface {
	CreateDocument(d *models.Document) error
	GetDocument(id int64) (*models.Document, error)
	GetDocumentByFilename(filename string) (*models.Document, error)
	GetDocumentByReference(reference string) (*models.Document, error)
	ListDocuments() ([]models.Document, error)
	UpdateDocument(d *models.Document) error
	DeleteDocument(id int64) error
	SetBuildTime(documentID int64, format string, at time.Time) error

	ListLabels(documentID int64) ([]models.Label, error)
	GetLabel(documentID int64, value string) (*models.Label, error)
	CreateLabel(documentID int64, value string) (*models.Label, error)
	DeleteLabel(id int64) error

	ListCitations(documentID int64) ([]models.Citation, error)
	CreateCitation(documentID int64, key string) (*models.Citation, error)
	DeleteCitation(id int64) error

	ListLinks() ([]models.Link, error)
	ListLinksFrom(sourceID int64) ([]models.Link, error)
	ListLinksTo(labelID int64) ([]models.Link, error)
	CreateLink(sourceID, labelID int64) (*models.Link, error)
	DeleteLink(id int64) error

	AddTag(documentID int64, name string) error
	RemoveTag(documentID int64, name string) error
	ListTags(documentID int64) ([]string, error)
	DocumentsByTag(name string) ([]models.Document, error)

	Close() error
}

// Verify *DB satisfies Registry at compile time.
var _ Registry = (*DB)(nil)
