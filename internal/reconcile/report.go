package reconcile

import (
	"errors"

	"github.com/google/uuid"

	"github.com/starford/slipbox/internal/models"
)

// Link change kinds.
const (
	LinkCreated = "created"
	LinkDeleted = "deleted"
)

// LinkChange is one created or deleted link, by source filename and target
// (reference, label).
type LinkChange struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Dangling is a cross-reference marker that resolved to nothing.
type Dangling struct {
	Source    string `json:"source"`
	Reference string `json:"reference"`
	Label     string `json:"label"`
}

// Report is the outcome of a Sync, or the rescan half of a Resync.
type Report struct {
	RunID            string            `json:"run_id"`
	Dirty            []models.Document `json:"dirty"`
	CitationsChanged map[string]bool   `json:"citations_changed"`
	LinksCreated     []LinkChange      `json:"links_created"`
	LinksDeleted     []LinkChange      `json:"links_deleted"`
	Dangling         []Dangling        `json:"dangling"`
	Failures         []error           `json:"-"`
}

func newReport() Report {
	return Report{
		RunID:            uuid.Must(uuid.NewV7()).String(),
		CitationsChanged: make(map[string]bool),
	}
}

// Err joins every per-item failure, or returns nil when the pass was clean.
// Dangling references are warnings and not included.
func (r *Report) Err() error {
	return errors.Join(r.Failures...)
}

// FailureMessages renders Failures for serialisation.
func (r *Report) FailureMessages() []string {
	out := make([]string, 0, len(r.Failures))
	for _, err := range r.Failures {
		out = append(out, err.Error())
	}
	return out
}

// LinkChanges returns created and deleted links in one slice.
func (r *Report) LinkChanges() []LinkChange {
	out := make([]LinkChange, 0, len(r.LinksCreated)+len(r.LinksDeleted))
	out = append(out, r.LinksCreated...)
	return append(out, r.LinksDeleted...)
}

// Rebind records a document whose filename (and possibly reference) was
// updated in place during Resync.
type Rebind struct {
	Reference    string `json:"reference"`
	OldFilename  string `json:"old_filename"`
	NewFilename  string `json:"new_filename"`
	OldReference string `json:"old_reference,omitempty"`
}

// ResyncReport is the outcome of a Resync.
type ResyncReport struct {
	Report
	Created          []models.Document `json:"created"`
	Rebound          []Rebind          `json:"rebound"`
	Rereferenced     []Rebind          `json:"rereferenced"`
	ManifestAppended []string          `json:"manifest_appended"`
	FromTemplate     []string          `json:"from_template"`
	Conflicts        []Conflict        `json:"conflicts"`
	Declined         []Conflict        `json:"declined"`
}

// Rewrite is one source file rewritten by RenameReference.
type Rewrite struct {
	Filename string `json:"filename"`
	Markers  int    `json:"markers"`
}

// RenameReport is the outcome of RenameReference.
type RenameReport struct {
	Sync          *Report   `json:"sync"`
	ManifestLines int       `json:"manifest_lines"`
	Rewritten     []Rewrite `json:"rewritten"`
	Failures      []error   `json:"-"`
}

// Err joins the rewrite failures.
func (r *RenameReport) Err() error {
	return errors.Join(r.Failures...)
}
