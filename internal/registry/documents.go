package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/slipbox/internal/models"
)

const documentColumns = `id, filename, reference, created_at, last_edit_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (models.Document, error) {
	var d models.Document
	var created, edited sql.NullInt64
	if err := s.Scan(&d.ID, &d.Filename, &d.Reference, &created, &edited); err != nil {
		return d, err
	}
	d.CreatedAt = fromNanos(created)
	d.LastEditAt = fromNanos(edited)
	return d, nil
}

// CreateDocument inserts d and sets its ID.
func (db *DB) CreateDocument(d *models.Document) error {
	res, err := db.conn.Exec(`
		INSERT INTO documents (filename, reference, created_at, last_edit_at)
		VALUES (?, ?, ?, ?)
	`, d.Filename, d.Reference, toNanos(d.CreatedAt), toNanos(d.LastEditAt))
	if err != nil {
		return classify("create document "+d.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("registry: create document: %w", err)
	}
	d.ID = id
	return nil
}

// GetDocument returns the document with the given id.
func (db *DB) GetDocument(id int64) (*models.Document, error) {
	return db.getDocument(fmt.Sprintf("get document %d", id), `id = ?`, id)
}

// GetDocumentByFilename returns the document bound to filename.
func (db *DB) GetDocumentByFilename(filename string) (*models.Document, error) {
	return db.getDocument("get document "+filename, `filename = ?`, filename)
}

// GetDocumentByReference returns the document with the given reference.
func (db *DB) GetDocumentByReference(reference string) (*models.Document, error) {
	return db.getDocument("get reference "+reference, `reference = ?`, reference)
}

func (db *DB) getDocument(op, where string, arg any) (*models.Document, error) {
	d, err := scanDocument(db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE `+where, arg))
	if err != nil {
		return nil, classify(op, err)
	}
	builds, err := db.loadBuilds(`WHERE document_id = ?`, d.ID)
	if err != nil {
		return nil, err
	}
	d.Builds = builds[d.ID]
	return &d, nil
}

// ListDocuments returns every document ordered by id.
func (db *DB) ListDocuments() ([]models.Document, error) {
	rows, err := db.conn.Query(`SELECT ` + documentColumns + ` FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("registry: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	builds, err := db.loadBuilds(``)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Builds = builds[out[i].ID]
	}
	return out, nil
}

// UpdateDocument persists filename, reference and timestamps of d.
func (db *DB) UpdateDocument(d *models.Document) error {
	res, err := db.conn.Exec(`
		UPDATE documents
		SET filename = ?, reference = ?, created_at = ?, last_edit_at = ?
		WHERE id = ?
	`, d.Filename, d.Reference, toNanos(d.CreatedAt), toNanos(d.LastEditAt), d.ID)
	if err != nil {
		return classify("update document "+d.Filename, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classify("update document "+d.Filename, sql.ErrNoRows)
	}
	return nil
}

// DeleteDocument removes a document together with everything it owns and
// every link pointing into its labels.
func (db *DB) DeleteDocument(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var exists int
	if err := tx.QueryRow(`SELECT count(*) FROM documents WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("registry: delete document: %w", err)
	}
	if exists == 0 {
		return classify(fmt.Sprintf("delete document %d", id), sql.ErrNoRows)
	}

	// Ownership order: links into or out of the document, then owned rows.
	cascade := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM links WHERE source_id = ? OR label_id IN (SELECT id FROM labels WHERE document_id = ?)`, []any{id, id}},
		{`DELETE FROM labels WHERE document_id = ?`, []any{id}},
		{`DELETE FROM citations WHERE document_id = ?`, []any{id}},
		{`DELETE FROM builds WHERE document_id = ?`, []any{id}},
		{`DELETE FROM document_tags WHERE document_id = ?`, []any{id}},
		{`DELETE FROM documents WHERE id = ?`, []any{id}},
	}
	for _, c := range cascade {
		if _, err := tx.Exec(c.query, c.args...); err != nil {
			return fmt.Errorf("registry: delete document %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// SetBuildTime records when a document was last rendered to format.
func (db *DB) SetBuildTime(documentID int64, format string, at time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO builds (document_id, format, built_at) VALUES (?, ?, ?)
		ON CONFLICT(document_id, format) DO UPDATE SET built_at = excluded.built_at
	`, documentID, format, at.UnixNano())
	if err != nil {
		return classify("set build time", err)
	}
	return nil
}

func (db *DB) loadBuilds(where string, args ...any) (map[int64]map[string]time.Time, error) {
	rows, err := db.conn.Query(`SELECT document_id, format, built_at FROM builds `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: load builds: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]time.Time)
	for rows.Next() {
		var id, at int64
		var format string
		if err := rows.Scan(&id, &format, &at); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(map[string]time.Time)
		}
		out[id][format] = time.Unix(0, at)
	}
	return out, rows.Err()
}
