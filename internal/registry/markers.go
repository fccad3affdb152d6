package registry

import (
	"database/sql"
	"fmt"

	"github.com/starford/slipbox/internal/models"
)

// ListLabels returns the labels owned by a document ordered by value.
func (db *DB) ListLabels(documentID int64) ([]models.Label, error) {
	rows, err := db.conn.Query(`SELECT id, document_id, value FROM labels WHERE document_id = ? ORDER BY value`, documentID)
	if err != nil {
		return nil, fmt.Errorf("registry: list labels: %w", err)
	}
	defer rows.Close()

	var out []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Value); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLabel returns the label value owned by a document.
func (db *DB) GetLabel(documentID int64, value string) (*models.Label, error) {
	var l models.Label
	err := db.conn.QueryRow(`SELECT id, document_id, value FROM labels WHERE document_id = ? AND value = ?`,
		documentID, value).Scan(&l.ID, &l.DocumentID, &l.Value)
	if err != nil {
		return nil, classify("get label "+value, err)
	}
	return &l, nil
}

// CreateLabel adds a label to a document.
func (db *DB) CreateLabel(documentID int64, value string) (*models.Label, error) {
	res, err := db.conn.Exec(`INSERT INTO labels (document_id, value) VALUES (?, ?)`, documentID, value)
	if err != nil {
		return nil, classify("create label "+value, err)
	}
	id, _ := res.LastInsertId()
	return &models.Label{ID: id, DocumentID: documentID, Value: value}, nil
}

// DeleteLabel removes a label and every link targeting it.
func (db *DB) DeleteLabel(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE label_id = ?`, id); err != nil {
		return fmt.Errorf("registry: delete label links: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM labels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("registry: delete label: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classify(fmt.Sprintf("delete label %d", id), sql.ErrNoRows)
	}
	return tx.Commit()
}

// ListCitations returns the citations owned by a document ordered by key.
func (db *DB) ListCitations(documentID int64) ([]models.Citation, error) {
	rows, err := db.conn.Query(`SELECT id, document_id, key FROM citations WHERE document_id = ? ORDER BY key`, documentID)
	if err != nil {
		return nil, fmt.Errorf("registry: list citations: %w", err)
	}
	defer rows.Close()

	var out []models.Citation
	for rows.Next() {
		var c models.Citation
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Key); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCitation records that a document cites key.
func (db *DB) CreateCitation(documentID int64, key string) (*models.Citation, error) {
	res, err := db.conn.Exec(`INSERT INTO citations (document_id, key) VALUES (?, ?)`, documentID, key)
	if err != nil {
		return nil, classify("create citation "+key, err)
	}
	id, _ := res.LastInsertId()
	return &models.Citation{ID: id, DocumentID: documentID, Key: key}, nil
}

// DeleteCitation removes a citation.
func (db *DB) DeleteCitation(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM citations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("registry: delete citation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classify(fmt.Sprintf("delete citation %d", id), sql.ErrNoRows)
	}
	return nil
}

const linkSelect = `
	SELECT k.id, k.source_id, k.label_id, l.document_id, d.reference, l.value
	FROM links k
	JOIN labels l ON l.id = k.label_id
	JOIN documents d ON d.id = l.document_id
`

func (db *DB) queryLinks(op, where string, args ...any) ([]models.Link, error) {
	rows, err := db.conn.Query(linkSelect+where+` ORDER BY k.source_id, d.id, l.value`, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var k models.Link
		if err := rows.Scan(&k.ID, &k.SourceID, &k.LabelID, &k.TargetID, &k.TargetReference, &k.Label); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ListLinks returns every link.
func (db *DB) ListLinks() ([]models.Link, error) {
	return db.queryLinks("list links", ``)
}

// ListLinksFrom returns the outgoing links of a document.
func (db *DB) ListLinksFrom(sourceID int64) ([]models.Link, error) {
	return db.queryLinks("list links from", `WHERE k.source_id = ?`, sourceID)
}

// ListLinksTo returns the links targeting a label.
func (db *DB) ListLinksTo(labelID int64) ([]models.Link, error) {
	return db.queryLinks("list links to", `WHERE k.label_id = ?`, labelID)
}

// CreateLink adds an edge from a source document to a label.
func (db *DB) CreateLink(sourceID, labelID int64) (*models.Link, error) {
	res, err := db.conn.Exec(`INSERT INTO links (source_id, label_id) VALUES (?, ?)`, sourceID, labelID)
	if err != nil {
		return nil, classify("create link", err)
	}
	id, _ := res.LastInsertId()
	links, err := db.queryLinks("create link", `WHERE k.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, classify("create link", sql.ErrNoRows)
	}
	return &links[0], nil
}

// DeleteLink removes a link.
func (db *DB) DeleteLink(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("registry: delete link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classify(fmt.Sprintf("delete link %d", id), sql.ErrNoRows)
	}
	return nil
}
