package registry

import (
	"fmt"

	"github.com/starford/slipbox/internal/models"
)

// AddTag attaches name to a document, creating the tag if needed.
func (db *DB) AddTag(documentID int64, name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("registry: create tag: %w", err)
	}
	_, err = tx.Exec(`
		INSERT OR IGNORE INTO document_tags (document_id, tag_id)
		SELECT ?, id FROM tags WHERE name = ?
	`, documentID, name)
	if err != nil {
		return classify("add tag "+name, err)
	}
	return tx.Commit()
}

// RemoveTag detaches name from a document.
func (db *DB) RemoveTag(documentID int64, name string) error {
	_, err := db.conn.Exec(`
		DELETE FROM document_tags
		WHERE document_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)
	`, documentID, name)
	if err != nil {
		return fmt.Errorf("registry: remove tag: %w", err)
	}
	return nil
}

// ListTags returns the tag names of a document.
func (db *DB) ListTags(documentID int64) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT t.name FROM tags t
		JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = ?
		ORDER BY t.name
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("registry: list tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DocumentsByTag returns every document carrying name.
func (db *DB) DocumentsByTag(name string) ([]models.Document, error) {
	rows, err := db.conn.Query(`
		SELECT d.id, d.filename, d.reference, d.created_at, d.last_edit_at
		FROM documents d
		JOIN document_tags dt ON dt.document_id = d.id
		JOIN tags t ON t.id = dt.tag_id
		WHERE t.name = ?
		ORDER BY d.id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("registry: documents by tag: %w", err)
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
	return out, rows.Err()
}
