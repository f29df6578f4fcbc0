package graph

import (
	"context"
	"database/sql"
	"fmt"
)

// defaultRelatedLimit bounds the related-documents result set when the
// caller passes no limit.
const defaultRelatedLimit = 8

// RelatedDoc is a document reachable from another document through a
// shared entity node.
type RelatedDoc struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Via        string `json:"via"` // label of the shared entity
	ViaName    string `json:"via_name"`
}

// Related returns documents sharing at least one entity node with docID,
// excluding docID itself, bounded by limit.
func (s *Store) Related(ctx context.Context, docID string, limit int) ([]RelatedDoc, error) {
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT d.id, d.filename, e.label, e.name
		FROM edges mine
		JOIN edges theirs ON theirs.entity_id = mine.entity_id
			AND theirs.document_id <> mine.document_id
		JOIN documents d ON d.id = theirs.document_id
		JOIN entities e ON e.id = mine.entity_id
		WHERE mine.document_id = ?
		LIMIT ?
	`, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying related documents: %w", err)
	}
	defer rows.Close()

	var related []RelatedDoc
	for rows.Next() {
		var r RelatedDoc
		if err := rows.Scan(&r.DocumentID, &r.Filename, &r.Via, &r.ViaName); err != nil {
			return nil, err
		}
		related = append(related, r)
	}
	return related, rows.Err()
}

// RelationCounts returns the number of edges per relationship type across
// the whole graph.
func (s *Store) RelationCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rel_type, COUNT(*) FROM edges GROUP BY rel_type")
	if err != nil {
		return nil, fmt.Errorf("counting relationships: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rel string
		var n int
		if err := rows.Scan(&rel, &n); err != nil {
			return nil, err
		}
		counts[rel] = n
	}
	return counts, rows.Err()
}

// DocumentNode is the stored form of a Document node.
type DocumentNode struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	Path          string `json:"path"`
	Language      string `json:"language"`
	PageCount     int    `json:"page_count"`
	ContentLength int    `json:"content_length"`
	Summary       string `json:"summary"`
	IngestedAt    string `json:"ingested_at"`
}

// GetDocument fetches a Document node by id. Returns sql.ErrNoRows when
// absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*DocumentNode, error) {
	var d DocumentNode
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, path, language, page_count, content_length, summary, ingested_at
		FROM documents WHERE id = ?
	`, id).Scan(&d.ID, &d.Filename, &d.Path, &d.Language,
		&d.PageCount, &d.ContentLength, &summary, &d.IngestedAt)
	if err != nil {
		return nil, err
	}
	d.Summary = summary.String
	return &d, nil
}

// Stats returns total node and edge counts, for diagnostics and
// idempotence checks.
func (s *Store) Stats(ctx context.Context) (nodes, edges int, err error) {
	var docs, ents int
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&docs); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&ents); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&edges); err != nil {
		return 0, 0, err
	}
	return docs + ents, edges, nil
}
