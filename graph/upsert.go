package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rfplabs/docgraph/document"
)

// Upserter merges enriched documents into the property graph. It must
// never be invoked with the error-variant record; the caller filters those
// out.
type Upserter struct {
	store *Store
}

// NewUpserter creates an upserter over the given store.
func NewUpserter(s *Store) *Upserter {
	return &Upserter{store: s}
}

// Upsert merges one document and all of its entity nodes and edges in a
// single write transaction. The operation is idempotent: repeating it with
// the same document yields identical graph state. Document scalar
// properties are overwritten last-write-wins, since each id is re-ingested
// wholesale.
func (u *Upserter) Upsert(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("graph.Upsert: document has no id")
	}

	return u.store.inTx(ctx, func(tx *sql.Tx) error {
		if err := mergeDocument(ctx, tx, doc); err != nil {
			return fmt.Errorf("merging document %s: %w", doc.ID, err)
		}

		// Path-derived tags: one node + one edge each, Unknown skipped.
		tagged := []struct {
			label, rel, name string
		}{
			{LabelClient, RelBelongsTo, doc.Tags.Client},
			{LabelRegion, RelLocatedIn, doc.Tags.Region},
			{LabelDomain, RelPartOf, doc.Tags.Domain},
		}
		for _, t := range tagged {
			if t.name == "" || t.name == document.Unknown {
				continue
			}
			if err := mergeEntityEdge(ctx, tx, doc.ID, t.label, t.name, t.rel); err != nil {
				return err
			}
		}

		// Enrichment-derived entity lists: empty names skipped.
		lists := []struct {
			label, rel string
			names      []string
		}{
			{LabelIndustry, RelTaggedAs, doc.IndustryTags.Industries},
			{LabelTechnology, RelMentionsTechnology, doc.Entities.Technologies},
			{LabelPartner, RelPartneredWith, doc.Entities.Partners},
			{LabelProduct, RelDescribesProduct, doc.Entities.Products},
		}
		for _, l := range lists {
			for _, name := range l.names {
				if name == "" {
					continue
				}
				if err := mergeEntityEdge(ctx, tx, doc.ID, l.label, name, l.rel); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// mergeDocument creates the Document node if absent, else overwrites its
// scalar properties.
func mergeDocument(ctx context.Context, tx *sql.Tx, doc *document.Document) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, path, language, page_count, content_length, summary, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			path = excluded.path,
			language = excluded.language,
			page_count = excluded.page_count,
			content_length = excluded.content_length,
			summary = excluded.summary,
			ingested_at = excluded.ingested_at
	`, doc.ID, doc.Filename, doc.RelativePath, doc.Language,
		doc.PageCount, doc.ContentLength, doc.OverviewSummary, doc.IngestedAt)
	return err
}

// mergeEntityEdge merges the entity node keyed by (label, name) and the
// single directed edge of the given type from the document to it.
func mergeEntityEdge(ctx context.Context, tx *sql.Tx, docID, label, name, relType string) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO entities (label, name) VALUES (?, ?)
		ON CONFLICT(label, name) DO NOTHING
	`, label, name)
	if err != nil {
		return fmt.Errorf("merging entity %s %q: %w", label, name, err)
	}

	entityID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Conflict path: the node already existed.
		row := tx.QueryRowContext(ctx,
			"SELECT id FROM entities WHERE label = ? AND name = ?", label, name)
		if err := row.Scan(&entityID); err != nil {
			return fmt.Errorf("resolving entity %s %q: %w", label, name, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO edges (document_id, entity_id, rel_type) VALUES (?, ?, ?)
	`, docID, entityID, relType)
	if err != nil {
		return fmt.Errorf("merging edge %s -%s-> %s %q: %w", docID, relType, label, name, err)
	}
	return nil
}
