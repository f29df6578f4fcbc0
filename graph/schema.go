package graph

// Entity labels. Each label partitions the entity namespace: two entities
// with the same name but different labels are distinct nodes.
const (
	LabelClient     = "Client"
	LabelRegion     = "Region"
	LabelDomain     = "Domain"
	LabelIndustry   = "Industry"
	LabelTechnology = "Technology"
	LabelPartner    = "Partner"
	LabelProduct    = "Product"
)

// Relationship types. Every edge runs (Document)->(Entity); at most one
// edge of a given type exists between a given pair.
const (
	RelBelongsTo          = "BELONGS_TO"
	RelLocatedIn          = "LOCATED_IN"
	RelPartOf             = "PART_OF"
	RelTaggedAs           = "TAGGED_AS"
	RelMentionsTechnology = "MENTIONS_TECHNOLOGY"
	RelPartneredWith      = "PARTNERED_WITH"
	RelDescribesProduct   = "DESCRIBES_PRODUCT"
)

// schemaSQL is the DDL for the property graph. Documents are keyed by the
// short content fingerprint; entities by (label, name); edges by the full
// (document, entity, type) triple so repeated merges cannot create
// parallel edges.
const schemaSQL = `
-- Document nodes, keyed by content fingerprint
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    path TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT 'unknown',
    page_count INTEGER NOT NULL DEFAULT 0,
    content_length INTEGER NOT NULL DEFAULT 0,
    summary TEXT,
    ingested_at TEXT NOT NULL
);

-- Label nodes (Client, Region, Domain, Industry, Technology, Partner, Product)
CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL,
    name TEXT NOT NULL,
    UNIQUE(label, name)
);

-- Directed edges (Document)->(Entity)
CREATE TABLE IF NOT EXISTS edges (
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    rel_type TEXT NOT NULL,
    PRIMARY KEY (document_id, entity_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_entities_label ON entities(label);
CREATE INDEX IF NOT EXISTS idx_edges_entity ON edges(entity_id);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(rel_type);
`
