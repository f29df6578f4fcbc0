// Package enrich derives structured metadata (summary, classification,
// industry tags, entities) from extracted document text via an LLM.
package enrich

import (
	"context"

	"github.com/rfplabs/docgraph/document"
)

// Enricher produces the fixed-shape enrichment record for a document.
// Implementations must be safe for concurrent use and must be called at
// most once per document per pipeline run.
type Enricher interface {
	Enrich(ctx context.Context, text string, pageCount int) (*document.Enrichment, error)
}

// Degraded sentinel summaries embedded in the record when the model could
// not be reached. The orchestrator keeps the document; these values stand
// in for the missing summary.
const (
	SummaryUnavailable = "AI response unavailable."
	SummaryExhausted   = "Failed to get data."
)

// degraded returns a normalized enrichment carrying only a sentinel
// summary. Every list is empty and every classification field is Unknown,
// so downstream iteration stays total.
func degraded(note string) *document.Enrichment {
	e := &document.Enrichment{}
	e.ContentSummary.Summary = note
	e.Normalize()
	return e
}
