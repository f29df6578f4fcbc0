// Package pipeline orchestrates the per-document enrichment sequence:
// extraction and fingerprinting in parallel, then enrichment, producing
// one normalized record per input. Failures are isolated per document and
// surfaced as values, never across document boundaries.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/enrich"
	"github.com/rfplabs/docgraph/extract"
)

const (
	// defaultConcurrency bounds the batch fan-out, sized for a local
	// enrichment endpoint's comfort.
	defaultConcurrency = 8

	// defaultPreviewChars bounds the content preview stored on the record.
	defaultPreviewChars = 1500
)

// Result is the outcome of processing one input: either a full enriched
// document or the error variant carrying the original filename.
type Result struct {
	Filename string
	Doc      *document.Document
	Err      error
}

// Failed reports whether this result is the error variant.
func (r Result) Failed() bool { return r.Err != nil }

// Record converts the result into its metadata-store form.
func (r Result) Record() document.Record {
	if r.Failed() {
		return document.Record{Error: r.Err.Error(), Filename: r.Filename}
	}
	return document.Record{Doc: r.Doc, Filename: r.Filename}
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the maximum number of documents processed at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPreviewChars sets the content preview length.
func WithPreviewChars(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.previewChars = n
		}
	}
}

// Orchestrator coordinates extraction, fingerprinting, and enrichment for
// batches of documents. The enricher is injected at construction; there is
// no package-level state.
type Orchestrator struct {
	enricher     enrich.Enricher
	concurrency  int
	previewChars int
}

// New creates an orchestrator around the given enricher.
func New(enricher enrich.Enricher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		enricher:     enricher,
		concurrency:  defaultConcurrency,
		previewChars: defaultPreviewChars,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessOne runs the full pipeline for a single entry. Text extraction
// and metadata extraction run in parallel; any stage failure short-circuits
// to the error variant. It never panics past this boundary and returns
// the error variant (not a Go error) so batch callers need no recovery.
func (o *Orchestrator) ProcessOne(ctx context.Context, entry Entry, root string) Result {
	start := time.Now()
	fullPath := filepath.Join(root, entry.RelativePath)

	fail := func(err error) Result {
		return Result{Filename: entry.Filename, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Text and metadata reads are independent; run them in parallel.
	var (
		text string
		meta document.FileMetadata
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := extract.Text(fullPath)
		if err != nil {
			return fmt.Errorf("extracting text from %s: %w", entry.Filename, err)
		}
		text = t
		return nil
	})
	g.Go(func() error {
		meta = extract.Metadata(fullPath) // partial failure is embedded, not returned
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	hash, err := extract.ContentHash(fullPath)
	if err != nil {
		return fail(fmt.Errorf("fingerprinting %s: %w", entry.Filename, err))
	}
	lang := extract.DetectLanguage(text)

	enrichment, err := o.enricher.Enrich(ctx, text, meta.PageCount)
	if err != nil {
		return fail(fmt.Errorf("enriching %s: %w", entry.Filename, err))
	}

	elapsed := time.Since(start)

	doc := &document.Document{
		ID:             extract.ShortID(hash),
		Filename:       entry.Filename,
		RelativePath:   entry.RelativePath,
		Extension:      entry.Extension,
		Tags:           entry.Tags,
		FileSizeBytes:  meta.FileSizeBytes,
		LastModified:   meta.ModifiedTime,
		PageCount:      meta.PageCount,
		ContentLength:  len(text),
		PDFMetadata:    meta.PDFMetadata,
		Hash:           hash,
		Language:       lang,
		IngestedAt:     time.Now().UTC().Format(time.RFC3339),
		ContentPreview: preview(text, o.previewChars),

		OverviewSummary: enrichment.ContentSummary.Summary,
		ContentSummary:  enrichment.ContentSummary,
		Classification:  enrichment.Classification,
		IndustryTags:    enrichment.IndustryTags,
		Entities:        enrichment.Entities,

		ExtractionTimeSec: float64(elapsed.Round(time.Millisecond)) / float64(time.Second),
	}

	slog.Info("pipeline: document processed",
		"file", entry.Filename, "id", doc.ID,
		"pages", doc.PageCount, "language", doc.Language,
		"elapsed", elapsed.Round(time.Millisecond))
	return Result{Filename: entry.Filename, Doc: doc}
}

// ProcessBatch fans ProcessOne out over all entries with bounded
// concurrency. Completion order is unspecified, but the output preserves
// input order: results[i] corresponds to entries[i]. One document's
// failure never affects its siblings.
func (o *Orchestrator) ProcessBatch(ctx context.Context, entries []Entry, root string) []Result {
	results := make([]Result, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = o.ProcessOne(ctx, entry, root)
			return nil
		})
	}
	g.Wait() // workers only report via results

	return results
}

// preview returns a bounded prefix of the extracted text.
func preview(text string, n int) string {
	if len(text) > n {
		return text[:n]
	}
	return text
}
