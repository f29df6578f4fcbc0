// Package docgraph ingests PDF documents, enriches them with LLM-derived
// classification, and links them into a shared entity graph. The engine
// coordinates the extraction pipeline, the flat metadata index, and the
// property graph; the two stores are committed independently per document
// (best-effort dual-write).
package docgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rfplabs/docgraph/chat"
	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/enrich"
	"github.com/rfplabs/docgraph/graph"
	"github.com/rfplabs/docgraph/llm"
	"github.com/rfplabs/docgraph/metastore"
	"github.com/rfplabs/docgraph/pipeline"
	"github.com/rfplabs/docgraph/report"
)

// Engine is the main entry point for the ingestion and query surface.
type Engine interface {
	// IngestFolder walks root, enriches every PDF found, writes the batch
	// metadata index, and merges the successful records into the graph.
	IngestFolder(ctx context.Context, root string) (*Report, error)

	// IngestFile runs the pipeline for one uploaded PDF, persisting its
	// metadata record and graph entry. Bounded by the configured upload
	// timeout.
	IngestFile(ctx context.Context, path string) (*document.Document, error)

	// GetDocument returns the metadata record for an id.
	GetDocument(ctx context.Context, id string) (*document.Document, error)

	// Related returns documents sharing an entity with the given id.
	Related(ctx context.Context, id string, limit int) ([]graph.RelatedDoc, error)

	// Summary aggregates relationship counts and classification tallies
	// across the whole corpus.
	Summary(ctx context.Context) (*report.Summary, error)

	// Chat answers a question grounded in the session's current document
	// and its graph neighbourhood.
	Chat(ctx context.Context, sess *chat.Session, question string) (string, error)

	// Metadata returns the metadata store for diagnostic access.
	Metadata() *metastore.Store

	// Graph returns the graph store for diagnostic access.
	Graph() *graph.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Report summarizes one ingestion run.
type Report struct {
	RunID        string            `json:"run_id"`
	SitemapPath  string            `json:"sitemap_path"`
	MetadataPath string            `json:"metadata_path"`
	Processed    int               `json:"processed"`
	Succeeded    int               `json:"succeeded"`
	Failed       int               `json:"failed"`
	GraphErrors  int               `json:"graph_errors"`
	Results      []pipeline.Result `json:"-"`
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	graph      *graph.Store
	upserter   *graph.Upserter
	meta       *metastore.Store
	orch       *pipeline.Orchestrator
	assistant  *chat.Assistant
	sitemapDir string
}

// New creates an engine from configuration. The graph connection is
// acquired once per engine lifetime and shared by all components.
func New(cfg Config) (Engine, error) {
	if len(cfg.Enricher.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: enricher has no endpoints", ErrInvalidConfig)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultConfig().PreviewChars
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultConfig().UploadTimeout
	}

	g, err := graph.New(cfg.ResolveGraphDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}

	meta, err := metastore.New(cfg.ResolveMetadataDir())
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	sitemapDir := cfg.ResolveSitemapDir()
	if err := os.MkdirAll(sitemapDir, 0755); err != nil {
		g.Close()
		return nil, fmt.Errorf("creating sitemap directory: %w", err)
	}

	enricher := enrich.NewLLMEnricher(llm.New(cfg.Enricher))
	orch := pipeline.New(enricher,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithPreviewChars(cfg.PreviewChars))

	assistant := chat.NewAssistant(llm.New(cfg.chatConfig()), g)

	return &engine{
		cfg:        cfg,
		graph:      g,
		upserter:   graph.NewUpserter(g),
		meta:       meta,
		orch:       orch,
		assistant:  assistant,
		sitemapDir: sitemapDir,
	}, nil
}

// IngestFolder runs the full batch pipeline. Per-document failures are
// isolated and reported inline in the Report; only a metadata index write
// failure aborts the run.
func (e *engine) IngestFolder(ctx context.Context, root string) (*Report, error) {
	runID := uuid.NewString()
	slog.Info("ingest: run starting", "run_id", runID, "root", root)

	entries, err := pipeline.BuildSitemap(root)
	if err != nil {
		return nil, fmt.Errorf("building sitemap: %w", err)
	}

	sitemapPath := filepath.Join(e.sitemapDir, "sitemap.json")
	if err := writeJSON(sitemapPath, entries); err != nil {
		slog.Warn("ingest: sitemap write failed (non-fatal)", "error", err)
		sitemapPath = ""
	}

	results := e.orch.ProcessBatch(ctx, entries, root)

	// The metadata index is written once, after all batch results are
	// collected; it is not safe for concurrent writers.
	records := make([]document.Record, len(results))
	for i, r := range results {
		records[i] = r.Record()
	}
	if err := e.meta.WriteBatch(records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataStore, err)
	}

	rep := &Report{
		RunID:        runID,
		SitemapPath:  sitemapPath,
		MetadataPath: e.meta.IndexPath(),
		Processed:    len(results),
		Results:      results,
	}

	// Graph writes: one transaction per document, failures isolated.
	for _, r := range results {
		if r.Failed() {
			rep.Failed++
			slog.Warn("ingest: document failed", "file", r.Filename, "error", r.Err)
			continue
		}
		rep.Succeeded++
		if err := e.upserter.Upsert(ctx, r.Doc); err != nil {
			rep.GraphErrors++
			slog.Warn("ingest: graph write failed (document skipped)",
				"file", r.Filename, "id", r.Doc.ID, "error", err)
		}
	}

	slog.Info("ingest: run complete",
		"run_id", runID, "processed", rep.Processed,
		"succeeded", rep.Succeeded, "failed", rep.Failed,
		"graph_errors", rep.GraphErrors)
	return rep, nil
}

// IngestFile processes a single uploaded PDF. The whole pipeline runs
// under the configured upload timeout; exceeding it surfaces as a
// deadline error the caller may retry.
func (e *engine) IngestFile(ctx context.Context, path string) (*document.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.UploadTimeout)
	defer cancel()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	entry := pipeline.Entry{
		Filename:     filepath.Base(absPath),
		AbsolutePath: absPath,
		RelativePath: filepath.Base(absPath),
		Extension:    filepath.Ext(absPath),
		Tags: document.Tags{
			Domain: "User",
			Region: document.Unknown,
			Client: document.Unknown,
		},
	}

	result := e.orch.ProcessOne(ctx, entry, filepath.Dir(absPath))
	if result.Failed() {
		return nil, fmt.Errorf("%w: %v", ErrIngestFailed, result.Err)
	}

	if err := e.meta.WriteOne(result.Doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataStore, err)
	}
	if err := e.upserter.Upsert(ctx, result.Doc); err != nil {
		// Metadata committed; graph write failure is reported but the
		// record stands (best-effort dual-write).
		slog.Warn("ingest: graph write failed for upload", "id", result.Doc.ID, "error", err)
		return result.Doc, fmt.Errorf("%w: %v", ErrGraphWrite, err)
	}
	return result.Doc, nil
}

// GetDocument looks up a metadata record by id.
func (e *engine) GetDocument(_ context.Context, id string) (*document.Document, error) {
	doc, err := e.meta.GetByID(id)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return doc, nil
}

// Related answers the graph-neighbourhood query.
func (e *engine) Related(ctx context.Context, id string, limit int) ([]graph.RelatedDoc, error) {
	return e.graph.Related(ctx, id, limit)
}

// Summary aggregates graph relationship counts with classification tallies
// over the metadata index.
func (e *engine) Summary(ctx context.Context) (*report.Summary, error) {
	counts, err := e.graph.RelationCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("relation counts: %w", err)
	}
	records, err := e.meta.List()
	if err != nil {
		return nil, fmt.Errorf("listing metadata: %w", err)
	}

	groups, sectors, services := report.Tally(records)
	return &report.Summary{
		RelationCounts: counts,
		Groups:         groups,
		Sectors:        sectors,
		Services:       services,
	}, nil
}

// Chat answers a question over a session, pulling sample corpus summaries
// for grounding.
func (e *engine) Chat(ctx context.Context, sess *chat.Session, question string) (string, error) {
	corpus, err := e.meta.ListDocuments()
	if err != nil {
		slog.Warn("chat: metadata load failed, answering without corpus", "error", err)
		corpus = nil
	}
	return e.assistant.Answer(ctx, sess, question, corpus)
}

// Metadata returns the metadata store for diagnostic access.
func (e *engine) Metadata() *metastore.Store { return e.meta }

// Graph returns the graph store for diagnostic access.
func (e *engine) Graph() *graph.Store { return e.graph }

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.graph.Close()
}

// writeJSON writes v as indented JSON.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
