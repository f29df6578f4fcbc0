//go:build cgo

package docgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rfplabs/docgraph/llm"
)

// newTestEngine wires an engine to temp storage and a stub completion
// endpoint returning the given enrichment JSON.
func newTestEngine(t *testing.T, enrichment string) Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, enrichment)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.GraphDBPath = filepath.Join(dir, "graph.db")
	cfg.MetadataDir = filepath.Join(dir, "metadata")
	cfg.SitemapDir = filepath.Join(dir, "sitemaps")
	cfg.Enricher = llm.Config{Model: "m", Endpoints: []string{srv.URL}, Retries: 1, DelaySec: 1}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

const stubEnrichment = `{"content_summary":{"summary":"stub"}}`

// writeMinimalPDF writes a structurally valid one-page PDF with exact xref
// offsets computed from the buffer.
func writeMinimalPDF(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	offsets := make([]int, 6)

	buf.WriteString("%PDF-1.4\n")
	add := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	content := "BT /F1 12 Tf 72 720 Td (Platform modernisation with Kubernetes.) Tj ET"
	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	add(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>")
	add(4, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	add(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	xref := buf.Len()
	buf.WriteString("xref\n0 6\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewRequiresEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enricher.Endpoints = nil
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestIngestFolderIsolatesFailures(t *testing.T) {
	e := newTestEngine(t, stubEnrichment)

	root := t.TempDir()
	sub := filepath.Join(root, "Healthcare", "EMEA")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Both files are unparseable; each must fail on its own, and the run
	// must still produce a complete report and index.
	os.WriteFile(filepath.Join(sub, "a.pdf"), []byte("not a pdf"), 0644)
	os.WriteFile(filepath.Join(root, "b.pdf"), []byte("also not a pdf"), 0644)

	rep, err := e.IngestFolder(context.Background(), root)
	if err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	if rep.Processed != 2 {
		t.Errorf("processed = %d, want 2", rep.Processed)
	}
	if rep.Failed != 2 || rep.Succeeded != 0 {
		t.Errorf("failed = %d, succeeded = %d", rep.Failed, rep.Succeeded)
	}
	if rep.RunID == "" {
		t.Error("expected a run id")
	}

	// The index carries the error variants.
	records, err := e.Metadata().List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("index records = %d, want 2", len(records))
	}
	for _, r := range records {
		if !r.Failed() {
			t.Errorf("expected error variant, got %+v", r)
		}
	}

	// The sitemap was written.
	if rep.SitemapPath == "" {
		t.Error("expected sitemap path in report")
	} else if _, err := os.Stat(rep.SitemapPath); err != nil {
		t.Errorf("sitemap not on disk: %v", err)
	}
}

func TestIngestFolderEmpty(t *testing.T) {
	e := newTestEngine(t, stubEnrichment)
	rep, err := e.IngestFolder(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	if rep.Processed != 0 {
		t.Errorf("processed = %d, want 0", rep.Processed)
	}
}

func TestIngestFileFailure(t *testing.T) {
	e := newTestEngine(t, stubEnrichment)

	path := filepath.Join(t.TempDir(), "fake.pdf")
	os.WriteFile(path, []byte("not a pdf"), 0644)

	_, err := e.IngestFile(context.Background(), path)
	if !errors.Is(err, ErrIngestFailed) {
		t.Fatalf("err = %v, want ErrIngestFailed", err)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	e := newTestEngine(t, stubEnrichment)
	_, err := e.GetDocument(context.Background(), "nosuchid0000")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestSummaryEmptyCorpus(t *testing.T) {
	e := newTestEngine(t, stubEnrichment)
	s, err := e.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(s.RelationCounts) != 0 || len(s.Groups) != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

func TestIngestFolderLinksEntities(t *testing.T) {
	enrichment := `{"content_summary":{"summary":"Platform modernisation."},` +
		`"entities":{"technologies":["Kubernetes"]}}`
	e := newTestEngine(t, enrichment)

	root := t.TempDir()
	writeMinimalPDF(t, filepath.Join(root, "platform.pdf"))

	rep, err := e.IngestFolder(context.Background(), root)
	if err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	if rep.Succeeded != 1 || rep.Failed != 0 || rep.GraphErrors != 0 {
		t.Fatalf("report = %+v", rep)
	}

	// The document is linked to exactly one Technology node.
	counts, err := e.Graph().RelationCounts(context.Background())
	if err != nil {
		t.Fatalf("RelationCounts: %v", err)
	}
	if counts["MENTIONS_TECHNOLOGY"] != 1 {
		t.Errorf("MENTIONS_TECHNOLOGY = %d, want 1", counts["MENTIONS_TECHNOLOGY"])
	}
	nodes, edges, err := e.Graph().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// 1 document + 1 Technology; the root-level file carries only Unknown
	// tags, which produce no nodes.
	if nodes != 2 || edges != 1 {
		t.Errorf("nodes = %d, edges = %d, want 2/1", nodes, edges)
	}

	// The record is retrievable by its fingerprint id.
	records, err := e.Metadata().List()
	if err != nil || len(records) != 1 || records[0].Doc == nil {
		t.Fatalf("index = %+v (%v)", records, err)
	}
	doc, err := e.GetDocument(context.Background(), records[0].Doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if len(doc.Entities.Technologies) != 1 || doc.Entities.Technologies[0] != "Kubernetes" {
		t.Errorf("technologies = %v", doc.Entities.Technologies)
	}

	// Re-ingesting the unchanged file must not grow the graph.
	if _, err := e.IngestFolder(context.Background(), root); err != nil {
		t.Fatalf("second IngestFolder: %v", err)
	}
	n2, e2, err := e.Graph().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if n2 != nodes || e2 != edges {
		t.Errorf("graph grew on re-ingest: nodes %d->%d, edges %d->%d", nodes, n2, edges, e2)
	}
}

func TestConfigResolvesLocalPaths(t *testing.T) {
	cfg := Config{DataDir: "local"}
	if got := cfg.ResolveGraphDBPath(); got != filepath.Join(".", "graph.db") {
		t.Errorf("graph path = %q", got)
	}
	if got := cfg.ResolveMetadataDir(); got != filepath.Join(".", "metadata") {
		t.Errorf("metadata dir = %q", got)
	}

	cfg.GraphDBPath = "/custom/graph.db"
	if got := cfg.ResolveGraphDBPath(); got != "/custom/graph.db" {
		t.Errorf("explicit path not honoured: %q", got)
	}
}

func TestChatConfigFallsBackToEnricher(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enricher.Endpoints = []string{"http://example/v1/chat/completions"}

	chat := cfg.chatConfig()
	if len(chat.Endpoints) != 1 || chat.Endpoints[0] != cfg.Enricher.Endpoints[0] {
		t.Errorf("chat endpoints = %v", chat.Endpoints)
	}
	if chat.Model != cfg.Enricher.Model {
		t.Errorf("chat model = %q, want enricher model", chat.Model)
	}

	cfg.Chat.Model = "other-model"
	if got := cfg.chatConfig().Model; got != "other-model" {
		t.Errorf("chat model override = %q", got)
	}

	cfg.Chat = llm.Config{Model: "dedicated", Endpoints: []string{"http://chat/v1"}}
	if got := cfg.chatConfig(); got.Model != "dedicated" || got.Endpoints[0] != "http://chat/v1" {
		t.Errorf("dedicated chat config not used: %+v", got)
	}
}
