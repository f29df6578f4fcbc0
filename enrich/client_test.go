package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/llm"
)

const sampleEnrichmentJSON = `{
  "content_summary": {"summary": "A cloud migration proposal.", "key_points": ["phased rollout"], "document_type": "proposal"},
  "classification": {"group_priority": "High", "sector": "Finance", "service_offerings": ["Cloud", "Security"]},
  "industry_tags": {"industries": ["Banking"], "domains": ["Infrastructure"]},
  "entities": {"technologies": ["Kubernetes"], "partners": ["AWS"], "products": []}
}`

// enricherWithResponse wires an LLMEnricher to a stub completion endpoint.
func enricherWithResponse(t *testing.T, handler http.HandlerFunc) (*LLMEnricher, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := llm.New(llm.Config{Model: "m", Endpoints: []string{srv.URL}, Retries: 1, DelaySec: 1})
	return NewLLMEnricher(client), srv.Close
}

func completionOK(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}
}

func TestEnrichParsesModelOutput(t *testing.T) {
	e, done := enricherWithResponse(t, completionOK(sampleEnrichmentJSON))
	defer done()

	got, err := e.Enrich(context.Background(), "document text", 12)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.ContentSummary.Summary != "A cloud migration proposal." {
		t.Errorf("summary = %q", got.ContentSummary.Summary)
	}
	if got.Classification.Sector != "Finance" {
		t.Errorf("sector = %q, want Finance", got.Classification.Sector)
	}
	if len(got.Entities.Technologies) != 1 || got.Entities.Technologies[0] != "Kubernetes" {
		t.Errorf("technologies = %v", got.Entities.Technologies)
	}
	// Normalization must have replaced the empty products list, not nil.
	if got.Entities.Products == nil {
		t.Error("products is nil, want empty slice")
	}
}

func TestEnrichDegradesOnUnavailable(t *testing.T) {
	e, done := enricherWithResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer done()

	got, err := e.Enrich(context.Background(), "text", 1)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.ContentSummary.Summary != SummaryUnavailable {
		t.Errorf("summary = %q, want %q", got.ContentSummary.Summary, SummaryUnavailable)
	}
	if got.Classification.Sector != document.Unknown {
		t.Errorf("sector = %q, want Unknown", got.Classification.Sector)
	}
}

func TestEnrichDegradesOnExhausted(t *testing.T) {
	e, done := enricherWithResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer done()

	got, err := e.Enrich(context.Background(), "text", 1)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.ContentSummary.Summary != SummaryExhausted {
		t.Errorf("summary = %q, want %q", got.ContentSummary.Summary, SummaryExhausted)
	}
}

func TestEnrichDegradesOnMalformedResponse(t *testing.T) {
	e, done := enricherWithResponse(t, completionOK("I could not analyse this document, sorry."))
	defer done()

	got, err := e.Enrich(context.Background(), "text", 1)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.ContentSummary.Summary != SummaryUnavailable {
		t.Errorf("summary = %q, want %q", got.ContentSummary.Summary, SummaryUnavailable)
	}
}

func TestEnrichCancelledContext(t *testing.T) {
	e, done := enricherWithResponse(t, completionOK(sampleEnrichmentJSON))
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Enrich(ctx, "text", 1); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Here is the JSON: {"a":1} Hope it helps!`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if err != nil {
				t.Fatalf("extractJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if _, err := extractJSON("no structured data here"); err == nil {
		t.Fatal("expected error when no object present")
	}
}

func TestParseEnrichmentNormalizes(t *testing.T) {
	got, err := parseEnrichment(`{"content_summary":{"summary":"s"}}`)
	if err != nil {
		t.Fatalf("parseEnrichment: %v", err)
	}
	if got.Classification.GroupPriority != document.Unknown {
		t.Errorf("group_priority = %q, want Unknown", got.Classification.GroupPriority)
	}
	if got.IndustryTags.Industries == nil {
		t.Error("industries is nil, want empty slice")
	}
}
