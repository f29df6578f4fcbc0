package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/llm"
)

// maxPromptChars bounds how much document text is sent to the model.
// Enrichment works on the opening of the document; whole-document context
// adds latency without improving the classification.
const maxPromptChars = 12000

// enrichmentPrompt asks for the full enrichment record in one call.
const enrichmentPrompt = `You are a document analysis engine for business and RFP documents.
Given the document text below, produce a JSON object with exactly these keys:

  "content_summary" : {"summary": string, "key_points": array of strings, "document_type": string}
  "classification"  : {"group_priority": string, "sector": string, "service_offerings": array of strings}
  "industry_tags"   : {"industries": array of strings, "domains": array of strings}
  "entities"        : {"technologies": array of strings, "partners": array of strings, "products": array of strings}

Rules:
- "summary" is 2-4 sentences covering purpose, scope, and audience.
- Use "Unknown" for any classification field you cannot determine.
- Lists may be empty but must always be present.
- Entity names keep their original casing (e.g. "Kubernetes", not "kubernetes").
- Do NOT include any text outside the JSON object.

The document has %d pages.

TEXT:
%s`

// LLMEnricher implements Enricher on top of the completion client. All
// model failure modes degrade to a sentinel-bearing record; the only error
// returned is context cancellation.
type LLMEnricher struct {
	client *llm.Client
}

// NewLLMEnricher wraps a completion client.
func NewLLMEnricher(client *llm.Client) *LLMEnricher {
	return &LLMEnricher{client: client}
}

// Enrich sends the document text to the model and parses the structured
// response. Transient and terminal model failures both degrade to a record
// whose summary carries the failure note; the document is never aborted
// here.
func (e *LLMEnricher) Enrich(ctx context.Context, text string, pageCount int) (*document.Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	prompt := fmt.Sprintf(enrichmentPrompt, pageCount, text)

	res := e.client.Complete(ctx, prompt)
	switch res.Outcome {
	case llm.Success:
		// parsed below
	case llm.RateLimited, llm.Exhausted:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Warn("enrich: model exhausted, degrading", "outcome", res.Outcome.String(), "error", res.Err)
		return degraded(SummaryExhausted), nil
	default:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Warn("enrich: model unavailable, degrading", "error", res.Err)
		return degraded(SummaryUnavailable), nil
	}

	enrichment, err := parseEnrichment(res.Content)
	if err != nil {
		slog.Warn("enrich: malformed model response, degrading", "error", err)
		return degraded(SummaryUnavailable), nil
	}
	return enrichment, nil
}

// codeBlockRe strips markdown code fences from model output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON finds the JSON object in raw model output, tolerating fences
// and stray prose before or after the object.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}
	return "", fmt.Errorf("no JSON object in response")
}

// parseEnrichment decodes and normalizes the model's JSON output.
func parseEnrichment(raw string) (*document.Enrichment, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var enrichment document.Enrichment
	if err := json.Unmarshal([]byte(jsonStr), &enrichment); err != nil {
		return nil, fmt.Errorf("decoding enrichment: %w", err)
	}
	enrichment.Normalize()
	return &enrichment, nil
}
