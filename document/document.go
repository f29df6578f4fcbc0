// Package document defines the enriched document record shared by the
// pipeline, the metadata store, and the graph upserter.
package document

import "encoding/json"

// Unknown is the sentinel for a tag or classification field that was
// intentionally left unresolved. It is distinct from absence: consumers
// skip it rather than treat it as a real value.
const Unknown = "Unknown"

// Tags are inferred from the document's relative path segments.
type Tags struct {
	Domain string `json:"domain"`
	Region string `json:"region"`
	Client string `json:"client"`
}

// ContentSummary is the structured summary block produced by enrichment.
type ContentSummary struct {
	Summary      string   `json:"summary"`
	KeyPoints    []string `json:"key_points"`
	DocumentType string   `json:"document_type"`
}

// Classification is the LLM-derived business classification.
type Classification struct {
	GroupPriority    string   `json:"group_priority"`
	Sector           string   `json:"sector"`
	ServiceOfferings []string `json:"service_offerings"`
}

// IndustryTags holds the industry and domain labels assigned by enrichment.
type IndustryTags struct {
	Industries []string `json:"industries"`
	Domains    []string `json:"domains"`
}

// Entities holds the named entities extracted from the document text.
type Entities struct {
	Technologies []string `json:"technologies"`
	Partners     []string `json:"partners"`
	Products     []string `json:"products"`
}

// Enrichment is the fixed-shape record returned by the enricher.
type Enrichment struct {
	ContentSummary ContentSummary `json:"content_summary"`
	Classification Classification `json:"classification"`
	IndustryTags   IndustryTags   `json:"industry_tags"`
	Entities       Entities       `json:"entities"`
}

// Normalize fills every unresolved scalar with the Unknown sentinel and
// replaces nil lists with empty slices so consumers can iterate without
// presence checks.
func (e *Enrichment) Normalize() {
	if e.Classification.GroupPriority == "" {
		e.Classification.GroupPriority = Unknown
	}
	if e.Classification.Sector == "" {
		e.Classification.Sector = Unknown
	}
	if e.Classification.ServiceOfferings == nil {
		e.Classification.ServiceOfferings = []string{}
	}
	if e.ContentSummary.KeyPoints == nil {
		e.ContentSummary.KeyPoints = []string{}
	}
	if e.IndustryTags.Industries == nil {
		e.IndustryTags.Industries = []string{}
	}
	if e.IndustryTags.Domains == nil {
		e.IndustryTags.Domains = []string{}
	}
	if e.Entities.Technologies == nil {
		e.Entities.Technologies = []string{}
	}
	if e.Entities.Partners == nil {
		e.Entities.Partners = []string{}
	}
	if e.Entities.Products == nil {
		e.Entities.Products = []string{}
	}
}

// FileMetadata holds filesystem- and PDF-level properties of a source file.
// A failure reading one half leaves the other half intact; the error note
// records what could not be read.
type FileMetadata struct {
	FileSizeBytes int64             `json:"file_size_bytes"`
	CreatedTime   string            `json:"created_time,omitempty"`
	ModifiedTime  string            `json:"modified_time,omitempty"`
	PageCount     int               `json:"page_count"`
	PDFMetadata   map[string]string `json:"pdf_metadata,omitempty"`
	FSMetaError   string            `json:"fs_meta_error,omitempty"`
	PDFMetaError  string            `json:"pdf_meta_error,omitempty"`
}

// Document is one fully enriched document record. Identity is ID, the
// short content fingerprint; re-ingesting unchanged bytes yields the same
// ID. Instances are immutable once produced by the pipeline.
type Document struct {
	ID             string            `json:"id"`
	Filename       string            `json:"filename"`
	RelativePath   string            `json:"relative_path"`
	Extension      string            `json:"extension"`
	Tags           Tags              `json:"tags"`
	FileSizeBytes  int64             `json:"file_size_bytes"`
	LastModified   string            `json:"last_modified,omitempty"`
	PageCount      int               `json:"page_count"`
	ContentLength  int               `json:"content_length"`
	PDFMetadata    map[string]string `json:"pdf_metadata,omitempty"`
	Hash           string            `json:"hash"`
	Language       string            `json:"language"`
	IngestedAt     string            `json:"ingested_at"`
	ContentPreview string            `json:"content_preview"`

	OverviewSummary string         `json:"overview_summary"`
	ContentSummary  ContentSummary `json:"content_summary"`
	Classification  Classification `json:"classification"`
	IndustryTags    IndustryTags   `json:"industry_tags"`
	Entities        Entities       `json:"entities"`

	ExtractionTimeSec float64 `json:"extraction_time_sec"`
}

// Record is one entry in the metadata index: either a full enriched
// document or the error variant produced when a pipeline stage failed for
// that file. Exactly one of Doc / Error is set.
type Record struct {
	Doc      *Document
	Error    string
	Filename string
}

// Failed reports whether this record is the error variant.
func (r Record) Failed() bool { return r.Error != "" }

type errRecord struct {
	Error    string `json:"error"`
	Filename string `json:"filename"`
}

// MarshalJSON serializes the error variant as {error, filename} and the
// success variant as the bare document object.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(errRecord{Error: r.Error, Filename: r.Filename})
	}
	return json.Marshal(r.Doc)
}

// UnmarshalJSON probes for the error variant before decoding a document.
func (r *Record) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error    string `json:"error"`
		Filename string `json:"filename"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Error != "" && probe.ID == "" {
		r.Error = probe.Error
		r.Filename = probe.Filename
		r.Doc = nil
		return nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.Doc = &doc
	r.Filename = doc.Filename
	r.Error = ""
	return nil
}
