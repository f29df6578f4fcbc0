// Package metastore persists enriched document records as JSON files: one
// index per ingestion run, plus one file per document id on the
// single-upload path. The index file is written once per run after all
// batch results are collected; it is not safe for concurrent writers.
package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rfplabs/docgraph/document"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("metastore: document not found")

// indexFile is the canonical batch index, overwritten each run.
const indexFile = "metadata.json"

// Store reads and writes the flat metadata index under a directory.
type Store struct {
	dir string
}

// New creates the store, ensuring the directory exists.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating metadata directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// IndexPath returns the path of the batch index file.
func (s *Store) IndexPath() string { return filepath.Join(s.dir, indexFile) }

// WriteBatch serializes a full run's records (successes and error variants
// alike) into the index file. The write goes through a temp file and
// rename so a failed run never leaves a truncated index behind.
func (s *Store) WriteBatch(records []document.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata batch: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, indexFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing metadata batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp index: %w", err)
	}
	if err := os.Rename(tmpPath, s.IndexPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing metadata index: %w", err)
	}
	return nil
}

// WriteOne persists a single document as doc_<id>.json, overwriting any
// previous record for the same id.
func (s *Store) WriteOne(doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("metastore: document has no id")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", doc.ID, err)
	}
	path := filepath.Join(s.dir, "doc_"+doc.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing document %s: %w", doc.ID, err)
	}
	return nil
}

// GetByID looks up a document: first the per-id file, then the batch
// index. Error-variant records never match.
func (s *Store) GetByID(id string) (*document.Document, error) {
	path := filepath.Join(s.dir, "doc_"+id+".json")
	if data, err := os.ReadFile(path); err == nil {
		var doc document.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", id, err)
		}
		return &doc, nil
	}

	records, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Doc != nil && r.Doc.ID == id {
			return r.Doc, nil
		}
	}
	return nil, ErrNotFound
}

// List enumerates the batch index wholesale. A missing index is an empty
// corpus, not an error.
func (s *Store) List() ([]document.Record, error) {
	data, err := os.ReadFile(s.IndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading metadata index: %w", err)
	}

	var records []document.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding metadata index: %w", err)
	}
	return records, nil
}

// ListDocuments returns only the successful records from the index plus
// any per-id files not already present, for downstream summarization.
func (s *Store) ListDocuments() ([]*document.Document, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var docs []*document.Document
	for _, r := range records {
		if r.Doc != nil {
			docs = append(docs, r.Doc)
			seen[r.Doc.ID] = true
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing metadata directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "doc_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var doc document.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		if doc.ID != "" && !seen[doc.ID] {
			docs = append(docs, &doc)
			seen[doc.ID] = true
		}
	}
	return docs, nil
}
