package docgraph

import "errors"

var (
	// ErrDocumentNotFound is returned when a document id has no metadata
	// record.
	ErrDocumentNotFound = errors.New("docgraph: document not found")

	// ErrIngestFailed is returned by the single-document path when the
	// pipeline could not produce a record for the file.
	ErrIngestFailed = errors.New("docgraph: ingestion failed")

	// ErrMetadataStore is returned when the metadata index cannot be
	// written. It is fatal to the ingestion run.
	ErrMetadataStore = errors.New("docgraph: metadata store write failed")

	// ErrGraphWrite is returned when a document's graph transaction fails.
	// It aborts only that document's write, never the batch.
	ErrGraphWrite = errors.New("docgraph: graph write failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docgraph: invalid configuration")
)
