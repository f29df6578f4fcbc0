package pipeline

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/extract"
)

// overviewChars bounds the quick overview taken from the first page.
const overviewChars = 500

// Entry is one candidate PDF discovered under a root folder. It carries
// the cheap, pre-enrichment view of the file used to drive the pipeline.
type Entry struct {
	Filename      string        `json:"filename"`
	AbsolutePath  string        `json:"absolute_path"`
	RelativePath  string        `json:"relative_path"`
	Extension     string        `json:"extension"`
	Tags          document.Tags `json:"tags"`
	FileSizeBytes int64         `json:"file_size_bytes"`
	LastModified  string        `json:"last_modified,omitempty"`
	PageCount     int           `json:"page_count"`
	QuickOverview string        `json:"quick_overview,omitempty"`
}

// BuildSitemap walks root and collects an Entry per PDF file, with
// path-inferred tags and a first-page overview. Unreadable files still get
// an entry (with zero page count) so the pipeline can report their failure
// instead of silently dropping them.
func BuildSitemap(root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".pdf" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entry := Entry{
			Filename:     d.Name(),
			AbsolutePath: path,
			RelativePath: rel,
			Extension:    ext,
			Tags:         InferTags(rel),
		}
		if info, err := d.Info(); err == nil {
			entry.FileSizeBytes = info.Size()
			entry.LastModified = info.ModTime().Format(time.RFC3339)
		}
		entry.PageCount = extract.PageCount(path)
		entry.QuickOverview = quickOverview(extract.FirstPageText(path))

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("sitemap: scan complete", "root", root, "pdfs", len(entries))
	return entries, nil
}

// quickOverview flattens and truncates first-page text.
func quickOverview(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if len(text) > overviewChars {
		return text[:overviewChars]
	}
	return text
}
