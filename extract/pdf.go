// Package extract reads text, metadata, and content fingerprints from PDF
// files. All functions are synchronous and side-effect free beyond file
// reads.
package extract

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/rfplabs/docgraph/document"
)

// Text extracts the plain text of every page in page order, joined with
// newlines. It fails if the file is unreadable or the PDF structure is
// corrupt; pages that individually fail to decode are skipped.
func Text(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

// FirstPageText returns the text of the first page only, for cheap
// sitemap overviews. Errors degrade to an empty string.
func FirstPageText(path string) string {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	if reader.NumPage() < 1 {
		return ""
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// PageCount returns the number of pages, or 0 on any error.
func PageCount(path string) int {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return reader.NumPage()
}

// infoKeys are the standard PDF document information dictionary entries
// worth surfacing in metadata.
var infoKeys = []string{
	"Title", "Author", "Subject", "Keywords",
	"Creator", "Producer", "CreationDate", "ModDate",
}

// Metadata reads filesystem stat and PDF document properties independently.
// A failure in one half yields partial data with an embedded error note
// rather than total failure, so callers salvage whatever is readable.
func Metadata(path string) document.FileMetadata {
	var meta document.FileMetadata

	stat, err := os.Stat(path)
	if err != nil {
		meta.FSMetaError = err.Error()
	} else {
		meta.FileSizeBytes = stat.Size()
		meta.ModifiedTime = stat.ModTime().Format(time.RFC3339)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		meta.PDFMetaError = err.Error()
		return meta
	}
	defer f.Close()

	meta.PageCount = reader.NumPage()
	meta.PDFMetadata = docInfo(reader)
	return meta
}

// docInfo pulls the document information dictionary into a flat map.
// Missing or malformed entries are simply omitted.
func docInfo(reader *pdf.Reader) (props map[string]string) {
	defer func() {
		if recover() != nil {
			props = nil // malformed trailers can panic inside the decoder
		}
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}
	props = make(map[string]string)
	for _, k := range infoKeys {
		v := info.Key(k)
		if v.IsNull() {
			continue
		}
		if s := strings.TrimSpace(v.Text()); s != "" {
			props[k] = s
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}
