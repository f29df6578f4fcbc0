package pipeline

import (
	"strings"

	"github.com/rfplabs/docgraph/document"
)

// InferTags maps the first three segments of a relative path to
// domain/region/client. Pure boundary function: the core pipeline consumes
// only the resolved Tags struct, never raw paths. Missing segments (and
// the filename itself, which is never a segment) default to Unknown.
func InferTags(relPath string) document.Tags {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	parts := strings.Split(relPath, "/")

	// The last element is the filename; only directory segments carry tags.
	segs := parts[:len(parts)-1]

	tags := document.Tags{
		Domain: document.Unknown,
		Region: document.Unknown,
		Client: document.Unknown,
	}
	if len(segs) > 0 && segs[0] != "" {
		tags.Domain = segs[0]
	}
	if len(segs) > 1 && segs[1] != "" {
		tags.Region = segs[1]
	}
	if len(segs) > 2 && segs[2] != "" {
		tags.Client = segs[2]
	}
	return tags
}
