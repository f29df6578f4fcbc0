package docgraph

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rfplabs/docgraph/llm"
)

// Config holds all configuration for the docgraph engine.
type Config struct {
	// GraphDBPath is the full path to the SQLite graph database. If empty,
	// defaults to <DataDir>/graph.db.
	GraphDBPath string `json:"graph_db_path" yaml:"graph_db_path"`

	// MetadataDir is where the flat metadata index lives. Defaults to
	// <DataDir>/metadata.
	MetadataDir string `json:"metadata_dir" yaml:"metadata_dir"`

	// SitemapDir is where per-run sitemaps are written. Defaults to
	// <DataDir>/sitemaps.
	SitemapDir string `json:"sitemap_dir" yaml:"sitemap_dir"`

	// DataDir roots the default paths above. Options: "home" (default)
	// uses ~/.docgraph, "local" uses the working directory.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Enricher configures the enrichment model client.
	Enricher llm.Config `json:"enricher" yaml:"enricher"`

	// Chat configures the chat assistant client. Zero value falls back to
	// the enricher client settings.
	Chat llm.Config `json:"chat" yaml:"chat"`

	// Concurrency bounds the batch fan-out. Default 8.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// PreviewChars bounds the stored content preview. Default 1500.
	PreviewChars int `json:"preview_chars" yaml:"preview_chars"`

	// UploadTimeout caps the single-document ingestion path. Exceeding it
	// surfaces as a retryable failure to the caller. Default 5m.
	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout"`
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible endpoint.
func DefaultConfig() Config {
	return Config{
		DataDir: "home",
		Enricher: llm.Config{
			Model:       "llama3.1:8b",
			Endpoints:   []string{"http://localhost:11434/v1/chat/completions"},
			Temperature: 0.3,
			Retries:     3,
			DelaySec:    5,
		},
		Concurrency:   8,
		PreviewChars:  1500,
		UploadTimeout: 5 * time.Minute,
	}
}

// dataRoot resolves the directory that default paths hang off.
func (c *Config) dataRoot() string {
	switch c.DataDir {
	case "local", "cwd":
		return "."
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		return filepath.Join(home, ".docgraph")
	}
}

// ResolveGraphDBPath computes the final graph database path.
func (c *Config) ResolveGraphDBPath() string {
	if c.GraphDBPath != "" {
		return c.GraphDBPath
	}
	return filepath.Join(c.dataRoot(), "graph.db")
}

// ResolveMetadataDir computes the final metadata directory.
func (c *Config) ResolveMetadataDir() string {
	if c.MetadataDir != "" {
		return c.MetadataDir
	}
	return filepath.Join(c.dataRoot(), "metadata")
}

// ResolveSitemapDir computes the final sitemap directory.
func (c *Config) ResolveSitemapDir() string {
	if c.SitemapDir != "" {
		return c.SitemapDir
	}
	return filepath.Join(c.dataRoot(), "sitemaps")
}

// chatConfig falls back to the enricher settings when no separate chat
// client is configured.
func (c *Config) chatConfig() llm.Config {
	if len(c.Chat.Endpoints) == 0 {
		chat := c.Enricher
		if c.Chat.Model != "" {
			chat.Model = c.Chat.Model
		}
		return chat
	}
	return c.Chat
}
