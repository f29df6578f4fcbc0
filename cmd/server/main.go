package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/rfplabs/docgraph"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Local development secrets; missing file is fine.
	_ = godotenv.Load()

	cfg := docgraph.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}
	applyEnv(&cfg)

	apiKey := os.Getenv("DOCGRAPH_API_KEY")
	corsOrigins := os.Getenv("DOCGRAPH_CORS_ORIGINS")

	engine, err := docgraph.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine, cfg.ResolveSitemapDir())

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(corsOrigins))
	r.Use(authMiddleware(apiKey))
	r.Use(logMiddleware)

	r.Post("/ingest", h.handleIngest)
	r.Post("/upload", h.handleUpload)
	r.Get("/metadata", h.handleListMetadata)
	r.Get("/metadata/{id}", h.handleGetMetadata)
	r.Get("/sitemap", h.handleSitemap)
	r.Get("/graph/related/{id}", h.handleRelated)
	r.Get("/graph/summary", h.handleSummary)
	r.Post("/chat", h.handleChat)
	r.Delete("/chat/{session}", h.handleClearChat)
	r.Get("/health", h.handleHealth)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // ingest runs can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// applyEnv overrides config fields from environment variables.
func applyEnv(cfg *docgraph.Config) {
	if v := os.Getenv("DOCGRAPH_GRAPH_DB_PATH"); v != "" {
		cfg.GraphDBPath = v
	}
	if v := os.Getenv("DOCGRAPH_METADATA_DIR"); v != "" {
		cfg.MetadataDir = v
	}
	if v := os.Getenv("DOCGRAPH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DOCGRAPH_MODEL"); v != "" {
		cfg.Enricher.Model = v
	}
	if v := os.Getenv("DOCGRAPH_LLM_ENDPOINTS"); v != "" {
		cfg.Enricher.Endpoints = splitList(v)
	}
	if v := os.Getenv("DOCGRAPH_LLM_API_KEY"); v != "" {
		cfg.Enricher.APIKey = v
	}
	if v := os.Getenv("DOCGRAPH_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("DOCGRAPH_CHAT_ENDPOINTS"); v != "" {
		cfg.Chat.Endpoints = splitList(v)
	}
	if v := os.Getenv("DOCGRAPH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
