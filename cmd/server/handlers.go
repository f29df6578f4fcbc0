package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rfplabs/docgraph"
	"github.com/rfplabs/docgraph/chat"
	"github.com/rfplabs/docgraph/report"
)

type handler struct {
	engine     docgraph.Engine
	sitemapDir string

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

func newHandler(e docgraph.Engine, sitemapDir string) *handler {
	return &handler{
		engine:     e,
		sitemapDir: sitemapDir,
		sessions:   make(map[string]*chat.Session),
	}
}

// session returns the session for id, creating one (with a fresh id) when
// id is empty or unknown.
func (h *handler) session(id string) (string, *chat.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return id, s
	}
	id = uuid.NewString()
	s := chat.NewSession()
	h.sessions[id] = s
	return id, s
}

// POST /ingest
// Body: {"path": "/data/rfps"} — runs the batch pipeline over a folder.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing directory")
		return
	}

	rep, err := h.engine.IngestFolder(ctx, absPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		slog.Error("ingest error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// POST /upload
// Multipart upload of a single PDF. An optional "session_id" field binds
// the resulting document to a chat session.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
		writeError(w, http.StatusBadRequest, "expected multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)
	if filepath.Ext(safeName) != ".pdf" {
		writeError(w, http.StatusBadRequest, "only PDF uploads are supported")
		return
	}

	tmpPath := filepath.Join(os.TempDir(), safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	dst.Close()
	defer os.Remove(tmpPath)

	doc, err := h.engine.IngestFile(r.Context(), tmpPath)
	if err != nil && !errors.Is(err, docgraph.ErrGraphWrite) {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		slog.Error("upload ingest error", "file", safeName, "error", err)
		return
	}
	graphOK := err == nil
	if !graphOK {
		slog.Warn("upload stored without graph entry", "file", safeName, "error", err)
	}

	resp := map[string]interface{}{
		"document": doc,
		"graph_ok": graphOK,
	}
	if sid := r.FormValue("session_id"); sid != "" || r.FormValue("chat") == "true" {
		id, sess := h.session(sid)
		sess.SetCurrent(doc)
		resp["session_id"] = id
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /metadata
func (h *handler) handleListMetadata(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.Metadata().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list metadata")
		slog.Error("list metadata error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// GET /metadata/{id}
func (h *handler) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.engine.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, docgraph.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		slog.Error("get metadata error", "id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GET /sitemap
// Serves the sitemap written by the most recent ingest run.
func (h *handler) handleSitemap(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.sitemapDir, "sitemap.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "no sitemap yet; run an ingest first")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read sitemap")
		slog.Error("sitemap read error", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// GET /graph/related/{id}?limit=8
func (h *handler) handleRelated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	related, err := h.engine.Related(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "related lookup failed")
		slog.Error("related error", "id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"related":     related,
	})
}

// GET /graph/summary
// ?format=xlsx downloads the summary as a workbook instead of JSON.
func (h *handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "summary failed")
		slog.Error("summary error", "error", err)
		return
	}

	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("docgraph-summary-%s.xlsx", uuid.NewString()))
	defer os.Remove(tmpPath)
	if err := report.WriteWorkbook(tmpPath, summary); err != nil {
		writeError(w, http.StatusInternalServerError, "workbook generation failed")
		slog.Error("workbook error", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="graph_summary.xlsx"`)
	http.ServeFile(w, r, tmpPath)
}

// POST /chat
// Body: {"session_id": "...", "question": "..."}. An empty or unknown
// session_id starts a new session; the id is echoed back either way.
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	id, sess := h.session(req.SessionID)
	answer, err := h.engine.Chat(ctx, sess, req.Question)
	if err != nil {
		if errors.Is(err, chat.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "assistant unavailable")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		slog.Error("chat error", "session", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"answer":     answer,
	})
}

// DELETE /chat/{session}
func (h *handler) handleClearChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
