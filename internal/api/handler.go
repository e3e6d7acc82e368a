// Package api exposes the HTTP surface: the chat query endpoint, workbook
// extraction, index building, and interaction log inspection.
//
// Request-time failures come back as a structured {"error": ...} payload in
// a 200 response, matching the contract the legacy monitoring system
// established: callers inspect the payload shape, not the status code.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/agrolab/hydrochat/internal/answer"
	"github.com/agrolab/hydrochat/internal/extract"
	"github.com/agrolab/hydrochat/internal/interaction"
	"github.com/agrolab/hydrochat/internal/storage"
)

const maxUploadSize = 20 << 20 // 20MB

// Answerer runs the retrieval-augmented pipeline for one query.
type Answerer interface {
	Answer(ctx context.Context, query string) answer.Result
}

// Deps holds the collaborators of the HTTP layer.
type Deps struct {
	Answerer  Answerer
	Extractor *extract.Service
	// Rebuild constructs the corpus index and returns the number of
	// documents indexed. Bound at startup by the server wiring.
	Rebuild func(ctx context.Context) (int, error)
	Log     *interaction.Log
	Store   *storage.Store // flush target for the interaction log
}

// NewHandler returns the hydrochat HTTP handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/chat", handleChat(deps))
	r.Post("/extract", handleExtract(deps))
	r.Post("/index", handleIndex(deps))
	r.Get("/interactions", handleListInteractions(deps))
	r.Post("/interactions/flush", handleFlushInteractions(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleChat answers a free-text question: GET /chat?string=...
func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("string")
		if query == "" {
			writePayloadError(w, "parâmetro 'string' é obrigatório")
			return
		}
		writeJSON(w, deps.Answerer.Answer(r.Context(), query))
	}
}

// handleExtract accepts a multipart workbook upload and produces windowed
// JSON artifacts.
func handleExtract(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			writePayloadError(w, "arquivo 'file' é obrigatório: %v", err)
			return
		}
		defer file.Close()

		tmp, err := os.CreateTemp("", "hydrochat-upload-*"+filepath.Ext(header.Filename))
		if err != nil {
			writePayloadError(w, "criando arquivo temporário: %v", err)
			return
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close()
			writePayloadError(w, "salvando upload: %v", err)
			return
		}
		tmp.Close()

		report, err := deps.Extractor.ProcessWorkbook(tmp.Name())
		if err != nil {
			writePayloadError(w, "processando planilha: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"message": "processamento concluído",
			"report":  report,
		})
	}
}

// handleIndex builds (or rebuilds) the corpus index from the extracted
// artifacts. Searches issued while the build runs keep seeing the previous
// index state, or "index not ready" when none exists yet.
func handleIndex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := deps.Rebuild(r.Context())
		if err != nil {
			writePayloadError(w, "construindo índice: %v", err)
			return
		}
		writeJSON(w, map[string]any{
			"message":   "índice construído",
			"documents": count,
		})
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"interactions": deps.Log.All(),
		})
	}
}

// handleFlushInteractions persists the in-memory log so process restarts
// do not lose the audit trail.
func handleFlushInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := deps.Log.All()
		items := make([]storage.Interaction, len(entries))
		for i, e := range entries {
			items[i] = storage.Interaction{
				ID:                e.ID,
				CreatedAt:         e.CreatedAt,
				Question:          e.Question,
				Answer:            e.Answer,
				RetrievedContexts: e.RetrievedContexts,
				Contexts:          e.Contexts,
			}
		}
		if err := deps.Store.SaveInteractions(items); err != nil {
			writePayloadError(w, "persistindo interações: %v", err)
			return
		}
		writeJSON(w, map[string]any{"flushed": len(items)})
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

// writePayloadError writes the error-as-payload envelope: HTTP 200 with a
// JSON body carrying only an "error" field.
func writePayloadError(w http.ResponseWriter, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("request failed", "error", msg)
	writeJSON(w, map[string]string{"error": msg})
}
