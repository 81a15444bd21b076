// Package api exposes the HTTP surface: document ingestion, conversational
// ask, and CRUD over documents, feedback, and unanswered questions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/askd/internal/assistant"
	"github.com/kalambet/askd/internal/classify"
	"github.com/kalambet/askd/internal/ingest"
	"github.com/kalambet/askd/internal/ocr"
	"github.com/kalambet/askd/internal/session"
	"github.com/kalambet/askd/internal/spool"
	"github.com/kalambet/askd/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxUploadBodySize = 50 << 20 // 50MB across all multipart files

// Ingestor drives document ingestion and knowledge-base removal.
type Ingestor interface {
	Ingest(ctx context.Context, files []ingest.RawFile, displayName string) (storage.Document, error)
	Remove(ctx context.Context, doc storage.Document) error
}

// Asker runs one question/answer cycle against the assistant service.
type Asker interface {
	Ask(ctx context.Context, threadID, question string) (session.Answer, error)
}

// HistoryFetcher pulls a thread's remote message history for feedback
// detail views.
type HistoryFetcher interface {
	ListMessages(ctx context.Context, threadID string) ([]assistant.Message, error)
}

// Deps holds the handler's collaborators, constructed once at startup.
type Deps struct {
	Store      *storage.Store
	Pipeline   Ingestor
	Sessions   Asker
	Classifier classify.Classifier
	History    HistoryFetcher
	Spool      *spool.Dir
}

// NewHandler returns the HTTP handler for all askd routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Post("/upload", handleUpload(deps))
	r.Post("/ask", handleAsk(deps))

	r.Get("/files", handleListDocuments(deps))
	r.Get("/files/{id}", handleGetDocument(deps))
	r.Patch("/files/{id}", handleRenameDocument(deps))
	r.Delete("/files/{id}", handleDeleteDocument(deps))

	r.Post("/feedback", handleCreateFeedback(deps))
	r.Get("/feedback", handleListFeedback(deps))
	r.Get("/feedback/{id}", handleGetFeedback(deps))
	r.Get("/feedback-summary", handleFeedbackSummary(deps))

	r.Get("/unanswered", handleListUnanswered(deps))
	r.Patch("/unanswered/{id}", handleUpdateUnanswered(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// operationError maps a core-operation failure onto the error taxonomy:
// validation → 400, not found → 404, poll budget exceeded → 504, everything
// else (remote service failures, terminal run statuses) → 502 with the
// upstream detail preserved.
func operationError(w http.ResponseWriter, err error) {
	var apiErr *assistant.APIError
	var ocrErr *ocr.APIError
	var runErr *session.RunError

	switch {
	case errors.Is(err, ingest.ErrNoFiles):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one file is required")
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, session.ErrPollTimeout):
		httpError(w, http.StatusGatewayTimeout, "timeout_error", "%v", err)
	case errors.As(err, &runErr):
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	case errors.As(err, &apiErr):
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	case errors.As(err, &ocrErr):
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	default:
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
