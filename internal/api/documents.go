package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/askd/internal/ingest"
	"github.com/kalambet/askd/internal/storage"
)

// documentView is the wire shape of a document. Single-file documents
// expose fileId, multi-file documents fileIds.
type documentView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	OriginalFilename string    `json:"originalFilename,omitempty"`
	FileID           string    `json:"fileId,omitempty"`
	FileIDs          []string  `json:"fileIds,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func viewDocument(doc storage.Document) documentView {
	v := documentView{
		ID:               doc.ID,
		Name:             doc.Name,
		OriginalFilename: doc.OriginalFilename,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
	if len(doc.FileIDs) == 1 {
		v.FileID = doc.FileIDs[0]
	} else {
		v.FileIDs = doc.FileIDs
	}
	return v
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart request: %v", err)
			return
		}

		parts := r.MultipartForm.File["files"]
		if len(parts) == 0 {
			parts = r.MultipartForm.File["file"]
		}
		if len(parts) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one file is required")
			return
		}

		name := r.FormValue("name")
		if name == "" {
			name = parts[0].Filename
		}

		// Spool each part to disk before touching any remote service.
		files := make([]ingest.RawFile, 0, len(parts))
		for _, fh := range parts {
			part, err := fh.Open()
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading uploaded file %s: %v", fh.Filename, err)
				return
			}
			path, err := deps.Spool.Save(part, filepath.Ext(fh.Filename))
			part.Close()
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "spooling uploaded file %s: %v", fh.Filename, err)
				return
			}
			files = append(files, ingest.RawFile{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Path:        path,
			})
		}
		// The pipeline removes spool files as it processes them; this
		// catches files it never reached. Remove tolerates missing files.
		defer func() {
			for _, f := range files {
				deps.Spool.Remove(f.Path)
			}
		}()

		doc, err := deps.Pipeline.Ingest(r.Context(), files, name)
		if err != nil {
			operationError(w, err)
			return
		}

		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving document: %v", err)
			return
		}

		if len(doc.FileIDs) == 1 {
			writeJSON(w, map[string]any{"id": doc.ID, "fileId": doc.FileIDs[0]})
			return
		}
		writeJSON(w, map[string]any{"id": doc.ID, "fileIds": doc.FileIDs})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		docs, err := deps.Store.ListDocuments(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing documents: %v", err)
			return
		}

		views := make([]documentView, len(docs))
		for i, doc := range docs {
			views[i] = viewDocument(doc)
		}
		writeJSON(w, views)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Store.GetDocument(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "getting document: %v", err)
			return
		}
		writeJSON(w, viewDocument(doc))
	}
}

type renameDocumentRequest struct {
	Name string `json:"name"`
}

func handleRenameDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req renameDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		id := chi.URLParam(r, "id")
		err := deps.Store.RenameDocument(id, req.Name)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "renaming document: %v", err)
			return
		}

		doc, err := deps.Store.GetDocument(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reloading document: %v", err)
			return
		}
		writeJSON(w, viewDocument(doc))
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "getting document: %v", err)
			return
		}

		// Detach from the knowledge base first. If that fails the metadata
		// record stays, keeping the remaining attachments reachable.
		if err := deps.Pipeline.Remove(r.Context(), doc); err != nil {
			operationError(w, err)
			return
		}

		if err := deps.Store.DeleteDocument(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Error("document detached but metadata delete failed", "id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "deleting document record: %v", err)
			return
		}

		writeJSON(w, map[string]any{"deleted": true, "id": id})
	}
}
