package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/askd/internal/storage"
)

type askRequest struct {
	ThreadID string `json:"threadId"`
	Question string `json:"question"`
}

type askResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"threadId"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		answer, err := deps.Sessions.Ask(r.Context(), req.ThreadID, req.Question)
		if err != nil {
			operationError(w, err)
			return
		}

		// Recording an unanswered question is best-effort bookkeeping; the
		// caller still gets the answer either way.
		if deps.Classifier != nil && deps.Classifier.Unanswered(answer.Text) {
			now := time.Now().UTC()
			q := storage.UnansweredQuestion{
				ID:        uuid.New().String(),
				Question:  req.Question,
				ThreadID:  answer.ThreadID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := deps.Store.SaveUnanswered(q); err != nil {
				slog.Warn("recording unanswered question", "error", err)
			} else {
				slog.Info("flagged unanswered question", "id", q.ID, "thread_id", q.ThreadID)
			}
		}

		writeJSON(w, askResponse{Response: answer.Text, ThreadID: answer.ThreadID})
	}
}
