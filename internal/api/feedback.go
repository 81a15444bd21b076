package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/askd/internal/storage"
)

type feedbackView struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	Rating    bool      `json:"rating"`
	ThreadIDs []string  `json:"threadIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func viewFeedback(fb storage.Feedback) feedbackView {
	threadIDs := fb.ThreadIDs
	if threadIDs == nil {
		threadIDs = []string{}
	}
	return feedbackView{
		ID:        fb.ID,
		Reason:    fb.Reason,
		Rating:    fb.Rating,
		ThreadIDs: threadIDs,
		CreatedAt: fb.CreatedAt,
		UpdatedAt: fb.UpdatedAt,
	}
}

type createFeedbackRequest struct {
	Reason    string   `json:"reason"`
	Rating    *bool    `json:"rating"`
	ThreadID  string   `json:"threadId"`
	ThreadIDs []string `json:"threadIds"`
}

func handleCreateFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req createFeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Rating == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rating is required")
			return
		}

		threadIDs := req.ThreadIDs
		if req.ThreadID != "" {
			threadIDs = append(threadIDs, req.ThreadID)
		}

		now := time.Now().UTC()
		fb := storage.Feedback{
			ID:        uuid.New().String(),
			Reason:    req.Reason,
			Rating:    *req.Rating,
			ThreadIDs: threadIDs,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Store.SaveFeedback(fb); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving feedback: %v", err)
			return
		}

		writeJSON(w, viewFeedback(fb))
	}
}

func handleListFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		records, err := deps.Store.ListFeedback(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing feedback: %v", err)
			return
		}

		views := make([]feedbackView, len(records))
		for i, fb := range records {
			views[i] = viewFeedback(fb)
		}
		writeJSON(w, views)
	}
}

// historyMessage is one remote chat message included in a feedback detail view.
type historyMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

type feedbackDetailView struct {
	feedbackView
	History map[string][]historyMessage `json:"history"`
}

func handleGetFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fb, err := deps.Store.GetFeedback(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "feedback not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "getting feedback: %v", err)
			return
		}

		// The stored record is the resource; remote chat history is an
		// enrichment and a missing thread should not turn into a 502.
		history := make(map[string][]historyMessage, len(fb.ThreadIDs))
		for _, threadID := range fb.ThreadIDs {
			messages, err := deps.History.ListMessages(r.Context(), threadID)
			if err != nil {
				slog.Warn("fetching chat history for feedback", "thread_id", threadID, "error", err)
				history[threadID] = []historyMessage{}
				continue
			}
			converted := make([]historyMessage, 0, len(messages))
			for _, m := range messages {
				text := ""
				for _, c := range m.Content {
					if c.Type == "text" {
						text = c.Text.Value
						break
					}
				}
				converted = append(converted, historyMessage{Role: m.Role, Text: text, CreatedAt: m.CreatedAt})
			}
			history[threadID] = converted
		}

		writeJSON(w, feedbackDetailView{feedbackView: viewFeedback(fb), History: history})
	}
}

type feedbackSummaryView struct {
	TotalYes int `json:"totalYes"`
	TotalNo  int `json:"totalNo"`
	Total    int `json:"total"`
}

func handleFeedbackSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Store.FeedbackSummary()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "summarizing feedback: %v", err)
			return
		}
		writeJSON(w, feedbackSummaryView{TotalYes: sum.TotalYes, TotalNo: sum.TotalNo, Total: sum.Total})
	}
}

type unansweredView struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	ThreadID  string    `json:"threadId,omitempty"`
	Updated   bool      `json:"updated"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func viewUnanswered(q storage.UnansweredQuestion) unansweredView {
	return unansweredView{
		ID:        q.ID,
		Question:  q.Question,
		ThreadID:  q.ThreadID,
		Updated:   q.Reviewed,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

func handleListUnanswered(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		questions, err := deps.Store.ListUnanswered(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing unanswered questions: %v", err)
			return
		}

		views := make([]unansweredView, len(questions))
		for i, q := range questions {
			views[i] = viewUnanswered(q)
		}
		writeJSON(w, views)
	}
}

type updateUnansweredRequest struct {
	Update *bool `json:"update"`
}

func handleUpdateUnanswered(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req updateUnansweredRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Update == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "update is required")
			return
		}

		q, err := deps.Store.SetUnansweredReviewed(chi.URLParam(r, "id"), *req.Update)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "unanswered question not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "updating unanswered question: %v", err)
			return
		}
		writeJSON(w, viewUnanswered(q))
	}
}
