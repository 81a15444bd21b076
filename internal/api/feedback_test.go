package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/kalambet/askd/internal/assistant"
	"github.com/kalambet/askd/internal/storage"
)

func TestCreateFeedback(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/feedback", map[string]any{
		"reason":   "answer was spot on",
		"rating":   true,
		"threadId": "thread_1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		ID        string   `json:"id"`
		Reason    string   `json:"reason"`
		Rating    bool     `json:"rating"`
		ThreadIDs []string `json:"threadIds"`
	}
	decodeBody(t, rec, &body)
	if body.ID == "" {
		t.Error("missing feedback id")
	}
	if !body.Rating || body.Reason != "answer was spot on" {
		t.Errorf("body = %+v", body)
	}
	if len(body.ThreadIDs) != 1 || body.ThreadIDs[0] != "thread_1" {
		t.Errorf("threadIds = %v, want [thread_1]", body.ThreadIDs)
	}

	if _, err := env.store.GetFeedback(body.ID); err != nil {
		t.Errorf("feedback not persisted: %v", err)
	}
}

func TestCreateFeedback_MergesThreadIDs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/feedback", map[string]any{
		"rating":    false,
		"threadId":  "thread_c",
		"threadIds": []string{"thread_a", "thread_b"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		ThreadIDs []string `json:"threadIds"`
	}
	decodeBody(t, rec, &body)
	if len(body.ThreadIDs) != 3 {
		t.Errorf("threadIds = %v, want all three merged", body.ThreadIDs)
	}
}

func TestCreateFeedback_RatingRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.doJSON(t, http.MethodPost, "/feedback", map[string]any{"reason": "no rating"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetFeedback_IncludesHistory(t *testing.T) {
	env := newTestEnv(t)
	env.history.messages["thread_1"] = []assistant.Message{
		{
			ID: "msg_2", Role: "assistant", CreatedAt: 200,
			Content: []assistant.MessageContent{
				{Type: "text", Text: assistant.MessageText{Value: "the total is $42"}},
			},
		},
		{
			ID: "msg_1", Role: "user", CreatedAt: 100,
			Content: []assistant.MessageContent{
				{Type: "text", Text: assistant.MessageText{Value: "what is the total?"}},
			},
		},
	}

	now := time.Now().UTC()
	fb := storage.Feedback{
		ID: "fb_1", Rating: true, ThreadIDs: []string{"thread_1"},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.store.SaveFeedback(fb); err != nil {
		t.Fatalf("SaveFeedback: %v", err)
	}

	rec := env.doJSON(t, http.MethodGet, "/feedback/fb_1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		ID      string `json:"id"`
		History map[string][]struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"history"`
	}
	decodeBody(t, rec, &body)
	msgs := body.History["thread_1"]
	if len(msgs) != 2 {
		t.Fatalf("history for thread_1 has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "assistant" || msgs[0].Text != "the total is $42" {
		t.Errorf("history[0] = %+v", msgs[0])
	}
}

func TestGetFeedback_HistoryFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.history.err = &assistant.APIError{StatusCode: 404, Body: "thread gone"}

	now := time.Now().UTC()
	fb := storage.Feedback{
		ID: "fb_1", Rating: false, ThreadIDs: []string{"thread_gone"},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.store.SaveFeedback(fb); err != nil {
		t.Fatalf("SaveFeedback: %v", err)
	}

	rec := env.doJSON(t, http.MethodGet, "/feedback/fb_1", nil)
	// The stored record is the resource; a lost thread must not fail the read.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite history failure", rec.Code)
	}
	var body struct {
		History map[string][]any `json:"history"`
	}
	decodeBody(t, rec, &body)
	if msgs, ok := body.History["thread_gone"]; !ok || len(msgs) != 0 {
		t.Errorf("history = %v, want an empty entry for the lost thread", body.History)
	}
}

func TestGetFeedback_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.doJSON(t, http.MethodGet, "/feedback/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestFeedbackSummary(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/feedback-summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sum struct {
		TotalYes int `json:"totalYes"`
		TotalNo  int `json:"totalNo"`
		Total    int `json:"total"`
	}
	decodeBody(t, rec, &sum)
	if sum.Total != 0 {
		t.Errorf("empty summary = %+v", sum)
	}

	now := time.Now().UTC()
	for i, rating := range []bool{true, false, false} {
		fb := storage.Feedback{
			ID: string(rune('a' + i)), Rating: rating, ThreadIDs: []string{"t"},
			CreatedAt: now, UpdatedAt: now,
		}
		if err := env.store.SaveFeedback(fb); err != nil {
			t.Fatalf("SaveFeedback: %v", err)
		}
	}

	rec = env.doJSON(t, http.MethodGet, "/feedback-summary", nil)
	decodeBody(t, rec, &sum)
	if sum.TotalYes != 1 || sum.TotalNo != 2 || sum.Total != 3 {
		t.Errorf("summary = %+v, want 1/2/3", sum)
	}
}

func TestListUnanswered(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now().UTC()
	q := storage.UnansweredQuestion{
		ID: "uq_1", Question: "refund policy?", ThreadID: "thread_1",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.store.SaveUnanswered(q); err != nil {
		t.Fatalf("SaveUnanswered: %v", err)
	}

	rec := env.doJSON(t, http.MethodGet, "/unanswered", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var questions []struct {
		ID       string `json:"id"`
		Question string `json:"question"`
		Updated  bool   `json:"updated"`
	}
	decodeBody(t, rec, &questions)
	if len(questions) != 1 {
		t.Fatalf("len(questions) = %d, want 1", len(questions))
	}
	if questions[0].Question != "refund policy?" || questions[0].Updated {
		t.Errorf("questions[0] = %+v", questions[0])
	}
}

func TestUpdateUnanswered(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now().UTC()
	q := storage.UnansweredQuestion{
		ID: "uq_1", Question: "refund policy?", ThreadID: "thread_1",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.store.SaveUnanswered(q); err != nil {
		t.Fatalf("SaveUnanswered: %v", err)
	}

	rec := env.doJSON(t, http.MethodPatch, "/unanswered/uq_1", map[string]bool{"update": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		ID      string `json:"id"`
		Updated bool   `json:"updated"`
	}
	decodeBody(t, rec, &body)
	if !body.Updated {
		t.Error("updated = false after marking reviewed")
	}

	rec = env.doJSON(t, http.MethodPatch, "/unanswered/uq_1", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing update field: status = %d, want 400", rec.Code)
	}

	rec = env.doJSON(t, http.MethodPatch, "/unanswered/missing", map[string]bool{"update": true})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing question: status = %d, want 404", rec.Code)
	}
}

func TestListFeedback(t *testing.T) {
	env := newTestEnv(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		fb := storage.Feedback{
			ID: string(rune('a' + i)), Rating: true, ThreadIDs: []string{"t"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := env.store.SaveFeedback(fb); err != nil {
			t.Fatalf("SaveFeedback: %v", err)
		}
	}

	rec := env.doJSON(t, http.MethodGet, "/feedback?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &records)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want limit 2", len(records))
	}
	if records[0].ID != "c" {
		t.Errorf("records[0].ID = %q, want newest first", records[0].ID)
	}
}

func TestFeedbackViewNeverNullThreadIDs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/feedback", map[string]any{"rating": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		ThreadIDs []string `json:"threadIds"`
	}
	decodeBody(t, rec, &body)
	if body.ThreadIDs == nil {
		t.Error("threadIds serialized as null, want []")
	}
}
