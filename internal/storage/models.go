package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoFileIDs is returned when saving a document that references no remote
// files. Such a document cannot influence answers and must not be persisted.
var ErrNoFileIDs = errors.New("document has no remote file ids")

// Document is one unit of ingested content. FileIDs holds the remote file
// identifiers attached to the knowledge base's vector store.
type Document struct {
	ID               string
	Name             string
	OriginalFilename string // OCR-reported name, set for single-file uploads
	FileIDs          []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Feedback is a helpful/not-helpful rating with a free-text reason,
// referencing the conversation thread(s) it is about.
type Feedback struct {
	ID        string
	Reason    string
	Rating    bool
	ThreadIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnansweredQuestion is a question the assistant could not answer, kept for
// human review.
type UnansweredQuestion struct {
	ID        string
	Question  string
	ThreadID  string
	Reviewed  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeedbackSummary aggregates stored ratings.
type FeedbackSummary struct {
	TotalYes int
	TotalNo  int
	Total    int
}
