// Package assistant is a typed HTTP client for the managed
// conversational-assistant service (threads, runs, messages, file storage,
// and the vector store backing the knowledge base). It is pure transport:
// no retry or sequencing logic lives here.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
)

// Client communicates with the assistant service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given API credential.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// APIError is a non-2xx response from the assistant service. The upstream
// status code is preserved so callers can report it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant service returned %d: %s", e.StatusCode, e.Body)
}

// Thread is a remote conversation history, referenced by opaque identifier.
type Thread struct {
	ID string `json:"id"`
}

// Message is one entry in a thread's history.
type Message struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	CreatedAt int64            `json:"created_at"`
	Content   []MessageContent `json:"content"`
}

// MessageContent is one content block of a message.
type MessageContent struct {
	Type string      `json:"type"`
	Text MessageText `json:"text"`
}

// MessageText holds the text value of a text content block.
type MessageText struct {
	Value string `json:"value"`
}

// Run statuses reported by the assistant service.
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCancelling = "cancelling"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusExpired    = "expired"
	RunStatusCancelled  = "cancelled"
)

// Run is one execution of the assistant against a thread's history.
type Run struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	Status    string        `json:"status"`
	LastError *RunLastError `json:"last_error"`
}

// RunLastError describes why a run ended in a failure status.
type RunLastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// File is a file stored in the assistant service's file store.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// CreateThread requests a new, empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var thread Thread
	if err := c.doJSON(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return Thread{}, fmt.Errorf("creating thread: %w", err)
	}
	return thread, nil
}

// addMessageRequest is the JSON body for POST /threads/{id}/messages.
type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddMessage appends a message to a thread's history.
func (c *Client) AddMessage(ctx context.Context, threadID, role, content string) (Message, error) {
	var msg Message
	path := fmt.Sprintf("/threads/%s/messages", threadID)
	if err := c.doJSON(ctx, http.MethodPost, path, addMessageRequest{Role: role, Content: content}, &msg); err != nil {
		return Message{}, fmt.Errorf("adding message to thread %s: %w", threadID, err)
	}
	return msg, nil
}

// createRunRequest is the JSON body for POST /threads/{id}/runs.
type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

// CreateRun requests execution of the assistant against the thread's current history.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs", threadID)
	if err := c.doJSON(ctx, http.MethodPost, path, createRunRequest{AssistantID: assistantID}, &run); err != nil {
		return Run{}, fmt.Errorf("creating run on thread %s: %w", threadID, err)
	}
	return run, nil
}

// GetRun fetches a run's current status.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs/%s", threadID, runID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &run); err != nil {
		return Run{}, fmt.Errorf("fetching run %s: %w", runID, err)
	}
	return run, nil
}

// messageList is the JSON returned by GET /threads/{id}/messages.
type messageList struct {
	Data []Message `json:"data"`
}

// ListMessages returns a thread's messages. The service orders them newest
// first, but callers should not rely on position.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var list messageList
	path := fmt.Sprintf("/threads/%s/messages", threadID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("listing messages on thread %s: %w", threadID, err)
	}
	return list.Data, nil
}

// UploadFile stores a file in the assistant service's file store with
// purpose "assistants" and returns its remote identifier.
func (c *Client) UploadFile(ctx context.Context, filename, contentType string, r io.Reader) (File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return File{}, fmt.Errorf("writing purpose field: %w", err)
	}

	// CreateFormFile hardcodes application/octet-stream; build the part
	// header by hand to preserve the OCR-reported content type.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return File{}, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return File{}, fmt.Errorf("copying file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return File{}, fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return File{}, fmt.Errorf("creating upload request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var file File
	if err := c.execute(req, &file); err != nil {
		return File{}, fmt.Errorf("uploading file %s: %w", filename, err)
	}
	return file, nil
}

// DeleteFile removes a file from the assistant service's file store.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/files/"+fileID, nil, nil); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	return nil
}

// attachFileRequest is the JSON body for POST /vector_stores/{id}/files.
type attachFileRequest struct {
	FileID string `json:"file_id"`
}

// AttachFile attaches an uploaded file to a vector store, making it part of
// the knowledge base.
func (c *Client) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	path := fmt.Sprintf("/vector_stores/%s/files", vectorStoreID)
	if err := c.doJSON(ctx, http.MethodPost, path, attachFileRequest{FileID: fileID}, nil); err != nil {
		return fmt.Errorf("attaching file %s to vector store %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// DetachFile detaches a file from a vector store. The file object itself is
// not deleted.
func (c *Client) DetachFile(ctx context.Context, vectorStoreID, fileID string) error {
	path := fmt.Sprintf("/vector_stores/%s/files/%s", vectorStoreID, fileID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("detaching file %s from vector store %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// doJSON sends a JSON request and decodes the JSON response into out (when
// out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.execute(req, out)
}

func (c *Client) execute(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
}
