// Package ocr is a typed HTTP client for the OCR service, which extracts
// normalized content and metadata from raw uploaded files.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second

// Client communicates with the OCR service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given OCR service base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// APIError is a non-2xx response from the OCR service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ocr service returned %d: %s", e.StatusCode, e.Body)
}

// Result is the normalized output for one processed file. Content is the
// exact byte payload reported by the service.
type Result struct {
	Filename    string
	ContentType string
	Content     []byte
}

// processResponse mirrors the JSON returned by POST /v1/process.
// Content travels base64-encoded so binary payloads survive JSON transport.
type processResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Process submits a raw file and returns its normalized content plus the
// service-reported filename and content type.
func (c *Client) Process(ctx context.Context, filename, contentType string, r io.Reader) (Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return Result{}, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Result{}, fmt.Errorf("copying file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/process", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("submitting %s for processing: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var pr processResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Result{}, fmt.Errorf("decoding response for %s: %w", filename, err)
	}

	content, err := base64.StdEncoding.DecodeString(pr.Content)
	if err != nil {
		return Result{}, fmt.Errorf("decoding content for %s: %w", filename, err)
	}

	result := Result{
		Filename:    pr.Filename,
		ContentType: pr.ContentType,
		Content:     content,
	}
	if result.Filename == "" {
		result.Filename = filename
	}
	if result.ContentType == "" {
		result.ContentType = contentType
	}
	return result, nil
}
