// Package ingest drives documents through OCR normalization, canonical
// storage, and knowledge-base attachment.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/askd/internal/assistant"
	"github.com/kalambet/askd/internal/ocr"
	"github.com/kalambet/askd/internal/spool"
	"github.com/kalambet/askd/internal/storage"
)

const defaultConcurrency = 4

// ErrNoFiles is returned when an ingest request contains no files.
var ErrNoFiles = errors.New("no files to ingest")

// RawFile is one uploaded file spooled to local disk, awaiting processing.
type RawFile struct {
	Name        string // client-reported filename
	ContentType string
	Path        string // spool path of the raw bytes
}

// Recognizer abstracts the OCR service for the pipeline.
type Recognizer interface {
	Process(ctx context.Context, filename, contentType string, r io.Reader) (ocr.Result, error)
}

// FileStore abstracts the assistant service's file store and vector index.
type FileStore interface {
	UploadFile(ctx context.Context, filename, contentType string, r io.Reader) (assistant.File, error)
	AttachFile(ctx context.Context, vectorStoreID, fileID string) error
	DetachFile(ctx context.Context, vectorStoreID, fileID string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// Pipeline ingests file batches into the knowledge base and removes
// documents from it.
type Pipeline struct {
	recognizer    Recognizer
	files         FileStore
	spool         *spool.Dir
	vectorStoreID string
	concurrency   int
	logger        *slog.Logger
}

// NewPipeline creates a Pipeline. Non-positive concurrency defaults to 4.
func NewPipeline(recognizer Recognizer, files FileStore, spoolDir *spool.Dir, vectorStoreID string, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Pipeline{
		recognizer:    recognizer,
		files:         files,
		spool:         spoolDir,
		vectorStoreID: vectorStoreID,
		concurrency:   concurrency,
		logger:        slog.Default(),
	}
}

// fileResult tracks one file's progress so a failed batch can be compensated.
type fileResult struct {
	fileID   string // set once uploaded
	ocrName  string
	attached bool // set once attached to the vector store
}

// Ingest processes every file in the batch — OCR, canonical blob, upload,
// vector-store attach — with bounded concurrency. Attachment of a file only
// ever happens after that file's own OCR and upload succeeded.
//
// Batches are all-or-nothing: if any file fails, files that already attached
// are detached and deleted before Ingest returns, so the caller can retry
// the whole batch without leaving orphaned knowledge-base attachments.
func (p *Pipeline) Ingest(ctx context.Context, files []RawFile, displayName string) (storage.Document, error) {
	if len(files) == 0 {
		return storage.Document{}, ErrNoFiles
	}

	results := make([]fileResult, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, f := range files {
		g.Go(func() error {
			return p.processFile(gCtx, f, &results[i])
		})
	}

	if err := g.Wait(); err != nil {
		// The group context is already cancelled; compensation gets a
		// context that survives it.
		p.compensate(context.WithoutCancel(ctx), results)
		return storage.Document{}, err
	}

	fileIDs := make([]string, len(results))
	for i, res := range results {
		fileIDs[i] = res.fileID
	}

	now := time.Now().UTC()
	doc := storage.Document{
		ID:        uuid.New().String(),
		Name:      displayName,
		FileIDs:   fileIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(results) == 1 {
		doc.OriginalFilename = results[0].ocrName
	}
	return doc, nil
}

// processFile runs one file through the pipeline stages. The raw upload and
// the canonical blob are released whatever the outcome.
func (p *Pipeline) processFile(ctx context.Context, f RawFile, res *fileResult) error {
	defer p.spool.Remove(f.Path)

	raw, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("opening spooled upload %s: %w", f.Name, err)
	}
	normalized, err := p.recognizer.Process(ctx, f.Name, f.ContentType, raw)
	raw.Close()
	if err != nil {
		return fmt.Errorf("ocr for %s: %w", f.Name, err)
	}

	// Canonical blob: the OCR payload persisted byte-for-byte under the
	// OCR-reported name and content type.
	blobPath, err := p.spool.SaveBytes(normalized.Content, filepath.Ext(normalized.Filename))
	if err != nil {
		return fmt.Errorf("spooling normalized content for %s: %w", f.Name, err)
	}
	defer p.spool.Remove(blobPath)

	blob, err := os.Open(blobPath)
	if err != nil {
		return fmt.Errorf("opening normalized content for %s: %w", f.Name, err)
	}
	file, err := p.files.UploadFile(ctx, normalized.Filename, normalized.ContentType, blob)
	blob.Close()
	if err != nil {
		return fmt.Errorf("uploading %s: %w", normalized.Filename, err)
	}
	res.fileID = file.ID
	res.ocrName = normalized.Filename

	if err := p.files.AttachFile(ctx, p.vectorStoreID, file.ID); err != nil {
		return fmt.Errorf("attaching %s to knowledge base: %w", normalized.Filename, err)
	}
	res.attached = true
	return nil
}

// compensate rolls back the remote side of a failed batch: every uploaded
// file is deleted, detaching it from the vector store first when it got that
// far. Failures are logged; the batch error already reported to the caller
// stands.
func (p *Pipeline) compensate(ctx context.Context, results []fileResult) {
	for _, res := range results {
		if res.fileID == "" {
			continue
		}
		if res.attached {
			if err := p.files.DetachFile(ctx, p.vectorStoreID, res.fileID); err != nil {
				p.logger.Warn("rollback: detaching file", "file_id", res.fileID, "error", err)
				continue
			}
		}
		if err := p.files.DeleteFile(ctx, res.fileID); err != nil {
			p.logger.Warn("rollback: deleting file", "file_id", res.fileID, "error", err)
			continue
		}
		p.logger.Info("rolled back partially ingested file", "file_id", res.fileID)
	}
}

// Remove detaches every one of doc's remote files from the knowledge base
// and then deletes the remote file objects. Detachment is all-or-nothing:
// the first detach failure aborts, and the caller must keep the metadata
// record so the remaining attachments stay reachable. Remote file deletion
// after a full detach is best-effort.
func (p *Pipeline) Remove(ctx context.Context, doc storage.Document) error {
	for _, fileID := range doc.FileIDs {
		if err := p.files.DetachFile(ctx, p.vectorStoreID, fileID); err != nil {
			return fmt.Errorf("detaching file %s: %w", fileID, err)
		}
	}
	for _, fileID := range doc.FileIDs {
		if err := p.files.DeleteFile(ctx, fileID); err != nil {
			p.logger.Warn("deleting remote file after detach", "file_id", fileID, "error", err)
		}
	}
	return nil
}
