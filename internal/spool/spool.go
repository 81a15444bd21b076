// Package spool manages the on-disk scratch area where raw uploads and
// OCR-normalized blobs live between pipeline stages. Every spooled file is
// transient: the pipeline removes it after processing, and a background
// janitor sweeps anything a crashed request left behind.
package spool

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Dir is a spool directory.
type Dir struct {
	path   string
	logger *slog.Logger
}

// New creates (if needed) and returns a spool directory rooted at path.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Dir{path: path, logger: slog.Default()}, nil
}

// Path returns the spool directory's root path.
func (d *Dir) Path() string {
	return d.path
}

// Save writes r to a uniquely named spool file, preserving the original
// extension, and returns its full path.
func (d *Dir) Save(r io.Reader, ext string) (string, error) {
	path := filepath.Join(d.path, uuid.New().String()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing spool file: %w", err)
	}
	return path, nil
}

// SaveBytes writes b to a uniquely named spool file and returns its full path.
func (d *Dir) SaveBytes(b []byte, ext string) (string, error) {
	path := filepath.Join(d.path, uuid.New().String()+ext)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("writing spool file: %w", err)
	}
	return path, nil
}

// Remove deletes a spool file. Cleanup is best-effort: a missing file is
// fine (something else already removed it) and any other failure is logged
// rather than propagated, so cleanup never fails the surrounding operation.
func (d *Dir) Remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.logger.Warn("removing spool file", "path", path, "error", err)
	}
}
