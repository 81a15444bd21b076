package spool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Janitor periodically removes spool files older than a retention age.
type Janitor struct {
	dir      *Dir
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a Janitor for dir. If maxAge or interval are <= 0 they
// default to 1h and 10m respectively.
func NewJanitor(dir *Dir, maxAge, interval time.Duration) *Janitor {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run sweeps the spool directory until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		removed, err := j.Sweep()
		if err != nil {
			j.logger.Error("spool sweep failed", "error", err)
		} else if removed > 0 {
			j.logger.Info("swept stale spool files", "removed", removed)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(j.interval):
		}
	}
}

// Sweep removes spool files older than the retention age and returns how
// many were removed.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.dir.Path())
	if err != nil {
		return 0, fmt.Errorf("reading spool directory: %w", err)
	}

	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir.Path(), entry.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn("removing stale spool file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
