package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Cleaner removes export directories older than a configured age. It is the
// only retention mechanism of the export subsystem.
type Cleaner struct {
	baseDir string
	maxAge  time.Duration
	logger  *zap.Logger
}

// NewCleaner creates a cleaner for the given export root.
func NewCleaner(baseDir string, maxAge time.Duration, logger *zap.Logger) *Cleaner {
	return &Cleaner{baseDir: baseDir, maxAge: maxAge, logger: logger}
}

// Sweep deletes every top-level export directory whose modification time is
// older than maxAge. It returns the number of directories removed. A failed
// removal is logged and does not stop the sweep.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read export root: %w", err)
	}

	cutoff := time.Now().Add(-c.maxAge)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(c.baseDir, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("Failed to remove expired export directory",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}
		removed++
		c.logger.Info("Removed expired export directory",
			zap.String("dir", dir),
			zap.Time("mod_time", info.ModTime()))
	}

	return removed, nil
}

// Run sweeps on the given interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("Export cleanup sweep failed", zap.Error(err))
			}
		}
	}
}
