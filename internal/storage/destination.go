package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var unsafeDirChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// DestinationManager prepares export destination directories under a
// configured base directory.
type DestinationManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewDestinationManager creates a new destination manager.
func NewDestinationManager(baseDir string, logger *zap.Logger) *DestinationManager {
	return &DestinationManager{baseDir: baseDir, logger: logger}
}

// BaseDir returns the configured export root.
func (m *DestinationManager) BaseDir() string {
	return m.baseDir
}

// Prepare creates the destination directory for one export, named from the
// client and checkup date. With timestamped set, a compact time suffix makes
// the directory unique per invocation.
func (m *DestinationManager) Prepare(clientName string, date time.Time, timestamped bool) (string, error) {
	if clientName == "" {
		return "", fmt.Errorf("cannot prepare destination: empty client name")
	}

	name := fmt.Sprintf("%s_%s", SanitizeDirName(clientName), date.Format("2006-01-02"))
	if timestamped {
		name += "_" + time.Now().Format("150405")
	}
	dir := filepath.Join(m.baseDir, name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		m.logger.Error("Failed to create destination directory",
			zap.String("dir", dir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	m.logger.Debug("Destination directory prepared", zap.String("dir", dir))
	return dir, nil
}

// FreeSpace returns the bytes available to the current user on the volume
// holding the export root.
func (m *DestinationManager) FreeSpace() (uint64, error) {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create export root: %w", err)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(m.baseDir, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// SanitizeDirName returns a filesystem-safe version of the name. Path
// separators and parent references are removed to prevent traversal.
func SanitizeDirName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.ReplaceAll(name, " ", "-")
	return unsafeDirChars.ReplaceAllString(name, "")
}
