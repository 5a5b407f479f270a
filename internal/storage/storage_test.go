package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDestinationManager_Prepare(t *testing.T) {
	logger := zap.NewNop()

	t.Run("creates directory named from client and date", func(t *testing.T) {
		base := t.TempDir()
		m := NewDestinationManager(base, logger)

		dir, err := m.Prepare("Acme Bottling", time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), false)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "Acme-Bottling_2026-05-11"), dir)
		assert.DirExists(t, dir)
	})

	t.Run("timestamped directories get a time suffix", func(t *testing.T) {
		base := t.TempDir()
		m := NewDestinationManager(base, logger)

		dir, err := m.Prepare("Acme", time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), true)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filepath.Base(dir), "Acme_2026-05-11_"))
	})

	t.Run("rejects empty client name", func(t *testing.T) {
		m := NewDestinationManager(t.TempDir(), logger)
		_, err := m.Prepare("", time.Now(), false)
		assert.Error(t, err)
	})
}

func TestDestinationManager_FreeSpace(t *testing.T) {
	m := NewDestinationManager(t.TempDir(), zap.NewNop())
	free, err := m.FreeSpace()
	require.NoError(t, err)
	assert.Positive(t, free)
}

func TestSanitizeDirName(t *testing.T) {
	assert.Equal(t, "Acme-Bottling", SanitizeDirName("Acme Bottling"))
	assert.Equal(t, "etcpasswd", SanitizeDirName("../etc/passwd"))
	assert.Equal(t, "clienta", SanitizeDirName("client:a"))
}

func TestCleaner_Sweep(t *testing.T) {
	logger := zap.NewNop()

	t.Run("removes only directories older than max age", func(t *testing.T) {
		base := t.TempDir()
		oldDir := filepath.Join(base, "old_export")
		newDir := filepath.Join(base, "new_export")
		require.NoError(t, os.Mkdir(oldDir, 0755))
		require.NoError(t, os.Mkdir(newDir, 0755))

		stale := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(oldDir, stale, stale))

		removed, err := NewCleaner(base, 24*time.Hour, logger).Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.NoDirExists(t, oldDir)
		assert.DirExists(t, newDir)
	})

	t.Run("missing export root is not an error", func(t *testing.T) {
		removed, err := NewCleaner(filepath.Join(t.TempDir(), "nope"), time.Hour, logger).Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("plain files are left alone", func(t *testing.T) {
		base := t.TempDir()
		file := filepath.Join(base, "stray.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		stale := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(file, stale, stale))

		removed, err := NewCleaner(base, 24*time.Hour, logger).Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, removed)
		assert.FileExists(t, file)
	})
}
