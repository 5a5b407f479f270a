package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/models"
	"github.com/oasislab/checkup-export/internal/storage"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	logger := zap.NewNop()
	base := t.TempDir()
	photos := NewPhotoExporter(logger)
	return NewOrchestrator(
		storage.NewDestinationManager(base, logger),
		photos,
		NewDocumentGenerator(photos, logger),
		NewEstimator(DefaultEstimatorConfig()),
		logger,
	), base
}

// failingFormat simulates a broken generator for isolation tests.
type failingFormat struct {
	format models.ExportFormat
}

func (f *failingFormat) Format() models.ExportFormat { return f.format }

func (f *failingFormat) Generate(context.Context, *models.CheckupSnapshot, models.ExportOptions, string) (generated, error) {
	return generated{}, errors.New("simulated generator failure")
}

func TestOrchestrator_Export_Validation(t *testing.T) {
	t.Run("missing technician aborts before any side effect", func(t *testing.T) {
		orch, base := newTestOrchestrator(t)
		snap := testSnapshot(t, t.TempDir(), []int{1})
		snap.Header.Technician = ""

		result, err := orch.Export(context.Background(), snap, models.DefaultExportOptions(), nil)
		require.Error(t, err)
		assert.Nil(t, result)

		verr, ok := AsValidationError(err)
		require.True(t, ok)
		found := false
		for _, msg := range verr.Messages {
			if strings.Contains(msg, "technician") {
				found = true
			}
		}
		assert.True(t, found, "expected a message referencing the technician field")

		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		assert.Empty(t, entries, "no directory may be created on validation failure")
	})

	t.Run("all violations are reported together", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t)
		snap := &models.CheckupSnapshot{}

		_, err := orch.Export(context.Background(), snap, models.DefaultExportOptions(), nil)
		verr, ok := AsValidationError(err)
		require.True(t, ok)
		assert.Len(t, verr.Messages, 4)
	})

	t.Run("no formats requested", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t)
		snap := testSnapshot(t, t.TempDir(), []int{1})

		opts := models.DefaultExportOptions()
		opts.Formats = nil
		_, err := orch.Export(context.Background(), snap, opts, nil)
		assert.ErrorIs(t, err, ErrNoFormats)
	})
}

func TestOrchestrator_Export_CombinedPackage(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	// 2 modules, 3 check items: one with 2 photos, two with none.
	srcDir := t.TempDir()
	snap := testSnapshot(t, srcDir, []int{2, 0})
	snap.Modules[0].Items = append(snap.Modules[0].Items, models.CheckItem{
		ID:          9,
		Description: "Check item 9",
		Status:      models.StatusPending,
	})
	snap.Stats.TotalItems = 3

	opts := models.DefaultExportOptions()
	opts.Formats = []models.ExportFormat{models.FormatPackage}
	opts.Naming = models.NamingStructured
	opts.Quality = models.QualityVerbatim
	opts.TimestampedDir = false

	result, err := orch.Export(context.Background(), snap, opts, nil)
	require.NoError(t, err)
	require.True(t, result.Finished)
	assert.True(t, result.IsComplete(models.FormatPackage))
	assert.Equal(t, 2, result.PhotosExported)

	photoDir := filepath.Join(result.Destination, PhotoDirName)
	entries, err := os.ReadDir(photoDir)
	require.NoError(t, err)
	images := 0
	indexSeen := false
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".jpg"):
			images++
		case entry.Name() == PhotoIndexName:
			indexSeen = true
		}
	}
	assert.Equal(t, 2, images)
	assert.True(t, indexSeen)

	docArtifact := result.Artifacts[models.FormatDocument]
	txtArtifact := result.Artifacts[models.FormatText]
	assert.FileExists(t, docArtifact.Path)
	assert.FileExists(t, txtArtifact.Path)

	indexPath := filepath.Join(result.Destination, PackageIndexName)
	require.FileExists(t, indexPath)
	content, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, docArtifact.Name)
	assert.Contains(t, text, txtArtifact.Name)
	assert.Contains(t, text, "Photos exported: 2")
}

func TestOrchestrator_Export_FailureIsolation(t *testing.T) {
	t.Run("a failed format does not abort the remaining ones", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t)
		orch.generators[models.FormatDocument] = &failingFormat{format: models.FormatDocument}

		snap := testSnapshot(t, t.TempDir(), []int{1})
		opts := models.DefaultExportOptions()
		opts.Formats = []models.ExportFormat{models.FormatDocument, models.FormatText, models.FormatPhotos}
		opts.Quality = models.QualityVerbatim
		opts.TimestampedDir = false

		result, err := orch.Export(context.Background(), snap, opts, nil)
		require.NoError(t, err)
		assert.Contains(t, result.FormatErrors, models.FormatDocument)
		assert.True(t, result.IsComplete(models.FormatText))
		assert.True(t, result.IsComplete(models.FormatPhotos))
		assert.False(t, result.IsComplete(models.FormatDocument))
	})

	t.Run("package with one failed sub-step stays incomplete but reports it", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t)
		logger := zap.NewNop()
		photos := NewPhotoExporter(logger)
		orch.generators[models.FormatPackage] = &packageFormat{
			steps: []formatGenerator{
				&failingFormat{format: models.FormatDocument},
				&textFormat{},
				&photoFolderFormat{photos: photos},
			},
			logger: logger,
		}

		snap := testSnapshot(t, t.TempDir(), []int{1})
		opts := models.DefaultExportOptions()
		opts.Formats = []models.ExportFormat{models.FormatPackage}
		opts.Quality = models.QualityVerbatim
		opts.TimestampedDir = false

		result, err := orch.Export(context.Background(), snap, opts, nil)
		require.NoError(t, err)
		assert.False(t, result.IsComplete(models.FormatPackage))
		assert.True(t, result.IsComplete(models.FormatText))
		assert.True(t, result.IsComplete(models.FormatPhotos))
		assert.Contains(t, result.FormatErrors, models.FormatDocument)

		content, err := os.ReadFile(filepath.Join(result.Destination, PackageIndexName))
		require.NoError(t, err)
		assert.Contains(t, string(content), "not generated")
	})
}

func TestOrchestrator_Export_Progress(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	snap := testSnapshot(t, t.TempDir(), []int{1})

	opts := models.DefaultExportOptions()
	opts.Formats = []models.ExportFormat{models.FormatText, models.FormatPhotos}
	opts.Quality = models.QualityVerbatim

	var snapshots []models.MultiFormatExportResult
	_, err := orch.Export(context.Background(), snap, opts, func(r models.MultiFormatExportResult) {
		snapshots = append(snapshots, r)
	})
	require.NoError(t, err)

	// One emission per format plus the final one.
	require.Len(t, snapshots, 3)
	assert.False(t, snapshots[0].Finished)
	assert.True(t, snapshots[len(snapshots)-1].Finished)
	assert.Len(t, snapshots[0].Artifacts, 1)
	assert.Len(t, snapshots[1].Artifacts, 2)
}

func TestOrchestrator_Export_StoragePreflight(t *testing.T) {
	logger := zap.NewNop()
	base := t.TempDir()
	photos := NewPhotoExporter(logger)
	orch := NewOrchestrator(
		storage.NewDestinationManager(base, logger),
		photos,
		NewDocumentGenerator(photos, logger),
		NewEstimator(EstimatorConfig{AvgPhotoBytes: 1 << 60, LargeExportBytes: 1 << 62}),
		logger,
	)

	snap := testSnapshot(t, t.TempDir(), []int{1})
	opts := models.DefaultExportOptions()
	opts.Formats = []models.ExportFormat{models.FormatPhotos}
	opts.Quality = models.QualityVerbatim

	_, err := orch.Export(context.Background(), snap, opts, nil)
	require.ErrorIs(t, err, ErrInsufficientSpace)

	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "preflight failure must precede directory creation")
}

func TestOrchestrator_Export_Cancellation(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	snap := testSnapshot(t, t.TempDir(), []int{1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := orch.Export(ctx, snap, models.DefaultExportOptions(), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.False(t, result.Finished)
}
