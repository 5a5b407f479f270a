package export

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/models"
)

// writeTestJPEG writes a small solid-color JPEG and returns its path.
func writeTestJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	require.NoError(t, f.Close())
	return path
}

func testSnapshot(t *testing.T, photoDir string, photosPerItem []int) *models.CheckupSnapshot {
	t.Helper()
	snap := &models.CheckupSnapshot{
		CheckupID: 42,
		Header: models.CheckupHeader{
			ClientName:    "Acme Bottling",
			SiteName:      "Plant North",
			Technician:    "M. Villa",
			EquipmentType: "Palletizer",
			IslandCode:    "ISL-07",
			CheckupDate:   time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC),
		},
		GeneratedAt: time.Now(),
	}
	itemID := int64(1)
	for mi, count := range photosPerItem {
		item := models.CheckItem{
			ID:          itemID,
			Description: fmt.Sprintf("Check item %d", itemID),
			Status:      models.StatusPass,
			Criticality: models.CriticalityMedium,
		}
		for p := 0; p < count; p++ {
			src := writeTestJPEG(t, photoDir, fmt.Sprintf("src_%d_%d.jpg", itemID, p), 64, 48)
			item.Photos = append(item.Photos, models.Photo{
				SourcePath: src,
				Caption:    fmt.Sprintf("detail %d", p+1),
				CapturedAt: time.Date(2026, 5, 11, 10, p, 0, 0, time.UTC),
			})
		}
		snap.Modules = append(snap.Modules, models.ModuleChecks{
			Name:  fmt.Sprintf("Module %d", mi+1),
			Items: []models.CheckItem{item},
		})
		itemID++
	}
	snap.Stats.TotalItems = len(photosPerItem)
	return snap
}

func TestPhotoExporter_Export(t *testing.T) {
	logger := zap.NewNop()

	t.Run("exports all photos with dense sequential names", func(t *testing.T) {
		srcDir := t.TempDir()
		destDir := t.TempDir()
		snap := testSnapshot(t, srcDir, []int{2, 1, 3})

		opts := models.DefaultExportOptions()
		opts.Naming = models.NamingSequential
		opts.Quality = models.QualityVerbatim

		res, err := NewPhotoExporter(logger).Export(context.Background(), snap, destDir, opts, false)
		require.NoError(t, err)
		assert.Equal(t, 6, res.TotalFiles)
		assert.Zero(t, res.Skipped)

		for i := 0; i < 6; i++ {
			assert.FileExists(t, filepath.Join(destDir, PhotoDirName, fmt.Sprintf("foto_%03d.jpg", i+1)))
		}
	})

	t.Run("empty checkup is a trivial success", func(t *testing.T) {
		destDir := t.TempDir()
		snap := testSnapshot(t, t.TempDir(), nil)

		res, err := NewPhotoExporter(logger).Export(context.Background(), snap, destDir, models.DefaultExportOptions(), true)
		require.NoError(t, err)
		assert.Zero(t, res.TotalFiles)
		assert.Zero(t, res.TotalSizeBytes)
		assert.DirExists(t, filepath.Join(destDir, PhotoDirName))
	})

	t.Run("one broken photo does not abort the rest", func(t *testing.T) {
		srcDir := t.TempDir()
		destDir := t.TempDir()
		snap := testSnapshot(t, srcDir, []int{2, 2})

		// Point the second photo at a missing file.
		snap.Modules[0].Items[0].Photos[1].SourcePath = filepath.Join(srcDir, "missing.jpg")

		opts := models.DefaultExportOptions()
		opts.Naming = models.NamingSequential
		opts.Quality = models.QualityVerbatim

		res, err := NewPhotoExporter(logger).Export(context.Background(), snap, destDir, opts, false)
		require.NoError(t, err)
		assert.Equal(t, 3, res.TotalFiles)
		assert.Equal(t, 1, res.Skipped)
	})

	t.Run("optimized tier rescales wide photos", func(t *testing.T) {
		srcDir := t.TempDir()
		destDir := t.TempDir()
		snap := testSnapshot(t, srcDir, []int{1})
		wide := writeTestJPEG(t, srcDir, "wide.jpg", 400, 200)
		snap.Modules[0].Items[0].Photos[0].SourcePath = wide

		opts := models.DefaultExportOptions()
		opts.Naming = models.NamingSequential
		opts.Quality = models.QualityOptimized
		opts.TargetWidth = 100

		res, err := NewPhotoExporter(logger).Export(context.Background(), snap, destDir, opts, false)
		require.NoError(t, err)
		require.Equal(t, 1, res.TotalFiles)

		f, err := os.Open(res.Photos[0].Path)
		require.NoError(t, err)
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("index groups photos and reports totals", func(t *testing.T) {
		srcDir := t.TempDir()
		destDir := t.TempDir()
		snap := testSnapshot(t, srcDir, []int{2, 1})

		opts := models.DefaultExportOptions()
		opts.Quality = models.QualityVerbatim

		res, err := NewPhotoExporter(logger).Export(context.Background(), snap, destDir, opts, true)
		require.NoError(t, err)
		require.NotEmpty(t, res.IndexPath)

		content, err := os.ReadFile(res.IndexPath)
		require.NoError(t, err)
		text := string(content)
		assert.Contains(t, text, "[1] Module 1")
		assert.Contains(t, text, "[2] Module 2")
		assert.Contains(t, text, "Photos: 3  Sections: 2  Items with photos: 2")
		for _, photo := range res.Photos {
			assert.Contains(t, text, photo.FileName)
		}
	})

	t.Run("cancellation stops between photos", func(t *testing.T) {
		srcDir := t.TempDir()
		destDir := t.TempDir()
		snap := testSnapshot(t, srcDir, []int{3})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewPhotoExporter(logger).Export(ctx, snap, destDir, models.DefaultExportOptions(), false)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFlattenPhotos_Order(t *testing.T) {
	srcDir := t.TempDir()
	snap := testSnapshot(t, srcDir, []int{2, 1})

	contexts := FlattenPhotos(snap)
	require.Len(t, contexts, 3)
	assert.Equal(t, 0, contexts[0].SectionIndex)
	assert.Equal(t, 0, contexts[0].Ordinal)
	assert.Equal(t, 1, contexts[1].Ordinal)
	assert.Equal(t, 1, contexts[2].SectionIndex)
	assert.Equal(t, contexts[0].ItemID, contexts[1].ItemID)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2<<20))
	assert.Equal(t, "1.0 GB", FormatSize(1<<30))
}
