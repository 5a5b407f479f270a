package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/models"
	"github.com/oasislab/checkup-export/pkg/textfmt"
)

const (
	// PhotoDirName is the fixed name of the photo folder under every
	// destination directory.
	PhotoDirName = "FOTO"

	// PhotoIndexName is the textual index written inside the photo folder.
	PhotoIndexName = "INDICE_FOTO.txt"
)

// ExportedPhoto records one successfully written photo.
type ExportedPhoto struct {
	FileName  string
	Path      string
	SizeBytes int64
	Context   models.PhotoContext
}

// PhotoExportResult is the outcome of one photo-folder export.
type PhotoExportResult struct {
	Dir            string
	Photos         []ExportedPhoto
	TotalFiles     int
	TotalSizeBytes int64
	Skipped        int
	IndexPath      string
}

// PhotoExporter walks the checkup tree and writes every photo into a
// FOTO folder, applying the naming strategy and quality tier per photo.
type PhotoExporter struct {
	logger *zap.Logger
}

// NewPhotoExporter creates a new photo exporter.
func NewPhotoExporter(logger *zap.Logger) *PhotoExporter {
	return &PhotoExporter{logger: logger}
}

// Export writes all photos of the snapshot under targetDir/FOTO.
//
// A failure on one photo is logged and skipped, the remaining photos still
// get written. The index file is best effort and never fails the export.
// Cancellation is honored between photos, an in-flight write finishes.
func (e *PhotoExporter) Export(ctx context.Context, snap *models.CheckupSnapshot, targetDir string, opts models.ExportOptions, writeIndex bool) (*PhotoExportResult, error) {
	photoDir := filepath.Join(targetDir, PhotoDirName)
	if err := os.MkdirAll(photoDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo folder: %w", err)
	}

	result := &PhotoExportResult{Dir: photoDir}

	contexts := FlattenPhotos(snap)
	if len(contexts) == 0 {
		e.logger.Debug("Checkup has no photos, photo export is a no-op",
			zap.Int64("checkup_id", snap.CheckupID))
		return result, nil
	}

	process := processorFor(opts.Quality, opts.TargetWidth)

	for i, pc := range contexts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := PhotoName(pc, i, opts.Naming)
		dstPath := filepath.Join(photoDir, name)

		size, err := process(pc.Photo.SourcePath, dstPath)
		if err != nil {
			result.Skipped++
			e.logger.Warn("Skipping photo after processing failure",
				zap.String("source", pc.Photo.SourcePath),
				zap.String("section", pc.SectionTitle),
				zap.Int64("item_id", pc.ItemID),
				zap.Error(err))
			continue
		}

		result.Photos = append(result.Photos, ExportedPhoto{
			FileName:  name,
			Path:      dstPath,
			SizeBytes: size,
			Context:   pc,
		})
		result.TotalFiles++
		result.TotalSizeBytes += size
	}

	if writeIndex {
		indexPath := filepath.Join(photoDir, PhotoIndexName)
		if err := e.writeIndex(indexPath, snap, result); err != nil {
			e.logger.Warn("Failed to write photo index, continuing without it",
				zap.String("path", indexPath),
				zap.Error(err))
		} else {
			result.IndexPath = indexPath
		}
	}

	e.logger.Info("Photo export finished",
		zap.Int64("checkup_id", snap.CheckupID),
		zap.Int("exported", result.TotalFiles),
		zap.Int("skipped", result.Skipped),
		zap.Int64("total_bytes", result.TotalSizeBytes))

	return result, nil
}

// FlattenPhotos turns the section/item/photo tree into a single ordered
// list, preserving section, then item, then photo order.
func FlattenPhotos(snap *models.CheckupSnapshot) []models.PhotoContext {
	var contexts []models.PhotoContext
	for si, module := range snap.Modules {
		for _, item := range module.Items {
			for pi, photo := range item.Photos {
				contexts = append(contexts, models.PhotoContext{
					SectionIndex:    si,
					SectionTitle:    module.Name,
					ItemID:          item.ID,
					ItemTitle:       item.Description,
					ItemStatus:      item.Status,
					ItemCriticality: item.Criticality,
					Ordinal:         pi,
					Photo:           photo,
				})
			}
		}
	}
	return contexts
}

// writeIndex emits the plain-text photo index, grouped by section then item.
func (e *PhotoExporter) writeIndex(path string, snap *models.CheckupSnapshot, result *PhotoExportResult) error {
	var b strings.Builder

	b.WriteString(textfmt.Box([]string{
		textfmt.Center("PHOTO INDEX", 56),
		textfmt.Center(snap.Header.EquipmentType+" - "+snap.Header.ClientName, 56),
	}, 56))
	b.WriteString("\n\n")

	sections := make(map[int]bool)
	items := make(map[int64]bool)

	lastSection := -1
	var lastItem int64 = -1
	for _, photo := range result.Photos {
		pc := photo.Context
		if pc.SectionIndex != lastSection {
			if lastSection != -1 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%d] %s\n", pc.SectionIndex+1, pc.SectionTitle)
			lastSection = pc.SectionIndex
			lastItem = -1
		}
		if pc.ItemID != lastItem {
			fmt.Fprintf(&b, "  %s (%s)\n", pc.ItemTitle, pc.ItemStatus.Label())
			lastItem = pc.ItemID
		}
		line := "    " + photo.FileName
		if pc.Photo.Caption != "" {
			line += "  - " + pc.Photo.Caption
		}
		line += "  (" + FormatSize(photo.SizeBytes) + ")"
		b.WriteString(line)
		b.WriteString("\n")

		sections[pc.SectionIndex] = true
		items[pc.ItemID] = true
	}

	b.WriteString("\n")
	b.WriteString(textfmt.Rule('-', 58))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Photos: %d  Sections: %d  Items with photos: %d\n",
		result.TotalFiles, len(sections), len(items))
	fmt.Fprintf(&b, "Total size: %s\n", FormatSize(result.TotalSizeBytes))
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	return os.WriteFile(path, []byte(b.String()), 0644)
}

// FormatSize renders a byte count as B/KB/MB/GB with one decimal place
// above one unit.
func FormatSize(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
