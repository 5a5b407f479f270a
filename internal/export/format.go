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

// PackageIndexName is the summary index written at the root of a combined
// package.
const PackageIndexName = "INDICE_PACKAGE.txt"

// generated is what one format generator contributes to the export result.
type generated struct {
	artifacts      []models.ExportedArtifact
	photosExported int
	subErrors      map[models.ExportFormat]string
}

// formatGenerator is implemented once per export format. The orchestrator
// dispatches through a lookup table instead of branching on the format.
type formatGenerator interface {
	Format() models.ExportFormat
	Generate(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (generated, error)
}

// documentFormat produces the rich office document.
type documentFormat struct {
	doc *DocumentGenerator
}

func (g *documentFormat) Format() models.ExportFormat { return models.FormatDocument }

func (g *documentFormat) Generate(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (generated, error) {
	artifact, err := g.doc.Generate(ctx, snap, opts, destDir)
	if err != nil {
		return generated{}, err
	}
	return generated{artifacts: []models.ExportedArtifact{artifact}}, nil
}

// textFormat writes the plain-text report produced by GenerateTextReport.
type textFormat struct{}

func (g *textFormat) Format() models.ExportFormat { return models.FormatText }

func (g *textFormat) Generate(_ context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (generated, error) {
	name := fmt.Sprintf("Report_%s_%s.txt",
		normalizeSegment(snap.Header.ClientName),
		snap.Header.CheckupDate.Format("2006-01-02"))
	path := filepath.Join(destDir, name)

	content := GenerateTextReport(snap, opts)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return generated{}, fmt.Errorf("failed to write text report: %w", err)
	}

	return generated{artifacts: []models.ExportedArtifact{{
		Path:      path,
		Name:      name,
		SizeBytes: int64(len(content)),
		Format:    models.FormatText,
	}}}, nil
}

// photoFolderFormat delegates to the PhotoExporter with the index enabled.
type photoFolderFormat struct {
	photos *PhotoExporter
}

func (g *photoFolderFormat) Format() models.ExportFormat { return models.FormatPhotos }

func (g *photoFolderFormat) Generate(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (generated, error) {
	result, err := g.photos.Export(ctx, snap, destDir, opts, true)
	if err != nil {
		return generated{}, err
	}
	return generated{
		artifacts: []models.ExportedArtifact{{
			Path:      result.Dir,
			Name:      PhotoDirName,
			SizeBytes: result.TotalSizeBytes,
			Format:    models.FormatPhotos,
		}},
		photosExported: result.TotalFiles,
	}, nil
}

// packageFormat runs the document, text and photo-folder steps against the
// same destination directory and writes a package-level index. A failed
// sub-step is reported in the index as not generated instead of blocking
// the package.
type packageFormat struct {
	steps  []formatGenerator
	logger *zap.Logger
}

func (g *packageFormat) Format() models.ExportFormat { return models.FormatPackage }

func (g *packageFormat) Generate(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (generated, error) {
	out := generated{subErrors: make(map[models.ExportFormat]string)}

	for _, step := range g.steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		sub, err := step.Generate(ctx, snap, opts, destDir)
		if err != nil {
			g.logger.Error("Package sub-step failed, continuing",
				zap.String("format", string(step.Format())),
				zap.Error(err))
			out.subErrors[step.Format()] = err.Error()
			continue
		}
		out.artifacts = append(out.artifacts, sub.artifacts...)
		out.photosExported += sub.photosExported
	}

	// The package index is best effort, its failure never escalates.
	indexPath := filepath.Join(destDir, PackageIndexName)
	if err := g.writeIndex(indexPath, snap, out); err != nil {
		g.logger.Warn("Failed to write package index, continuing without it",
			zap.String("path", indexPath),
			zap.Error(err))
	} else {
		if info, err := os.Stat(indexPath); err == nil {
			out.artifacts = append(out.artifacts, models.ExportedArtifact{
				Path:      indexPath,
				Name:      PackageIndexName,
				SizeBytes: info.Size(),
				Format:    models.FormatPackage,
			})
		}
	}

	return out, nil
}

// writeIndex summarizes what the package contains: produced artifacts,
// per-module photo counts and aggregate checkup statistics.
func (g *packageFormat) writeIndex(path string, snap *models.CheckupSnapshot, out generated) error {
	var b strings.Builder

	b.WriteString(textfmt.Box([]string{
		textfmt.Center("EXPORT PACKAGE", 56),
		textfmt.Center(snap.Header.EquipmentType+" - "+snap.Header.ClientName, 56),
		textfmt.Center(snap.Header.CheckupDate.Format("2006-01-02"), 56),
	}, 56))
	b.WriteString("\n\nCONTENTS\n")

	byFormat := make(map[models.ExportFormat]models.ExportedArtifact)
	for _, artifact := range out.artifacts {
		byFormat[artifact.Format] = artifact
	}
	labels := []struct {
		format models.ExportFormat
		label  string
	}{
		{models.FormatDocument, "Document"},
		{models.FormatText, "Text report"},
		{models.FormatPhotos, "Photo folder"},
	}
	for _, entry := range labels {
		if artifact, ok := byFormat[entry.format]; ok {
			fmt.Fprintf(&b, "  %-13s %s (%s)\n", entry.label+":", artifact.Name, FormatSize(artifact.SizeBytes))
		} else {
			fmt.Fprintf(&b, "  %-13s not generated\n", entry.label+":")
		}
	}

	b.WriteString("\nPHOTOS PER MODULE\n")
	for _, module := range snap.Modules {
		count := 0
		for _, item := range module.Items {
			count += len(item.Photos)
		}
		fmt.Fprintf(&b, "  %-40s %d\n", textfmt.Truncate(module.Name, 40), count)
	}

	stats := snap.Stats
	b.WriteString("\nCHECKUP STATISTICS\n")
	fmt.Fprintf(&b, "  Check items: %d  (OK: %d  FAIL: %d  N/A: %d  PENDING: %d)\n",
		stats.TotalItems,
		stats.ByStatus[models.StatusPass],
		stats.ByStatus[models.StatusFail],
		stats.ByStatus[models.StatusNotApplicable],
		stats.ByStatus[models.StatusPending])
	fmt.Fprintf(&b, "  Completion: %.0f%%\n", stats.CompletionPct)
	fmt.Fprintf(&b, "  Photos exported: %d\n", out.photosExported)
	fmt.Fprintf(&b, "\nGenerated: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	return os.WriteFile(path, []byte(b.String()), 0644)
}
