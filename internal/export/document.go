package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/models"
)

const (
	documentSheet = "Report"

	// maxModulePhotos bounds how many of a module's photos are embedded
	// inline after its check item table.
	maxModulePhotos = 4

	// docWorkDirName is the scratch subfolder the photo manager writes
	// into while the document is being assembled.
	docWorkDirName = ".docwork"
)

// DocumentGenerator assembles the structured office document for one
// checkup. Photo files are produced by the PhotoExporter against a working
// subfolder and read back for embedding; the generator never duplicates the
// naming or quality logic.
type DocumentGenerator struct {
	photos *PhotoExporter
	logger *zap.Logger
}

// NewDocumentGenerator creates a new document generator.
func NewDocumentGenerator(photos *PhotoExporter, logger *zap.Logger) *DocumentGenerator {
	return &DocumentGenerator{photos: photos, logger: logger}
}

// Generate writes the document into destDir and returns its artifact.
func (g *DocumentGenerator) Generate(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (models.ExportedArtifact, error) {
	var artifact models.ExportedArtifact

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), documentSheet); err != nil {
		return artifact, fmt.Errorf("failed to set sheet name: %w", err)
	}

	styles, err := newDocumentStyles(f)
	if err != nil {
		return artifact, fmt.Errorf("failed to create styles: %w", err)
	}

	widths := []float64{6, 44, 12, 12, 36, 14}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(documentSheet, col, col, w); err != nil {
			return artifact, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// Photos are produced once for the whole snapshot, then picked per
	// module when the subsections are laid out.
	photosBySection := map[int][]ExportedPhoto{}
	if opts.IncludePhotos && snap.TotalPhotos() > 0 {
		workDir := filepath.Join(destDir, docWorkDirName)
		defer os.RemoveAll(workDir)

		photoResult, err := g.photos.Export(ctx, snap, workDir, opts, false)
		if err != nil {
			return artifact, fmt.Errorf("failed to prepare document photos: %w", err)
		}
		for _, photo := range photoResult.Photos {
			photosBySection[photo.Context.SectionIndex] = append(photosBySection[photo.Context.SectionIndex], photo)
		}
	}

	row := 1
	row = g.writeTitleBlock(f, styles, snap, row)
	row = g.writeInfoTable(f, styles, snap, row)
	row = g.writeExecutiveSummary(f, styles, snap, row)

	for si, module := range snap.Modules {
		if err := ctx.Err(); err != nil {
			return artifact, err
		}
		row = g.writeModuleSection(f, styles, module, si, opts, row)
		row = g.embedModulePhotos(f, photosBySection[si], row)
	}

	if len(snap.SpareParts) > 0 {
		row = g.writeSparePartsTable(f, styles, snap.SpareParts, row)
	}

	g.setCell(f, cell(1, row+1), "Generated: "+snap.GeneratedAt.Format("2006-01-02 15:04:05"))

	name := fmt.Sprintf("Report_%s_%s.xlsx",
		normalizeSegment(snap.Header.ClientName),
		snap.Header.CheckupDate.Format("2006-01-02"))
	path := filepath.Join(destDir, name)
	if err := f.SaveAs(path); err != nil {
		return artifact, fmt.Errorf("failed to save document: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return artifact, fmt.Errorf("failed to stat document: %w", err)
	}

	g.logger.Info("Document generated",
		zap.Int64("checkup_id", snap.CheckupID),
		zap.String("path", path),
		zap.Int64("size", info.Size()))

	return models.ExportedArtifact{
		Path:      path,
		Name:      name,
		SizeBytes: info.Size(),
		Format:    models.FormatDocument,
	}, nil
}

// documentStyles holds the style ids used across the workbook.
type documentStyles struct {
	title    int
	subtitle int
	header   int
	byStatus map[models.CheckStatus]int
}

func newDocumentStyles(f *excelize.File) (*documentStyles, error) {
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: center,
	})
	if err != nil {
		return nil, err
	}
	subtitle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 12},
		Alignment: center,
	})
	if err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"404040"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	statusColors := map[models.CheckStatus][2]string{
		models.StatusPass:          {"C6EFCE", "006100"},
		models.StatusFail:          {"FFC7CE", "9C0006"},
		models.StatusPending:       {"FFEB9C", "9C6500"},
		models.StatusNotApplicable: {"F2F2F2", "808080"},
	}
	byStatus := make(map[models.CheckStatus]int, len(statusColors))
	for status, colors := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Color: colors[1], Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{colors[0]}, Pattern: 1},
		})
		if err != nil {
			return nil, err
		}
		byStatus[status] = id
	}

	return &documentStyles{title: title, subtitle: subtitle, header: header, byStatus: byStatus}, nil
}

func (g *DocumentGenerator) writeTitleBlock(f *excelize.File, styles *documentStyles, snap *models.CheckupSnapshot, row int) int {
	header := snap.Header

	g.mergeRow(f, row, "CHECKUP REPORT - "+header.EquipmentType, styles.title)
	row++
	g.mergeRow(f, row, header.ClientName+" / "+header.SiteName, styles.subtitle)
	row++
	g.mergeRow(f, row, header.CheckupDate.Format("2006-01-02")+" - "+header.Technician, styles.subtitle)
	return row + 2
}

func (g *DocumentGenerator) writeInfoTable(f *excelize.File, styles *documentStyles, snap *models.CheckupSnapshot, row int) int {
	header := snap.Header
	rows := [][2]string{
		{"Island", header.IslandCode},
		{"Serial number", header.SerialNumber},
		{"Model", header.EquipmentModel},
		{"Operating hours", fmt.Sprintf("%d", header.OperatingHours)},
		{"Cycles", fmt.Sprintf("%d", header.CycleCount)},
		{"Completion", fmt.Sprintf("%.0f%%", snap.Stats.CompletionPct)},
	}
	for _, pair := range rows {
		g.setCell(f, cell(1, row), pair[0])
		g.setCell(f, cell(2, row), pair[1])
		row++
	}
	return row + 1
}

func (g *DocumentGenerator) writeExecutiveSummary(f *excelize.File, styles *documentStyles, snap *models.CheckupSnapshot, row int) int {
	g.setCellStyled(f, cell(1, row), "EXECUTIVE SUMMARY", styles.header)
	row++
	g.setCell(f, cell(1, row), composeExecutiveSummary(snap))
	return row + 2
}

// composeExecutiveSummary derives one paragraph from the precomputed stats.
func composeExecutiveSummary(snap *models.CheckupSnapshot) string {
	stats := snap.Stats
	done := stats.ByStatus[models.StatusPass] +
		stats.ByStatus[models.StatusFail] +
		stats.ByStatus[models.StatusNotApplicable]

	summary := fmt.Sprintf(
		"Inspection of %s (island %s) for %s is %.0f%% complete: %d of %d check items inspected, %d failed, %d spare parts requested.",
		snap.Header.EquipmentType, snap.Header.IslandCode, snap.Header.ClientName,
		stats.CompletionPct, done, stats.TotalItems,
		stats.ByStatus[models.StatusFail], len(snap.SpareParts))

	if high := stats.ByCriticality[models.CriticalityHigh]; high > 0 && stats.ByStatus[models.StatusFail] > 0 {
		summary += fmt.Sprintf(" %d high criticality items require attention.", high)
	}
	return summary
}

func (g *DocumentGenerator) writeModuleSection(f *excelize.File, styles *documentStyles, module models.ModuleChecks, index int, opts models.ExportOptions, row int) int {
	g.setCellStyled(f, cell(1, row), fmt.Sprintf("%d. %s", index+1, module.Name), styles.header)
	row++

	headers := []string{"#", "DESCRIPTION", "STATUS", "CRITICALITY", "NOTES", "PHOTOS"}
	for i, h := range headers {
		g.setCellStyled(f, cell(i+1, row), h, styles.header)
	}
	row++

	for i, item := range module.Items {
		g.setCell(f, cell(1, row), fmt.Sprintf("%d.%d", index+1, i+1))
		g.setCell(f, cell(2, row), item.Description)
		g.setCellStyled(f, cell(3, row), item.Status.Label(), styles.byStatus[item.Status])
		g.setCell(f, cell(4, row), string(item.Criticality))
		if opts.IncludeNotes {
			g.setCell(f, cell(5, row), item.Notes)
		}
		g.setCell(f, cell(6, row), fmt.Sprintf("%d", len(item.Photos)))
		row++
	}
	return row + 1
}

// embedModulePhotos places up to maxModulePhotos of the module inline,
// each with its caption. Embedding failures degrade to a plain caption row.
func (g *DocumentGenerator) embedModulePhotos(f *excelize.File, photos []ExportedPhoto, row int) int {
	if len(photos) == 0 {
		return row
	}
	if len(photos) > maxModulePhotos {
		photos = photos[:maxModulePhotos]
	}

	for _, photo := range photos {
		caption := photo.Context.Photo.Caption
		if caption == "" {
			caption = photo.FileName
		}
		g.setCell(f, cell(2, row), caption)

		if err := f.AddPicture(documentSheet, cell(2, row+1), photo.Path, &excelize.GraphicOptions{
			ScaleX:      0.35,
			ScaleY:      0.35,
			Positioning: "oneCell",
		}); err != nil {
			g.logger.Warn("Failed to embed photo, leaving caption only",
				zap.String("photo", photo.Path),
				zap.Error(err))
			row += 2
			continue
		}
		row += 14
	}
	return row + 1
}

func (g *DocumentGenerator) writeSparePartsTable(f *excelize.File, styles *documentStyles, parts []models.SparePartRequest, row int) int {
	g.setCellStyled(f, cell(1, row), "SPARE PARTS", styles.header)
	row++

	headers := []string{"CODE", "DESCRIPTION", "QTY", "URGENCY", "NOTES"}
	for i, h := range headers {
		g.setCellStyled(f, cell(i+1, row), h, styles.header)
	}
	row++

	for _, part := range parts {
		g.setCell(f, cell(1, row), part.PartCode)
		g.setCell(f, cell(2, row), part.Description)
		g.setCell(f, cell(3, row), fmt.Sprintf("%d", part.Quantity))
		g.setCell(f, cell(4, row), string(part.Urgency))
		g.setCell(f, cell(5, row), part.Notes)
		row++
	}
	return row + 1
}

func (g *DocumentGenerator) mergeRow(f *excelize.File, row int, value string, style int) {
	if err := f.MergeCell(documentSheet, cell(1, row), cell(6, row)); err != nil {
		g.logger.Warn("Failed to merge cells", zap.Int("row", row), zap.Error(err))
	}
	g.setCellStyled(f, cell(1, row), value, style)
}

func (g *DocumentGenerator) setCell(f *excelize.File, ref, value string) {
	if err := f.SetCellValue(documentSheet, ref, value); err != nil {
		g.logger.Warn("Failed to set cell value",
			zap.String("cell", ref),
			zap.Error(err))
	}
}

func (g *DocumentGenerator) setCellStyled(f *excelize.File, ref, value string, style int) {
	g.setCell(f, ref, value)
	if err := f.SetCellStyle(documentSheet, ref, ref, style); err != nil {
		g.logger.Warn("Failed to set cell style",
			zap.String("cell", ref),
			zap.Error(err))
	}
}

// cell converts 1-based column/row coordinates to an A1 reference.
func cell(col, row int) string {
	ref, _ := excelize.CoordinatesToCellName(col, row)
	return ref
}
