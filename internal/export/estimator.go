package export

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oasislab/checkup-export/internal/models"
)

// Closed-form cost model constants. These are heuristics tuned against
// typical checkup exports, not measurements reconciled after the fact.
const (
	documentBaseBytes     = 64 << 10
	documentPerPhotoBytes = 160 << 10
	textFloorBytes        = 2 << 10
	packageIndexBytes     = 8 << 10

	perFormatSetupTime   = 250 * time.Millisecond
	documentPerPhotoTime = 80 * time.Millisecond
	verbatimPerPhotoTime = 20 * time.Millisecond
	reencodePerPhotoTime = 120 * time.Millisecond
)

// EstimatorConfig holds the tunable constants of the cost model.
type EstimatorConfig struct {
	AvgPhotoBytes    int64
	LargeExportBytes int64
}

// DefaultEstimatorConfig returns the constants used when configuration
// leaves them unset.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		AvgPhotoBytes:    2_500_000,
		LargeExportBytes: 200 << 20,
	}
}

// Estimator predicts per-format output size and duration. The result is
// advisory: it drives progress percentages and the pre-flight storage check.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator creates an estimator with the given constants, filling
// zero values from the defaults.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	def := DefaultEstimatorConfig()
	if cfg.AvgPhotoBytes <= 0 {
		cfg.AvgPhotoBytes = def.AvgPhotoBytes
	}
	if cfg.LargeExportBytes <= 0 {
		cfg.LargeExportBytes = def.LargeExportBytes
	}
	return &Estimator{cfg: cfg}
}

// Estimate computes the cost model for every requested format.
func (e *Estimator) Estimate(snap *models.CheckupSnapshot, opts models.ExportOptions) models.EstimationReport {
	report := models.EstimationReport{
		Formats: make(map[models.ExportFormat]models.FormatEstimate),
	}

	photoCount := snap.TotalPhotos()

	for _, format := range models.FormatOrder {
		if !opts.HasFormat(format) {
			continue
		}
		var est models.FormatEstimate
		switch format {
		case models.FormatDocument:
			est = e.estimateDocument(photoCount, opts)
		case models.FormatText:
			est = e.estimateText(snap)
		case models.FormatPhotos:
			est = e.estimatePhotos(photoCount, opts)
		case models.FormatPackage:
			doc := e.estimateDocument(photoCount, opts)
			txt := e.estimateText(snap)
			photos := e.estimatePhotos(photoCount, opts)
			est = models.FormatEstimate{
				Bytes:    doc.Bytes + txt.Bytes + photos.Bytes + packageIndexBytes,
				Duration: doc.Duration + txt.Duration + photos.Duration + perFormatSetupTime,
			}
		}
		report.Formats[format] = est
		report.TotalBytes += est.Bytes
		report.TotalDuration += est.Duration
	}

	if report.TotalBytes > e.cfg.LargeExportBytes {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"estimated size %s exceeds %s, export may be slow",
			humanize.Bytes(uint64(report.TotalBytes)),
			humanize.Bytes(uint64(e.cfg.LargeExportBytes))))
	}

	return report
}

func (e *Estimator) estimateDocument(photoCount int, opts models.ExportOptions) models.FormatEstimate {
	est := models.FormatEstimate{
		Bytes:    documentBaseBytes,
		Duration: perFormatSetupTime,
	}
	if opts.IncludePhotos {
		est.Bytes += int64(photoCount) * documentPerPhotoBytes
		est.Duration += time.Duration(photoCount) * documentPerPhotoTime
	}
	return est
}

func (e *Estimator) estimateText(snap *models.CheckupSnapshot) models.FormatEstimate {
	chars := len(snap.Header.Notes)
	for _, module := range snap.Modules {
		chars += len(module.Name)
		for _, item := range module.Items {
			chars += len(item.Description) + len(item.Notes)
		}
	}
	for _, part := range snap.SpareParts {
		chars += len(part.PartCode) + len(part.Description) + len(part.Notes)
	}

	// Tables and padding roughly double the raw character count.
	size := int64(float64(chars) * 2.0)
	if size < textFloorBytes {
		size = textFloorBytes
	}
	return models.FormatEstimate{Bytes: size, Duration: perFormatSetupTime}
}

func (e *Estimator) estimatePhotos(photoCount int, opts models.ExportOptions) models.FormatEstimate {
	perPhotoBytes := e.cfg.AvgPhotoBytes
	perPhotoTime := verbatimPerPhotoTime
	switch opts.Quality {
	case models.QualityOptimized:
		perPhotoBytes = e.cfg.AvgPhotoBytes * 55 / 100
		perPhotoTime = reencodePerPhotoTime
	case models.QualityCompressed:
		perPhotoBytes = e.cfg.AvgPhotoBytes * 25 / 100
		perPhotoTime = reencodePerPhotoTime
	}
	return models.FormatEstimate{
		Bytes:    int64(photoCount) * perPhotoBytes,
		Duration: perFormatSetupTime + time.Duration(photoCount)*perPhotoTime,
	}
}
