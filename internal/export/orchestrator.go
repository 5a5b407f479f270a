package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/models"
	"github.com/oasislab/checkup-export/internal/storage"
)

// ProgressFunc receives an immutable result copy after every completed stage.
type ProgressFunc func(models.MultiFormatExportResult)

// Orchestrator coordinates one export invocation: it validates the snapshot,
// prepares the destination directory, dispatches the requested formats in a
// fixed order with per-format failure isolation and streams progress.
type Orchestrator struct {
	destinations *storage.DestinationManager
	estimator    *Estimator
	generators   map[models.ExportFormat]formatGenerator
	logger       *zap.Logger
}

// NewOrchestrator wires the per-format generators into the dispatch table.
func NewOrchestrator(
	destinations *storage.DestinationManager,
	photos *PhotoExporter,
	doc *DocumentGenerator,
	estimator *Estimator,
	logger *zap.Logger,
) *Orchestrator {
	docGen := &documentFormat{doc: doc}
	txtGen := &textFormat{}
	photoGen := &photoFolderFormat{photos: photos}

	return &Orchestrator{
		destinations: destinations,
		estimator:    estimator,
		generators: map[models.ExportFormat]formatGenerator{
			models.FormatDocument: docGen,
			models.FormatText:     txtGen,
			models.FormatPhotos:   photoGen,
			models.FormatPackage: &packageFormat{
				steps:  []formatGenerator{docGen, txtGen, photoGen},
				logger: logger,
			},
		},
		logger: logger,
	}
}

// Estimate exposes the pre-flight cost model to callers.
func (o *Orchestrator) Estimate(snap *models.CheckupSnapshot, opts models.ExportOptions) models.EstimationReport {
	return o.estimator.Estimate(snap, opts)
}

// Export runs the pipeline for one snapshot. Validation and the storage
// preflight abort before any file is written; afterwards each format fails
// in isolation and the final result reports which formats were produced.
func (o *Orchestrator) Export(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, onProgress ProgressFunc) (*models.MultiFormatExportResult, error) {
	if len(opts.Formats) == 0 {
		return nil, ErrNoFormats
	}
	if messages := ValidateSnapshot(snap); len(messages) > 0 {
		return nil, &ValidationError{Messages: messages}
	}

	estimate := o.estimator.Estimate(snap, opts)
	if free, err := o.destinations.FreeSpace(); err != nil {
		// A failed statfs must not block the export, the write itself
		// will surface real storage problems.
		o.logger.Warn("Free space check unavailable", zap.Error(err))
	} else if free < uint64(estimate.TotalBytes) {
		return nil, fmt.Errorf("%w: estimated %s, available %s",
			ErrInsufficientSpace, FormatSize(estimate.TotalBytes), FormatSize(int64(free)))
	}

	destDir, err := o.destinations.Prepare(snap.Header.ClientName, snap.Header.CheckupDate, opts.TimestampedDir)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Starting export",
		zap.Int64("checkup_id", snap.CheckupID),
		zap.String("destination", destDir),
		zap.Int("formats", len(opts.Formats)))

	result := models.NewMultiFormatExportResult(destDir)
	result.ItemsProcessed = snap.Stats.TotalItems
	start := time.Now()

	emit := func() {
		if onProgress != nil {
			onProgress(result.Clone())
		}
	}

	for _, format := range models.FormatOrder {
		if !opts.HasFormat(format) {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}

		out, err := o.runFormat(ctx, format, snap, opts, destDir)
		if err != nil {
			if ctx.Err() != nil {
				result.Elapsed = time.Since(start)
				return result, ctx.Err()
			}
			o.logger.Error("Format generation failed, continuing with remaining formats",
				zap.String("format", string(format)),
				zap.Error(err))
			result.FormatErrors[format] = err.Error()
		} else {
			for _, artifact := range out.artifacts {
				result.Artifacts[artifact.Format] = artifact
			}
			result.PhotosExported += out.photosExported
			for f, msg := range out.subErrors {
				result.FormatErrors[f] = msg
			}
		}

		result.Elapsed = time.Since(start)
		emit()
	}

	result.Finished = true
	result.Elapsed = time.Since(start)
	emit()

	o.logger.Info("Export finished",
		zap.Int64("checkup_id", snap.CheckupID),
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("failed_formats", len(result.FormatErrors)),
		zap.Duration("elapsed", result.Elapsed))

	return result, nil
}

// runFormat dispatches one format and converts panics into errors so a
// misbehaving generator cannot take down the remaining formats.
func (o *Orchestrator) runFormat(ctx context.Context, format models.ExportFormat, snap *models.CheckupSnapshot, opts models.ExportOptions, destDir string) (out generated, err error) {
	generator, ok := o.generators[format]
	if !ok {
		return generated{}, fmt.Errorf("unknown export format: %s", format)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("format %s panicked: %v", format, r)
		}
	}()

	return generator.Generate(ctx, snap, opts, destDir)
}

// ValidateSnapshot checks the fields an export cannot do without. All
// violations are collected and reported together.
func ValidateSnapshot(snap *models.CheckupSnapshot) []string {
	var messages []string

	if snap.Header.EquipmentType == "" {
		messages = append(messages, "equipment type is required")
	}
	if snap.Header.ClientName == "" {
		messages = append(messages, "client name is required")
	}
	if snap.Header.Technician == "" {
		messages = append(messages, "technician name is required")
	}

	hasItems := false
	for _, module := range snap.Modules {
		if len(module.Items) > 0 {
			hasItems = true
			break
		}
	}
	if !hasItems {
		messages = append(messages, "checkup needs at least one module with at least one check item")
	}

	return messages
}
