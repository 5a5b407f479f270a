package models

import "time"

// ExportFormat identifies one distributable artifact kind.
type ExportFormat string

const (
	FormatDocument ExportFormat = "document"
	FormatText     ExportFormat = "text"
	FormatPhotos   ExportFormat = "photos"
	FormatPackage  ExportFormat = "package"
)

// FormatOrder is the fixed order in which requested formats are generated.
// Package runs last because it reuses artifacts of the earlier steps.
var FormatOrder = []ExportFormat{FormatDocument, FormatText, FormatPhotos, FormatPackage}

// NamingStrategy selects how exported photo file names are derived.
type NamingStrategy string

const (
	NamingStructured NamingStrategy = "structured"
	NamingSequential NamingStrategy = "sequential"
	NamingTimestamp  NamingStrategy = "timestamp"
)

// QualityTier selects how exported photos are processed.
type QualityTier string

const (
	QualityVerbatim   QualityTier = "verbatim"
	QualityOptimized  QualityTier = "optimized"
	QualityCompressed QualityTier = "compressed"
)

// ExportOptions is the immutable per-request export configuration.
type ExportOptions struct {
	Formats        []ExportFormat `json:"formats"`
	IncludePhotos  bool           `json:"include_photos"`
	IncludeNotes   bool           `json:"include_notes"`
	Naming         NamingStrategy `json:"naming"`
	Quality        QualityTier    `json:"quality"`
	TargetWidth    int            `json:"target_width"`
	TimestampedDir bool           `json:"timestamped_dir"`
}

// DefaultExportOptions returns the options used when a request leaves
// fields unset.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Formats:        []ExportFormat{FormatPackage},
		IncludePhotos:  true,
		IncludeNotes:   true,
		Naming:         NamingStructured,
		Quality:        QualityOptimized,
		TargetWidth:    1600,
		TimestampedDir: true,
	}
}

// HasFormat reports whether f was requested.
func (o ExportOptions) HasFormat(f ExportFormat) bool {
	for _, requested := range o.Formats {
		if requested == f {
			return true
		}
	}
	return false
}

// PhotoContext ties one photo to its position in the checkup tree.
// It is computed transiently during export and never persisted.
type PhotoContext struct {
	SectionIndex    int
	SectionTitle    string
	ItemID          int64
	ItemTitle       string
	ItemStatus      CheckStatus
	ItemCriticality Criticality
	Ordinal         int
	Photo           Photo
}

// ExportedArtifact is the result of writing one output file or folder.
type ExportedArtifact struct {
	Path      string       `json:"path"`
	Name      string       `json:"name"`
	SizeBytes int64        `json:"size_bytes"`
	Format    ExportFormat `json:"format"`
}

// FormatEstimate is the predicted cost of generating one format.
type FormatEstimate struct {
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// EstimationReport is the advisory pre-flight cost model for one export.
type EstimationReport struct {
	Formats       map[ExportFormat]FormatEstimate `json:"formats"`
	TotalBytes    int64                           `json:"total_bytes"`
	TotalDuration time.Duration                   `json:"total_duration"`
	Warnings      []string                        `json:"warnings"`
}

// MultiFormatExportResult accumulates the outcome of one export invocation.
// The orchestrator emits an immutable copy after every completed stage.
type MultiFormatExportResult struct {
	Destination    string                            `json:"destination"`
	Artifacts      map[ExportFormat]ExportedArtifact `json:"artifacts"`
	FormatErrors   map[ExportFormat]string           `json:"format_errors,omitempty"`
	ItemsProcessed int                               `json:"items_processed"`
	PhotosExported int                               `json:"photos_exported"`
	Elapsed        time.Duration                     `json:"elapsed"`
	Finished       bool                              `json:"finished"`
}

// NewMultiFormatExportResult returns an empty result for the given destination.
func NewMultiFormatExportResult(destination string) *MultiFormatExportResult {
	return &MultiFormatExportResult{
		Destination:  destination,
		Artifacts:    make(map[ExportFormat]ExportedArtifact),
		FormatErrors: make(map[ExportFormat]string),
	}
}

// Clone returns a deep copy safe to hand to progress observers.
func (r *MultiFormatExportResult) Clone() MultiFormatExportResult {
	cp := *r
	cp.Artifacts = make(map[ExportFormat]ExportedArtifact, len(r.Artifacts))
	for k, v := range r.Artifacts {
		cp.Artifacts[k] = v
	}
	cp.FormatErrors = make(map[ExportFormat]string, len(r.FormatErrors))
	for k, v := range r.FormatErrors {
		cp.FormatErrors[k] = v
	}
	return cp
}

// IsComplete reports whether the given format produced everything it
// promises. Single formats complete when their artifact exists; the combined
// package completes only when all three sub-artifacts exist.
func (r *MultiFormatExportResult) IsComplete(f ExportFormat) bool {
	if f == FormatPackage {
		_, doc := r.Artifacts[FormatDocument]
		_, txt := r.Artifacts[FormatText]
		_, photos := r.Artifacts[FormatPhotos]
		return doc && txt && photos
	}
	_, ok := r.Artifacts[f]
	return ok
}
