package models

import "time"

// CheckStatus is the outcome recorded for a single check item.
type CheckStatus string

const (
	StatusPass          CheckStatus = "pass"
	StatusFail          CheckStatus = "fail"
	StatusNotApplicable CheckStatus = "not_applicable"
	StatusPending       CheckStatus = "pending"
)

// Done reports whether the item has been inspected (any terminal status).
func (s CheckStatus) Done() bool {
	return s == StatusPass || s == StatusFail || s == StatusNotApplicable
}

// Label returns a short human-readable form for report output.
func (s CheckStatus) Label() string {
	switch s {
	case StatusPass:
		return "OK"
	case StatusFail:
		return "FAIL"
	case StatusNotApplicable:
		return "N/A"
	case StatusPending:
		return "PENDING"
	}
	return string(s)
}

// Criticality is the severity level assigned to a check item or spare part.
type Criticality string

const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// Photo is one captured image attached to a check item.
type Photo struct {
	SourcePath string
	Caption    string
	CapturedAt time.Time
	SizeBytes  int64
}

// CheckItem is a single inspection point.
type CheckItem struct {
	ID          int64
	Description string
	Status      CheckStatus
	Criticality Criticality
	Notes       string
	Photos      []Photo
}

// ModuleChecks groups the ordered check items of one equipment module.
type ModuleChecks struct {
	Name  string
	Items []CheckItem
}

// SparePartRequest is a part requested during the inspection.
type SparePartRequest struct {
	PartCode    string
	Description string
	Quantity    int
	Urgency     Criticality
	Notes       string
}

// CheckupHeader identifies the inspected equipment and the session context.
type CheckupHeader struct {
	ClientName     string
	SiteName       string
	Technician     string
	IslandCode     string
	EquipmentType  string
	SerialNumber   string
	EquipmentModel string
	OperatingHours int
	CycleCount     int
	Notes          string
	CheckupDate    time.Time
}

// CheckupStats holds statistics precomputed when the snapshot is assembled.
type CheckupStats struct {
	TotalItems    int
	ByStatus      map[CheckStatus]int
	ByCriticality map[Criticality]int
	CompletionPct float64
}

// CheckupSnapshot is the immutable read-only view of one inspection session
// consumed by the export pipeline. It is assembled once at the persistence
// boundary and never mutated afterwards.
type CheckupSnapshot struct {
	CheckupID   int64
	Header      CheckupHeader
	Modules     []ModuleChecks
	SpareParts  []SparePartRequest
	Stats       CheckupStats
	GeneratedAt time.Time
}

// TotalPhotos returns the number of photos across all modules and items.
func (s *CheckupSnapshot) TotalPhotos() int {
	n := 0
	for _, m := range s.Modules {
		for _, item := range m.Items {
			n += len(item.Photos)
		}
	}
	return n
}

// ItemsWithPhotos returns the number of check items carrying at least one photo.
func (s *CheckupSnapshot) ItemsWithPhotos() int {
	n := 0
	for _, m := range s.Modules {
		for _, item := range m.Items {
			if len(item.Photos) > 0 {
				n++
			}
		}
	}
	return n
}
