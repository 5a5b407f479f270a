package repository

import (
	"time"

	"github.com/oasislab/checkup-export/internal/models"
)

// SnapshotFromDetails converts the raw record graph into the read-only
// snapshot consumed by the export pipeline, grouping items by module in
// first-seen order and precomputing the statistics. The snapshot type
// itself stays free of any conversion logic.
func SnapshotFromDetails(details *CheckupDetails, now time.Time) *models.CheckupSnapshot {
	photosByItem := make(map[int64][]models.Photo)
	for _, photo := range details.Photos {
		photosByItem[photo.ItemID] = append(photosByItem[photo.ItemID], models.Photo{
			SourcePath: photo.FilePath,
			Caption:    photo.Caption,
			CapturedAt: photo.CapturedAt,
			SizeBytes:  photo.SizeBytes,
		})
	}

	snap := &models.CheckupSnapshot{
		CheckupID: details.Checkup.ID,
		Header: models.CheckupHeader{
			ClientName:     details.Checkup.ClientName,
			SiteName:       details.Checkup.SiteName,
			Technician:     details.Checkup.Technician,
			IslandCode:     details.Checkup.IslandCode,
			EquipmentType:  details.Checkup.EquipmentType,
			SerialNumber:   details.Checkup.SerialNumber,
			EquipmentModel: details.Checkup.EquipmentModel,
			OperatingHours: details.Checkup.OperatingHours,
			CycleCount:     details.Checkup.CycleCount,
			Notes:          details.Checkup.Notes,
			CheckupDate:    details.Checkup.CheckupDate,
		},
		GeneratedAt: now,
	}

	moduleIndex := make(map[string]int)
	stats := models.CheckupStats{
		ByStatus:      make(map[models.CheckStatus]int),
		ByCriticality: make(map[models.Criticality]int),
	}

	for _, record := range details.Items {
		item := models.CheckItem{
			ID:          record.ID,
			Description: record.Description,
			Status:      models.CheckStatus(record.Status),
			Criticality: models.Criticality(record.Criticality),
			Notes:       record.Notes,
			Photos:      photosByItem[record.ID],
		}

		idx, ok := moduleIndex[record.ModuleName]
		if !ok {
			idx = len(snap.Modules)
			moduleIndex[record.ModuleName] = idx
			snap.Modules = append(snap.Modules, models.ModuleChecks{Name: record.ModuleName})
		}
		snap.Modules[idx].Items = append(snap.Modules[idx].Items, item)

		stats.TotalItems++
		stats.ByStatus[item.Status]++
		stats.ByCriticality[item.Criticality]++
	}

	if stats.TotalItems > 0 {
		done := 0
		for status, count := range stats.ByStatus {
			if status.Done() {
				done += count
			}
		}
		stats.CompletionPct = float64(done) / float64(stats.TotalItems) * 100
	}
	snap.Stats = stats

	for _, record := range details.SpareParts {
		snap.SpareParts = append(snap.SpareParts, models.SparePartRequest{
			PartCode:    record.PartCode,
			Description: record.Description,
			Quantity:    record.Quantity,
			Urgency:     models.Criticality(record.Urgency),
			Notes:       record.Notes,
		})
	}

	return snap
}
