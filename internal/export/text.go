package export

import (
	"fmt"
	"strings"

	"github.com/oasislab/checkup-export/internal/models"
	"github.com/oasislab/checkup-export/pkg/textfmt"
)

const textReportWidth = 62

// GenerateTextReport renders the whole checkup as one self-contained text
// block. It is a pure function, the caller is responsible for writing the
// result to disk.
func GenerateTextReport(snap *models.CheckupSnapshot, opts models.ExportOptions) string {
	var b strings.Builder

	header := snap.Header
	b.WriteString(textfmt.Box([]string{
		textfmt.Center("CHECKUP REPORT", textReportWidth),
		textfmt.Center(header.EquipmentType, textReportWidth),
		textfmt.Center(header.ClientName+" - "+header.CheckupDate.Format("2006-01-02"), textReportWidth),
	}, textReportWidth))
	b.WriteString("\n\n")

	b.WriteString("EQUIPMENT\n")
	b.WriteString(textfmt.Table(
		[]string{"FIELD", "VALUE"},
		[][]string{
			{"Client", header.ClientName},
			{"Site", header.SiteName},
			{"Technician", header.Technician},
			{"Island", header.IslandCode},
			{"Serial number", header.SerialNumber},
			{"Model", header.EquipmentModel},
			{"Operating hours", fmt.Sprintf("%d", header.OperatingHours)},
			{"Cycles", fmt.Sprintf("%d", header.CycleCount)},
		},
	))
	b.WriteString("\n")

	if header.Notes != "" && opts.IncludeNotes {
		b.WriteString("NOTES\n")
		for _, line := range textfmt.Wrap(header.Notes, textReportWidth) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	for _, module := range snap.Modules {
		fmt.Fprintf(&b, "MODULE: %s\n", module.Name)
		for _, item := range module.Items {
			fmt.Fprintf(&b, "  * [%s] %s (%s)\n", item.Status.Label(), item.Description, item.Criticality)
			if opts.IncludeNotes && item.Notes != "" {
				for _, line := range textfmt.Wrap(item.Notes, textReportWidth-8) {
					b.WriteString("        " + line + "\n")
				}
			}
			if len(item.Photos) > 0 {
				fmt.Fprintf(&b, "        photos: %d\n", len(item.Photos))
			}
		}
		b.WriteString("\n")
	}

	if len(snap.SpareParts) > 0 {
		b.WriteString("SPARE PARTS\n")
		rows := make([][]string, 0, len(snap.SpareParts))
		for _, part := range snap.SpareParts {
			rows = append(rows, []string{
				part.PartCode,
				part.Description,
				fmt.Sprintf("%d", part.Quantity),
				string(part.Urgency),
				part.Notes,
			})
		}
		b.WriteString(textfmt.Table([]string{"CODE", "DESCRIPTION", "QTY", "URGENCY", "NOTES"}, rows))
		b.WriteString("\n")
	}

	stats := snap.Stats
	b.WriteString("SUMMARY\n")
	fmt.Fprintf(&b, "  Check items: %d  (OK: %d  FAIL: %d  N/A: %d  PENDING: %d)\n",
		stats.TotalItems,
		stats.ByStatus[models.StatusPass],
		stats.ByStatus[models.StatusFail],
		stats.ByStatus[models.StatusNotApplicable],
		stats.ByStatus[models.StatusPending])
	fmt.Fprintf(&b, "  Photos: %d\n", snap.TotalPhotos())
	fmt.Fprintf(&b, "  Spare parts requested: %d\n", len(snap.SpareParts))
	fmt.Fprintf(&b, "  Completion: %s\n", textfmt.ProgressBar(stats.CompletionPct, 30))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Generated: %s\n", snap.GeneratedAt.Format("2006-01-02 15:04:05"))

	return b.String()
}
