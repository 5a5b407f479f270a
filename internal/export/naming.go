package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oasislab/checkup-export/internal/models"
)

// maxPhotoNameLen bounds exported photo file names, extension included,
// so they stay safe on every common filesystem.
const maxPhotoNameLen = 80

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRuns     = regexp.MustCompile(`-{2,}`)
	underscoreRuns = regexp.MustCompile(`_{2,}`)
)

// PhotoName computes the output file name for one photo. It is a pure
// function of the photo's context, its position in the flattened traversal
// and the requested strategy.
func PhotoName(pc models.PhotoContext, globalIndex int, strategy models.NamingStrategy) string {
	switch strategy {
	case models.NamingSequential:
		return fmt.Sprintf("foto_%03d.jpg", globalIndex+1)
	case models.NamingTimestamp:
		return fmt.Sprintf("%s_%03d.jpg",
			pc.Photo.CapturedAt.Format("20060102-150405"), globalIndex+1)
	default:
		return structuredName(pc)
	}
}

// structuredName builds
// {sectionOrdinal}_{section}_{item}_{caption-or-foton}.jpg with every
// segment normalized and the whole name capped at maxPhotoNameLen.
func structuredName(pc models.PhotoContext) string {
	caption := normalizeSegment(pc.Photo.Caption)
	if caption == "" {
		caption = fmt.Sprintf("foto%d", pc.Ordinal+1)
	}

	base := fmt.Sprintf("%02d_%s_%s_%s",
		pc.SectionIndex+1,
		normalizeSegment(pc.SectionTitle),
		normalizeSegment(pc.ItemTitle),
		caption)
	base = underscoreRuns.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_-")

	const ext = ".jpg"
	if len(base) > maxPhotoNameLen-len(ext) {
		base = strings.Trim(base[:maxPhotoNameLen-len(ext)], "_-")
	}
	return base + ext
}

// normalizeSegment lowercases, replaces spaces with hyphens and strips
// everything that is not alphanumeric or a hyphen.
func normalizeSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = nonAlnum.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
