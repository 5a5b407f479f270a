package export

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	"github.com/oasislab/checkup-export/internal/models"
)

const (
	optimizedJPEGQuality  = 85
	compressedJPEGQuality = 60

	// compressed halves the requested width but never goes below this.
	minCompressedWidth = 800
)

// photoProcessor writes one source photo to dst and returns the written size.
type photoProcessor func(srcPath, dstPath string) (int64, error)

// processorFor maps a quality tier to its processing function. Verbatim
// copies bytes and preserves the source modification time; the other tiers
// re-encode toward the target pixel width.
func processorFor(tier models.QualityTier, targetWidth int) photoProcessor {
	switch tier {
	case models.QualityOptimized:
		return func(src, dst string) (int64, error) {
			return reencodePhoto(src, dst, targetWidth, optimizedJPEGQuality)
		}
	case models.QualityCompressed:
		width := targetWidth / 2
		if width < minCompressedWidth {
			width = minCompressedWidth
		}
		return func(src, dst string) (int64, error) {
			return reencodePhoto(src, dst, width, compressedJPEGQuality)
		}
	default:
		return copyPhoto
	}
}

// copyPhoto copies the source byte-for-byte and carries over its mtime.
func copyPhoto(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source photo: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat source photo: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create photo file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to copy photo: %w", err)
	}

	// Best effort, a failed chtimes does not invalidate the copy.
	_ = os.Chtimes(dstPath, info.ModTime(), info.ModTime())

	return written, nil
}

// reencodePhoto decodes the source image, scales it down to at most
// targetWidth (aspect ratio preserved, never upscaled) and encodes it as
// JPEG with the given quality.
func reencodePhoto(srcPath, dstPath string, targetWidth, quality int) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source photo: %w", err)
	}
	img, _, err := image.Decode(src)
	src.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to decode photo: %w", err)
	}

	img = scaleToWidth(img, targetWidth)

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create photo file: %w", err)
	}

	err = jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to encode photo: %w", err)
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat encoded photo: %w", err)
	}
	return info.Size(), nil
}

// scaleToWidth resizes img down to targetWidth preserving aspect ratio.
// Images already narrower than the target pass through unchanged.
func scaleToWidth(img image.Image, targetWidth int) image.Image {
	bounds := img.Bounds()
	if targetWidth <= 0 || bounds.Dx() <= targetWidth {
		return img
	}
	height := bounds.Dy() * targetWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	scaled := image.NewRGBA(image.Rect(0, 0, targetWidth, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
	return scaled
}
