package artwork

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

// ThumbnailSize represents common thumbnail dimensions.
type ThumbnailSize int

const (
	// ThumbSmall is 150x150 pixels, for list rows.
	ThumbSmall ThumbnailSize = 150
	// ThumbMedium is 300x300 pixels, for grids.
	ThumbMedium ThumbnailSize = 300
	// ThumbLarge is 500x500 pixels, for the now-playing view.
	ThumbLarge ThumbnailSize = 500
)

// ThumbnailGenerator creates size-bounded JPEG thumbnails of show posters.
type ThumbnailGenerator struct {
	cacheDir string
}

// NewThumbnailGenerator creates a generator caching under cacheDir.
func NewThumbnailGenerator(cacheDir string) *ThumbnailGenerator {
	return &ThumbnailGenerator{cacheDir: cacheDir}
}

// GenerateThumbnail scales a poster down to size, reusing an existing
// thumbnail when present. Returns the thumbnail path.
func (g *ThumbnailGenerator) GenerateThumbnail(sourcePath, showID string, size ThumbnailSize) (string, error) {
	thumbDir := filepath.Join(g.cacheDir, "thumbs")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	thumbPath := filepath.Join(thumbDir, fmt.Sprintf("%s_%d.jpg", showID, size))
	if _, err := os.Stat(thumbPath); err == nil {
		return thumbPath, nil
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open poster: %w", err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("failed to decode poster: %w", err)
	}

	log.Debug().
		Str("showId", showID).
		Str("format", format).
		Int("size", int(size)).
		Msg("Generating thumbnail")

	thumb := resize(img, int(size))

	out, err := os.Create(thumbPath)
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return thumbPath, nil
}

// CleanupThumbnails removes all thumbnails for a show.
func (g *ThumbnailGenerator) CleanupThumbnails(showID string) {
	thumbDir := filepath.Join(g.cacheDir, "thumbs")
	for _, size := range []ThumbnailSize{ThumbSmall, ThumbMedium, ThumbLarge} {
		path := filepath.Join(thumbDir, fmt.Sprintf("%s_%d.jpg", showID, size))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove thumbnail")
		}
	}
}

// resize scales an image to fit within maxSize preserving aspect ratio.
func resize(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= maxSize && srcH <= maxSize {
		return src
	}

	var newW, newH int
	if srcW > srcH {
		newW = maxSize
		newH = srcH * maxSize / srcW
	} else {
		newH = maxSize
		newW = srcW * maxSize / srcH
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
