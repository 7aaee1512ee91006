// Package artwork resolves show posters and serves size-bounded thumbnails
// of them. Resolution never fails a caller: a show without a poster gets the
// generated placeholder.
package artwork

import (
	"context"
	"errors"
)

// ErrNoArtwork is returned when no poster could be found for a show.
var ErrNoArtwork = errors.New("no artwork found")

// ResolveResult is a resolved poster on disk.
type ResolveResult struct {
	FilePath string
	Source   string // "cache", "remote", "placeholder"
	MimeType string
	FileSize int
}

// Fetcher retrieves poster image bytes for a show from a remote source.
type Fetcher interface {
	FetchPoster(ctx context.Context, showID string) ([]byte, error)
}

// DetectMimeType detects the image MIME type from magic bytes.
func DetectMimeType(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 8 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A:
		return "image/png"
	case len(data) >= 12 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P':
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ExtensionForMime returns the file extension for an image MIME type.
func ExtensionForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
