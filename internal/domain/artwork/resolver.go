package artwork

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Resolver finds a show's poster.
// Resolution order:
// 1. Disk cache
// 2. Poster image inside the recording's download directory
// 3. Remote archive fetch
// 4. Generated placeholder
type Resolver struct {
	fetcher  Fetcher
	finder   *LocalFinder
	cacheDir string

	phOnce sync.Once
	phPath string
	phErr  error
}

// NewResolver creates a resolver caching under cacheDir. fetcher and finder
// may each be nil; resolution skips the missing stage.
func NewResolver(fetcher Fetcher, finder *LocalFinder, cacheDir string) *Resolver {
	return &Resolver{fetcher: fetcher, finder: finder, cacheDir: cacheDir}
}

// Resolve returns the poster for a show. Missing artwork is not an error;
// the result degrades to the generated placeholder.
func (r *Resolver) Resolve(ctx context.Context, showID, recordingID string) (*ResolveResult, error) {
	if result := r.checkCache(showID); result != nil {
		return result, nil
	}

	if r.finder != nil && recordingID != "" {
		if path := r.finder.FindPoster(recordingID); path != "" {
			if data, err := os.ReadFile(path); err == nil {
				if result, err := r.saveToCache(showID, data, "local"); err == nil {
					return result, nil
				}
			}
		}
	}

	if r.fetcher != nil {
		data, err := r.fetcher.FetchPoster(ctx, showID)
		switch {
		case err != nil:
			log.Debug().Err(err).Str("showId", showID).Msg("Remote poster fetch failed")
		case len(data) > 0:
			result, err := r.saveToCache(showID, data, "remote")
			if err == nil {
				return result, nil
			}
			log.Warn().Err(err).Str("showId", showID).Msg("Caching fetched poster failed")
		}
	}

	return r.placeholder()
}

// checkCache looks for a previously cached poster file.
func (r *Resolver) checkCache(showID string) *ResolveResult {
	for _, ext := range []string{".jpg", ".png", ".webp"} {
		path := filepath.Join(r.cacheDir, "shows", showID+ext)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		return &ResolveResult{
			FilePath: path,
			Source:   "cache",
			MimeType: mimeForExtension(ext),
			FileSize: int(info.Size()),
		}
	}
	return nil
}

// saveToCache writes poster bytes into the cache tree.
func (r *Resolver) saveToCache(showID string, data []byte, source string) (*ResolveResult, error) {
	mimeType := DetectMimeType(data)
	showsDir := filepath.Join(r.cacheDir, "shows")
	if err := os.MkdirAll(showsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artwork cache directory: %w", err)
	}

	path := filepath.Join(showsDir, showID+ExtensionForMime(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write poster file: %w", err)
	}

	log.Debug().
		Str("showId", showID).
		Str("source", source).
		Str("path", path).
		Int("size", len(data)).
		Msg("Cached show poster")

	return &ResolveResult{
		FilePath: path,
		Source:   source,
		MimeType: mimeType,
		FileSize: len(data),
	}, nil
}

// placeholder returns the generated stand-in poster, rendering it on first
// use.
func (r *Resolver) placeholder() (*ResolveResult, error) {
	r.phOnce.Do(func() {
		path := filepath.Join(r.cacheDir, "placeholder.png")
		if _, err := os.Stat(path); err != nil {
			if err := writePlaceholder(path); err != nil {
				r.phErr = err
				return
			}
		}
		r.phPath = path
	})
	if r.phErr != nil {
		return nil, fmt.Errorf("generating placeholder: %w", r.phErr)
	}

	info, err := os.Stat(r.phPath)
	if err != nil {
		return nil, fmt.Errorf("placeholder missing: %w", err)
	}
	return &ResolveResult{
		FilePath: r.phPath,
		Source:   "placeholder",
		MimeType: "image/png",
		FileSize: int(info.Size()),
	}, nil
}

// writePlaceholder renders a flat dark square poster.
func writePlaceholder(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	const size = 500
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	fill := color.RGBA{R: 0x22, G: 0x26, B: 0x2B, A: 0xFF}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, fill)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// PruneCache removes cached posters and thumbnails not touched within
// maxAge. The placeholder is kept; it is shared across shows.
func (r *Resolver) PruneCache(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, sub := range []string{"shows", "thumbs"} {
		dir := filepath.Join(r.cacheDir, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to prune cached artwork")
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Pruned artwork cache")
	}
}

func mimeForExtension(ext string) string {
	switch ext {
	case ".jpg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
