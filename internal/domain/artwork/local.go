package artwork

import (
	"os"
	"path/filepath"
	"strings"
)

// posterFilenames are checked in priority order inside a recording's
// download directory.
var posterFilenames = []string{
	"poster",
	"cover",
	"front",
	"folder",
}

var posterExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// LocalFinder searches the downloads tree for poster images shipped next to
// a recording's audio files.
type LocalFinder struct {
	downloadsRoot string
}

// NewLocalFinder creates a finder over the downloads tree.
func NewLocalFinder(downloadsRoot string) *LocalFinder {
	return &LocalFinder{downloadsRoot: downloadsRoot}
}

// FindPoster returns the path of a poster image in the recording's download
// directory, empty when there is none.
func (f *LocalFinder) FindPoster(recordingID string) string {
	dir := filepath.Join(f.downloadsRoot, recordingID)

	for _, name := range posterFilenames {
		for _, ext := range posterExtensions {
			path := filepath.Join(dir, name+ext)
			if isFile(path) {
				return path
			}
		}
	}

	// Fall back to any image file the taper shipped.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, valid := range posterExtensions {
			if ext == valid {
				return filepath.Join(dir, entry.Name())
			}
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
