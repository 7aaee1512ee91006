package media

import "strings"

// QueueItem is one playable entry in the queue. Items are created by the
// queue manager when a recording is loaded and consumed read-only everywhere
// else.
type QueueItem struct {
	MediaID      ID
	Title        string
	RecordingID  string
	ShowID       string
	SourceURI    string // remote URL or local file path, resolved at load time
	DurationHint int64  // milliseconds, 0 when unknown
}

// Source is a resolved playable source for a queue item.
type Source struct {
	URI   string
	Local bool
}

// TrackInfo is the denormalized display bundle attached to the current queue
// item. Resolved once per track change from the catalog and cached until the
// next transition.
type TrackInfo struct {
	MediaID     ID
	Title       string
	ShowID      string
	RecordingID string
	ShowDate    string
	Venue       string
	Location    string
	ArtworkURL  string
}

// FallbackTrackInfo builds display metadata from the ID alone, used when the
// catalog has no entry for a track. Playback never blocks on a metadata miss.
func FallbackTrackInfo(id ID) *TrackInfo {
	return &TrackInfo{
		MediaID:     id,
		Title:       TitleFromFilename(id.Filename()),
		RecordingID: id.RecordingID(),
	}
}

// DownloadStatus tracks how far a track's download has progressed. Only
// DownloadCompleted makes a track eligible for local playback.
type DownloadStatus int

const (
	DownloadNotStarted DownloadStatus = iota
	DownloadInProgress
	DownloadCompleted
	DownloadFailed
)

// String returns the status name, also used as the stored DB value.
func (s DownloadStatus) String() string {
	switch s {
	case DownloadInProgress:
		return "in_progress"
	case DownloadCompleted:
		return "completed"
	case DownloadFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// ParseDownloadStatus maps a stored value back to a status. Unknown values
// parse as not started, the safe default.
func ParseDownloadStatus(s string) DownloadStatus {
	switch s {
	case "in_progress":
		return DownloadInProgress
	case "completed":
		return DownloadCompleted
	case "failed":
		return DownloadFailed
	default:
		return DownloadNotStarted
	}
}

// TitleFromFilename derives a readable title from a track filename:
// extension stripped, separators replaced with spaces.
func TitleFromFilename(filename string) string {
	name := filename
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
