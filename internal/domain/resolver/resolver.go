// Package resolver decides, per queue item, whether playback uses the
// downloaded local file or streams the remote archive URL.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/media"
)

// ErrNoSource is returned when an item has neither a local file nor a remote
// URL to play from. It is the only resolver error surfaced to users.
var ErrNoSource = errors.New("no playable source")

// DownloadIndex reports the download status of a track.
type DownloadIndex interface {
	Status(id media.ID) media.DownloadStatus
}

// Resolver maps queue items to playable sources. Local wins only when the
// download index reports exactly Completed and the file is actually on disk;
// every other state streams. Resolution happens at queue load time so a
// download finishing between loads is picked up on the next load.
type Resolver struct {
	index      DownloadIndex
	root       string // downloads root, layout <root>/<recordingID>/<filename>
	remoteBase string // archive download base URL, no trailing slash
}

// New creates a resolver over the downloads tree rooted at root.
func New(index DownloadIndex, root, remoteBase string) *Resolver {
	return &Resolver{
		index:      index,
		root:       root,
		remoteBase: strings.TrimSuffix(remoteBase, "/"),
	}
}

// Resolve returns the source for one queue item.
func (r *Resolver) Resolve(item media.QueueItem) (media.Source, error) {
	id := item.MediaID
	if id.IsZero() {
		// Restored state may carry only a source URI, in either URL or
		// local-path form. Re-derive identity from it.
		id = media.IDFromURI(item.SourceURI)
	}
	if id.IsZero() {
		return media.Source{}, fmt.Errorf("%w: item has no identity", ErrNoSource)
	}

	recordingID, filename := identityParts(id, item)

	if r.index != nil && r.index.Status(id) == media.DownloadCompleted {
		local := filepath.Join(r.root, recordingID, filename)
		if fileExists(local) {
			return media.Source{URI: local, Local: true}, nil
		}
		log.Warn().
			Str("mediaId", string(id)).
			Str("path", local).
			Msg("Download marked completed but file is missing, streaming instead")
	}

	if remote := r.remoteURL(recordingID, filename, item.SourceURI); remote != "" {
		return media.Source{URI: remote}, nil
	}
	return media.Source{}, fmt.Errorf("%w: %s", ErrNoSource, id)
}

// identityParts prefers the item's structured recording ID over re-parsing
// the composite; the composite parse covers only items restored with no
// metadata at all.
func identityParts(id media.ID, item media.QueueItem) (recordingID, filename string) {
	if item.RecordingID != "" {
		if filename := id.FilenameWithin(item.RecordingID); filename != "" {
			return item.RecordingID, filename
		}
	}
	return id.RecordingID(), id.Filename()
}

// remoteURL picks the stream URL: the item's own URI when it already is one,
// otherwise one rebuilt from identity against the configured archive base.
// An item restored with a local-path URI streams from the rebuilt URL.
func (r *Resolver) remoteURL(recordingID, filename, sourceURI string) string {
	if strings.HasPrefix(sourceURI, "http://") || strings.HasPrefix(sourceURI, "https://") {
		return sourceURI
	}
	if r.remoteBase == "" {
		return ""
	}
	return r.remoteBase + "/" + recordingID + "/" + filename
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
