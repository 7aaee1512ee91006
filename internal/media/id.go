// Package media defines track identity and the shared playback data model.
package media

import (
	"net/url"
	"path"
	"strings"
)

// ID is the stable identifier for a track: "recordingID_filename".
// The same logical track yields the same ID whether it is streamed from the
// archive host or played from a downloaded local file.
type ID string

// MakeID builds a track ID from a recording identifier and a filename.
func MakeID(recordingID, filename string) ID {
	return ID(recordingID + "_" + filename)
}

// RecordingID returns the recording component of the ID, splitting at the
// last separator. Archive recording identifiers routinely carry underscores
// themselves, so the separator is ambiguous; this parse is a last resort.
// Callers that know either component use FilenameWithin or the structured
// queue and catalog fields instead.
func (id ID) RecordingID() string {
	if i := strings.LastIndex(string(id), "_"); i >= 0 {
		return string(id)[:i]
	}
	return string(id)
}

// Filename returns the filename component of the ID. Same last-resort
// caveat as RecordingID.
func (id ID) Filename() string {
	if i := strings.LastIndex(string(id), "_"); i >= 0 {
		return string(id)[i+1:]
	}
	return ""
}

// FilenameWithin returns the filename component given the recording
// identifier the ID was built from, sidestepping the separator ambiguity.
// Empty when the ID does not belong to that recording.
func (id ID) FilenameWithin(recordingID string) string {
	rest, ok := strings.CutPrefix(string(id), recordingID+"_")
	if !ok {
		return ""
	}
	return rest
}

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool { return id == "" }

// IDFromURI derives a track ID from a playable source URI. Both remote
// archive URLs (https://host/download/<recordingID>/<filename>) and local
// download paths (file:///.../<recordingID>/<filename> or a bare path with
// the same tail) are recognized, so queue state persisted before a download
// completed still maps to the same track afterwards.
func IDFromURI(uri string) ID {
	trimmed := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" {
		trimmed = u.Path
	}
	trimmed = strings.TrimSuffix(trimmed, "/")

	dir, filename := path.Split(trimmed)
	if filename == "" {
		return ""
	}
	recordingID := path.Base(strings.TrimSuffix(dir, "/"))
	if recordingID == "" || recordingID == "." || recordingID == "/" {
		return ""
	}
	return MakeID(recordingID, filename)
}
