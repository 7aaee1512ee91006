package socketio

import (
	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/media"
)

// stateCompareKeys are the payload fields compared when deciding whether a
// state broadcast is worth sending. Seek is deliberately absent: the
// frontend interpolates seek client-side, and diffing it would turn every
// position tick into a broadcast.
var stateCompareKeys = []string{
	"status", "position", "mediaId", "title", "show",
	"date", "venue", "duration", "queueLength", "repeat",
}

// statePayload builds the pushState payload from a playback snapshot.
func statePayload(snap playback.Snapshot, repeat playback.RepeatMode) map[string]interface{} {
	payload := map[string]interface{}{
		"status":      snap.State.String(),
		"position":    snap.CurrentIndex,
		"seek":        snap.PositionMs,
		"duration":    snap.DurationMs,
		"queueLength": snap.QueueLen,
		"repeat":      repeat.String(),
	}
	if !snap.CurrentMediaID.IsZero() {
		payload["mediaId"] = string(snap.CurrentMediaID)
	}
	if t := snap.Track; t != nil {
		payload["title"] = t.Title
		payload["show"] = t.ShowID
		payload["date"] = t.ShowDate
		payload["venue"] = t.Venue
		if t.ArtworkURL != "" {
			payload["albumart"] = t.ArtworkURL
		}
	}
	return payload
}

// queuePayload builds the pushQueue payload. current marks the active index,
// -1 when idle.
func queuePayload(items []media.QueueItem, current int) []map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		entry := map[string]interface{}{
			"position":    i,
			"mediaId":     string(item.MediaID),
			"title":       item.Title,
			"recordingId": item.RecordingID,
			"showId":      item.ShowID,
			"duration":    item.DurationHint,
			"current":     i == current,
		}
		entries = append(entries, entry)
	}
	return entries
}

// saveLastState records the most recently broadcast state for diffing.
func (s *Server) saveLastState(state map[string]interface{}) {
	s.stateMu.Lock()
	s.lastState = state
	s.stateMu.Unlock()
}

// isStateSame reports whether the given state matches the last broadcast on
// every compared key.
func (s *Server) isStateSame(state map[string]interface{}) bool {
	s.stateMu.Lock()
	last := s.lastState
	s.stateMu.Unlock()

	if last == nil {
		return false
	}
	for _, key := range stateCompareKeys {
		if last[key] != state[key] {
			return false
		}
	}
	return true
}
