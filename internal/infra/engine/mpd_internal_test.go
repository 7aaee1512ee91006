package engine

import (
	"testing"

	"github.com/fhs/gompd/v2/mpd"
)

func TestStatusFromAttrs_Playing(t *testing.T) {
	status := statusFromAttrs(mpd.Attrs{
		"state":          "play",
		"song":           "2",
		"elapsed":        "93.417",
		"duration":       "512.339",
		"playlistlength": "14",
	})

	if status.State != StatePlay {
		t.Errorf("State = %v, want play", status.State)
	}
	if status.SongIndex != 2 {
		t.Errorf("SongIndex = %d, want 2", status.SongIndex)
	}
	if status.ElapsedMs != 93417 {
		t.Errorf("ElapsedMs = %d, want 93417", status.ElapsedMs)
	}
	if status.DurationMs != 512339 {
		t.Errorf("DurationMs = %d, want 512339", status.DurationMs)
	}
	if status.QueueLen != 14 {
		t.Errorf("QueueLen = %d, want 14", status.QueueLen)
	}
}

func TestStatusFromAttrs_IdleDefaults(t *testing.T) {
	status := statusFromAttrs(mpd.Attrs{"state": "stop"})

	if status.State != StateStop {
		t.Errorf("State = %v, want stop", status.State)
	}
	if status.SongIndex != -1 {
		t.Errorf("SongIndex = %d, want -1 when nothing is loaded", status.SongIndex)
	}
	if status.ElapsedMs != 0 || status.DurationMs != 0 {
		t.Errorf("elapsed/duration = %d/%d, want 0/0", status.ElapsedMs, status.DurationMs)
	}
}
