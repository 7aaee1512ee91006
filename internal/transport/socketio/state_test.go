package socketio

import (
	"testing"

	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/media"
)

func TestStateCompareKeysDoNotIncludeSeek(t *testing.T) {
	// Seek is excluded because the frontend interpolates it client-side.
	// Diffing seek would make every position tick a broadcast.
	for _, key := range stateCompareKeys {
		if key == "seek" {
			t.Error("stateCompareKeys must not include seek")
		}
	}
}

func TestStatePayloadFields(t *testing.T) {
	id := media.MakeID("gd1977-05-08.sbd", "02_scarlet_begonias.flac")
	snap := playback.Snapshot{
		State:          playback.StatePlaying,
		IsPlaying:      true,
		PositionMs:     42000,
		DurationMs:     300000,
		CurrentIndex:   1,
		CurrentMediaID: id,
		Track: &media.TrackInfo{
			MediaID:  id,
			Title:    "Scarlet Begonias",
			ShowID:   "gd1977-05-08",
			ShowDate: "1977-05-08",
			Venue:    "Barton Hall",
		},
		QueueLen: 3,
	}

	p := statePayload(snap, playback.RepeatAll)

	if p["status"] != "play" || p["position"] != 1 {
		t.Errorf("status/position = %v/%v", p["status"], p["position"])
	}
	if p["title"] != "Scarlet Begonias" || p["venue"] != "Barton Hall" {
		t.Errorf("track fields = %v/%v", p["title"], p["venue"])
	}
	if p["mediaId"] != string(id) {
		t.Errorf("mediaId = %v", p["mediaId"])
	}
	if p["seek"] != int64(42000) || p["duration"] != int64(300000) {
		t.Errorf("seek/duration = %v/%v", p["seek"], p["duration"])
	}
	if p["repeat"] != "all" || p["queueLength"] != 3 {
		t.Errorf("repeat/queueLength = %v/%v", p["repeat"], p["queueLength"])
	}
}

func TestStatePayloadIdleOmitsTrack(t *testing.T) {
	snap := playback.Snapshot{
		State:        playback.StateStopped,
		CurrentIndex: -1,
	}

	p := statePayload(snap, playback.RepeatOff)

	if p["status"] != "stop" {
		t.Errorf("status = %v", p["status"])
	}
	if _, present := p["mediaId"]; present {
		t.Error("idle payload should not carry mediaId")
	}
	if _, present := p["title"]; present {
		t.Error("idle payload should not carry title")
	}
}

func TestQueuePayloadMarksCurrent(t *testing.T) {
	items := []media.QueueItem{
		{MediaID: media.MakeID("rec", "01.flac"), Title: "One", RecordingID: "rec"},
		{MediaID: media.MakeID("rec", "02.flac"), Title: "Two", RecordingID: "rec"},
	}

	entries := queuePayload(items, 1)

	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0]["current"] != false || entries[1]["current"] != true {
		t.Errorf("current flags = %v/%v", entries[0]["current"], entries[1]["current"])
	}
	if entries[1]["title"] != "Two" || entries[1]["position"] != 1 {
		t.Errorf("entry = %+v", entries[1])
	}
}

func TestIsStateSameSeekOnlyChange(t *testing.T) {
	s := &Server{}

	base := map[string]interface{}{
		"status":   "play",
		"position": 0,
		"title":    "Scarlet Begonias",
		"duration": int64(300000),
		"seek":     int64(1000),
	}
	s.saveLastState(base)

	seekOnly := map[string]interface{}{
		"status":   "play",
		"position": 0,
		"title":    "Scarlet Begonias",
		"duration": int64(300000),
		"seek":     int64(5000),
	}

	if !s.isStateSame(seekOnly) {
		t.Error("seek-only change should be considered same")
	}
}

func TestIsStateSameTitleChange(t *testing.T) {
	s := &Server{}

	s.saveLastState(map[string]interface{}{
		"status": "play",
		"title":  "Scarlet Begonias",
	})

	changed := map[string]interface{}{
		"status": "play",
		"title":  "Fire On The Mountain",
	}

	if s.isStateSame(changed) {
		t.Error("title change should not be considered same")
	}
}

func TestIsStateSameNoPriorState(t *testing.T) {
	s := &Server{}

	if s.isStateSame(map[string]interface{}{"status": "stop"}) {
		t.Error("first state should never be suppressed")
	}
}
