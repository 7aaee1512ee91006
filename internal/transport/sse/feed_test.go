package sse

import (
	"encoding/json"
	"testing"

	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/media"
)

func TestNewCreatesPlaybackStream(t *testing.T) {
	f := New(nil)
	defer f.Close()

	if !f.server.StreamExists(StreamID) {
		t.Errorf("stream %q not created", StreamID)
	}
}

func TestTrackPayloadWithMetadata(t *testing.T) {
	id := media.MakeID("gd1977-05-08.sbd", "02_scarlet_begonias.flac")
	p := trackPayload(playback.TrackChange{
		Index:   1,
		MediaID: id,
		Track: &media.TrackInfo{
			MediaID:  id,
			Title:    "Scarlet Begonias",
			ShowID:   "gd1977-05-08",
			ShowDate: "1977-05-08",
			Venue:    "Barton Hall",
		},
	})

	if p.Index != 1 || p.MediaID != string(id) {
		t.Errorf("identity = %d/%q", p.Index, p.MediaID)
	}
	if p.Title != "Scarlet Begonias" || p.Venue != "Barton Hall" {
		t.Errorf("metadata = %q/%q", p.Title, p.Venue)
	}
}

func TestTrackPayloadWithoutMetadataOmitsEmptyFields(t *testing.T) {
	id := media.MakeID("rec", "01.flac")
	p := trackPayload(playback.TrackChange{Index: 0, MediaID: id})

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, present := decoded["title"]; present {
		t.Error("empty title should be omitted")
	}
	if decoded["mediaId"] != string(id) {
		t.Errorf("mediaId = %v", decoded["mediaId"])
	}
}

func TestStateEventJSONShape(t *testing.T) {
	data, err := json.Marshal(stateEvent{Status: "play", IsPlaying: true})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["status"] != "play" || decoded["isPlaying"] != true {
		t.Errorf("decoded = %v", decoded)
	}
}
