package catalog_test

import (
	"path/filepath"
	"testing"

	"github.com/reelback/reelback/internal/infra/catalog"
	"github.com/reelback/reelback/internal/media"
)

func openSeeded(t *testing.T) *catalog.DB {
	t.Helper()
	db := catalog.NewDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.UpsertShow(catalog.Show{
		ID:       "gd1977-05-08",
		Artist:   "Grateful Dead",
		Date:     "1977-05-08",
		Venue:    "Barton Hall",
		Location: "Ithaca, NY",
	}); err != nil {
		t.Fatalf("upsert show: %v", err)
	}
	if err := db.UpsertRecording(catalog.Recording{
		ID:         "gd1977-05-08.sbd",
		ShowID:     "gd1977-05-08",
		SourceType: "sbd",
		Format:     "flac",
	}); err != nil {
		t.Fatalf("upsert recording: %v", err)
	}
	tracks := []catalog.Track{
		{MediaID: media.MakeID("gd1977-05-08.sbd", "d1t01.flac"), RecordingID: "gd1977-05-08.sbd", Filename: "d1t01.flac", Title: "New Minglewood Blues", TrackNumber: 1, DurationMs: 300_000},
		{MediaID: media.MakeID("gd1977-05-08.sbd", "d1t02.flac"), RecordingID: "gd1977-05-08.sbd", Filename: "d1t02.flac", Title: "Loser", TrackNumber: 2, DurationMs: 420_000},
		{MediaID: media.MakeID("gd1977-05-08.sbd", "d1t03.flac"), RecordingID: "gd1977-05-08.sbd", Filename: "d1t03.flac", TrackNumber: 3},
	}
	for _, tr := range tracks {
		if err := db.UpsertTrack(tr); err != nil {
			t.Fatalf("upsert track: %v", err)
		}
	}
	return db
}

func TestResolveTrackMetadata_JoinsShowContext(t *testing.T) {
	db := openSeeded(t)

	id := media.MakeID("gd1977-05-08.sbd", "d1t02.flac")
	info := db.ResolveTrackMetadata(id)
	if info == nil {
		t.Fatal("known track resolved to nil")
	}
	if info.Title != "Loser" || info.Venue != "Barton Hall" || info.ShowDate != "1977-05-08" {
		t.Errorf("info = %+v", info)
	}
	if info.RecordingID != "gd1977-05-08.sbd" || info.ShowID != "gd1977-05-08" {
		t.Errorf("identity fields wrong: %+v", info)
	}
}

func TestResolveTrackMetadata_MissIsNil(t *testing.T) {
	db := openSeeded(t)
	if info := db.ResolveTrackMetadata(media.MakeID("nope", "x.flac")); info != nil {
		t.Errorf("unknown track resolved to %+v, want nil", info)
	}
}

func TestResolveTrackMetadata_UntitledFallsBackToFilename(t *testing.T) {
	db := openSeeded(t)
	info := db.ResolveTrackMetadata(media.MakeID("gd1977-05-08.sbd", "d1t03.flac"))
	if info == nil {
		t.Fatal("untitled track resolved to nil")
	}
	if info.Title == "" {
		t.Error("no fallback title for untitled track")
	}
}

func TestRecordingTracks_OrderedQueueItems(t *testing.T) {
	db := openSeeded(t)

	items, err := db.RecordingTracks("gd1977-05-08.sbd")
	if err != nil {
		t.Fatalf("recording tracks: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Title != "New Minglewood Blues" || items[1].Title != "Loser" {
		t.Errorf("track order wrong: %q, %q", items[0].Title, items[1].Title)
	}
	if items[1].DurationHint != 420_000 {
		t.Errorf("duration hint = %d, want 420000", items[1].DurationHint)
	}
	for _, it := range items {
		if it.ShowID != "gd1977-05-08" || it.RecordingID != "gd1977-05-08.sbd" {
			t.Errorf("item identity wrong: %+v", it)
		}
	}
}

func TestRecordingTracks_UnknownRecordingIsEmpty(t *testing.T) {
	db := openSeeded(t)
	items, err := db.RecordingTracks("nope")
	if err != nil {
		t.Fatalf("unknown recording: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items for unknown recording, want 0", len(items))
	}
}

func TestGetShow_RoundTrip(t *testing.T) {
	db := openSeeded(t)

	s, err := db.GetShow("gd1977-05-08")
	if err != nil {
		t.Fatalf("get show: %v", err)
	}
	if s == nil || s.Venue != "Barton Hall" {
		t.Errorf("show = %+v", s)
	}

	s, err = db.GetShow("nope")
	if err != nil || s != nil {
		t.Errorf("unknown show: %+v, %v, want nil/nil", s, err)
	}
}
