package appdb_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reelback/reelback/internal/infra/appdb"
	"github.com/reelback/reelback/internal/media"
)

func openTestDB(t *testing.T) *appdb.DB {
	t.Helper()
	db, err := appdb.Open(filepath.Join(t.TempDir(), "reelback.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Reopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelback.db")
	db, err := appdb.Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	// Migrations are idempotent across restarts.
	db, err = appdb.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db.Close()
}

func TestPlays_InsertAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, title := range []string{"Scarlet Begonias", "Fire On The Mountain"} {
		err := db.InsertPlay(ctx, appdb.Play{
			ID:          uuid.NewString(),
			MediaID:     fmt.Sprintf("gd1977-05-08.sbd_t%02d.flac", i+1),
			ShowID:      "gd1977-05-08",
			RecordingID: "gd1977-05-08.sbd",
			TrackTitle:  title,
			StartedAt:   now.Add(time.Duration(i) * time.Minute),
			EndedAt:     now.Add(time.Duration(i+1) * time.Minute),
			PlayedMs:    60_000,
			DurationMs:  600_000,
			Completed:   false,
		})
		if err != nil {
			t.Fatalf("insert play %d: %v", i, err)
		}
	}

	plays, err := db.RecentPlays(ctx, 10)
	if err != nil {
		t.Fatalf("recent plays: %v", err)
	}
	if len(plays) != 2 {
		t.Fatalf("got %d plays, want 2", len(plays))
	}
	if plays[0].TrackTitle != "Fire On The Mountain" {
		t.Errorf("most recent = %q, want newest first", plays[0].TrackTitle)
	}

	n, err := db.ShowPlayCount(ctx, "gd1977-05-08")
	if err != nil {
		t.Fatalf("show play count: %v", err)
	}
	if n != 2 {
		t.Errorf("show play count = %d, want 2", n)
	}
}

func TestLastPlayed_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.LoadLastPlayed(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if got != nil {
		t.Fatalf("empty db returned a record: %+v", got)
	}

	rec := appdb.LastPlayed{
		ShowID:      "gd1977-05-08",
		RecordingID: "gd1977-05-08.sbd",
		TrackIndex:  3,
		PositionMs:  123_456,
		Title:       "Estimated Prophet",
		Filename:    "gd1977-05-08d1t04.flac",
		Format:      "flac",
		SavedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := db.SaveLastPlayed(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A second save must replace, not multiply: the table holds one row.
	rec.PositionMs = 200_000
	if err := db.SaveLastPlayed(ctx, rec); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err = db.LoadLastPlayed(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.PositionMs != 200_000 || got.TrackIndex != 3 {
		t.Errorf("loaded = %+v, want updated record", got)
	}

	if err := db.ClearLastPlayed(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = db.LoadLastPlayed(ctx)
	if err != nil || got != nil {
		t.Errorf("after clear: record=%+v err=%v, want nil/nil", got, err)
	}
}

func TestDownloads_StatusLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id := media.MakeID("gd1977-05-08.sbd", "gd1977-05-08d1t01.flac")

	status, err := db.DownloadStatus(ctx, id)
	if err != nil {
		t.Fatalf("status of unknown track: %v", err)
	}
	if status != media.DownloadNotStarted {
		t.Errorf("unknown track status = %v, want not started", status)
	}

	for _, s := range []media.DownloadStatus{
		media.DownloadInProgress,
		media.DownloadCompleted,
	} {
		if err := db.UpsertDownload(ctx, id, "gd1977-05-08.sbd", s); err != nil {
			t.Fatalf("upsert %v: %v", s, err)
		}
		got, err := db.DownloadStatus(ctx, id)
		if err != nil {
			t.Fatalf("status after %v: %v", s, err)
		}
		if got != s {
			t.Errorf("status = %v, want %v", got, s)
		}
	}

	rows, err := db.RecordingDownloads(ctx, "gd1977-05-08.sbd")
	if err != nil {
		t.Fatalf("recording downloads: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "completed" {
		t.Errorf("rows = %+v, want one completed entry", rows)
	}
}

func TestDownloads_UnderscoreRecordingIDListed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id := media.MakeID("gd1989-08-17.nak300_cm", "d1t01.flac")

	if err := db.UpsertDownload(ctx, id, "gd1989-08-17.nak300_cm", media.DownloadCompleted); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := db.RecordingDownloads(ctx, "gd1989-08-17.nak300_cm")
	if err != nil {
		t.Fatalf("recording downloads: %v", err)
	}
	if len(rows) != 1 || rows[0].MediaID != string(id) {
		t.Errorf("rows = %+v, want the full recording ID indexed", rows)
	}
}
