package appdb

import (
	"context"
	"fmt"
	"time"
)

// Play is one confirmed play session.
type Play struct {
	ID          string    `db:"id"`
	MediaID     string    `db:"media_id"`
	ShowID      string    `db:"show_id"`
	RecordingID string    `db:"recording_id"`
	TrackTitle  string    `db:"track_title"`
	StartedAt   time.Time `db:"started_at"`
	EndedAt     time.Time `db:"ended_at"`
	PlayedMs    int64     `db:"played_ms"`
	DurationMs  int64     `db:"duration_ms"`
	Completed   bool      `db:"completed"`
}

// InsertPlay records one confirmed play session.
func (d *DB) InsertPlay(ctx context.Context, p Play) error {
	_, err := d.NamedExecContext(ctx, `
		INSERT INTO plays (id, media_id, show_id, recording_id, track_title,
			started_at, ended_at, played_ms, duration_ms, completed)
		VALUES (:id, :media_id, :show_id, :recording_id, :track_title,
			:started_at, :ended_at, :played_ms, :duration_ms, :completed)`, p)
	if err != nil {
		return fmt.Errorf("inserting play: %w", err)
	}
	return nil
}

// RecentPlays returns the newest play sessions, most recent first.
func (d *DB) RecentPlays(ctx context.Context, limit int) ([]Play, error) {
	if limit <= 0 {
		limit = 50
	}
	var plays []Play
	err := d.SelectContext(ctx, &plays,
		`SELECT * FROM plays ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent plays: %w", err)
	}
	return plays, nil
}

// ShowPlayCount counts confirmed plays for one show.
func (d *DB) ShowPlayCount(ctx context.Context, showID string) (int, error) {
	var n int
	err := d.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM plays WHERE show_id = ?`, showID)
	if err != nil {
		return 0, fmt.Errorf("counting plays for show %s: %w", showID, err)
	}
	return n, nil
}
