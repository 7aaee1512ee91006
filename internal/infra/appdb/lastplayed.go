package appdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LastPlayed is the single resume record, row id fixed at 1.
type LastPlayed struct {
	ShowID      string    `db:"show_id"`
	RecordingID string    `db:"recording_id"`
	TrackIndex  int       `db:"track_index"`
	PositionMs  int64     `db:"position_ms"`
	Title       string    `db:"title"`
	Filename    string    `db:"filename"`
	Format      string    `db:"format"`
	SavedAt     time.Time `db:"saved_at"`
}

// SaveLastPlayed upserts the resume record.
func (d *DB) SaveLastPlayed(ctx context.Context, r LastPlayed) error {
	_, err := d.ExecContext(ctx, `
		INSERT INTO last_played (id, show_id, recording_id, track_index,
			position_ms, title, filename, format, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			show_id = excluded.show_id,
			recording_id = excluded.recording_id,
			track_index = excluded.track_index,
			position_ms = excluded.position_ms,
			title = excluded.title,
			filename = excluded.filename,
			format = excluded.format,
			saved_at = excluded.saved_at`,
		r.ShowID, r.RecordingID, r.TrackIndex, r.PositionMs,
		r.Title, r.Filename, r.Format, r.SavedAt)
	if err != nil {
		return fmt.Errorf("saving last-played record: %w", err)
	}
	return nil
}

// LoadLastPlayed reads the resume record, nil when none has been saved yet.
func (d *DB) LoadLastPlayed(ctx context.Context) (*LastPlayed, error) {
	var r LastPlayed
	err := d.GetContext(ctx, &r, `
		SELECT show_id, recording_id, track_index, position_ms,
			title, filename, format, saved_at
		FROM last_played WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading last-played record: %w", err)
	}
	return &r, nil
}

// ClearLastPlayed drops the resume record.
func (d *DB) ClearLastPlayed(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, `DELETE FROM last_played WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing last-played record: %w", err)
	}
	return nil
}
