package appdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reelback/reelback/internal/media"
)

// DownloadRow is one entry of the downloads index.
type DownloadRow struct {
	MediaID     string    `db:"media_id"`
	RecordingID string    `db:"recording_id"`
	Status      string    `db:"status"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// UpsertDownload records or updates the status of one track's download.
// recordingID is passed alongside the composite ID; parsing it back out of
// the ID would truncate recording identifiers that contain the separator.
func (d *DB) UpsertDownload(ctx context.Context, id media.ID, recordingID string, status media.DownloadStatus) error {
	_, err := d.ExecContext(ctx, `
		INSERT INTO downloads (media_id, recording_id, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(media_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		string(id), recordingID, status.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting download %s: %w", id, err)
	}
	return nil
}

// DownloadStatus reads one track's download status. Unknown tracks are
// reported as not started.
func (d *DB) DownloadStatus(ctx context.Context, id media.ID) (media.DownloadStatus, error) {
	var status string
	err := d.GetContext(ctx, &status,
		`SELECT status FROM downloads WHERE media_id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return media.DownloadNotStarted, nil
	}
	if err != nil {
		return media.DownloadNotStarted, fmt.Errorf("reading download status for %s: %w", id, err)
	}
	return media.ParseDownloadStatus(status), nil
}

// RecordingDownloads lists the index entries for one recording.
func (d *DB) RecordingDownloads(ctx context.Context, recordingID string) ([]DownloadRow, error) {
	var rows []DownloadRow
	err := d.SelectContext(ctx, &rows,
		`SELECT * FROM downloads WHERE recording_id = ? ORDER BY media_id`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("listing downloads for %s: %w", recordingID, err)
	}
	return rows, nil
}
