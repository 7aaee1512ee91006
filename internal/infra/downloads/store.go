// Package downloads tracks which tracks exist as local files: a status index
// in the app database, verified against the on-disk layout
// <root>/<recordingID>/<filename>, kept current by a filesystem watcher.
package downloads

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/infra/appdb"
	"github.com/reelback/reelback/internal/media"
)

// Store is the download status index over the app database.
type Store struct {
	db   *appdb.DB
	root string
}

// NewStore creates a store over the downloads tree rooted at root.
func NewStore(db *appdb.DB, root string) *Store {
	return &Store{db: db, root: root}
}

// Root returns the downloads root directory.
func (s *Store) Root() string { return s.root }

// Path returns where a track's downloaded file lives. The structured parts
// are required; deriving them from the composite ID would mis-split
// recording identifiers that contain the separator.
func (s *Store) Path(recordingID, filename string) string {
	return filepath.Join(s.root, recordingID, filename)
}

// Status reports a track's download status. Index errors degrade to
// not started; resolution must never fail because the index hiccupped.
func (s *Store) Status(id media.ID) media.DownloadStatus {
	status, err := s.db.DownloadStatus(context.Background(), id)
	if err != nil {
		log.Warn().Err(err).Str("mediaId", string(id)).Msg("Download index read failed")
		return media.DownloadNotStarted
	}
	return status
}

// MarkInProgress flags a track as downloading.
func (s *Store) MarkInProgress(ctx context.Context, recordingID, filename string) error {
	return s.db.UpsertDownload(ctx, media.MakeID(recordingID, filename), recordingID, media.DownloadInProgress)
}

// MarkCompleted flags a track as fully downloaded.
func (s *Store) MarkCompleted(ctx context.Context, recordingID, filename string) error {
	return s.db.UpsertDownload(ctx, media.MakeID(recordingID, filename), recordingID, media.DownloadCompleted)
}

// MarkFailed flags a track's download as failed.
func (s *Store) MarkFailed(ctx context.Context, recordingID, filename string) error {
	return s.db.UpsertDownload(ctx, media.MakeID(recordingID, filename), recordingID, media.DownloadFailed)
}

// MarkMissing resets a track whose file disappeared.
func (s *Store) MarkMissing(ctx context.Context, recordingID, filename string) error {
	return s.db.UpsertDownload(ctx, media.MakeID(recordingID, filename), recordingID, media.DownloadNotStarted)
}

// Verify reconciles one track's indexed status with the disk. A completed
// entry whose file is gone is reset so resolution falls back to streaming.
func (s *Store) Verify(ctx context.Context, recordingID, filename string) media.DownloadStatus {
	id := media.MakeID(recordingID, filename)
	status := s.Status(id)
	if status != media.DownloadCompleted {
		return status
	}
	if info, err := os.Stat(s.Path(recordingID, filename)); err == nil && !info.IsDir() {
		return media.DownloadCompleted
	}
	log.Warn().
		Str("mediaId", string(id)).
		Str("path", s.Path(recordingID, filename)).
		Msg("Completed download missing on disk, resetting status")
	if err := s.MarkMissing(ctx, recordingID, filename); err != nil {
		log.Warn().Err(err).Str("mediaId", string(id)).Msg("Download status reset failed")
	}
	return media.DownloadNotStarted
}
