// Package catalog is the read-mostly sqlite store of shows, recordings and
// tracks that playback metadata is resolved from.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/media"
)

// CurrentSchemaVersion is the current catalog schema version.
const CurrentSchemaVersion = "1"

// Show is one concert.
type Show struct {
	ID       string
	Artist   string
	Date     string
	Venue    string
	Location string
}

// Recording is one taped source of a show.
type Recording struct {
	ID         string
	ShowID     string
	SourceType string // sbd, aud, matrix
	Format     string
}

// Track is one playable file of a recording.
type Track struct {
	MediaID     media.ID
	RecordingID string
	Filename    string
	Title       string
	TrackNumber int
	DurationMs  int64
}

// DB is the catalog database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a catalog instance; Open actually touches the file.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open catalog database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)
	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Catalog database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) initSchema() error {
	current := d.getSchemaVersion()
	if current == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}
	if current != CurrentSchemaVersion {
		log.Info().
			Str("current", current).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating catalog schema")
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}
	return nil
}

func (d *DB) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shows (
		id TEXT PRIMARY KEY,
		artist TEXT NOT NULL,
		date TEXT NOT NULL,
		venue TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		show_id TEXT NOT NULL,
		source_type TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (show_id) REFERENCES shows(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tracks (
		media_id TEXT PRIMARY KEY,
		recording_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		track_number INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (recording_id) REFERENCES recordings(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_show ON recordings(show_id);
	CREATE INDEX IF NOT EXISTS idx_tracks_recording ON tracks(recording_id, track_number);
	CREATE INDEX IF NOT EXISTS idx_shows_date ON shows(date);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Info().Msg("Catalog schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM catalog_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO catalog_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

// UpsertShow inserts or updates a show.
func (d *DB) UpsertShow(s Show) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		INSERT INTO shows (id, artist, date, venue, location) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			artist = excluded.artist, date = excluded.date,
			venue = excluded.venue, location = excluded.location,
			updated_at = CURRENT_TIMESTAMP
	`, s.ID, s.Artist, s.Date, s.Venue, s.Location)
	if err != nil {
		return fmt.Errorf("failed to upsert show %s: %w", s.ID, err)
	}
	return nil
}

// UpsertRecording inserts or updates a recording.
func (d *DB) UpsertRecording(r Recording) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		INSERT INTO recordings (id, show_id, source_type, format) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			show_id = excluded.show_id, source_type = excluded.source_type,
			format = excluded.format
	`, r.ID, r.ShowID, r.SourceType, r.Format)
	if err != nil {
		return fmt.Errorf("failed to upsert recording %s: %w", r.ID, err)
	}
	return nil
}

// UpsertTrack inserts or updates a track.
func (d *DB) UpsertTrack(t Track) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		INSERT INTO tracks (media_id, recording_id, filename, title, track_number, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_id) DO UPDATE SET
			recording_id = excluded.recording_id, filename = excluded.filename,
			title = excluded.title, track_number = excluded.track_number,
			duration_ms = excluded.duration_ms
	`, string(t.MediaID), t.RecordingID, t.Filename, t.Title, t.TrackNumber, t.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to upsert track %s: %w", t.MediaID, err)
	}
	return nil
}

// ResolveTrackMetadata returns the enriched display bundle for a track, nil
// on any miss or error. Metadata resolution degrades, it never fails playback.
func (d *DB) ResolveTrackMetadata(id media.ID) *media.TrackInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil
	}

	var info media.TrackInfo
	var title, filename string
	err := d.db.QueryRow(`
		SELECT t.title, t.filename, t.recording_id, r.show_id, s.date, s.venue, s.location
		FROM tracks t
		JOIN recordings r ON r.id = t.recording_id
		JOIN shows s ON s.id = r.show_id
		WHERE t.media_id = ?
	`, string(id)).Scan(&title, &filename, &info.RecordingID, &info.ShowID, &info.ShowDate, &info.Venue, &info.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("mediaId", string(id)).Msg("Catalog lookup failed")
		return nil
	}

	info.MediaID = id
	info.Title = title
	if info.Title == "" {
		info.Title = media.TitleFromFilename(filename)
	}
	return &info
}

// RecordingTracks returns a recording's tracks as ready-to-load queue items,
// ordered by track number.
func (d *DB) RecordingTracks(recordingID string) ([]media.QueueItem, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, fmt.Errorf("catalog not open")
	}

	rows, err := d.db.Query(`
		SELECT t.media_id, t.title, t.filename, t.duration_ms, r.show_id
		FROM tracks t
		JOIN recordings r ON r.id = t.recording_id
		WHERE t.recording_id = ?
		ORDER BY t.track_number, t.filename
	`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for %s: %w", recordingID, err)
	}
	defer rows.Close()

	var items []media.QueueItem
	for rows.Next() {
		var id, title, filename, showID string
		var durationMs int64
		if err := rows.Scan(&id, &title, &filename, &durationMs, &showID); err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		if title == "" {
			title = media.TitleFromFilename(filename)
		}
		items = append(items, media.QueueItem{
			MediaID:      media.ID(id),
			Title:        title,
			RecordingID:  recordingID,
			ShowID:       showID,
			DurationHint: durationMs,
		})
	}
	return items, rows.Err()
}

// GetShow returns one show, nil when unknown.
func (d *DB) GetShow(id string) (*Show, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, fmt.Errorf("catalog not open")
	}

	var s Show
	err := d.db.QueryRow(`
		SELECT id, artist, date, venue, location FROM shows WHERE id = ?
	`, id).Scan(&s.ID, &s.Artist, &s.Date, &s.Venue, &s.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load show %s: %w", id, err)
	}
	return &s, nil
}
