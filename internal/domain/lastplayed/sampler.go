// Package lastplayed persists where listening stopped and restores it on the
// next daemon start.
package lastplayed

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/infra/appdb"
)

// Store persists the single resume record.
type Store interface {
	SaveLastPlayed(ctx context.Context, r appdb.LastPlayed) error
	LoadLastPlayed(ctx context.Context) (*appdb.LastPlayed, error)
}

// SnapshotSource reports the current playback state.
type SnapshotSource interface {
	Snapshot() playback.Snapshot
}

// Sampler periodically snapshots playback and upserts the resume record.
// Samples are taken only while actually playing; a paused or stopped player
// keeps the last record as-is, so resume always lands where audio last ran.
type Sampler struct {
	store     Store
	source    SnapshotSource
	scheduler *gocron.Scheduler
	interval  time.Duration
}

// NewSampler creates a sampler on the given cadence.
func NewSampler(store Store, source SnapshotSource, interval time.Duration) *Sampler {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	return &Sampler{
		store:     store,
		source:    source,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
	}
}

// Start begins sampling in the background.
func (s *Sampler) Start() error {
	_, err := s.scheduler.Every(int(s.interval.Seconds())).Seconds().Do(s.SampleNow)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	log.Info().Dur("interval", s.interval).Msg("Last-played sampler started")
	return nil
}

// Stop halts sampling.
func (s *Sampler) Stop() {
	s.scheduler.Stop()
}

// SampleNow takes one sample immediately. No-op unless playing.
func (s *Sampler) SampleNow() {
	snap := s.source.Snapshot()
	if !snap.IsPlaying || snap.CurrentMediaID.IsZero() {
		return
	}

	recordingID, filename := identityParts(snap)

	rec := appdb.LastPlayed{
		RecordingID: recordingID,
		TrackIndex:  snap.CurrentIndex,
		PositionMs:  snap.PositionMs,
		Filename:    filename,
		Format:      formatFromFilename(filename),
		SavedAt:     time.Now().UTC(),
	}
	if snap.Track != nil {
		rec.ShowID = snap.Track.ShowID
		rec.Title = snap.Track.Title
	}

	if err := s.store.SaveLastPlayed(context.Background(), rec); err != nil {
		log.Warn().Err(err).Msg("Saving last-played record failed")
	}
}

// identityParts takes the recording ID from the enriched track metadata and
// derives the filename from that known boundary; the blind composite parse
// is the last resort for snapshots with no metadata attached.
func identityParts(snap playback.Snapshot) (recordingID, filename string) {
	id := snap.CurrentMediaID
	if snap.Track != nil && snap.Track.RecordingID != "" {
		if filename := id.FilenameWithin(snap.Track.RecordingID); filename != "" {
			return snap.Track.RecordingID, filename
		}
	}
	return id.RecordingID(), id.Filename()
}

func formatFromFilename(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	return strings.ToLower(ext)
}
