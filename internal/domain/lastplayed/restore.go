package lastplayed

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/media"
)

// TrackLister serves a recording's tracks as queue items.
type TrackLister interface {
	RecordingTracks(recordingID string) ([]media.QueueItem, error)
}

// Loader loads a queue into the playback core.
type Loader interface {
	LoadAndPlay(items []media.QueueItem, startIndex int) error
	LoadPaused(items []media.QueueItem, startIndex int, positionMs int64) error
	SeekTo(positionMs int64) error
}

// Restorer rebuilds the last session at startup: last-played record → catalog
// track list → one queue load positioned at the saved track and offset.
// Without autoplay the player is left paused at position. Restoration is
// best-effort: any missing or unusable piece logs and leaves the daemon idle.
type Restorer struct {
	store    Store
	catalog  TrackLister
	loader   Loader
	autoplay bool

	done atomic.Bool
}

// NewRestorer creates a restorer. autoplay starts audio immediately on
// restore instead of leaving the player paused at position.
func NewRestorer(store Store, catalog TrackLister, loader Loader, autoplay bool) *Restorer {
	return &Restorer{
		store:    store,
		catalog:  catalog,
		loader:   loader,
		autoplay: autoplay,
	}
}

// Restore runs once; every later call is a no-op. Never returns an error for
// a missing or corrupt record, only for a failed queue load.
func (r *Restorer) Restore(ctx context.Context) error {
	if !r.done.CompareAndSwap(false, true) {
		log.Debug().Msg("Restore already ran, skipping")
		return nil
	}

	rec, err := r.store.LoadLastPlayed(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Reading last-played record failed, starting idle")
		return nil
	}
	if rec == nil {
		log.Debug().Msg("No last-played record, starting idle")
		return nil
	}
	if rec.RecordingID == "" {
		log.Warn().Msg("Last-played record has no recording, starting idle")
		return nil
	}

	items, err := r.catalog.RecordingTracks(rec.RecordingID)
	if err != nil {
		log.Warn().Err(err).Str("recording", rec.RecordingID).Msg("Catalog lookup for restore failed, starting idle")
		return nil
	}
	if len(items) == 0 {
		log.Warn().Str("recording", rec.RecordingID).Msg("Last-played recording not in catalog, starting idle")
		return nil
	}

	index := rec.TrackIndex
	if index < 0 || index >= len(items) {
		log.Warn().
			Int("index", index).
			Int("tracks", len(items)).
			Msg("Last-played index out of range, restoring from first track")
		index = 0
	}
	position := rec.PositionMs
	if position < 0 {
		position = 0
	}

	log.Info().
		Str("recording", rec.RecordingID).
		Int("track", index).
		Int64("positionMs", position).
		Bool("autoplay", r.autoplay).
		Msg("Restoring last session")

	if r.autoplay {
		if err := r.loader.LoadAndPlay(items, index); err != nil {
			return err
		}
		if position > 0 {
			if err := r.loader.SeekTo(position); err != nil {
				log.Warn().Err(err).Msg("Restore seek failed")
			}
		}
		return nil
	}
	return r.loader.LoadPaused(items, index, position)
}
