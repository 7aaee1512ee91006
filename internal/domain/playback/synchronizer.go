package playback

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/infra/engine"
	"github.com/reelback/reelback/internal/media"
)

// CatalogLookup resolves enriched display metadata for a track. A miss
// returns nil; lookups never fail loudly and never block playback.
type CatalogLookup interface {
	ResolveTrackMetadata(id media.ID) *media.TrackInfo
}

// Synchronizer is the single translation layer between native engine events
// and the application's observable state. It keeps one mirror snapshot,
// deduplicates against it before publishing, and fans identical updates out
// to every subscriber in production order.
//
// applyPosition is the only method permitted to write position into the
// mirror. It cannot touch item or queue fields and cannot emit a
// TrackChange, so a position sync can never cascade into new transition
// events. All item/queue writes go through the command processor or the
// queue manager.
type Synchronizer struct {
	catalog CatalogLookup
	queue   *Queue

	mu     sync.Mutex
	mirror Snapshot
	subs   map[*Subscription]struct{}
}

// NewSynchronizer creates a synchronizer over the given queue and catalog.
func NewSynchronizer(queue *Queue, catalog CatalogLookup) *Synchronizer {
	return &Synchronizer{
		catalog: catalog,
		queue:   queue,
		subs:    make(map[*Subscription]struct{}),
		mirror:  Snapshot{CurrentIndex: -1},
	}
}

// Subscribe registers a new observer. The observer immediately receives the
// current state so it never starts stale relative to the others.
func (s *Synchronizer) Subscribe() *Subscription {
	sub := newSubscription()

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	snap := s.mirror
	s.mu.Unlock()

	sub.sendState(StateChange{State: snap.State, IsPlaying: snap.IsPlaying})
	if !snap.CurrentMediaID.IsZero() {
		sub.sendTrack(TrackChange{Index: snap.CurrentIndex, MediaID: snap.CurrentMediaID, Track: snap.Track})
		sub.sendPosition(PositionChange{PositionMs: snap.PositionMs, DurationMs: snap.DurationMs})
	}
	return sub
}

// Unsubscribe removes an observer and closes its Done channel.
func (s *Synchronizer) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Snapshot returns the current mirrored state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

// HandleEvent is the connection manager's event sink.
func (s *Synchronizer) HandleEvent(e engine.Event) {
	switch e.Kind {
	case engine.EventPosition:
		s.applyPosition(e.Status)
	default:
		s.applyStatus(e.Status)
	}
}

// Prime re-seeds the mirror from a fresh status read, used right after
// (re)connect so observers converge without waiting for the next native
// event.
func (s *Synchronizer) Prime(status engine.Status) {
	s.applyStatus(status)
}

// applyStatus folds a player/queue event into the mirror. Item transitions
// resolve enriched metadata exactly once; repeated identical state is
// dropped before it reaches any observer.
func (s *Synchronizer) applyStatus(status engine.Status) {
	state := stateFromEngine(status.State)
	newID := media.IDFromURI(status.CurrentURI)

	s.mu.Lock()
	trackChanged := newID != s.mirror.CurrentMediaID || status.SongIndex != s.mirror.CurrentIndex
	stateChanged := state != s.mirror.State
	durationChanged := status.DurationMs != s.mirror.DurationMs && status.DurationMs > 0
	queueLenChanged := status.QueueLen != s.mirror.QueueLen

	if !trackChanged && !stateChanged && !durationChanged && !queueLenChanged {
		s.mu.Unlock()
		return
	}

	var track *media.TrackInfo
	if trackChanged {
		track = s.resolveTrack(newID, status.SongIndex)
		s.mirror.CurrentIndex = status.SongIndex
		s.mirror.CurrentMediaID = newID
		s.mirror.Track = track
		s.mirror.PositionMs = status.ElapsedMs
	}
	s.mirror.State = state
	s.mirror.IsPlaying = state == StatePlaying
	if status.DurationMs > 0 || trackChanged {
		s.mirror.DurationMs = status.DurationMs
	}
	s.mirror.QueueLen = status.QueueLen

	subs := s.subscribersLocked()
	position := PositionChange{PositionMs: s.mirror.PositionMs, DurationMs: s.mirror.DurationMs}
	s.mu.Unlock()

	if trackChanged {
		// Mirror engine-driven advance; never writes back to the engine.
		s.queue.AdoptEngineIndex(status.SongIndex)

		log.Debug().
			Int("index", status.SongIndex).
			Str("mediaId", string(newID)).
			Msg("Track transition")

		for _, sub := range subs {
			sub.sendTrack(TrackChange{Index: status.SongIndex, MediaID: newID, Track: track})
			sub.sendPosition(position)
		}
	}
	if stateChanged {
		for _, sub := range subs {
			sub.sendState(StateChange{State: state, IsPlaying: state == StatePlaying})
		}
	}
}

// applyPosition is the sole writer of position into the mirror. Position-only
// by construction: it reads no item fields, writes no item fields, and emits
// no TrackChange.
func (s *Synchronizer) applyPosition(status engine.Status) {
	s.mu.Lock()
	if status.ElapsedMs == s.mirror.PositionMs &&
		(status.DurationMs == s.mirror.DurationMs || status.DurationMs == 0) {
		s.mu.Unlock()
		return
	}
	s.mirror.PositionMs = status.ElapsedMs
	if status.DurationMs > 0 {
		s.mirror.DurationMs = status.DurationMs
	}
	position := PositionChange{PositionMs: s.mirror.PositionMs, DurationMs: s.mirror.DurationMs}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, sub := range subs {
		sub.sendPosition(position)
	}
}

// PublishQueue is the queue manager's publisher hook.
func (s *Synchronizer) PublishQueue(qc QueueChange) {
	s.mu.Lock()
	s.mirror.QueueGen = qc.Gen
	s.mirror.QueueLen = len(qc.Items)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, sub := range subs {
		sub.sendQueue(qc)
	}
}

// resolveTrack looks up enriched metadata. On a catalog miss the queue item
// at the engine's index supplies the structured identity; the composite
// parse covers only tracks the queue does not know about.
func (s *Synchronizer) resolveTrack(id media.ID, index int) *media.TrackInfo {
	if id.IsZero() {
		return nil
	}
	if s.catalog != nil {
		if track := s.catalog.ResolveTrackMetadata(id); track != nil {
			return track
		}
		log.Debug().Str("mediaId", string(id)).Msg("Catalog miss, using queue fallback")
	}
	if item, ok := s.queue.ItemAt(index); ok && item.MediaID == id {
		title := item.Title
		if title == "" {
			title = media.TitleFromFilename(id.FilenameWithin(item.RecordingID))
		}
		return &media.TrackInfo{
			MediaID:     id,
			Title:       title,
			RecordingID: item.RecordingID,
			ShowID:      item.ShowID,
		}
	}
	return media.FallbackTrackInfo(id)
}

func (s *Synchronizer) subscribersLocked() []*Subscription {
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	return subs
}
