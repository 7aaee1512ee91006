// Package history turns observed playback into durable play records. A
// session is opened when a track becomes current but only an observed playing
// state confirms it; unconfirmed sessions are discarded, so the history
// under-counts rather than logging tracks that never made sound.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/infra/appdb"
	"github.com/reelback/reelback/internal/media"
)

// completedRatio marks a play as completed once this share of the track ran.
const completedRatio = 0.9

// minPlayedMs floors recorded sessions and notifications. Session restore
// realizes "paused at position" as a brief play/seek/pause against the
// engine; that instant of transient playing must not become a play record
// or a now-playing ping.
const minPlayedMs = 5000

// PlayStore persists confirmed play sessions.
type PlayStore interface {
	InsertPlay(ctx context.Context, p appdb.Play) error
}

// Notifier receives confirmed playback for external forwarding. Both methods
// are called on the tracker goroutine and must not block for long.
type Notifier interface {
	NowPlaying(track media.TrackInfo)
	Scrobble(track media.TrackInfo, startedAt time.Time)
}

type session struct {
	id         string
	mediaID    media.ID
	track      *media.TrackInfo
	startedAt  time.Time
	confirmed  bool
	notified   bool
	playing    bool
	playedMs   int64
	resumedAt  time.Time
	durationMs int64
}

// Tracker consumes a playback subscription and writes the plays table.
type Tracker struct {
	store    PlayStore
	notifier Notifier

	mu  sync.Mutex
	cur *session
	now func() time.Time
}

// NewTracker creates a tracker. notifier may be nil.
func NewTracker(store PlayStore, notifier Notifier) *Tracker {
	return &Tracker{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run consumes the subscription until ctx is done or the subscription
// closes, then finalizes any open session.
func (t *Tracker) Run(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			t.Flush(context.Background())
			return
		case <-sub.Done:
			t.Flush(context.Background())
			return
		case tc := <-sub.TrackChanged:
			t.HandleTrackChange(ctx, tc)
		case sc := <-sub.StateChanged:
			t.HandleStateChange(ctx, sc)
		case pc := <-sub.PositionChanged:
			t.HandlePositionChange(pc)
		case <-sub.QueueChanged:
			// Queue contents do not affect session accounting.
		}
	}
}

// HandleTrackChange closes the running session and opens a pending one for
// the new track.
func (t *Tracker) HandleTrackChange(ctx context.Context, tc playback.TrackChange) {
	t.mu.Lock()
	finished := t.takeLocked()
	if !tc.MediaID.IsZero() {
		t.cur = &session{
			id:        uuid.NewString(),
			mediaID:   tc.MediaID,
			track:     tc.Track,
			startedAt: t.now(),
		}
	}
	t.mu.Unlock()

	t.finalize(ctx, finished)
}

// HandleStateChange promotes, pauses or finalizes the running session.
func (t *Tracker) HandleStateChange(ctx context.Context, sc playback.StateChange) {
	t.mu.Lock()
	var finished *session
	var nowPlaying *media.TrackInfo
	switch {
	case t.cur == nil:
	case sc.State == playback.StatePlaying:
		if !t.cur.confirmed {
			t.cur.confirmed = true
			log.Debug().Str("mediaId", string(t.cur.mediaID)).Msg("Play session confirmed")
		}
		if !t.cur.playing {
			t.cur.playing = true
			t.cur.resumedAt = t.now()
		}
		nowPlaying = t.maybeNotifyLocked()
	case sc.State == playback.StatePaused:
		t.accumulateLocked()
		nowPlaying = t.maybeNotifyLocked()
	case sc.State == playback.StateStopped:
		finished = t.takeLocked()
	}
	t.mu.Unlock()

	if nowPlaying != nil && t.notifier != nil {
		t.notifier.NowPlaying(*nowPlaying)
	}
	t.finalize(ctx, finished)
}

// HandlePositionChange keeps the session's duration current for the
// completed-play calculation and fires the deferred now-playing
// notification once the session has run long enough.
func (t *Tracker) HandlePositionChange(pc playback.PositionChange) {
	t.mu.Lock()
	if t.cur != nil && pc.DurationMs > 0 {
		t.cur.durationMs = pc.DurationMs
	}
	nowPlaying := t.maybeNotifyLocked()
	t.mu.Unlock()

	if nowPlaying != nil && t.notifier != nil {
		t.notifier.NowPlaying(*nowPlaying)
	}
}

// Flush finalizes any open session, used at shutdown.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	finished := t.takeLocked()
	t.mu.Unlock()
	t.finalize(ctx, finished)
}

// accumulateLocked folds the running play interval into the session.
func (t *Tracker) accumulateLocked() {
	if t.cur == nil || !t.cur.playing {
		return
	}
	t.cur.playedMs += t.now().Sub(t.cur.resumedAt).Milliseconds()
	t.cur.playing = false
}

// maybeNotifyLocked returns the track to announce once a confirmed session
// has audibly played past the floor. Announcing is deferred rather than tied
// to the first playing state so a transient play never reaches the notifier.
// Fires at most once per session.
func (t *Tracker) maybeNotifyLocked() *media.TrackInfo {
	s := t.cur
	if s == nil || !s.confirmed || s.notified || s.track == nil {
		return nil
	}
	if t.audibleMsLocked(s) < minPlayedMs {
		return nil
	}
	s.notified = true
	return s.track
}

// audibleMsLocked reports play time including the running interval.
func (t *Tracker) audibleMsLocked(s *session) int64 {
	ms := s.playedMs
	if s.playing {
		ms += t.now().Sub(s.resumedAt).Milliseconds()
	}
	return ms
}

// takeLocked detaches the current session for finalization.
func (t *Tracker) takeLocked() *session {
	t.accumulateLocked()
	s := t.cur
	t.cur = nil
	return s
}

// finalize writes a finished session. Only confirmed sessions with audible
// play time reach the store.
func (t *Tracker) finalize(ctx context.Context, s *session) {
	if s == nil {
		return
	}
	if !s.confirmed || s.playedMs < minPlayedMs {
		log.Debug().Str("mediaId", string(s.mediaID)).Msg("Discarding unconfirmed or momentary play session")
		return
	}

	play := appdb.Play{
		ID:          s.id,
		MediaID:     string(s.mediaID),
		RecordingID: s.mediaID.RecordingID(),
		StartedAt:   s.startedAt,
		EndedAt:     t.now(),
		PlayedMs:    s.playedMs,
		DurationMs:  s.durationMs,
		Completed:   s.durationMs > 0 && float64(s.playedMs) >= completedRatio*float64(s.durationMs),
	}
	if s.track != nil {
		play.ShowID = s.track.ShowID
		play.TrackTitle = s.track.Title
		if s.track.RecordingID != "" {
			play.RecordingID = s.track.RecordingID
		}
	}

	if err := t.store.InsertPlay(ctx, play); err != nil {
		log.Warn().Err(err).Str("mediaId", play.MediaID).Msg("Writing play record failed")
		return
	}
	log.Info().
		Str("mediaId", play.MediaID).
		Int64("playedMs", play.PlayedMs).
		Bool("completed", play.Completed).
		Msg("Play recorded")

	if t.notifier != nil && s.track != nil && scrobbleEligible(s.playedMs, s.durationMs) {
		t.notifier.Scrobble(*s.track, s.startedAt)
	}
}

// scrobbleEligible applies the half-or-four-minutes rule.
func scrobbleEligible(playedMs, durationMs int64) bool {
	if playedMs >= 4*time.Minute.Milliseconds() {
		return true
	}
	return durationMs > 0 && playedMs*2 >= durationMs
}
