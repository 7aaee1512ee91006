package playback_test

import (
	"testing"
	"time"

	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/infra/engine"
	"github.com/reelback/reelback/internal/media"
)

// stubCatalog serves metadata for known IDs and misses for everything else.
type stubCatalog struct {
	tracks map[media.ID]*media.TrackInfo
}

func (c *stubCatalog) ResolveTrackMetadata(id media.ID) *media.TrackInfo {
	if c == nil || c.tracks == nil {
		return nil
	}
	return c.tracks[id]
}

func newSyncHarness(catalog playback.CatalogLookup) (*playback.Queue, *playback.Synchronizer) {
	q := playback.NewQueue(&recordingWriter{}, streamResolver{})
	s := playback.NewSynchronizer(q, catalog)
	q.SetPublisher(s.PublishQueue)
	return q, s
}

func playingStatus(uri string, index int, elapsedMs int64) engine.Status {
	return engine.Status{
		State:      engine.StatePlay,
		SongIndex:  index,
		ElapsedMs:  elapsedMs,
		DurationMs: 300_000,
		QueueLen:   3,
		CurrentURI: uri,
	}
}

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func expectNone[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case e := <-ch:
		t.Errorf("unexpected %s: %+v", what, e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleEvent_TrackTransitionPublishesOnce(t *testing.T) {
	_, s := newSyncHarness(nil)
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)
	drain(sub.StateChanged)

	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t01.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 0, 0)})

	tracks := drain(sub.TrackChanged)
	if len(tracks) != 1 {
		t.Fatalf("got %d track changes, want 1", len(tracks))
	}
	if tracks[0].Index != 0 {
		t.Errorf("index = %d, want 0", tracks[0].Index)
	}
	if want := media.MakeID("gd1977-05-08.sbd", "gd1977-05-08d1t01.flac"); tracks[0].MediaID != want {
		t.Errorf("mediaID = %q, want %q", tracks[0].MediaID, want)
	}
	if len(drain(sub.StateChanged)) != 1 {
		t.Error("state change not published with the transition to playing")
	}

	// The identical status again is a duplicate; nothing reaches observers.
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 0, 0)})
	expectNone(t, sub.TrackChanged, "track change")
	expectNone(t, sub.StateChanged, "state change")
}

func TestHandleEvent_CatalogEnrichesTransition(t *testing.T) {
	id := media.MakeID("gd1977-05-08.sbd", "gd1977-05-08d1t02.flac")
	catalog := &stubCatalog{tracks: map[media.ID]*media.TrackInfo{
		id: {
			MediaID:     id,
			Title:       "Scarlet Begonias",
			ShowID:      "gd1977-05-08",
			RecordingID: "gd1977-05-08.sbd",
			Venue:       "Barton Hall",
		},
	}}
	_, s := newSyncHarness(catalog)
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t02.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 1, 0)})

	tracks := drain(sub.TrackChanged)
	if len(tracks) != 1 {
		t.Fatalf("got %d track changes, want 1", len(tracks))
	}
	if tracks[0].Track == nil || tracks[0].Track.Title != "Scarlet Begonias" {
		t.Errorf("track not enriched from catalog: %+v", tracks[0].Track)
	}
	if tracks[0].Track.Venue != "Barton Hall" {
		t.Errorf("venue = %q, want Barton Hall", tracks[0].Track.Venue)
	}
}

func TestHandleEvent_CatalogMissFallsBackToFilename(t *testing.T) {
	_, s := newSyncHarness(&stubCatalog{})
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	uri := "https://archive.example.org/download/ph2003-07-29/ph2003-07-29_t05.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 0, 0)})

	tracks := drain(sub.TrackChanged)
	if len(tracks) != 1 {
		t.Fatalf("got %d track changes, want 1", len(tracks))
	}
	if tracks[0].Track == nil || tracks[0].Track.Title == "" {
		t.Errorf("catalog miss produced no fallback metadata: %+v", tracks[0].Track)
	}
}

func TestHandleEvent_PositionNeverEmitsTrackChange(t *testing.T) {
	_, s := newSyncHarness(nil)

	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t01.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 0, 0)})

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)
	drain(sub.TrackChanged)
	drain(sub.PositionChanged)

	for _, ms := range []int64{1000, 2000, 3000} {
		s.HandleEvent(engine.Event{Kind: engine.EventPosition, Status: playingStatus(uri, 0, ms)})
	}

	positions := drain(sub.PositionChanged)
	if len(positions) != 3 {
		t.Errorf("got %d position changes, want 3", len(positions))
	}
	if len(positions) > 0 && positions[len(positions)-1].PositionMs != 3000 {
		t.Errorf("last position = %d, want 3000", positions[len(positions)-1].PositionMs)
	}
	expectNone(t, sub.TrackChanged, "track change from position sync")
	expectNone(t, sub.StateChanged, "state change from position sync")

	snap := s.Snapshot()
	if snap.PositionMs != 3000 {
		t.Errorf("mirror position = %d, want 3000", snap.PositionMs)
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("position sync moved the current index to %d", snap.CurrentIndex)
	}
}

func TestHandleEvent_DuplicatePositionDropped(t *testing.T) {
	_, s := newSyncHarness(nil)
	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t01.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 0, 0)})

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)
	drain(sub.PositionChanged)

	s.HandleEvent(engine.Event{Kind: engine.EventPosition, Status: playingStatus(uri, 0, 5000)})
	s.HandleEvent(engine.Event{Kind: engine.EventPosition, Status: playingStatus(uri, 0, 5000)})

	if got := len(drain(sub.PositionChanged)); got != 1 {
		t.Errorf("got %d position changes for identical positions, want 1", got)
	}
}

func TestSubscribe_PrimesNewObserver(t *testing.T) {
	_, s := newSyncHarness(nil)
	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t01.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 0, 42_000)})

	// A late observer starts from the current state, not from zero.
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	states := drain(sub.StateChanged)
	if len(states) != 1 || states[0].State != playback.StatePlaying {
		t.Errorf("primed state = %+v, want playing", states)
	}
	tracks := drain(sub.TrackChanged)
	if len(tracks) != 1 {
		t.Errorf("primed with %d track changes, want 1", len(tracks))
	}
	positions := drain(sub.PositionChanged)
	if len(positions) != 1 || positions[0].PositionMs != 42_000 {
		t.Errorf("primed position = %+v, want 42000", positions)
	}
}

func TestObservers_ReceiveIdenticalUpdates(t *testing.T) {
	_, s := newSyncHarness(nil)
	a := s.Subscribe()
	b := s.Subscribe()
	defer s.Unsubscribe(a)
	defer s.Unsubscribe(b)
	drain(a.StateChanged)
	drain(b.StateChanged)

	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t03.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 2, 0)})

	ta, tb := drain(a.TrackChanged), drain(b.TrackChanged)
	if len(ta) != 1 || len(tb) != 1 {
		t.Fatalf("observers got %d/%d track changes, want 1/1", len(ta), len(tb))
	}
	if ta[0].MediaID != tb[0].MediaID || ta[0].Index != tb[0].Index {
		t.Errorf("observers diverged: %+v vs %+v", ta[0], tb[0])
	}
}

func TestUnsubscribe_ClosesDone(t *testing.T) {
	_, s := newSyncHarness(nil)
	sub := s.Subscribe()
	s.Unsubscribe(sub)

	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Unsubscribe")
	}

	// Double unsubscribe must not panic on a second close.
	s.Unsubscribe(sub)
}

func TestQueueLoad_ReachesObservers(t *testing.T) {
	q, s := newSyncHarness(nil)
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	if err := q.Load(showItems(4), 2); err != nil {
		t.Fatalf("load: %v", err)
	}

	queues := drain(sub.QueueChanged)
	if len(queues) != 1 {
		t.Fatalf("got %d queue changes, want 1", len(queues))
	}
	if len(queues[0].Items) != 4 || queues[0].StartIndex != 2 {
		t.Errorf("queue change = %d items start %d, want 4/2", len(queues[0].Items), queues[0].StartIndex)
	}
	if snap := s.Snapshot(); snap.QueueGen != queues[0].Gen {
		t.Errorf("mirror gen %d != published gen %d", snap.QueueGen, queues[0].Gen)
	}
}

func TestHandleEvent_EngineAdvanceAdoptedByQueue(t *testing.T) {
	q, s := newSyncHarness(nil)
	if err := q.Load(showItems(3), 0); err != nil {
		t.Fatalf("load: %v", err)
	}

	// The engine advanced on its own; the queue mirrors the index without
	// writing back.
	uri := "https://archive.example.org/download/gd1977-05-08.sbd/gd1977-05-08d1t02.flac"
	s.HandleEvent(engine.Event{Kind: engine.EventPlayer, Status: playingStatus(uri, 1, 0)})

	if got := q.Index(); got != 1 {
		t.Errorf("queue index = %d after engine advance, want 1", got)
	}
}
