// Package sse exposes the playback event stream over Server-Sent Events for
// clients that do not speak socket.io.
package sse

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/domain/playback"
)

// StreamID is the single stream all playback events are published to.
// Clients subscribe with GET /events?stream=playback.
const StreamID = "playback"

// Feed bridges a coordinator subscription onto an SSE stream.
type Feed struct {
	server *sse.Server
	coord  *playback.Coordinator
}

// New creates the feed and its stream.
func New(coord *playback.Coordinator) *Feed {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(StreamID)

	return &Feed{
		server: server,
		coord:  coord,
	}
}

type stateEvent struct {
	Status    string `json:"status"`
	IsPlaying bool   `json:"isPlaying"`
}

type trackEvent struct {
	Index    int    `json:"index"`
	MediaID  string `json:"mediaId"`
	Title    string `json:"title,omitempty"`
	ShowID   string `json:"showId,omitempty"`
	ShowDate string `json:"showDate,omitempty"`
	Venue    string `json:"venue,omitempty"`
}

type positionEvent struct {
	PositionMs int64 `json:"positionMs"`
	DurationMs int64 `json:"durationMs"`
}

type queueEvent struct {
	Length     int    `json:"length"`
	StartIndex int    `json:"startIndex"`
	Gen        uint64 `json:"gen"`
}

// Run consumes a coordinator subscription and republishes every event until
// the context ends.
func (f *Feed) Run(ctx context.Context) {
	sub := f.coord.Subscribe()
	defer f.coord.Unsubscribe(sub)

	log.Info().Msg("SSE feed started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("SSE feed stopped")
			return
		case <-sub.Done:
			return
		case e := <-sub.StateChanged:
			f.publish("state", stateEvent{
				Status:    e.State.String(),
				IsPlaying: e.IsPlaying,
			})
		case e := <-sub.TrackChanged:
			f.publish("track", trackPayload(e))
		case e := <-sub.PositionChanged:
			f.publish("position", positionEvent{
				PositionMs: e.PositionMs,
				DurationMs: e.DurationMs,
			})
		case e := <-sub.QueueChanged:
			f.publish("queue", queueEvent{
				Length:     len(e.Items),
				StartIndex: e.StartIndex,
				Gen:        e.Gen,
			})
		}
	}
}

func trackPayload(e playback.TrackChange) trackEvent {
	p := trackEvent{
		Index:   e.Index,
		MediaID: string(e.MediaID),
	}
	if t := e.Track; t != nil {
		p.Title = t.Title
		p.ShowID = t.ShowID
		p.ShowDate = t.ShowDate
		p.Venue = t.Venue
	}
	return p
}

func (f *Feed) publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("SSE payload marshal failed")
		return
	}
	f.server.Publish(StreamID, &sse.Event{
		Event: []byte(event),
		Data:  data,
	})
}

// ServeHTTP implements http.Handler. r3labs routes by the ?stream= query
// parameter, so the handler mounts anywhere.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.server.ServeHTTP(w, r)
}

// Close shuts the stream down, disconnecting subscribers.
func (f *Feed) Close() {
	f.server.Close()
}
