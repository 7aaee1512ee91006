// Package scrobble forwards confirmed plays to Last.fm. Entirely optional:
// without credentials the forwarder is nil and history runs without it.
package scrobble

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shkh/lastfm-go/lastfm"

	"github.com/reelback/reelback/internal/media"
)

// ErrNotAuthenticated is returned when an operation requires a session key.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client wraps the Last.fm API for scrobbling.
type Client struct {
	api        *lastfm.Api
	artist     string
	sessionKey string
}

// New creates a client. artist is the performing artist attributed to every
// scrobble; archived-concert tracks carry no per-track artist tag.
func New(apiKey, apiSecret, sessionKey, artist string) *Client {
	c := &Client{
		api:    lastfm.New(apiKey, apiSecret),
		artist: artist,
	}
	if sessionKey != "" {
		c.sessionKey = sessionKey
		c.api.SetSession(sessionKey)
	}
	return c
}

// IsAuthenticated reports whether a session key is set.
func (c *Client) IsAuthenticated() bool {
	return c.sessionKey != ""
}

// NowPlaying sends a now-playing notification. Failures are logged, never
// propagated: scrobbling must not disturb playback or history.
func (c *Client) NowPlaying(track media.TrackInfo) {
	if err := c.updateNowPlaying(track); err != nil {
		log.Warn().Err(err).Str("title", track.Title).Msg("Last.fm now-playing update failed")
	}
}

// Scrobble submits one confirmed play.
func (c *Client) Scrobble(track media.TrackInfo, startedAt time.Time) {
	if err := c.scrobble(track, startedAt); err != nil {
		log.Warn().Err(err).Str("title", track.Title).Msg("Last.fm scrobble failed")
		return
	}
	log.Debug().Str("title", track.Title).Msg("Scrobbled")
}

func (c *Client) updateNowPlaying(track media.TrackInfo) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	_, err := c.api.Track.UpdateNowPlaying(c.params(track, nil))
	if err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

func (c *Client) scrobble(track media.TrackInfo, startedAt time.Time) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	_, err := c.api.Track.Scrobble(c.params(track, &startedAt))
	if err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

func (c *Client) params(track media.TrackInfo, startedAt *time.Time) lastfm.P {
	p := lastfm.P{
		"artist": c.artist,
		"track":  track.Title,
	}
	if track.ShowDate != "" && track.Venue != "" {
		p["album"] = track.ShowDate + " " + track.Venue
	}
	if startedAt != nil {
		p["timestamp"] = startedAt.Unix()
	}
	return p
}
