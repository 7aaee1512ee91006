//go:build linux

// Package mpris exposes the coordinator as an MPRIS media player over D-Bus
// so desktop controls (media keys, playerctl) drive the same playback core
// as every other surface.
package mpris

import (
	"fmt"
	"hash/fnv"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/reelback/reelback/internal/domain/playback"
)

// Adapter connects the coordinator to MPRIS over D-Bus.
type Adapter struct {
	coord  *playback.Coordinator
	server *server.Server
}

// New creates and starts a new MPRIS adapter.
func New(coord *playback.Coordinator) (*Adapter, error) {
	a := &Adapter{coord: coord}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{coord: coord}

	a.server = server.NewServer("reelback", rootAdapter, playerAdapter)

	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Daemon manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "Reelback", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file", "http", "https"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/flac", "audio/mpeg", "audio/ogg"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and the
// LoopStatus extension.
type playerAdapter struct {
	coord *playback.Coordinator
}

func (p *playerAdapter) Next() error {
	return p.coord.SkipNext()
}

func (p *playerAdapter) Previous() error {
	return p.coord.SkipPrevious()
}

func (p *playerAdapter) Pause() error {
	return p.coord.Pause()
}

func (p *playerAdapter) PlayPause() error {
	return p.coord.TogglePlayPause()
}

func (p *playerAdapter) Stop() error {
	return p.coord.Pause() // Queue stays loaded; stop maps to pause
}

func (p *playerAdapter) Play() error {
	return p.coord.Play()
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	snap := p.coord.Snapshot()
	target := snap.PositionMs + int64(offset)/1000
	if target < 0 {
		target = 0
	}
	return p.coord.SeekTo(target)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.coord.SeekTo(int64(position) / 1000)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.coord.Snapshot().State {
	case playback.StatePlaying:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	snap := p.coord.Snapshot()
	if snap.CurrentMediaID.IsZero() {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(string(snap.CurrentMediaID))),
		Length:  types.Microseconds(snap.DurationMs * 1000),
	}
	if t := snap.Track; t != nil {
		meta.Title = t.Title
		meta.Album = t.ShowDate + " " + t.Venue
		if t.ArtworkURL != "" {
			meta.ArtUrl = t.ArtworkURL
		}
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil // Volume lives on the engine host, not here
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return p.coord.Snapshot().PositionMs * 1000, nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	snap := p.coord.Snapshot()
	return snap.CurrentIndex >= 0 && snap.CurrentIndex < snap.QueueLen-1, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.coord.Snapshot().CurrentIndex > 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.coord.Snapshot().QueueLen > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.coord.Repeat() {
	case playback.RepeatOne:
		return types.LoopStatusTrack, nil
	case playback.RepeatAll:
		return types.LoopStatusPlaylist, nil
	default:
		return types.LoopStatusNone, nil
	}
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.coord.SetRepeat(playback.RepeatOff)
	case types.LoopStatusTrack:
		p.coord.SetRepeat(playback.RepeatOne)
	case types.LoopStatusPlaylist:
		p.coord.SetRepeat(playback.RepeatAll)
	}
	return nil
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
