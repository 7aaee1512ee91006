// Package playback is the coordination core: it keeps the single background
// engine and every attached observer in agreement about what is playing,
// where, and what comes next.
package playback

import (
	"github.com/reelback/reelback/internal/infra/engine"
	"github.com/reelback/reelback/internal/media"
)

// State represents the playback state.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stop"
	case StatePlaying:
		return "play"
	case StatePaused:
		return "pause"
	default:
		return "unknown"
	}
}

// IsActive returns true if playback is active (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}

func stateFromEngine(ps engine.PlayState) State {
	switch ps {
	case engine.StatePlay:
		return StatePlaying
	case engine.StatePause:
		return StatePaused
	default:
		return StateStopped
	}
}

// RepeatMode defines queue wraparound behavior. Navigation clamps at the
// queue edges unless a repeat mode is engaged.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// Snapshot is the observable playback state, recomputed on every engine
// event. All observers receive identical snapshots in production order.
type Snapshot struct {
	State          State
	IsPlaying      bool
	PositionMs     int64
	DurationMs     int64
	CurrentIndex   int
	CurrentMediaID media.ID
	Track          *media.TrackInfo
	QueueLen       int
	QueueGen       uint64
}

// StateChange is published when play/pause/stop state flips.
type StateChange struct {
	State     State
	IsPlaying bool
}

// TrackChange is published atomically on item transitions, carrying the
// already-enriched display metadata so observers never do their own lookups.
type TrackChange struct {
	Index   int
	MediaID media.ID
	Track   *media.TrackInfo
}

// PositionChange is published on position ticks. It never accompanies an
// item or queue change.
type PositionChange struct {
	PositionMs int64
	DurationMs int64
}

// QueueChange is published when the queue manager replaces the queue.
type QueueChange struct {
	Items      []media.QueueItem
	StartIndex int
	Gen        uint64
}
