// Package engine owns the single background playback engine handle: the
// opaque capability that decodes and outputs audio, the connection manager
// that keeps it reachable, and the event pump that feeds the state
// synchronizer.
package engine

import "context"

// PlayState is the engine-level playback state.
type PlayState string

const (
	StatePlay  PlayState = "play"
	StatePause PlayState = "pause"
	StateStop  PlayState = "stop"
)

// Status is a point-in-time reflection of the engine.
type Status struct {
	State      PlayState
	SongIndex  int // index into the engine queue, -1 when nothing is loaded
	ElapsedMs  int64
	DurationMs int64
	QueueLen   int
	CurrentURI string
}

// EventKind classifies pump events for the synchronizer.
type EventKind int

const (
	// EventPlayer signals a play/pause/stop or item transition.
	EventPlayer EventKind = iota
	// EventQueue signals that the engine-side queue contents changed.
	EventQueue
	// EventPosition is a periodic position tick while playing.
	EventPosition
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventPlayer:
		return "player"
	case EventQueue:
		return "queue"
	case EventPosition:
		return "position"
	default:
		return "unknown"
	}
}

// Event is one pump event with the engine status sampled at emit time.
type Event struct {
	Kind   EventKind
	Status Status
}

// Engine is the opaque playback capability. Implementations must be safe for
// concurrent use; the connection manager serializes commands regardless.
type Engine interface {
	Ping() error
	Status() (Status, error)

	// ReplaceQueue atomically replaces the engine queue and starts playback
	// at startIndex. It is the only full-queue write operation.
	ReplaceQueue(uris []string, startIndex int) error

	Play(index int) error
	Resume() error
	Pause() error
	Stop() error
	SeekMs(ms int64) error

	// Watch emits engine subsystem names ("player", "playlist") until ctx is
	// done or the engine connection dies, in which case the channel closes.
	Watch(ctx context.Context) (<-chan string, error)

	Close() error
}

// Transport is the single-item command facet handed to the command
// processor. It never carries queue-replacing operations.
type Transport interface {
	Play(index int) error
	Resume() error
	Pause() error
	Stop() error
	SeekMs(ms int64) error
}

// QueueWriter is the full-queue write facet. The queue manager is its sole
// consumer.
type QueueWriter interface {
	ReplaceQueue(uris []string, startIndex int) error
}

// StatusReader is the read-only status facet.
type StatusReader interface {
	Status() (Status, error)
}
