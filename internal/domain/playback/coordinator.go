package playback

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/infra/engine"
	"github.com/reelback/reelback/internal/media"
)

// Coordinator assembles the playback core around the single engine
// connection and exposes the one API every surface talks to. Transports,
// the history tracker, and the resume layer all act through the same
// coordinator instance, so they can never disagree about what is playing.
type Coordinator struct {
	conn     *engine.Conn
	queue    *Queue
	commands *Commands
	sync     *Synchronizer
}

// NewCoordinator wires the queue manager, command processor and
// synchronizer over the given connection. The connection's event sink and
// reconnect hooks are installed here; callers only have to Connect.
func NewCoordinator(conn *engine.Conn, resolver SourceResolver, catalog CatalogLookup) *Coordinator {
	queue := NewQueue(conn, resolver)
	sync := NewSynchronizer(queue, catalog)
	queue.SetPublisher(sync.PublishQueue)

	commands := NewCommands(conn, queue, func() State {
		return sync.Snapshot().State
	})

	conn.SetEventSink(sync.HandleEvent)
	conn.OnConnected(func() {
		if status, err := conn.Status(); err == nil {
			sync.Prime(status)
		} else {
			log.Warn().Err(err).Msg("Post-connect status read failed")
		}
		commands.Replay()
	})

	return &Coordinator{
		conn:     conn,
		queue:    queue,
		commands: commands,
		sync:     sync,
	}
}

// Connect establishes the engine link. Safe to call repeatedly.
func (c *Coordinator) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Shutdown tears the engine link down. Nothing else ever disconnects; a
// dropped link is handled by reconnection, not teardown.
func (c *Coordinator) Shutdown() {
	c.conn.Disconnect()
}

// ConnState reports the engine link state.
func (c *Coordinator) ConnState() engine.ConnState {
	return c.conn.State()
}

// LoadAndPlay replaces the queue and starts playback at startIndex.
func (c *Coordinator) LoadAndPlay(items []media.QueueItem, startIndex int) error {
	return c.queue.Load(items, startIndex)
}

// LoadPaused replaces the queue, positions within the start item and leaves
// the player paused. Used to restore the last session without blasting audio
// at startup.
func (c *Coordinator) LoadPaused(items []media.QueueItem, startIndex int, positionMs int64) error {
	if err := c.queue.Load(items, startIndex); err != nil {
		return err
	}
	if positionMs > 0 {
		if err := c.conn.SeekMs(positionMs); err != nil {
			log.Warn().Err(err).Int64("positionMs", positionMs).Msg("Restore seek failed")
		}
	}
	return c.conn.Pause()
}

func (c *Coordinator) Play() error            { return c.commands.Play() }
func (c *Coordinator) Pause() error           { return c.commands.Pause() }
func (c *Coordinator) TogglePlayPause() error { return c.commands.TogglePlayPause() }
func (c *Coordinator) SeekTo(ms int64) error  { return c.commands.SeekTo(ms) }
func (c *Coordinator) SkipNext() error        { return c.commands.SkipNext() }
func (c *Coordinator) SkipPrevious() error    { return c.commands.SkipPrevious() }

// SkipToIndex jumps to a specific queue index.
func (c *Coordinator) SkipToIndex(index int) error {
	return c.commands.SkipToIndex(index)
}

// Subscribe attaches a new observer fed from the shared state mirror.
func (c *Coordinator) Subscribe() *Subscription {
	return c.sync.Subscribe()
}

// Unsubscribe detaches an observer.
func (c *Coordinator) Unsubscribe(sub *Subscription) {
	c.sync.Unsubscribe(sub)
}

// Snapshot returns the current observable state.
func (c *Coordinator) Snapshot() Snapshot {
	return c.sync.Snapshot()
}

// QueueItems returns a snapshot copy of the current queue.
func (c *Coordinator) QueueItems() []media.QueueItem {
	return c.queue.Items()
}

// QueueIndex returns the current queue index, -1 when idle.
func (c *Coordinator) QueueIndex() int {
	return c.queue.Index()
}

// SetRepeat sets the queue repeat mode.
func (c *Coordinator) SetRepeat(mode RepeatMode) {
	c.queue.SetRepeat(mode)
	log.Debug().Str("mode", mode.String()).Msg("Repeat mode changed")
}

// Repeat returns the queue repeat mode.
func (c *Coordinator) Repeat() RepeatMode {
	return c.queue.Repeat()
}

// PendingCommands reports how many commands are held for replay.
func (c *Coordinator) PendingCommands() int {
	return c.commands.PendingCount()
}
