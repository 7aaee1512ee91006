package playback

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/infra/engine"
)

// commandKind identifies a pending-command slot. While the engine link is
// down at most one command per kind is held, most recent wins.
type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdToggle
	cmdSeek
	cmdSkip
)

func (k commandKind) String() string {
	switch k {
	case cmdPlay:
		return "play"
	case cmdPause:
		return "pause"
	case cmdToggle:
		return "toggle"
	case cmdSeek:
		return "seek"
	case cmdSkip:
		return "skip"
	default:
		return "unknown"
	}
}

type pendingCommand struct {
	kind      commandKind
	seekMs    int64
	skipIndex int
	queueGen  uint64 // stamped on skips; a stale generation drops the skip
	seq       uint64
}

// Commands is the single entry point for transport intents. Connected
// commands dispatch immediately, serialized by the connection manager;
// commands issued while the link is down are held (bounded, most recent wins
// per kind) and replayed exactly once after reconnect. "What to play" is
// always the queue manager's decision; Commands only moves the transport.
type Commands struct {
	conn  *engine.Conn
	queue *Queue
	state func() State

	mu      sync.Mutex
	pending map[commandKind]pendingCommand
	seq     uint64
}

// NewCommands creates the command processor. The state probe reports the
// synchronizer's mirrored state and drives toggle and play semantics.
func NewCommands(conn *engine.Conn, queue *Queue, state func() State) *Commands {
	return &Commands{
		conn:    conn,
		queue:   queue,
		state:   state,
		pending: make(map[commandKind]pendingCommand),
	}
}

// Play resumes paused playback, or starts the current queue item when
// stopped.
func (c *Commands) Play() error {
	if !c.connected() {
		c.hold(pendingCommand{kind: cmdPlay})
		return nil
	}
	return c.dispatchPlay()
}

func (c *Commands) dispatchPlay() error {
	if c.state() == StateStopped && c.queue.Len() > 0 {
		index := c.queue.Index()
		if index < 0 {
			index = 0
		}
		return c.conn.Play(index)
	}
	return c.conn.Resume()
}

// Pause pauses playback.
func (c *Commands) Pause() error {
	if !c.connected() {
		c.hold(pendingCommand{kind: cmdPause})
		return nil
	}
	return c.conn.Pause()
}

// TogglePlayPause flips between playing and paused.
func (c *Commands) TogglePlayPause() error {
	if !c.connected() {
		c.hold(pendingCommand{kind: cmdToggle})
		return nil
	}
	return c.dispatchToggle()
}

func (c *Commands) dispatchToggle() error {
	if c.state() == StatePlaying {
		return c.conn.Pause()
	}
	return c.dispatchPlay()
}

// SeekTo seeks within the current item.
func (c *Commands) SeekTo(positionMs int64) error {
	if positionMs < 0 {
		positionMs = 0
	}
	if !c.connected() {
		c.hold(pendingCommand{kind: cmdSeek, seekMs: positionMs})
		return nil
	}
	return c.conn.SeekMs(positionMs)
}

// SkipNext advances to the queue manager's next target. At the end of the
// queue with repeat off this is a no-op.
func (c *Commands) SkipNext() error {
	index := c.queue.NextIndex()
	if index < 0 {
		return nil
	}
	return c.SkipToIndex(index)
}

// SkipPrevious moves to the queue manager's previous target.
func (c *Commands) SkipPrevious() error {
	index := c.queue.PrevIndex()
	if index < 0 {
		return nil
	}
	return c.SkipToIndex(index)
}

// SkipToIndex jumps to a specific queue index.
func (c *Commands) SkipToIndex(index int) error {
	if index < 0 || index >= c.queue.Len() {
		return nil
	}
	if !c.connected() {
		c.hold(pendingCommand{kind: cmdSkip, skipIndex: index, queueGen: c.queue.Gen()})
		return nil
	}
	return c.conn.Play(index)
}

func (c *Commands) connected() bool {
	return c.conn.State() == engine.Connected
}

// hold holds a command for replay after reconnect and kicks off a
// background reconnect attempt. One slot per kind: a newer pause replaces an
// older one instead of queueing behind it.
func (c *Commands) hold(cmd pendingCommand) {
	c.mu.Lock()
	c.seq++
	cmd.seq = c.seq
	c.pending[cmd.kind] = cmd
	c.mu.Unlock()

	log.Debug().Str("command", cmd.kind.String()).Msg("Engine down, command deferred")

	go func() {
		if err := c.conn.Connect(context.Background()); err != nil {
			log.Debug().Err(err).Msg("Background reconnect attempt failed")
		}
	}()
}

// Replay dispatches deferred commands after a successful reconnect, in
// submission order. The pending set is cleared before dispatch so a command
// is applied exactly once even if Replay races another reconnect.
func (c *Commands) Replay() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	cmds := make([]pendingCommand, 0, len(c.pending))
	for _, cmd := range c.pending {
		cmds = append(cmds, cmd)
	}
	c.pending = make(map[commandKind]pendingCommand)
	c.mu.Unlock()

	sort.Slice(cmds, func(i, j int) bool { return cmds[i].seq < cmds[j].seq })

	for _, cmd := range cmds {
		var err error
		switch cmd.kind {
		case cmdPlay:
			err = c.dispatchPlay()
		case cmdPause:
			err = c.conn.Pause()
		case cmdToggle:
			err = c.dispatchToggle()
		case cmdSeek:
			err = c.conn.SeekMs(cmd.seekMs)
		case cmdSkip:
			if cmd.queueGen != c.queue.Gen() {
				log.Debug().
					Int("index", cmd.skipIndex).
					Uint64("stamped", cmd.queueGen).
					Uint64("current", c.queue.Gen()).
					Msg("Dropping deferred skip for replaced queue")
				continue
			}
			err = c.conn.Play(cmd.skipIndex)
		}
		if err != nil {
			log.Warn().Err(err).Str("command", cmd.kind.String()).Msg("Deferred command replay failed")
		} else {
			log.Info().Str("command", cmd.kind.String()).Msg("Deferred command replayed")
		}
	}
}

// PendingCount reports how many commands are held for replay.
func (c *Commands) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
