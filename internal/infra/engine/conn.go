package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConnState is the lifecycle status of the link to the background engine.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Failed
)

// String returns the connection state name.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned for commands issued while the engine link is
// down. Callers queue the command and retry after reconnect.
var ErrNotConnected = errors.New("engine not connected")

// ErrConnClosed is returned after Disconnect.
var ErrConnClosed = errors.New("engine connection closed")

// DialFunc establishes a fresh engine handle.
type DialFunc func(ctx context.Context) (Engine, error)

// Conn is the connection manager: it owns the single engine handle for the
// whole process, keeps it alive across observer churn, and hands out narrow
// facets (Transport, QueueWriter, StatusReader). Observer teardown must never
// release the handle; only Disconnect on daemon shutdown does.
type Conn struct {
	dial         DialFunc
	timeout      time.Duration
	tickInterval time.Duration
	retryDelay   time.Duration

	mu          sync.Mutex
	state       ConnState
	eng         Engine
	closed      bool
	attempt     chan struct{} // closed when the in-flight dial settles
	pumpCancel  context.CancelFunc
	onConnected []func()
	sink        func(Event)

	// cmdMu serializes all commands against the engine handle; no two
	// commands ever execute at once against the engine.
	cmdMu sync.Mutex
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithConnectTimeout bounds the dial handshake.
func WithConnectTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.timeout = d }
}

// WithPositionTick sets the position sampling interval of the event pump.
func WithPositionTick(d time.Duration) ConnOption {
	return func(c *Conn) { c.tickInterval = d }
}

// WithRetryDelay sets the pause between automatic reconnect attempts after a
// pump failure.
func WithRetryDelay(d time.Duration) ConnOption {
	return func(c *Conn) { c.retryDelay = d }
}

// NewConn creates a connection manager around the given dialer. The link
// starts Disconnected; nothing happens until Connect.
func NewConn(dial DialFunc, opts ...ConnOption) *Conn {
	c := &Conn{
		dial:         dial,
		timeout:      5 * time.Second,
		tickInterval: time.Second,
		retryDelay:   2 * time.Second,
		state:        Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnConnected registers a callback invoked after every successful Connect,
// including reconnects. The synchronizer uses this to re-attach and the
// command processor to replay queued commands.
func (c *Conn) OnConnected(fn func()) {
	c.mu.Lock()
	c.onConnected = append(c.onConnected, fn)
	c.mu.Unlock()
}

// SetEventSink installs the consumer of pump events. Exactly one sink exists;
// fan-out to observers is the synchronizer's job.
func (c *Conn) SetEventSink(fn func(Event)) {
	c.mu.Lock()
	c.sink = fn
	c.mu.Unlock()
}

// Connect establishes the engine link. Idempotent: a Connected link is a
// no-op, and a Connect issued while another attempt is in flight waits for
// that attempt instead of dialing a second handle. Failure transitions to
// Failed and is non-fatal; the next Connect retries.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrConnClosed
		}
		if c.state == Connected {
			c.mu.Unlock()
			return nil
		}
		if c.state != Connecting {
			break
		}
		inflight := c.attempt
		c.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}
	c.state = Connecting
	c.attempt = make(chan struct{})
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	eng, err := c.dial(dialCtx)
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.state = Failed
		}
		c.settleLocked()
		c.mu.Unlock()
		log.Warn().Err(err).Msg("Engine connect failed")
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.settleLocked()
		c.mu.Unlock()
		eng.Close()
		return ErrConnClosed
	}
	if c.state == Connected {
		// Another attempt won the race. Its handle stands; closing this one
		// keeps exactly one engine handle alive in the process.
		c.settleLocked()
		c.mu.Unlock()
		eng.Close()
		return nil
	}
	c.eng = eng
	c.state = Connected
	pumpCtx, pumpCancel := context.WithCancel(context.Background())
	c.pumpCancel = pumpCancel
	callbacks := make([]func(), len(c.onConnected))
	copy(callbacks, c.onConnected)
	c.settleLocked()
	c.mu.Unlock()

	log.Info().Msg("Engine connected")
	c.startPump(pumpCtx, eng)

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Disconnect releases the engine handle. Called only on real daemon
// shutdown, never on observer teardown: releasing on every observer detach
// audibly interrupts playback.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.state = Disconnected
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.pumpCancel = nil
	}
	eng := c.eng
	c.eng = nil
	c.mu.Unlock()

	if eng != nil {
		if err := eng.Close(); err != nil {
			log.Warn().Err(err).Msg("Engine close failed")
		}
	}
	log.Info().Msg("Engine disconnected")
}

// startPump consumes engine subsystem events and emits typed events with a
// fresh status sample attached. A position ticker fills the gaps between
// native events while playing.
func (c *Conn) startPump(ctx context.Context, eng Engine) {
	events, err := eng.Watch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Engine watch failed")
		c.markFailed()
		c.retryLoop()
		return
	}

	go func() {
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case subsystem, ok := <-events:
				if !ok {
					log.Warn().Msg("Engine event stream closed, scheduling reconnect")
					c.markFailed()
					c.retryLoop()
					return
				}
				kind := EventPlayer
				if subsystem == "playlist" {
					kind = EventQueue
				}
				c.emit(kind, eng)
			case <-ticker.C:
				status, err := eng.Status()
				if err != nil {
					continue
				}
				if status.State == StatePlay {
					c.deliver(Event{Kind: EventPosition, Status: status})
				}
			}
		}
	}()
}

// emit samples status and delivers an event of the given kind.
func (c *Conn) emit(kind EventKind, eng Engine) {
	status, err := eng.Status()
	if err != nil {
		log.Warn().Err(err).Str("kind", kind.String()).Msg("Engine status read failed")
		return
	}
	c.deliver(Event{Kind: kind, Status: status})
}

func (c *Conn) deliver(e Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(e)
	}
}

// settleLocked wakes Connect callers waiting on the in-flight attempt.
func (c *Conn) settleLocked() {
	if c.attempt != nil {
		close(c.attempt)
		c.attempt = nil
	}
}

func (c *Conn) markFailed() {
	c.mu.Lock()
	if !c.closed && c.state == Connected {
		c.state = Failed
		if c.pumpCancel != nil {
			c.pumpCancel()
			c.pumpCancel = nil
		}
		if c.eng != nil {
			c.eng.Close()
			c.eng = nil
		}
	}
	c.mu.Unlock()
}

// retryLoop reconnects in the background after a pump failure.
func (c *Conn) retryLoop() {
	go func() {
		for {
			c.mu.Lock()
			closed, state := c.closed, c.state
			c.mu.Unlock()
			if closed || state == Connected {
				return
			}
			time.Sleep(c.retryDelay)
			if err := c.Connect(context.Background()); err == nil {
				return
			}
		}
	}()
}

// withEngine runs one command against the handle, serialized.
func (c *Conn) withEngine(f func(Engine) error) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	eng, state := c.eng, c.state
	c.mu.Unlock()

	if state != Connected || eng == nil {
		return ErrNotConnected
	}
	return f(eng)
}

// Play starts playback of the queue item at index.
func (c *Conn) Play(index int) error {
	return c.withEngine(func(e Engine) error { return e.Play(index) })
}

// Resume resumes paused playback.
func (c *Conn) Resume() error {
	return c.withEngine(func(e Engine) error { return e.Resume() })
}

// Pause pauses playback.
func (c *Conn) Pause() error {
	return c.withEngine(func(e Engine) error { return e.Pause() })
}

// Stop stops playback.
func (c *Conn) Stop() error {
	return c.withEngine(func(e Engine) error { return e.Stop() })
}

// SeekMs seeks within the current item.
func (c *Conn) SeekMs(ms int64) error {
	return c.withEngine(func(e Engine) error { return e.SeekMs(ms) })
}

// ReplaceQueue replaces the engine queue. Reserved for the queue manager.
func (c *Conn) ReplaceQueue(uris []string, startIndex int) error {
	return c.withEngine(func(e Engine) error { return e.ReplaceQueue(uris, startIndex) })
}

// Status reads the current engine status.
func (c *Conn) Status() (Status, error) {
	var status Status
	err := c.withEngine(func(e Engine) error {
		var serr error
		status, serr = e.Status()
		return serr
	})
	return status, err
}
