package socketio

import (
	"sync"
	"time"
)

// BroadcastDebouncer collapses rapid coordinator events into batched
// broadcasts. Multiple events within the debounce window result in a single
// broadcast for each affected type (state and/or queue).
type BroadcastDebouncer struct {
	window        time.Duration
	stateCallback func()
	queueCallback func()

	mu           sync.Mutex
	pendingState bool
	pendingQueue bool
	timer        *time.Timer
	stopped      bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// stateCallback fires for state/track/position events, queueCallback for
// queue replacements.
func NewBroadcastDebouncer(window time.Duration, stateCallback, queueCallback func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:        window,
		stateCallback: stateCallback,
		queueCallback: queueCallback,
	}
}

// TriggerState records a pending state broadcast. The callback is deferred
// until the window elapses without further triggers.
func (d *BroadcastDebouncer) TriggerState() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pendingState = true
	d.resetTimer()
}

// TriggerQueue records a pending queue broadcast. A queue replacement also
// changes the observable state, so the state broadcast is marked too.
func (d *BroadcastDebouncer) TriggerQueue() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pendingState = true
	d.pendingQueue = true
	d.resetTimer()
}

func (d *BroadcastDebouncer) resetTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires callbacks for any pending flags and resets them.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	doState := d.pendingState
	doQueue := d.pendingQueue
	d.pendingState = false
	d.pendingQueue = false
	d.mu.Unlock()

	if doState && d.stateCallback != nil {
		d.stateCallback()
	}
	if doQueue && d.queueCallback != nil {
		d.queueCallback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pendingState = false
	d.pendingQueue = false
}
