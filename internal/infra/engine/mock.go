package engine

import (
	"context"
	"fmt"
	"sync"
)

// MockEngine is an in-memory Engine for tests. Commands mutate a simulated
// queue/transport state and emit the same subsystem notifications a real
// engine would, so the full pump → synchronizer path is exercised.
type MockEngine struct {
	mu         sync.Mutex
	uris       []string
	index      int
	state      PlayState
	elapsedMs  int64
	durationMs int64
	calls      []string
	events     chan string
	closed     bool

	// FailCommands makes every command return an error, simulating a dead
	// engine connection.
	FailCommands bool
}

// NewMockEngine creates a stopped mock engine with an empty queue.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		index:      -1,
		state:      StateStop,
		durationMs: 180_000,
		events:     make(chan string, 32),
	}
}

// Calls returns the recorded command log.
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockEngine) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *MockEngine) notify(subsystem string) {
	if m.closed {
		return
	}
	select {
	case m.events <- subsystem:
	default:
	}
}

// EmitPlayer injects a player subsystem event, as if the engine transitioned
// on its own (e.g. auto-advance at end of track).
func (m *MockEngine) EmitPlayer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify("player")
}

// AdvanceTrack simulates engine-driven auto-advance to the next queue item.
func (m *MockEngine) AdvanceTrack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index+1 < len(m.uris) {
		m.index++
		m.elapsedMs = 0
		m.notify("player")
	}
}

// SetElapsed sets the simulated position.
func (m *MockEngine) SetElapsed(ms int64) {
	m.mu.Lock()
	m.elapsedMs = ms
	m.mu.Unlock()
}

// SetDuration sets the simulated track duration.
func (m *MockEngine) SetDuration(ms int64) {
	m.mu.Lock()
	m.durationMs = ms
	m.mu.Unlock()
}

// Ping implements Engine.
func (m *MockEngine) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	return nil
}

// Status implements Engine.
func (m *MockEngine) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return Status{}, fmt.Errorf("mock engine down")
	}
	var uri string
	if m.index >= 0 && m.index < len(m.uris) {
		uri = m.uris[m.index]
	}
	return Status{
		State:      m.state,
		SongIndex:  m.index,
		ElapsedMs:  m.elapsedMs,
		DurationMs: m.durationMs,
		QueueLen:   len(m.uris),
		CurrentURI: uri,
	}, nil
}

// ReplaceQueue implements Engine.
func (m *MockEngine) ReplaceQueue(uris []string, startIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	m.record(fmt.Sprintf("replace(n=%d,start=%d)", len(uris), startIndex))
	m.uris = append([]string(nil), uris...)
	m.index = startIndex
	m.state = StatePlay
	m.elapsedMs = 0
	m.notify("playlist")
	m.notify("player")
	return nil
}

// Play implements Engine.
func (m *MockEngine) Play(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	m.record(fmt.Sprintf("play(%d)", index))
	if index >= 0 && index < len(m.uris) {
		if index != m.index {
			m.elapsedMs = 0
		}
		m.index = index
	}
	m.state = StatePlay
	m.notify("player")
	return nil
}

// Resume implements Engine.
func (m *MockEngine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	m.record("resume")
	m.state = StatePlay
	m.notify("player")
	return nil
}

// Pause implements Engine.
func (m *MockEngine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	m.record("pause")
	m.state = StatePause
	m.notify("player")
	return nil
}

// Stop implements Engine.
func (m *MockEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	m.record("stop")
	m.state = StateStop
	m.elapsedMs = 0
	m.notify("player")
	return nil
}

// SeekMs implements Engine.
func (m *MockEngine) SeekMs(ms int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return fmt.Errorf("mock engine down")
	}
	m.record(fmt.Sprintf("seek(%d)", ms))
	m.elapsedMs = ms
	m.notify("player")
	return nil
}

// Watch implements Engine.
func (m *MockEngine) Watch(ctx context.Context) (<-chan string, error) {
	out := make(chan string, 32)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case subsystem, ok := <-m.events:
				if !ok {
					return
				}
				select {
				case out <- subsystem:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close implements Engine.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}
