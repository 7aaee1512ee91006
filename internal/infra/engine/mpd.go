package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// MPD drives an MPD server as the background playback engine. The command
// connection self-heals with a ping-and-redial check; watcher death is
// surfaced to the connection manager through the closed Watch channel.
type MPD struct {
	mu       sync.Mutex
	client   *mpd.Client
	addr     string
	password string
}

// DialMPD connects to MPD at addr, honoring ctx for the handshake.
func DialMPD(ctx context.Context, addr, password string) (*MPD, error) {
	type dialResult struct {
		client *mpd.Client
		err    error
	}
	ch := make(chan dialResult, 1)

	go func() {
		client, err := mpd.Dial("tcp", addr)
		if err == nil && password != "" {
			if aerr := client.Command("password %s", password).OK(); aerr != nil {
				client.Close()
				client, err = nil, fmt.Errorf("mpd authentication failed: %w", aerr)
			}
		}
		ch <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		// The dial goroutine closes its connection when it eventually lands.
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to connect to mpd: %w", r.err)
		}
		log.Info().Str("addr", addr).Msg("Connected to MPD")
		return &MPD{client: r.client, addr: addr, password: password}, nil
	}
}

// ensureConnected pings the command connection and redials if it died.
func (m *MPD) ensureConnected() error {
	if m.client == nil {
		return m.redial()
	}
	if err := m.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting")
		m.client.Close()
		m.client = nil
		return m.redial()
	}
	return nil
}

func (m *MPD) redial() error {
	client, err := mpd.Dial("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to mpd: %w", err)
	}
	if m.password != "" {
		if err := client.Command("password %s", m.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("mpd authentication failed: %w", err)
		}
	}
	m.client = client
	return nil
}

// Ping checks the command connection.
func (m *MPD) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return fmt.Errorf("not connected")
	}
	return m.client.Ping()
}

// Status reads and normalizes the MPD status.
func (m *MPD) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return Status{}, err
	}

	attrs, err := m.client.Status()
	if err != nil {
		return Status{}, err
	}
	status := statusFromAttrs(attrs)

	if song, err := m.client.CurrentSong(); err == nil {
		status.CurrentURI = song["file"]
	}
	return status, nil
}

// statusFromAttrs maps raw MPD status attributes into a Status.
func statusFromAttrs(attrs mpd.Attrs) Status {
	status := Status{SongIndex: -1}

	switch attrs["state"] {
	case "play":
		status.State = StatePlay
	case "pause":
		status.State = StatePause
	default:
		status.State = StateStop
	}

	if pos, err := strconv.Atoi(attrs["song"]); err == nil {
		status.SongIndex = pos
	}
	// MPD reports elapsed/duration as seconds with a decimal fraction.
	if elapsed, err := strconv.ParseFloat(attrs["elapsed"], 64); err == nil {
		status.ElapsedMs = int64(elapsed * 1000)
	}
	if duration, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		status.DurationMs = int64(duration * 1000)
	}
	if length, err := strconv.Atoi(attrs["playlistlength"]); err == nil {
		status.QueueLen = length
	}
	return status
}

// ReplaceQueue clears the MPD queue, adds all URIs, and starts playback at
// startIndex. Performed under one lock so no command interleaves with the
// replace.
func (m *MPD) ReplaceQueue(uris []string, startIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return err
	}

	if err := m.client.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	for _, uri := range uris {
		if err := m.client.Add(uri); err != nil {
			return fmt.Errorf("add %s: %w", uri, err)
		}
	}
	return m.client.Play(startIndex)
}

// Play starts playback at the given queue index.
func (m *MPD) Play(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return err
	}
	return m.client.Play(index)
}

// Resume resumes paused playback.
func (m *MPD) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return err
	}
	return m.client.Pause(false)
}

// Pause pauses playback.
func (m *MPD) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return err
	}
	return m.client.Pause(true)
}

// Stop stops playback.
func (m *MPD) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return err
	}
	return m.client.Stop()
}

// SeekMs seeks within the current song.
func (m *MPD) SeekMs(ms int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureConnected(); err != nil {
		return err
	}

	attrs, err := m.client.Status()
	if err != nil {
		return err
	}
	songPos, err := strconv.Atoi(attrs["song"])
	if err != nil {
		return fmt.Errorf("no song playing")
	}
	return m.client.Seek(songPos, int(ms/1000))
}

// Watch emits MPD subsystem change notifications until ctx is done. The
// channel closes if the watcher connection dies.
func (m *MPD) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := mpd.NewWatcher("tcp", m.addr, m.password, "player", "playlist")
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ch := make(chan string, 10)
	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case subsystem, ok := <-watcher.Event:
				if !ok {
					return
				}
				select {
				case ch <- subsystem:
				case <-ctx.Done():
					return
				}
			case err := <-watcher.Error:
				log.Error().Err(err).Msg("MPD watcher error")
				return
			}
		}
	}()
	return ch, nil
}

// Close closes the command connection.
func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		err := m.client.Close()
		m.client = nil
		return err
	}
	return nil
}
