// Package socketio provides the socket.io surface: command ingress from UI
// clients and debounced state/queue push.
package socketio

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/media"
)

// RecordingLister supplies the ordered track list for a recording, used by
// the loadQueue command.
type RecordingLister interface {
	RecordingTracks(recordingID string) ([]media.QueueItem, error)
}

// Options tunes the server limits.
type Options struct {
	MaxClients     int           // external connection cap, 0 = unlimited
	DebounceWindow time.Duration // broadcast batching window
}

// Server handles socket.io connections and events. All commands delegate to
// the coordinator; the server never touches the engine directly.
type Server struct {
	io        *socket.Server
	coord     *playback.Coordinator
	catalog   RecordingLister
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer

	mu      sync.RWMutex
	clients map[string]*socket.Socket

	stateMu   sync.Mutex
	lastState map[string]interface{}
}

// NewServer creates a socket.io server over the coordinator.
func NewServer(coord *playback.Coordinator, catalog RecordingLister, opts Options) *Server {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = 100 * time.Millisecond
	}

	ioOpts := socket.DefaultServerOptions()
	ioOpts.SetPingTimeout(20 * time.Second)
	ioOpts.SetPingInterval(25 * time.Second)
	ioOpts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:      socket.NewServer(nil, ioOpts),
		coord:   coord,
		catalog: catalog,
		limiter: NewConnectionLimiter(opts.MaxClients),
		clients: make(map[string]*socket.Socket),
	}
	s.debouncer = NewBroadcastDebouncer(opts.DebounceWindow, s.BroadcastState, s.BroadcastQueue)

	s.setupHandlers()
	return s
}

// setupHandlers registers all socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		ip := remoteIP(client)

		_, evicted := s.limiter.TryAdd(clientID, ip)
		if evicted != "" {
			s.mu.RLock()
			old := s.clients[evicted]
			s.mu.RUnlock()
			if old != nil {
				log.Info().Str("id", evicted).Msg("Evicting oldest external client")
				old.Disconnect(true)
			}
		}

		log.Info().Str("id", clientID).Str("ip", ip).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
			s.pushQueue(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("getQueue", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getQueue")
			s.pushQueue(client)
		})

		client.On("play", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("play")

			if index, ok := intField(args, "value"); ok {
				if err := s.coord.SkipToIndex(index); err != nil {
					log.Error().Err(err).Int("index", index).Msg("Play at index failed")
				}
				return
			}
			if err := s.coord.Play(); err != nil {
				log.Error().Err(err).Msg("Play failed")
			}
		})

		client.On("pause", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("pause")
			if err := s.coord.Pause(); err != nil {
				log.Error().Err(err).Msg("Pause failed")
			}
		})

		client.On("toggle", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("toggle")
			if err := s.coord.TogglePlayPause(); err != nil {
				log.Error().Err(err).Msg("Toggle failed")
			}
		})

		client.On("next", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("next")
			if err := s.coord.SkipNext(); err != nil {
				log.Error().Err(err).Msg("Next failed")
			}
		})

		client.On("prev", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("prev")
			if err := s.coord.SkipPrevious(); err != nil {
				log.Error().Err(err).Msg("Previous failed")
			}
		})

		client.On("seek", func(args ...any) {
			if len(args) == 0 {
				return
			}
			ms, ok := args[0].(float64)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Float64("ms", ms).Msg("seek")
			if err := s.coord.SeekTo(int64(ms)); err != nil {
				log.Error().Err(err).Msg("Seek failed")
			}
		})

		client.On("skipTo", func(args ...any) {
			index, ok := intField(args, "value")
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Int("index", index).Msg("skipTo")
			if err := s.coord.SkipToIndex(index); err != nil {
				log.Error().Err(err).Int("index", index).Msg("SkipTo failed")
			}
		})

		client.On("setRepeat", func(args ...any) {
			mode, ok := stringField(args, "value")
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Str("mode", mode).Msg("setRepeat")
			s.coord.SetRepeat(parseRepeat(mode))
		})

		client.On("loadQueue", func(args ...any) {
			recordingID, ok := stringField(args, "recordingId")
			if !ok || recordingID == "" {
				log.Warn().Str("id", clientID).Msg("loadQueue without recordingId")
				return
			}
			startIndex, _ := intField(args, "startIndex")
			log.Debug().
				Str("id", clientID).
				Str("recordingId", recordingID).
				Int("startIndex", startIndex).
				Msg("loadQueue")

			items, err := s.catalog.RecordingTracks(recordingID)
			if err != nil {
				log.Error().Err(err).Str("recordingId", recordingID).Msg("Recording lookup failed")
				return
			}
			if len(items) == 0 {
				log.Warn().Str("recordingId", recordingID).Msg("Recording has no tracks")
				return
			}
			if err := s.coord.LoadAndPlay(items, startIndex); err != nil {
				log.Error().Err(err).Str("recordingId", recordingID).Msg("Queue load failed")
			}
		})
	})
}

// pushState sends current state to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit("pushState", statePayload(s.coord.Snapshot(), s.coord.Repeat()))
}

// pushQueue sends current queue to a client.
func (s *Server) pushQueue(client *socket.Socket) {
	client.Emit("pushQueue", queuePayload(s.coord.QueueItems(), s.coord.QueueIndex()))
}

// BroadcastState sends state to all connected clients, suppressing
// broadcasts that differ from the last one only in seek.
func (s *Server) BroadcastState() {
	state := statePayload(s.coord.Snapshot(), s.coord.Repeat())
	if s.isStateSame(state) {
		return
	}
	s.saveLastState(state)

	s.io.Emit("pushState", state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().RawJSON("state", data).Int("clients", clientCount).Msg("Broadcast state")
	}
}

// BroadcastQueue sends the queue to all connected clients.
func (s *Server) BroadcastQueue() {
	s.io.Emit("pushQueue", queuePayload(s.coord.QueueItems(), s.coord.QueueIndex()))
}

// Run consumes a coordinator subscription and feeds the debouncer until the
// context ends.
func (s *Server) Run(ctx context.Context) {
	sub := s.coord.Subscribe()
	defer s.coord.Unsubscribe(sub)

	log.Info().Msg("socket.io broadcaster started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("socket.io broadcaster stopped")
			return
		case <-sub.Done:
			return
		case <-sub.StateChanged:
			s.debouncer.TriggerState()
		case <-sub.TrackChanged:
			s.debouncer.TriggerState()
		case <-sub.PositionChanged:
			s.debouncer.TriggerState()
		case <-sub.QueueChanged:
			s.debouncer.TriggerQueue()
		}
	}
}

// ServeHTTP implements http.Handler for the socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}

// remoteIP extracts the host part of the client's handshake address.
func remoteIP(client *socket.Socket) string {
	hs := client.Handshake()
	if hs == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(hs.Address); err == nil {
		return host
	}
	return hs.Address
}

func parseRepeat(mode string) playback.RepeatMode {
	switch mode {
	case "all":
		return playback.RepeatAll
	case "one":
		return playback.RepeatOne
	default:
		return playback.RepeatOff
	}
}

// intField pulls an integer field out of a socket.io object payload.
func intField(args []any, key string) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	m, ok := args[0].(map[string]interface{})
	if !ok {
		return 0, false
	}
	v, ok := m[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// stringField pulls a string field out of a socket.io object payload.
func stringField(args []any, key string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	m, ok := args[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}
