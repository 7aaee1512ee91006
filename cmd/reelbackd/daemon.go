package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/config"
	"github.com/reelback/reelback/internal/domain/artwork"
	"github.com/reelback/reelback/internal/domain/history"
	"github.com/reelback/reelback/internal/domain/lastplayed"
	"github.com/reelback/reelback/internal/domain/playback"
	"github.com/reelback/reelback/internal/domain/resolver"
	"github.com/reelback/reelback/internal/infra/appdb"
	"github.com/reelback/reelback/internal/infra/catalog"
	"github.com/reelback/reelback/internal/infra/downloads"
	"github.com/reelback/reelback/internal/infra/engine"
	"github.com/reelback/reelback/internal/infra/scrobble"
	"github.com/reelback/reelback/internal/transport/mpris"
	ssefeed "github.com/reelback/reelback/internal/transport/sse"
	"github.com/reelback/reelback/internal/transport/socketio"
	"github.com/reelback/reelback/internal/version"
)

const (
	connectRetryDelay = 5 * time.Second
	artworkCacheTTL   = 30 * 24 * time.Hour
)

func runDaemon() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	setupLogging(cfg.Debug)

	versionInfo := version.GetInfo()
	log.Info().Msgf("%s starting", versionInfo.String())
	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("engine_addr", cfg.Engine.Addr).
		Str("data_dir", cfg.Paths.DataDir).
		Str("downloads_dir", cfg.Paths.DownloadsDir).
		Bool("lastfm", cfg.Lastfm.Enabled()).
		Msg("Configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	db, err := appdb.Open(cfg.AppDBPath())
	if err != nil {
		return fmt.Errorf("opening app database: %w", err)
	}
	defer db.Close()

	cat := catalog.NewDB(cfg.CatalogDBPath())
	if err := cat.Open(); err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	// Downloads
	dlStore := downloads.NewStore(db, cfg.Paths.DownloadsDir)
	watcher, err := downloads.NewWatcher(dlStore)
	if err != nil {
		log.Warn().Err(err).Msg("Download watcher unavailable")
	} else {
		if err := watcher.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("Download watcher start failed")
		}
		defer watcher.Close()
	}

	// Playback core
	src := resolver.New(dlStore, cfg.Paths.DownloadsDir, cfg.Archive.DownloadBase)
	conn := engine.NewConn(
		func(ctx context.Context) (engine.Engine, error) {
			return engine.DialMPD(ctx, cfg.Engine.Addr, cfg.Engine.Password)
		},
		engine.WithPositionTick(time.Duration(cfg.Transport.PositionTickMs)*time.Millisecond),
	)
	coord := playback.NewCoordinator(conn, src, cat)

	// History and scrobbling
	var notifier history.Notifier
	if cfg.Lastfm.Enabled() {
		notifier = scrobble.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, cfg.Lastfm.SessionKey, cfg.Lastfm.Artist)
		log.Info().Msg("Last.fm scrobbling enabled")
	}
	tracker := history.NewTracker(db, notifier)
	go tracker.Run(ctx, coord.Subscribe())

	// Session persistence
	sampler := lastplayed.NewSampler(db, coord, time.Duration(cfg.Restore.SampleInterval)*time.Second)
	if err := sampler.Start(); err != nil {
		log.Warn().Err(err).Msg("Last-played sampler start failed")
	}
	defer sampler.Stop()

	restorer := lastplayed.NewRestorer(db, cat, coord, cfg.Restore.Autoplay)
	go connectAndRestore(ctx, coord, restorer, cfg.Restore.Enabled)

	// Artwork
	artRes := artwork.NewResolver(
		artwork.NewHTTPFetcher(cfg.Archive.ImageBase),
		artwork.NewLocalFinder(cfg.Paths.DownloadsDir),
		cfg.Paths.ArtworkCache,
	)
	thumbs := artwork.NewThumbnailGenerator(cfg.Paths.ArtworkCache)

	maintenance := gocron.NewScheduler(time.UTC)
	if _, err := maintenance.Every(24).Hours().Do(func() {
		artRes.PruneCache(artworkCacheTTL)
	}); err != nil {
		log.Warn().Err(err).Msg("Artwork maintenance job registration failed")
	}
	maintenance.StartAsync()
	defer maintenance.Stop()

	// Transports
	sock := socketio.NewServer(coord, cat, socketio.Options{
		MaxClients:     cfg.Transport.MaxClients,
		DebounceWindow: time.Duration(cfg.Transport.DebounceMs) * time.Millisecond,
	})
	defer sock.Close()
	go sock.Run(ctx)

	feed := ssefeed.New(coord)
	defer feed.Close()
	go feed.Run(ctx)

	mprisAdapter, err := mpris.New(coord)
	if err != nil {
		log.Warn().Err(err).Msg("MPRIS unavailable")
	} else {
		defer mprisAdapter.Close()
	}

	// HTTP surface
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", sock)
	mux.Handle("/events", feed)
	mux.HandleFunc("/healthz", handleHealth(coord))
	mux.HandleFunc("/api/v1/version", handleVersion)
	mux.HandleFunc("/api/v1/state", handleState(coord))
	mux.HandleFunc("/artwork", handleArtwork(artRes, thumbs))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: SSE and socket.io polling connections are
		// long-lived by design.
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}

	// The only place the engine link is ever torn down.
	coord.Shutdown()
	log.Info().Msg("Daemon stopped")
	return nil
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// connectAndRestore dials the engine until it comes up, then restores the
// last session once. A down engine at boot is not fatal; the daemon serves
// observers and keeps retrying.
func connectAndRestore(ctx context.Context, coord *playback.Coordinator, restorer *lastplayed.Restorer, restore bool) {
	for {
		if err := coord.Connect(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(connectRetryDelay):
		}
	}

	if !restore {
		return
	}
	if err := restorer.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Session restore failed")
	}
}

func handleHealth(coord *playback.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if coord.ConnState() != engine.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"degraded","engine":%q}`, coord.ConnState().String())
			return
		}
		w.Write([]byte(`{"status":"ok","engine":"connected"}`))
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.GetInfo())
}

// stateResponse is the REST fallback mirror of the socket.io pushState
// payload.
type stateResponse struct {
	Status      string `json:"status"`
	IsPlaying   bool   `json:"isPlaying"`
	Position    int    `json:"position"`
	MediaID     string `json:"mediaId,omitempty"`
	Title       string `json:"title,omitempty"`
	ShowID      string `json:"showId,omitempty"`
	ShowDate    string `json:"showDate,omitempty"`
	Venue       string `json:"venue,omitempty"`
	SeekMs      int64  `json:"seekMs"`
	DurationMs  int64  `json:"durationMs"`
	QueueLength int    `json:"queueLength"`
	Repeat      string `json:"repeat"`
}

func handleState(coord *playback.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := coord.Snapshot()
		resp := stateResponse{
			Status:      snap.State.String(),
			IsPlaying:   snap.IsPlaying,
			Position:    snap.CurrentIndex,
			SeekMs:      snap.PositionMs,
			DurationMs:  snap.DurationMs,
			QueueLength: snap.QueueLen,
			Repeat:      coord.Repeat().String(),
		}
		if !snap.CurrentMediaID.IsZero() {
			resp.MediaID = string(snap.CurrentMediaID)
		}
		if t := snap.Track; t != nil {
			resp.Title = t.Title
			resp.ShowID = t.ShowID
			resp.ShowDate = t.ShowDate
			resp.Venue = t.Venue
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleArtwork(artRes *artwork.Resolver, thumbs *artwork.ThumbnailGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID := r.URL.Query().Get("showId")
		if showID == "" {
			http.Error(w, "showId parameter required", http.StatusBadRequest)
			return
		}

		result, err := artRes.Resolve(r.Context(), showID, r.URL.Query().Get("recordingId"))
		if err != nil {
			log.Debug().Err(err).Str("showId", showID).Msg("Artwork resolve failed")
			http.Error(w, "artwork not found", http.StatusNotFound)
			return
		}

		path := result.FilePath
		mimeType := result.MimeType
		if size, ok := thumbnailSize(r.URL.Query().Get("size")); ok && result.Source != "placeholder" {
			if thumbPath, err := thumbs.GenerateThumbnail(result.FilePath, showID, size); err == nil {
				path = thumbPath
				mimeType = "image/jpeg"
			} else {
				log.Warn().Err(err).Str("showId", showID).Msg("Thumbnail generation failed")
			}
		}

		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeFile(w, r, path)
	}
}

func thumbnailSize(param string) (artwork.ThumbnailSize, bool) {
	switch param {
	case "small":
		return artwork.ThumbSmall, true
	case "medium":
		return artwork.ThumbMedium, true
	case "large":
		return artwork.ThumbLarge, true
	default:
		return 0, false
	}
}
