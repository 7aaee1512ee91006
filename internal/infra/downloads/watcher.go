package downloads

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/media"
)

// partialSuffix marks a file still being written by the downloader.
const partialSuffix = ".part"

// Watcher keeps the download index in step with the downloads tree while the
// daemon runs: files arriving flip tracks to completed, files disappearing
// reset them, partial files count as in progress.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the store's downloads tree.
func NewWatcher(store *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{store: store, watcher: fw}, nil
}

// Start begins watching. The root and every existing recording directory are
// registered; directories created later are picked up from their create
// events. Runs until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	root := w.store.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	if err := w.watcher.Add(root); err != nil {
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.watcher.Add(filepath.Join(root, entry.Name())); err != nil {
				log.Warn().Err(err).Str("dir", entry.Name()).Msg("Watching recording directory failed")
			}
		}
	}

	go w.run(ctx)
	log.Info().Str("root", root).Msg("Downloads watcher started")
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Downloads watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("Watching new recording directory failed")
			}
			return
		}
	}

	name := event.Name
	partial := strings.HasSuffix(name, partialSuffix)
	if partial {
		name = strings.TrimSuffix(name, partialSuffix)
	}
	recordingID, filename, ok := w.split(name)
	if !ok {
		return
	}
	id := media.MakeID(recordingID, filename)

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if partial {
			return
		}
		if w.store.Status(id) == media.DownloadCompleted {
			log.Warn().Str("mediaId", string(id)).Msg("Downloaded file removed, resetting status")
			if err := w.store.MarkMissing(ctx, recordingID, filename); err != nil {
				log.Warn().Err(err).Str("mediaId", string(id)).Msg("Download status reset failed")
			}
		}
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		if partial {
			if err := w.store.MarkInProgress(ctx, recordingID, filename); err != nil {
				log.Warn().Err(err).Str("mediaId", string(id)).Msg("Download status update failed")
			}
			return
		}
		if w.store.Status(id) != media.DownloadCompleted {
			log.Info().Str("mediaId", string(id)).Msg("Downloaded file arrived")
			if err := w.store.MarkCompleted(ctx, recordingID, filename); err != nil {
				log.Warn().Err(err).Str("mediaId", string(id)).Msg("Download status update failed")
			}
		}
	}
}

// split maps an event path to its recording directory and filename. The
// on-disk layout is the authority on track identity here; anything not
// exactly one directory below the root is ignored.
func (w *Watcher) split(name string) (recordingID, filename string, ok bool) {
	rel, err := filepath.Rel(w.store.Root(), name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
