package playback

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reelback/reelback/internal/infra/engine"
	"github.com/reelback/reelback/internal/media"
)

// SourceResolver maps a queue item to its playable source: the local file
// when fully downloaded, the remote URL otherwise.
type SourceResolver interface {
	Resolve(item media.QueueItem) (media.Source, error)
}

// Queue owns the ordered list of playable items and is the sole writer of
// full-queue operations against the engine. Every other component receives
// immutable snapshots and issues at most single-item transport commands;
// competing queue writes were the root of the looping defects this design
// exists to prevent.
type Queue struct {
	writer   engine.QueueWriter
	resolver SourceResolver
	publish  func(QueueChange)

	mu     sync.Mutex
	items  []media.QueueItem
	index  int
	gen    uint64
	repeat RepeatMode
}

// NewQueue creates an empty queue bound to the engine's queue-write facet.
func NewQueue(writer engine.QueueWriter, resolver SourceResolver) *Queue {
	return &Queue{
		writer:   writer,
		resolver: resolver,
		index:    -1,
	}
}

// SetPublisher installs the queue-change publisher (the synchronizer).
func (q *Queue) SetPublisher(fn func(QueueChange)) {
	q.mu.Lock()
	q.publish = fn
	q.mu.Unlock()
}

// Load replaces the entire queue and starts playback at startIndex. An empty
// item list is idle state, not an error: the call is a silent no-op. Every
// item's source is re-resolved at load time so a download that completed
// since the items were built is picked up.
//
// The resolve pass, the engine write, and the generation bump happen under
// one lock: a skip issued right after Load can never address the previous
// queue.
func (q *Queue) Load(items []media.QueueItem, startIndex int) error {
	if len(items) == 0 {
		log.Debug().Msg("Load with empty queue, staying idle")
		return nil
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(items) {
		startIndex = len(items) - 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	resolved := make([]media.QueueItem, len(items))
	uris := make([]string, len(items))
	for i, item := range items {
		src, err := q.resolver.Resolve(item)
		if err != nil {
			return err
		}
		item.SourceURI = src.URI
		resolved[i] = item
		uris[i] = src.URI
	}

	if err := q.writer.ReplaceQueue(uris, startIndex); err != nil {
		return err
	}

	q.items = resolved
	q.index = startIndex
	q.gen++

	log.Info().
		Int("tracks", len(resolved)).
		Int("start", startIndex).
		Uint64("gen", q.gen).
		Str("recording", resolved[startIndex].RecordingID).
		Msg("Queue loaded")

	if q.publish != nil {
		q.publish(QueueChange{Items: q.snapshotLocked(), StartIndex: startIndex, Gen: q.gen})
	}
	return nil
}

// NextIndex returns the index the next-track operation should target, or -1
// when there is none. No wraparound unless RepeatAll is engaged; RepeatOne
// repeats the current item.
func (q *Queue) NextIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.index < 0 {
		return -1
	}
	switch q.repeat {
	case RepeatOne:
		return q.index
	case RepeatAll:
		return (q.index + 1) % len(q.items)
	default:
		if q.index+1 >= len(q.items) {
			return -1
		}
		return q.index + 1
	}
}

// PrevIndex returns the index the previous-track operation should target, or
// -1 when there is none.
func (q *Queue) PrevIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.index < 0 {
		return -1
	}
	switch q.repeat {
	case RepeatOne:
		return q.index
	case RepeatAll:
		return (q.index - 1 + len(q.items)) % len(q.items)
	default:
		if q.index == 0 {
			return -1
		}
		return q.index - 1
	}
}

// AdoptEngineIndex mirrors an engine-driven index change (auto-advance) into
// the queue without writing back to the engine. A write-back here would race
// the engine's own transition and re-trigger it.
func (q *Queue) AdoptEngineIndex(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index >= 0 && index < len(q.items) {
		q.index = index
	}
}

// Items returns a snapshot copy of the queue.
func (q *Queue) Items() []media.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() []media.QueueItem {
	out := make([]media.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// ItemAt returns the item at index.
func (q *Queue) ItemAt(index int) (media.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.items) {
		return media.QueueItem{}, false
	}
	return q.items[index], true
}

// Index returns the current queue index, -1 when idle.
func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

// Len returns the queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Gen returns the queue generation, bumped on every Load. Deferred skip
// commands are stamped with it so they die with the queue they addressed.
func (q *Queue) Gen() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen
}

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(mode RepeatMode) {
	q.mu.Lock()
	q.repeat = mode
	q.mu.Unlock()
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}
