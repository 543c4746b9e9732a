// Package journal records canvas activity to the sqlite journal.
//
// The Recorder is a hub.Observer. Observer callbacks run on the hub goroutine,
// so they only enqueue; a separate goroutine writes to the store. When the
// queue is full entries are dropped and counted rather than slowing the hub.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/model"
)

// DefaultBuffer is the recorder queue depth used when none is configured.
const DefaultBuffer = 256

// Store persists journal entries.
type Store interface {
	Append(ctx context.Context, entry *model.JournalEntry) error
}

// Recorder turns hub notifications into journal entries.
type Recorder struct {
	store   Store
	entries chan *model.JournalEntry
	dropped atomic.Uint64
	log     *log.Entry
}

// NewRecorder creates a Recorder writing to store. Call Run to start writing.
func NewRecorder(store Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Recorder{
		store:   store,
		entries: make(chan *model.JournalEntry, buffer),
		log:     log.WithField("component", "journal"),
	}
}

var _ hub.Observer = (*Recorder)(nil)

// StrokeCommitted implements hub.Observer.
func (r *Recorder) StrokeCommitted(from hub.ClientID, stroke model.Stroke) {
	r.enqueue(&model.JournalEntry{
		Kind:   model.JournalKindStroke,
		Client: from.String(),
		Points: len(stroke),
		Color:  stroke.Color().String(),
	})
}

// CanvasCleared implements hub.Observer.
func (r *Recorder) CanvasCleared(from hub.ClientID) {
	r.enqueue(&model.JournalEntry{
		Kind:   model.JournalKindClear,
		Client: from.String(),
	})
}

func (r *Recorder) enqueue(entry *model.JournalEntry) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()

	select {
	case r.entries <- entry:
	default:
		n := r.dropped.Add(1)
		r.log.WithField("dropped", n).Warn("journal queue full, entry dropped")
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// writeTimeout bounds one journal insert.
const writeTimeout = 2 * time.Second

// Run writes queued entries until ctx is cancelled, then flushes whatever is
// still queued. Writes never use ctx, so an entry taken from the queue is
// stored even if ctx is cancelled mid-write.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		default:
		}

		select {
		case entry := <-r.entries:
			r.write(entry)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case entry := <-r.entries:
			r.write(entry)
		default:
			return
		}
	}
}

func (r *Recorder) write(entry *model.JournalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.Append(ctx, entry); err != nil {
		r.log.WithError(err).WithField("kind", entry.Kind).Error("failed to write journal entry")
	}
}
