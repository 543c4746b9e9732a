package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shared-sketch/backend/internal/db"
	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/model"
	"github.com/shared-sketch/backend/internal/repository"
)

func TestRecorder_RecordsHubActivity(t *testing.T) {
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	defer testDB.Close()

	repo := repository.NewJournalRepository(testDB)
	rec := NewRecorder(repo, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.New(hub.Config{Observer: rec})
	go h.Run(ctx)
	recDone := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(recDone)
	}()

	from := h.NewClientID("10.0.0.7:5000")
	stroke := model.Stroke{{X: 0, Y: 0, Color: 0xff004d}, {X: 5, Y: 5, Color: 0xff004d}, {X: 9, Y: 0, Color: 0xff004d}}
	if err := h.Submit(ctx, hub.NewLine{Stroke: stroke, From: from}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.Submit(ctx, hub.Clear{From: from}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := h.Stats(ctx); err != nil {
		t.Fatalf("stats: %v", err)
	}

	cancel()
	<-recDone

	entries, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	cleared, line := entries[0], entries[1]
	if cleared.Kind != model.JournalKindClear || cleared.Client != from.String() {
		t.Errorf("unexpected clear entry %+v", cleared)
	}
	if line.Kind != model.JournalKindStroke || line.Points != 3 || line.Color != "#ff004d" {
		t.Errorf("unexpected stroke entry %+v", line)
	}
	if line.ID == "" || line.ID == cleared.ID {
		t.Errorf("entries need distinct ids, got %q and %q", line.ID, cleared.ID)
	}
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, _ *model.JournalEntry) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	rec := NewRecorder(store, 2)

	// Not running, so nothing drains the queue.
	for i := 0; i < 5; i++ {
		rec.CanvasCleared(hub.ClientID{Addr: "x", Seq: uint64(i)})
	}

	if got := rec.Dropped(); got != 3 {
		t.Errorf("expected 3 dropped entries, got %d", got)
	}

	close(store.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rec.Run(ctx)
}

// memoryStore refuses writes made with a dead context, like the sqlite driver.
type memoryStore struct {
	mu      sync.Mutex
	entries []*model.JournalEntry
}

func (s *memoryStore) Append(ctx context.Context, entry *model.JournalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestRecorder_FlushesAfterCancel(t *testing.T) {
	store := &memoryStore{}
	rec := NewRecorder(store, 8)

	stroke := model.Stroke{{X: 0, Y: 0, Color: 0xffa300}, {X: 1, Y: 1, Color: 0xffa300}}
	for i := 0; i < 3; i++ {
		rec.StrokeCommitted(hub.ClientID{Addr: "a", Seq: 1}, stroke)
	}
	rec.CanvasCleared(hub.ClientID{Addr: "a", Seq: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if got := store.len(); got != 4 {
		t.Errorf("expected all 4 queued entries written after cancel, got %d", got)
	}
}

func TestRecorder_NoLossWhenCancelledMidRun(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := &memoryStore{}
		rec := NewRecorder(store, 8)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			rec.Run(ctx)
			close(done)
		}()

		rec.StrokeCommitted(hub.ClientID{Addr: "b", Seq: 2}, model.Stroke{{X: 0}, {X: 9}})
		rec.CanvasCleared(hub.ClientID{Addr: "b", Seq: 2})
		cancel()
		<-done

		if got := store.len(); got != 2 {
			t.Fatalf("iteration %d: expected 2 entries, got %d", i, got)
		}
	}
}
