package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shared-sketch/backend/internal/model"
)

const (
	// DefaultQueueSize is the number of pending requests the hub buffers
	// before submitters block.
	DefaultQueueSize = 32

	// DefaultSendTimeout bounds how long one client may hold up a fan-out.
	DefaultSendTimeout = 5 * time.Second
)

var (
	errClientGone  = errors.New("client gone")
	errSendTimeout = errors.New("send timed out")
)

// Config holds configuration for the hub.
type Config struct {
	QueueSize   int
	SendTimeout time.Duration
	Observer    Observer
}

// client is one registry entry.
type client struct {
	out  chan<- Message
	gone <-chan struct{}
}

// Hub serializes every mutation of the shared canvas. All fields below the
// queue are owned by the goroutine running Run.
type Hub struct {
	requests    chan Message
	done        chan struct{}
	stopOnce    sync.Once
	seq         atomic.Uint64
	sendTimeout time.Duration
	observer    Observer
	log         *log.Entry

	history []model.Stroke
	clients map[ClientID]*client
	stats   Stats
}

// New creates a Hub. Call Run to start processing requests.
func New(config Config) *Hub {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}

	return &Hub{
		requests:    make(chan Message, config.QueueSize),
		done:        make(chan struct{}),
		sendTimeout: config.SendTimeout,
		observer:    config.Observer,
		log:         log.WithField("component", "hub"),
		clients:     make(map[ClientID]*client),
	}
}

// NewClientID returns a fresh identity for a connection from addr.
func (h *Hub) NewClientID(addr string) ClientID {
	return ClientID{Addr: addr, Seq: h.seq.Add(1)}
}

// Submit queues a request, blocking while the queue is full. It fails with
// model.ErrChannelFailure once the hub has stopped.
func (h *Hub) Submit(ctx context.Context, msg Message) error {
	select {
	case <-h.done:
		return fmt.Errorf("%w: hub stopped", model.ErrChannelFailure)
	default:
	}

	select {
	case h.requests <- msg:
		return nil
	case <-h.done:
		return fmt.Errorf("%w: hub stopped", model.ErrChannelFailure)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current stroke history.
func (h *Hub) Snapshot(ctx context.Context) ([]model.Stroke, error) {
	reply := make(chan []model.Stroke, 1)
	if err := h.Submit(ctx, snapshotRequest{reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h.done, reply)
}

// Stats returns the hub's counters.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.Submit(ctx, statsRequest{reply: reply}); err != nil {
		return Stats{}, err
	}
	return await(ctx, h.done, reply)
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		return zero, fmt.Errorf("%w: hub stopped", model.ErrChannelFailure)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run processes requests until ctx is cancelled. On return every registered
// client's channel is closed.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub started")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.requests:
			h.handle(ctx, msg)
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
		for id := range h.clients {
			h.remove(id)
		}
		h.log.Info("hub stopped")
	})
}

func (h *Hub) handle(ctx context.Context, msg Message) {
	h.stats.Requests++

	switch m := msg.(type) {
	case NewClient:
		h.addClient(ctx, m)

	case NewLine:
		if !m.Stroke.Committable() {
			h.log.WithField("client", m.From).Warnf("rejected stroke with %d point(s)", len(m.Stroke))
			return
		}
		h.history = append(h.history, m.Stroke)
		h.broadcast(ctx, m)
		if h.observer != nil {
			h.observer.StrokeCommitted(m.From, m.Stroke)
		}

	case Clear:
		h.history = nil
		h.stats.Clears++
		h.broadcast(ctx, m)
		if h.observer != nil {
			h.observer.CanvasCleared(m.From)
		}
		h.log.WithField("client", m.From).Info("canvas cleared")

	case DeleteClient:
		if _, ok := h.clients[m.ID]; ok {
			h.remove(m.ID)
			h.log.WithField("client", m.ID).Info("client removed")
		}

	case snapshotRequest:
		m.reply <- slices.Clone(h.history)

	case statsRequest:
		s := h.stats
		s.Clients = len(h.clients)
		s.Strokes = len(h.history)
		for _, stroke := range h.history {
			s.Points += len(stroke)
		}
		m.reply <- s

	default:
		h.log.Warnf("unexpected request %T", msg)
	}
}

// addClient replays the history and registers the client only if every
// replayed stroke was delivered.
func (h *Hub) addClient(ctx context.Context, m NewClient) {
	entry := log.WithField("client", m.ID)

	if _, exists := h.clients[m.ID]; exists {
		entry.Warn("client already registered, refusing duplicate")
		close(m.Out)
		return
	}

	c := &client{out: m.Out, gone: m.Gone}
	for _, stroke := range h.history {
		if err := h.deliver(ctx, c, NewLine{Stroke: stroke}); err != nil {
			entry.WithError(err).Warn("history replay failed, client not registered")
			close(m.Out)
			return
		}
		h.stats.Delivered++
	}

	h.clients[m.ID] = c
	entry.WithField("replayed", len(h.history)).Info("client registered")
}

// broadcast sends msg to every registered client. Clients with room in their
// channel are served immediately; the rest are served concurrently, each
// bounded by the send timeout. Clients that fail are removed after the sweep.
func (h *Hub) broadcast(ctx context.Context, msg Message) {
	var failed []ClientID
	pending := make(map[ClientID]*client)

	for id, c := range h.clients {
		select {
		case c.out <- msg:
			h.stats.Delivered++
		case <-c.gone:
			failed = append(failed, id)
		default:
			pending[id] = c
		}
	}

	if len(pending) > 0 {
		type result struct {
			id  ClientID
			err error
		}
		results := make(chan result, len(pending))

		var wg sync.WaitGroup
		for id, c := range pending {
			wg.Add(1)
			go func(id ClientID, c *client) {
				defer wg.Done()
				results <- result{id: id, err: h.deliver(ctx, c, msg)}
			}(id, c)
		}
		wg.Wait()
		close(results)

		for r := range results {
			if r.err != nil {
				h.log.WithField("client", r.id).WithError(r.err).Warn("client dropped during broadcast")
				failed = append(failed, r.id)
				continue
			}
			h.stats.Delivered++
		}
	}

	for _, id := range failed {
		h.remove(id)
		h.stats.Pruned++
	}
}

// deliver blocks until msg is queued for c, c goes away, the send timeout
// elapses or the hub is stopping.
func (h *Hub) deliver(ctx context.Context, c *client, msg Message) error {
	timer := time.NewTimer(h.sendTimeout)
	defer timer.Stop()

	select {
	case c.out <- msg:
		return nil
	case <-c.gone:
		return errClientGone
	case <-timer.C:
		return errSendTimeout
	case <-ctx.Done():
		return fmt.Errorf("%w: hub stopping", model.ErrChannelFailure)
	}
}

func (h *Hub) remove(id ClientID) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(c.out)
}
