package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/model"
)

// --- helpers ----------------------------------------------------------------

// fakeConn blocks reads until fail is called and records every write.
type fakeConn struct {
	readErr chan error

	mu     sync.Mutex
	writes []int
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{readErr: make(chan error, 1)}
}

func (c *fakeConn) fail(err error) { c.readErr <- err }

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, <-c.readErr
}

func (c *fakeConn) WriteMessage(messageType int, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, messageType)
	return nil
}

func (c *fakeConn) textWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, kind := range c.writes {
		if kind == websocket.TextMessage {
			n++
		}
	}
	return n
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
}

// Close unblocks a pending read the way closing a socket does.
func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	select {
	case c.readErr <- net.ErrClosed:
	default:
	}
	return nil
}

// fakeHub records requests and hands out the registered outbound channel.
type fakeHub struct {
	registered chan hub.NewClient

	mu       sync.Mutex
	requests []hub.Message
}

func newFakeHub() *fakeHub {
	return &fakeHub{registered: make(chan hub.NewClient, 1)}
}

func (h *fakeHub) Submit(_ context.Context, msg hub.Message) error {
	h.mu.Lock()
	h.requests = append(h.requests, msg)
	h.mu.Unlock()
	if nc, ok := msg.(hub.NewClient); ok {
		h.registered <- nc
	}
	return nil
}

func (h *fakeHub) deletes() []hub.DeleteClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hub.DeleteClient
	for _, msg := range h.requests {
		if dc, ok := msg.(hub.DeleteClient); ok {
			out = append(out, dc)
		}
	}
	return out
}

func serve(t *testing.T, id hub.ClientID, conn *fakeConn, h *fakeHub) (hub.NewClient, <-chan error) {
	t.Helper()
	result := make(chan error, 1)
	go func() {
		result <- New(id, conn, h, Config{}).Serve(context.Background())
	}()

	select {
	case nc := <-h.registered:
		return nc, result
	case <-time.After(2 * time.Second):
		t.Fatal("session never registered with the hub")
	}
	return hub.NewClient{}, nil
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	return nil
}

// --- tests ------------------------------------------------------------------

func TestBridge_HubInternalMessagesNeverWritten(t *testing.T) {
	conn := newFakeConn()
	h := newFakeHub()
	id := hub.ClientID{Addr: "127.0.0.1:4000", Seq: 1}

	nc, result := serve(t, id, conn, h)

	nc.Out <- hub.DeleteClient{ID: id}
	nc.Out <- hub.NewClient{ID: id}
	nc.Out <- hub.Clear{}

	deadline := time.Now().Add(2 * time.Second)
	for conn.textWrites() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("clear notification was never written")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Give any stray write a chance to show up.
	time.Sleep(20 * time.Millisecond)
	if got := conn.textWrites(); got != 1 {
		t.Errorf("expected only the clear to reach the transport, got %d writes", got)
	}

	conn.fail(errors.New("done"))
	waitResult(t, result)
}

func TestBridge_AbruptDisconnectNotifiesHub(t *testing.T) {
	conn := newFakeConn()
	h := newFakeHub()
	id := hub.ClientID{Addr: "127.0.0.1:4000", Seq: 7}

	nc, result := serve(t, id, conn, h)

	conn.fail(errors.New("abrupt reset"))
	err := waitResult(t, result)

	if !errors.Is(err, model.ErrConnectionLost) {
		t.Errorf("expected ErrConnectionLost, got %v", err)
	}

	deletes := h.deletes()
	if len(deletes) != 1 || deletes[0].ID != id {
		t.Errorf("expected one DeleteClient for %v, got %+v", id, deletes)
	}

	select {
	case <-nc.Gone:
	default:
		t.Error("gone channel was not closed")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Error("connection was not closed")
	}
}

func TestBridge_DroppedByHubSkipsDelete(t *testing.T) {
	conn := newFakeConn()
	h := newFakeHub()
	id := hub.ClientID{Addr: "127.0.0.1:4000", Seq: 9}

	nc, result := serve(t, id, conn, h)

	// The hub closes Out when it prunes the client; the fake shares the channel.
	close(nc.Out)
	err := waitResult(t, result)

	if !errors.Is(err, model.ErrChannelFailure) {
		t.Errorf("expected ErrChannelFailure, got %v", err)
	}
	if deletes := h.deletes(); len(deletes) != 0 {
		t.Errorf("a dropped client must not send DeleteClient, got %+v", deletes)
	}
}
