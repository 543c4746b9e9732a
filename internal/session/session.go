// Package session bridges one client connection and the broadcast hub.
//
// A Bridge owns the connection's in-progress stroke. It decodes client
// messages, simplifies and submits committed strokes, and writes the hub's
// notifications back to the connection. Transport reads and hub notifications
// are serviced from a single select loop with no priority between them, so
// every write to the connection happens on one goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/model"
	"github.com/shared-sketch/backend/internal/protocol"
	"github.com/shared-sketch/backend/internal/simplify"
)

const (
	// Time allowed to write a message to the peer.
	DefaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	DefaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	DefaultMaxMessageSize = 8192

	// Depth of the per-client notification channel.
	DefaultOutboxSize = 32
)

// Config holds per-connection settings.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	OutboxSize     int
}

func (c Config) withDefaults() Config {
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = DefaultOutboxSize
	}
	return c
}

// pingPeriod must be less than pongWait.
func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Conn is the part of *websocket.Conn a Bridge uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Hub is the part of *hub.Hub a Bridge uses.
type Hub interface {
	Submit(ctx context.Context, msg hub.Message) error
}

// Bridge is the server side of one drawing client.
type Bridge struct {
	id     hub.ClientID
	conn   Conn
	hub    Hub
	config Config
	log    *log.Entry

	// stroke is the in-progress stroke. Only the Serve goroutine touches it.
	stroke model.Stroke
}

// New creates a Bridge for conn identified by id.
func New(id hub.ClientID, conn Conn, h Hub, config Config) *Bridge {
	return &Bridge{
		id:     id,
		conn:   conn,
		hub:    h,
		config: config.withDefaults(),
		log:    log.WithField("client", id.String()),
	}
}

// frame is one result of reading the connection.
type frame struct {
	kind int
	data []byte
	err  error
}

// Serve registers the client with the hub and runs the session until the
// connection closes, the hub drops the client or ctx is cancelled. The
// connection is closed on return. The returned error says why the session
// ended: model.ErrConnectionLost, model.ErrChannelFailure or ctx's error.
func (b *Bridge) Serve(ctx context.Context) error {
	defer b.conn.Close()

	out := make(chan hub.Message, b.config.OutboxSize)
	gone := make(chan struct{})

	if err := b.hub.Submit(ctx, hub.NewClient{ID: b.id, Out: out, Gone: gone}); err != nil {
		close(gone)
		return fmt.Errorf("register with hub: %w", err)
	}
	b.log.Info("session started")

	frames := make(chan frame)
	go b.readPump(frames, gone)

	ticker := time.NewTicker(b.config.pingPeriod())
	defer ticker.Stop()

	err := b.loop(ctx, frames, out, ticker.C)

	// Close gone first: the hub may be blocked sending to us.
	close(gone)
	if !errors.Is(err, errDropped) {
		if serr := b.hub.Submit(ctx, hub.DeleteClient{ID: b.id}); serr != nil {
			b.log.WithError(serr).Debug("could not notify hub of disconnect")
		}
	}

	b.log.WithError(err).Info("session ended")
	return err
}

var errDropped = fmt.Errorf("%w: dropped by hub", model.ErrChannelFailure)

func (b *Bridge) loop(ctx context.Context, frames <-chan frame, out <-chan hub.Message, ping <-chan time.Time) error {
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return fmt.Errorf("%w: transport exhausted", model.ErrConnectionLost)
			}
			if f.err != nil {
				return b.readError(f.err)
			}
			if err := b.handleFrame(ctx, f); err != nil {
				return err
			}

		case msg, ok := <-out:
			if !ok {
				b.writeClose(websocket.CloseGoingAway)
				return errDropped
			}
			if err := b.handleNotification(msg); err != nil {
				return err
			}

		case <-ping:
			b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("%w: ping: %v", model.ErrConnectionLost, err)
			}

		case <-ctx.Done():
			b.writeClose(websocket.CloseGoingAway)
			return ctx.Err()
		}
	}
}

// readPump reads frames until the connection fails. It closes frames after
// delivering the error, or as soon as gone is closed.
func (b *Bridge) readPump(frames chan<- frame, gone <-chan struct{}) {
	defer close(frames)

	b.conn.SetReadLimit(b.config.MaxMessageSize)
	b.conn.SetReadDeadline(time.Now().Add(b.config.PongWait))
	b.conn.SetPongHandler(func(string) error {
		b.conn.SetReadDeadline(time.Now().Add(b.config.PongWait))
		return nil
	})

	for {
		kind, data, err := b.conn.ReadMessage()
		select {
		case frames <- frame{kind: kind, data: data, err: err}:
		case <-gone:
			return
		}
		if err != nil {
			return
		}
	}
}

func (b *Bridge) readError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
			b.log.WithError(err).Warn("connection closed unexpectedly")
		}
		return fmt.Errorf("%w: closed by peer (%d)", model.ErrConnectionLost, closeErr.Code)
	}
	return fmt.Errorf("%w: %v", model.ErrConnectionLost, err)
}

func (b *Bridge) handleFrame(ctx context.Context, f frame) error {
	if f.kind != websocket.TextMessage {
		b.log.Warnf("can't handle frame type %d", f.kind)
		return nil
	}

	msg, err := protocol.Decode(f.data)
	if err != nil {
		b.log.WithError(err).Warn("dropped client message")
		return nil
	}
	b.log.Debugf("received %+v", msg)

	req, err := b.apply(msg)
	if err != nil {
		b.log.WithError(err).Warn("message error")
		return nil
	}
	if req == nil {
		return nil
	}

	if err := b.hub.Submit(ctx, req); err != nil {
		return fmt.Errorf("submit %T: %w", req, err)
	}
	return nil
}

// apply updates the in-progress stroke for one client message and returns the
// hub request it produces, if any.
func (b *Bridge) apply(msg protocol.ClientMessage) (hub.Message, error) {
	switch msg.T {
	case protocol.TagClear:
		b.stroke = nil
		return hub.Clear{From: b.id}, nil

	case protocol.TagMoveTo:
		color, err := model.ParseColor(msg.Color)
		if err != nil {
			return nil, err
		}
		b.stroke = model.Stroke{{X: msg.X, Y: msg.Y, Color: color}}
		return nil, nil

	case protocol.TagLineTo:
		color, err := model.ParseColor(msg.Color)
		if err != nil {
			return nil, err
		}
		b.stroke = append(b.stroke, model.Point{X: msg.X, Y: msg.Y, Color: color})
		return nil, nil

	case protocol.TagStroke:
		pending := b.stroke
		b.stroke = nil
		if !pending.Committable() {
			return nil, fmt.Errorf("%w: cannot commit a stroke of %d point(s)", model.ErrProtocolViolation, len(pending))
		}
		return hub.NewLine{Stroke: simplify.Stroke(pending), From: b.id}, nil

	case protocol.TagLine:
		return nil, fmt.Errorf("%w: line is a server message", model.ErrProtocolViolation)

	default:
		return nil, fmt.Errorf("%w: unhandled tag %q", model.ErrMalformedMessage, msg.T)
	}
}

func (b *Bridge) handleNotification(msg hub.Message) error {
	var (
		data []byte
		err  error
	)

	switch m := msg.(type) {
	case hub.NewLine:
		data, err = protocol.EncodeLine(m.Stroke)
	case hub.Clear:
		data, err = protocol.EncodeClear()
	default:
		b.log.Errorf("should not get %T from the hub", msg)
		return nil
	}
	if err != nil {
		b.log.WithError(err).Error("failed to encode notification")
		return nil
	}

	b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteWait))
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %v", model.ErrConnectionLost, err)
	}
	return nil
}

func (b *Bridge) writeClose(code int) {
	b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteWait))
	b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
}
