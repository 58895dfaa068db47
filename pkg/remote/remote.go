// Package remote implements bridge.Host over a websocket connection to an
// out-of-process renderer.
//
// Commands are fire-and-forget binary frames. Queries block until the
// renderer answers or the query timeout expires. Events sent by the renderer
// are delivered on Events; Pump feeds them into a session from the goroutine
// that owns it.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/protocol"
	"github.com/vango-dev/vbridge/pkg/session"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// Defaults.
const (
	DefaultQueryTimeout   = 5 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultHelloTimeout   = 10 * time.Second
	DefaultMaxMessageSize = protocol.MaxPayloadSize + protocol.FrameHeaderSize
	eventBuffer           = 256
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithQueryTimeout bounds how long a query waits for the renderer.
func WithQueryTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.queryTimeout = d
	}
}

// WithWriteTimeout sets the write deadline of every frame.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.writeTimeout = d
	}
}

// WithHelloTimeout bounds the wait for the renderer's Hello.
func WithHelloTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.helloTimeout = d
	}
}

// Host is a bridge.Host backed by a renderer on the other end of a
// websocket.
type Host struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	queryTimeout time.Duration
	writeTimeout time.Duration
	helloTimeout time.Duration
	renderer     string

	writeMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan *protocol.QueryResult
	title   string

	events    chan vdom.Event
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ bridge.TitleHost = (*Host)(nil)

// Accept waits for the renderer's Hello on conn and starts reading. conn is
// closed when Accept fails.
func Accept(conn *websocket.Conn, opts ...Option) (*Host, error) {
	h := &Host{
		conn:         conn,
		logger:       slog.Default(),
		queryTimeout: DefaultQueryTimeout,
		writeTimeout: DefaultWriteTimeout,
		helloTimeout: DefaultHelloTimeout,
		pending:      make(map[uint64]chan *protocol.QueryResult),
		events:       make(chan vdom.Event, eventBuffer),
		closed:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "remote")

	conn.SetReadLimit(DefaultMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.helloTimeout))
	hello, err := h.readHello()
	if err != nil {
		conn.Close()
		return nil, errors.New("B602").WithDetail("handshake").Wrap(err)
	}
	if hello.Version != protocol.Version {
		h.sendError(protocol.NewFatalError(protocol.ErrVersion,
			fmt.Sprintf("protocol version %d, want %d", hello.Version, protocol.Version)))
		conn.Close()
		return nil, errors.New("B602").WithDetailf("renderer speaks protocol %d, want %d", hello.Version, protocol.Version)
	}
	conn.SetReadDeadline(time.Time{})
	h.renderer = hello.Renderer
	h.logger = h.logger.With("renderer", hello.Renderer)
	h.logger.Info("renderer connected")

	go h.readLoop()
	return h, nil
}

func (h *Host) readHello() (*protocol.Hello, error) {
	_, msg, err := h.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		return nil, err
	}
	if frame.Type != protocol.FrameHello {
		h.sendError(protocol.NewFatalError(protocol.ErrInvalidFrame, "expected hello"))
		return nil, fmt.Errorf("first frame is %s, want Hello", frame.Type)
	}
	return protocol.DecodeHello(frame.Payload)
}

// Renderer returns the name the renderer sent in its Hello.
func (h *Host) Renderer() string { return h.renderer }

// Events delivers renderer events. It is closed when the connection ends.
func (h *Host) Events() <-chan vdom.Event { return h.events }

// Done is closed once the connection has ended and the reader has stopped.
func (h *Host) Done() <-chan struct{} { return h.done }

// Close ends the connection and waits for the reader to stop.
func (h *Host) Close() error {
	h.shutdown()
	<-h.done
	return nil
}

func (h *Host) shutdown() {
	h.closeOnce.Do(func() {
		close(h.closed)
		h.writeMu.Lock()
		h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		h.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		h.writeMu.Unlock()
		h.conn.Close()
	})
}

func (h *Host) readLoop() {
	defer close(h.done)
	defer close(h.events)
	defer h.shutdown()

	for {
		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.closed:
			default:
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					h.logger.Error("read error", "err", err)
				}
			}
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			h.logger.Error("frame decode error", "err", err)
			h.sendError(protocol.NewError(protocol.ErrInvalidFrame, err.Error()))
			continue
		}

		switch frame.Type {
		case protocol.FrameQueryResult:
			h.handleQueryResult(frame.Payload)
		case protocol.FrameEvent:
			h.handleEvent(frame.Payload)
		case protocol.FrameError:
			if h.handleError(frame.Payload) {
				return
			}
		default:
			h.logger.Warn("unexpected frame type", "type", frame.Type.String())
		}
	}
}

func (h *Host) handleQueryResult(payload []byte) {
	r, err := protocol.DecodeQueryResult(payload)
	if err != nil {
		h.logger.Error("query result decode error", "err", err)
		return
	}
	h.mu.Lock()
	ch, ok := h.pending[r.Seq]
	delete(h.pending, r.Seq)
	h.mu.Unlock()
	if !ok {
		h.logger.Warn("query result without query", "seq", r.Seq)
		return
	}
	ch <- r
}

func (h *Host) handleEvent(payload []byte) {
	ev, err := protocol.DecodeEvent(payload)
	if err != nil {
		h.logger.Error("event decode error", "err", err)
		return
	}
	select {
	case h.events <- ev.VDOM():
	default:
		h.logger.Warn("event dropped, session is not keeping up", "key", ev.Key, "type", ev.Type)
	}
}

// handleError logs a renderer error and reports whether it was fatal.
func (h *Host) handleError(payload []byte) bool {
	em, err := protocol.DecodeErrorMessage(payload)
	if err != nil {
		h.logger.Error("error frame decode error", "err", err)
		return false
	}
	h.logger.Warn("renderer error", "code", em.Code.String(), "key", em.Key, "message", em.Message, "fatal", em.Fatal)
	return em.Fatal
}

func (h *Host) send(ft protocol.FrameType, payload []byte) error {
	select {
	case <-h.closed:
		return errors.New("B602").WithDetail("connection closed")
	default:
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := h.conn.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(ft, payload).Encode()); err != nil {
		return errors.New("B602").WithDetailf("write %s", ft).Wrap(err)
	}
	return nil
}

func (h *Host) sendError(em *protocol.ErrorMessage) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	h.conn.WriteMessage(websocket.BinaryMessage,
		protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)).Encode())
}

func (h *Host) sendCommand(cmd bridge.Command) error {
	payload, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return h.send(protocol.FrameCommand, payload)
}

func (h *Host) CreateElement(key string, cmd bridge.Command) error {
	cmd.Op, cmd.Key = bridge.OpCreate, key
	return h.sendCommand(cmd)
}

func (h *Host) UpdateElement(key string, cmd bridge.Command) error {
	cmd.Op, cmd.Key = bridge.OpUpdate, key
	return h.sendCommand(cmd)
}

func (h *Host) InsertElement(key string, at bridge.Placement) error {
	return h.sendCommand(bridge.Command{Op: bridge.OpInsert, Key: key, Parent: at.Parent, Before: at.Before})
}

// RemoveElement completes as soon as the command is written.
func (h *Host) RemoveElement(key string, done func()) error {
	if err := h.sendCommand(bridge.Command{Op: bridge.OpRemove, Key: key}); err != nil {
		return err
	}
	done()
	return nil
}

func (h *Host) DestroyElement(key string) error {
	return h.sendCommand(bridge.Command{Op: bridge.OpDestroy, Key: key})
}

func (h *Host) UpdateTextContent(key, text string) error {
	return h.sendCommand(bridge.Command{Op: bridge.OpText, Key: key, Text: text})
}

// QueryElementByExternalID asks the renderer and waits for its answer. The
// renderer registers a found element under bridge.ExternalKey(id).
func (h *Host) QueryElementByExternalID(id string) (string, bool, error) {
	ch := make(chan *protocol.QueryResult, 1)
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.pending[seq] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, seq)
		h.mu.Unlock()
	}()

	if err := h.send(protocol.FrameQuery, protocol.EncodeQuery(&protocol.Query{Seq: seq, ID: id})); err != nil {
		return "", false, err
	}

	timer := time.NewTimer(h.queryTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.Err != "" {
			return "", false, fmt.Errorf("renderer: %s", r.Err)
		}
		return r.Tag, r.Found, nil
	case <-timer.C:
		return "", false, errors.New("B602").WithDetailf("query %q timed out after %s", id, h.queryTimeout)
	case <-h.closed:
		return "", false, errors.New("B602").WithDetail("connection closed")
	}
}

// SetTitle sends the title to the renderer.
func (h *Host) SetTitle(title string) error {
	h.mu.Lock()
	h.title = title
	h.mu.Unlock()
	return h.send(protocol.FrameTitle, protocol.EncodeTitle(title))
}

// Title returns the last title sent.
func (h *Host) Title() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title, nil
}

// Pump dispatches renderer events into s until the connection ends or ctx
// is cancelled. It must run on the goroutine that owns s. Dispatch failures
// are logged and reported back to the renderer.
func Pump(ctx context.Context, s *session.Session, h *Host) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-h.events:
			if !ok {
				return nil
			}
			if err := s.DispatchEvent(ev.Key, ev); err != nil {
				h.logger.Warn("event dispatch failed", "key", ev.Key, "type", ev.Type, "err", err)
				code := protocol.ErrUnknownKey
				if stderrors.Is(err, session.ErrNoListener) {
					code = protocol.ErrNoListener
				}
				em := protocol.NewError(code, err.Error())
				em.Key = ev.Key
				h.sendError(em)
			}
		}
	}
}
