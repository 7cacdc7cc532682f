// Package session owns the websocket connection to the arena server: the
// join handshake, inbound dispatch and non-blocking outbound writes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"rey-arena/internal/metrics"
	"rey-arena/internal/protocol"
)

var (
	// ErrRejected is returned by Connect when the server answers the join
	// with an error message.
	ErrRejected = errors.New("session: join rejected")

	// ErrClosed is returned when sending on a session that is not joined.
	ErrClosed = errors.New("session: closed")

	// ErrOutboxFull is returned when a non-input message cannot be queued.
	ErrOutboxFull = errors.New("session: outbox full")
)

// closeGrace bounds how long Close waits for the server's close reply.
const closeGrace = time.Second

// Options tunes the connection.
type Options struct {
	URL         string
	Nickname    string
	JoinTimeout time.Duration
	WriteWait   time.Duration
	PongWait    time.Duration
	PingPeriod  time.Duration
	OutboxSize  int
}

// DefaultOptions returns production timings for url.
func DefaultOptions(url, nickname string) Options {
	return Options{
		URL:         url,
		Nickname:    nickname,
		JoinTimeout: 5 * time.Second,
		WriteWait:   10 * time.Second,
		PongWait:    60 * time.Second,
		PingPeriod:  54 * time.Second,
		OutboxSize:  32,
	}
}

func (o *Options) fill() {
	def := DefaultOptions(o.URL, o.Nickname)
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = def.JoinTimeout
	}
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = def.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = def.OutboxSize
	}
}

// Session is an explicitly owned connection handle. Callbacks must be set
// before Connect; they run on the reader goroutine.
type Session struct {
	opts   Options
	dialer *websocket.Dialer

	conn      *websocket.Conn
	sessionID string
	joined    atomic.Bool
	closing   atomic.Bool
	pending   []protocol.Envelope

	outbox  chan []byte
	inputMu sync.Mutex
	input   []byte
	inputCh chan struct{}

	closeCh    chan struct{}
	closeOnce  sync.Once
	readerDone chan struct{}
	done       chan struct{}
	cancel     context.CancelFunc

	startMu sync.Mutex
	started bool

	errMu   sync.Mutex
	lastErr error

	// Stats
	received     uint64 // atomic
	decodeErrors uint64 // atomic
	sent         uint64 // atomic
	dropped      uint64 // atomic

	// Callbacks
	onState      func(*protocol.Snapshot)
	onMessage    func(kind string, data json.RawMessage)
	onDisconnect func(error)
}

// New creates an unconnected session.
func New(opts Options) *Session {
	opts.fill()
	return &Session{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.JoinTimeout,
		},
		outbox:     make(chan []byte, opts.OutboxSize),
		inputCh:    make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// OnStateChange sets the snapshot callback
func (s *Session) OnStateChange(fn func(*protocol.Snapshot)) {
	s.onState = fn
}

// OnMessage sets the callback for event, playerAnimation and error messages
func (s *Session) OnMessage(fn func(kind string, data json.RawMessage)) {
	s.onMessage = fn
}

// OnDisconnect sets the callback for an unexpected connection loss. It is
// not called after Close.
func (s *Session) OnDisconnect(fn func(error)) {
	s.onDisconnect = fn
}

// Connect dials, sends join and waits for joined or error. A rejection is
// returned as ErrRejected and is never retried.
func (s *Session) Connect(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return fmt.Errorf("session: connect called twice")
	}
	if s.closing.Load() {
		return ErrClosed
	}
	s.started = true

	log.Printf("📡 Connecting to %s as %q", s.opts.URL, s.opts.Nickname)

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.JoinTimeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(dialCtx, s.opts.URL, nil)
	if err != nil {
		s.finishEarly()
		return fmt.Errorf("dial %s: %w", s.opts.URL, err)
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	id, err := s.handshake(conn)
	if err != nil {
		conn.Close()
		s.finishEarly()
		return err
	}

	s.conn = conn
	s.sessionID = id
	s.joined.Store(true)
	metrics.SetConnected(true)
	log.Printf("✅ Joined arena, session %s", id)

	s.start()
	return nil
}

func (s *Session) handshake(conn *websocket.Conn) (string, error) {
	join, err := protocol.Encode(protocol.KindJoin, protocol.Join{Nickname: s.opts.Nickname})
	if err != nil {
		return "", err
	}
	conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		return "", fmt.Errorf("send join: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.opts.JoinTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("waiting for joined: %w", err)
		}
		env, err := protocol.Decode(data)
		if err != nil {
			atomic.AddUint64(&s.decodeErrors, 1)
			metrics.RecordDecodeError()
			continue
		}

		switch env.Type {
		case protocol.KindJoined:
			j, err := protocol.DecodeJoined(env.Data)
			if err != nil {
				return "", err
			}
			conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
			return j.SessionID, nil
		case protocol.KindError:
			msg := "unknown reason"
			if e, err := protocol.DecodeError(env.Data); err == nil && e.Message != "" {
				msg = e.Message
			}
			return "", fmt.Errorf("%w: %s", ErrRejected, msg)
		default:
			// Server may start streaming before acknowledging.
			s.pending = append(s.pending, env)
		}
	}
}

// finishEarly marks a session that never joined as done.
func (s *Session) finishEarly() {
	s.closing.Store(true)
	close(s.done)
}

func (s *Session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(s.readerDone)
		return s.readLoop()
	})
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.pingLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.conn.Close()
		return nil
	})

	go func() {
		err := g.Wait()
		s.joined.Store(false)
		metrics.SetConnected(false)

		if !s.closing.Load() {
			if err == nil {
				err = errors.New("connection closed")
			}
			s.setErr(err)
			log.Printf("🔌 Disconnected: %v", err)
			if s.onDisconnect != nil {
				s.onDisconnect(err)
			}
		} else {
			log.Println("🔌 Session closed")
		}
		close(s.done)
	}()
}

func (s *Session) readLoop() error {
	conn := s.conn
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	for _, env := range s.pending {
		s.dispatch(env)
	}
	s.pending = nil

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		env, err := protocol.Decode(data)
		if err != nil {
			atomic.AddUint64(&s.decodeErrors, 1)
			if errors.Is(err, protocol.ErrUnknownKind) {
				metrics.RecordMessage("unknown")
			} else {
				metrics.RecordDecodeError()
			}
			continue
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env protocol.Envelope) {
	atomic.AddUint64(&s.received, 1)
	metrics.RecordMessage(env.Type)

	switch env.Type {
	case protocol.KindState:
		snap, err := protocol.DecodeSnapshot(env.Data)
		if err != nil {
			atomic.AddUint64(&s.decodeErrors, 1)
			metrics.RecordDecodeError()
			return
		}
		if s.onState != nil {
			s.onState(snap)
		}
	case protocol.KindEvent, protocol.KindPlayerAnimation, protocol.KindError:
		if s.onMessage != nil {
			s.onMessage(env.Type, env.Data)
		}
	}
}

// writeLoop owns every data write on the connection.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closeCh:
			s.flush()
			// Give the server a moment to answer the close frame.
			select {
			case <-s.readerDone:
			case <-time.After(closeGrace):
			}
			s.cancel()
			return nil
		case msg := <-s.outbox:
			if err := s.write(msg); err != nil {
				return err
			}
		case <-s.inputCh:
			s.inputMu.Lock()
			msg := s.input
			s.input = nil
			s.inputMu.Unlock()
			if msg == nil {
				continue
			}
			if err := s.write(msg); err != nil {
				return err
			}
		}
	}
}

// flush writes queued messages, a leave and a close frame, best effort.
func (s *Session) flush() {
	for drained := false; !drained; {
		select {
		case msg := <-s.outbox:
			if s.write(msg) != nil {
				return
			}
		default:
			drained = true
		}
	}
	if leave, err := protocol.Encode(protocol.KindLeave, nil); err == nil {
		s.write(leave)
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leave"),
		time.Now().Add(s.opts.WriteWait))
}

func (s *Session) write(msg []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	atomic.AddUint64(&s.sent, 1)
	return nil
}

func (s *Session) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closeCh:
			return nil
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait))
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// Send queues an outbound message without blocking. Input is latest-wins in
// a single slot: an unsent payload is replaced by the newer one.
func (s *Session) Send(kind string, payload interface{}) error {
	if !s.joined.Load() || s.closing.Load() {
		return ErrClosed
	}
	msg, err := protocol.Encode(kind, payload)
	if err != nil {
		return err
	}

	if kind == protocol.KindInput {
		s.inputMu.Lock()
		if s.input != nil {
			atomic.AddUint64(&s.dropped, 1)
			metrics.RecordInputDropped("superseded")
		}
		s.input = msg
		s.inputMu.Unlock()

		select {
		case s.inputCh <- struct{}{}:
		default:
		}
		return nil
	}

	select {
	case s.outbox <- msg:
		return nil
	default:
		atomic.AddUint64(&s.dropped, 1)
		return ErrOutboxFull
	}
}

// Close sends leave and a close frame, stops every goroutine and waits for
// them. Safe to call more than once and before Connect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.closeCh)
	})

	s.startMu.Lock()
	started := s.started
	s.startMu.Unlock()
	if !started {
		return
	}

	select {
	case <-s.done:
	case <-time.After(s.opts.WriteWait):
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
	}
}

// Done is closed once the session has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// SessionID returns the id assigned on join.
func (s *Session) SessionID() string {
	return s.sessionID
}

// IsConnected reports whether the session is joined and running.
func (s *Session) IsConnected() bool {
	return s.joined.Load()
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// GetStats returns session statistics
func (s *Session) GetStats() map[string]uint64 {
	return map[string]uint64{
		"received":     atomic.LoadUint64(&s.received),
		"decodeErrors": atomic.LoadUint64(&s.decodeErrors),
		"sent":         atomic.LoadUint64(&s.sent),
		"dropped":      atomic.LoadUint64(&s.dropped),
	}
}
