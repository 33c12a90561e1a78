package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rickgao/ssefeed/internal/broadcast"
	"github.com/rickgao/ssefeed/internal/frame"
)

// session is one attempt to hold the stream open. A session is live while it
// is the Manager's current session; a replaced session exits silently.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser // set once the stream is open, guarded by Manager.mu
	done   chan struct{}
}

// Manager owns the stream for one URL and fans its state out to subscribers.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	subs   *broadcast.Registry[*State]

	clientID string
	initial  *State

	mu    sync.Mutex
	state *State
	sess  *session
}

// NewManager creates a Manager. Nothing is opened until Connect or Subscribe.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Transport == nil {
		cfg.Transport = NewAutoTransport(nil, nil)
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultManagerConfig().ReadBufferSize
	}

	m := &Manager{
		cfg:      cfg,
		subs:     broadcast.New[*State](),
		clientID: uuid.NewString(),
	}
	m.logger = logger.With("url", cfg.URL, "client_id", m.clientID)
	m.initial = &State{
		ClientID:  m.clientID,
		Phase:     PhaseDisconnected,
		Reconnect: m.Reconnect,
	}
	m.state = m.initial
	return m
}

// URL returns the stream URL the Manager is bound to.
func (m *Manager) URL() string {
	return m.cfg.URL
}

// ClientID returns the Manager's client identifier.
func (m *Manager) ClientID() string {
	return m.clientID
}

// State returns the current snapshot.
func (m *Manager) State() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initial returns the Manager's sentinel "not yet connected" state.
func (m *Manager) Initial() *State {
	return m.initial
}

// IsInitial reports whether s is this Manager's sentinel state, meaning no
// stream activity has happened yet.
func (m *Manager) IsInitial(s *State) bool {
	return s == m.initial
}

// Streaming reports whether a stream is open or being opened.
func (m *Manager) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess != nil
}

// Subscribers returns the number of registered subscribers.
func (m *Manager) Subscribers() int {
	return m.subs.Len()
}

// Subscribe registers fn, connects if no stream is open, and returns an
// unsubscribe function together with the state current at registration.
//
// fn receives every later state in order. It may call unsubscribe, Reconnect
// or Subscribe. Unsubscribing the last subscriber disconnects the stream.
func (m *Manager) Subscribe(fn func(*State)) (unsubscribe func(), current *State) {
	m.mu.Lock()
	current = m.state
	id := m.subs.Add(fn)
	m.mu.Unlock()

	m.logger.Debug("subscriber added", "subscribers", m.subs.Len())
	m.Connect()

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			remaining, removed := m.subs.Remove(id)
			if !removed {
				return
			}
			m.logger.Debug("subscriber removed", "subscribers", remaining)
			if remaining == 0 {
				m.Disconnect()
			}
		})
	}
	return unsubscribe, current
}

// Connect opens the stream and starts reading it. It is a no-op when the URL
// is empty or a single character, or a stream is already open.
func (m *Manager) Connect() {
	if utf8.RuneCountInString(m.cfg.URL) <= 1 {
		m.logger.Debug("connect skipped, url too short")
		return
	}

	m.mu.Lock()
	if m.sess != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	m.sess = s
	m.transition(func(next *State) {
		next.Phase = PhaseConnecting
		next.Err = ""
	})
	m.mu.Unlock()

	m.logger.Info("stream connecting")
	m.subs.Deliver()

	go m.run(s)
}

// Disconnect cancels the open stream, if any, and publishes a disconnected
// state. A pending read is aborted.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	s := m.detach()
	if s == nil {
		m.mu.Unlock()
		return
	}
	m.transition(func(next *State) {
		next.Phase = PhaseDisconnected
	})
	m.mu.Unlock()

	closeBody(s)
	m.logger.Info("stream disconnected")
	m.subs.Deliver()
}

// Reconnect disconnects and connects again. It always publishes a
// disconnected state first, even when no stream was open.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	s := m.detach()
	m.transition(func(next *State) {
		next.Phase = PhaseDisconnected
	})
	m.mu.Unlock()

	closeBody(s)
	m.logger.Info("stream reconnecting")
	m.subs.Deliver()
	m.Connect()
}

// Close disconnects and drops every subscriber.
func (m *Manager) Close() {
	m.Disconnect()
	m.subs.Clear()
}

// Wait blocks until the current session's read loop has exited or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	s := m.sess
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detach cancels and forgets the current session. Must be called with mu
// held; the caller closes the body with closeBody after releasing mu.
func (m *Manager) detach() *session {
	s := m.sess
	if s == nil {
		return nil
	}
	m.sess = nil
	s.cancel()
	return s
}

// closeBody closes a detached session's body, unblocking a pending read.
// A detached session's body is never assigned again.
func closeBody(s *session) {
	if s != nil && s.body != nil {
		s.body.Close()
	}
}

// transition derives a new state from the current one, stores it and queues
// it for delivery. Must be called with mu held; callers deliver after
// releasing mu.
func (m *Manager) transition(apply func(next *State)) *State {
	next := *m.state
	apply(&next)
	m.state = &next
	m.subs.Post(m.state)
	return m.state
}

// run opens the stream and reads it until it ends or the session is replaced.
func (m *Manager) run(s *session) {
	defer close(s.done)
	defer s.cancel()

	stream, err := m.open(s)
	if err != nil {
		m.finish(s, err)
		return
	}

	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		stream.Body.Close()
		return
	}
	s.body = stream.Body
	m.mu.Unlock()
	defer stream.Body.Close()

	m.logger.Info("stream opened", "charset", stream.Charset)
	m.finish(s, m.readLoop(s, stream))
}

// open calls the transport, bounded by OpenTimeout. A timer that fires after
// the transport has returned does not count.
func (m *Manager) open(s *session) (*Stream, error) {
	var timer *time.Timer
	if m.cfg.OpenTimeout > 0 {
		timer = time.AfterFunc(m.cfg.OpenTimeout, s.cancel)
	}

	stream, err := m.cfg.Transport.Open(s.ctx, m.cfg.URL)
	if timer != nil && !timer.Stop() {
		if stream != nil && stream.Body != nil {
			stream.Body.Close()
		}
		return nil, fmt.Errorf("%w: timed out after %s", ErrTransportOpen, m.cfg.OpenTimeout)
	}
	if err != nil {
		if !errors.Is(err, ErrTransportOpen) && !errors.Is(err, ErrStreamUnsupported) {
			err = fmt.Errorf("%w: %v", ErrTransportOpen, err)
		}
		return nil, err
	}
	if stream == nil || stream.Body == nil {
		return nil, fmt.Errorf("%w: transport returned no body", ErrStreamUnsupported)
	}
	return stream, nil
}

// readLoop reads chunks until end of stream or error. It returns nil on a
// clean end of stream.
func (m *Manager) readLoop(s *session, stream *Stream) error {
	charset := m.cfg.Charset
	if charset == "" {
		charset = stream.Charset
	}
	text, err := frame.NewTextReader(stream.Body, charset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	dec := frame.NewDecoder(m.cfg.ReassembleFrames)
	dec.SetMaxPending(m.cfg.MaxPendingFrame)
	buf := make([]byte, m.cfg.ReadBufferSize)

	for {
		n, rerr := text.Read(buf)
		if n > 0 {
			msgs, err := dec.Feed(string(buf[:n]))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrDecode, err)
			}
			if !m.deliver(s, msgs) {
				return nil
			}
		}

		if rerr == io.EOF {
			msgs, err := dec.Flush()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrDecode, err)
			}
			m.deliver(s, msgs)
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("%w: %v", ErrStreamRead, rerr)
		}
	}
}

// deliver publishes one state per message. It reports false once the
// session is no longer live.
func (m *Manager) deliver(s *session, msgs []json.RawMessage) bool {
	for _, msg := range msgs {
		m.mu.Lock()
		if m.sess != s {
			m.mu.Unlock()
			return false
		}
		st := m.transition(func(next *State) {
			next.Phase = PhaseConnected
			next.LastMessage = msg
			next.Err = ""
			next.Seq++
		})
		m.mu.Unlock()

		m.logger.Debug("message decoded", "seq", st.Seq, "bytes", len(msg))
		m.subs.Deliver()
	}
	return true
}

// finish ends a live session. err == nil means the server closed the stream.
// LastMessage is kept; Err is only replaced when err is set.
func (m *Manager) finish(s *session, err error) {
	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.transition(func(next *State) {
		next.Phase = PhaseDisconnected
		if err != nil {
			next.Err = err.Error()
		}
	})
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("stream failed", "error", err)
	} else {
		m.logger.Info("stream ended")
	}
	m.subs.Deliver()
}
