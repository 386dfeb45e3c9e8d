package delay

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bhandras/delaydeck/pkg/logger"
)

// ConnectionManager owns the session lifecycle: connect, close detection and
// disconnect. At most one session is open at a time.
type ConnectionManager struct {
	dial        Dialer
	callTimeout time.Duration

	mu        sync.Mutex
	status    Status
	lastErr   string
	session   *Session
	listeners []func(*Session)
}

// NewConnectionManager creates a manager. callTimeout bounds each remote
// call of the sessions it opens (DefaultCallTimeout when zero).
func NewConnectionManager(dial Dialer, callTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		dial:        dial,
		callTimeout: callTimeout,
		status:      StatusDisconnected,
	}
}

// OnClose registers fn to run whenever a session ends, whether by
// Disconnect, local shutdown or the remote going away.
func (m *ConnectionManager) OnClose(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status returns the current status and the last error message.
func (m *ConnectionManager) Status() (Status, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.lastErr
}

// Session returns the open session, or nil.
func (m *ConnectionManager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Connect opens a new session, replacing any open one. Failures are returned
// as *ConnectError and leave the manager in StatusError.
func (m *ConnectionManager) Connect(ctx context.Context, ep Endpoint) (*Session, error) {
	m.Disconnect()

	m.mu.Lock()
	m.status = StatusConnecting
	m.lastErr = ""
	m.mu.Unlock()

	logger.Infof("delay: connecting to %s:%d", ep.Host, ep.Port)
	remote, err := m.dial(ctx, ep)
	if err != nil {
		cerr := classifyConnectError(err)
		m.mu.Lock()
		m.status = StatusError
		m.lastErr = cerr.Error()
		m.mu.Unlock()
		logger.Warnf("delay: %v", cerr)
		return nil, cerr
	}

	s := newSession(remote, m.callTimeout)
	m.mu.Lock()
	m.session = s
	m.status = StatusConnected
	m.mu.Unlock()

	go m.watch(s, remote)

	logger.Infof("delay: connected")
	return s, nil
}

// watch runs the close handler when the remote side goes away.
func (m *ConnectionManager) watch(s *Session, remote Remote) {
	<-remote.Done()
	if err := remote.Err(); err != nil {
		logger.Warnf("delay: connection closed: %v", err)
	}
	m.handleClose(s)
}

// handleClose is the close handler. It forces the status to Disconnected
// and notifies listeners; it runs at most once per session.
func (m *ConnectionManager) handleClose(s *Session) {
	if !s.markClosed() {
		return
	}
	m.mu.Lock()
	if m.session == s {
		m.session = nil
		m.status = StatusDisconnected
	}
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// Fail puts s in the Error status after a failed setup step. The channel
// stays open until Disconnect or the next Connect, but s issues no more
// calls.
func (m *ConnectionManager) Fail(s *Session, err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == s {
		m.status = StatusError
		m.lastErr = err.Error()
	}
}

// Disconnect closes the open session, if any, without waiting for in-flight
// calls. The status is Disconnected afterwards. Safe to call repeatedly.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.status = StatusDisconnected
	m.mu.Unlock()

	if s == nil {
		return
	}
	if err := s.remote.Close(); err != nil {
		logger.Debugf("delay: close: %v", err)
	}
	m.handleClose(s)
}
