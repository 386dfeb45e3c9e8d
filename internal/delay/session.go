package delay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bhandras/delaydeck/internal/obsws"
	"github.com/bhandras/delaydeck/pkg/logger"
)

// DefaultCallTimeout bounds every remote call issued through a Session.
const DefaultCallTimeout = 10 * time.Second

// Status is the connection status shown to the operator.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Session is one open RPC channel to the switcher. It is created by
// ConnectionManager.Connect and is dead once Connected reports false.
type Session struct {
	remote      Remote
	callTimeout time.Duration

	mu           sync.Mutex
	connected    bool
	programScene string
	onClose      []func()
	closeOnce    sync.Once
}

func newSession(remote Remote, callTimeout time.Duration) *Session {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	s := &Session{
		remote:      remote,
		callTimeout: callTimeout,
		connected:   true,
	}
	remote.SetEventHandler(s.handleEvent)
	return s
}

// Connected reports whether the session can still issue calls.
func (s *Session) Connected() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ProgramScene is the last program scene reported by the switcher.
func (s *Session) ProgramScene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.programScene
}

// OnClose registers fn to run once when the session ends. If the session has
// already ended, fn runs immediately.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

// markClosed flips the session to disconnected and runs the close hooks. Only
// the first call does anything; it reports whether this call was the one.
func (s *Session) markClosed() bool {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.mu.Lock()
		s.connected = false
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
	return first
}

func (s *Session) handleEvent(ev obsws.Event) {
	switch ev.Type {
	case obsws.EventCurrentProgramSceneChanged:
		name, _ := ev.Data["sceneName"].(string)
		s.mu.Lock()
		s.programScene = name
		s.mu.Unlock()
		logger.Debugf("delay: program scene is now %q", name)

	case obsws.EventExitStarted:
		logger.Infof("delay: switcher is shutting down")
	}
}

// call runs one remote operation under the per-call timeout.
func (s *Session) call(ctx context.Context, op string, fn func(ctx context.Context, r Remote) error) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := fn(ctx, s.remote); err != nil {
		return newRemoteCallError(op, err)
	}
	return nil
}

func (s *Session) sceneItems(ctx context.Context, scene string) ([]obsws.SceneItem, error) {
	var items []obsws.SceneItem
	err := s.call(ctx, obsws.RequestGetSceneItemList, func(ctx context.Context, r Remote) error {
		var err error
		items, err = r.GetSceneItemList(ctx, scene)
		return err
	})
	return items, err
}

func (s *Session) setItemEnabled(ctx context.Context, scene string, itemID int64, enabled bool) error {
	return s.call(ctx, obsws.RequestSetSceneItemEnabled, func(ctx context.Context, r Remote) error {
		return r.SetSceneItemEnabled(ctx, scene, itemID, enabled)
	})
}

// SetProgramScene switches the live output to scene.
func (s *Session) SetProgramScene(ctx context.Context, scene string) error {
	err := s.call(ctx, obsws.RequestSetCurrentProgramScene, func(ctx context.Context, r Remote) error {
		return r.SetCurrentProgramScene(ctx, scene)
	})
	if err == nil {
		s.mu.Lock()
		s.programScene = scene
		s.mu.Unlock()
	}
	return err
}

func (s *Session) inputSettings(ctx context.Context, input string) (map[string]any, error) {
	var settings map[string]any
	err := s.call(ctx, obsws.RequestGetInputSettings, func(ctx context.Context, r Remote) error {
		var err error
		settings, err = r.GetInputSettings(ctx, input)
		return err
	})
	return settings, err
}

func (s *Session) setInputSettings(ctx context.Context, input string, settings map[string]any) error {
	return s.call(ctx, obsws.RequestSetInputSettings, func(ctx context.Context, r Remote) error {
		return r.SetInputSettings(ctx, input, settings, false)
	})
}

// StartVirtualOutput starts the switcher's virtual camera.
func (s *Session) StartVirtualOutput(ctx context.Context) error {
	return s.call(ctx, obsws.RequestStartVirtualCam, func(ctx context.Context, r Remote) error {
		return r.StartVirtualCam(ctx)
	})
}

// StopVirtualOutput stops the switcher's virtual camera.
func (s *Session) StopVirtualOutput(ctx context.Context) error {
	return s.call(ctx, obsws.RequestStopVirtualCam, func(ctx context.Context, r Remote) error {
		return r.StopVirtualCam(ctx)
	})
}
