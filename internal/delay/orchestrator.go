package delay

import (
	"context"
	"fmt"
	"sync"

	"github.com/bhandras/delaydeck/pkg/logger"
)

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateActive
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReentryPolicy decides what Activate does while a delay is already active
// or being activated.
type ReentryPolicy int

const (
	// ReentryReject fails the second Activate with ErrAlreadyActive.
	ReentryReject ReentryPolicy = iota
	// ReentryAllow runs the choreography again. The previous pending reveal
	// is cancelled when the new one is scheduled.
	ReentryAllow
)

// Policy holds the orchestrator's configurable behaviors.
type Policy struct {
	Reentry ReentryPolicy
	// CancelRevealOnDeactivate cancels a pending reveal in Deactivate. When
	// false, a reveal scheduled by an earlier Activate still fires after
	// Deactivate.
	CancelRevealOnDeactivate bool
}

// Options configures an Orchestrator.
type Options struct {
	Clock  Clock
	Policy Policy
	// OnTick is called after each countdown tick.
	OnTick func(remaining int)
}

// Snapshot is a consistent view of the orchestrator.
type Snapshot struct {
	State              State       `json:"-"`
	StateName          string      `json:"state"`
	CountdownRemaining int         `json:"countdownRemaining"`
	RevealPending      bool        `json:"revealPending"`
	Config             DelayConfig `json:"config"`
}

// Orchestrator sequences the activate/deactivate choreography over one
// Session. Choreography calls run in order on the caller's goroutine; the
// countdown and the deferred reveal run on clock timers.
type Orchestrator struct {
	clock     Clock
	policy    Policy
	countdown *Countdown

	mu         sync.Mutex
	session    *Session
	cfg        DelayConfig
	state      State
	activating bool
	reveal     Timer
	revealSeq  uint64
}

// NewOrchestrator creates an idle orchestrator with the default config.
func NewOrchestrator(opts Options) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Orchestrator{
		clock:     clock,
		policy:    opts.Policy,
		countdown: NewCountdown(clock, opts.OnTick),
		cfg:       DefaultDelayConfig(),
		state:     StateIdle,
	}
}

// Bind attaches the orchestrator to a session. When the session closes the
// orchestrator drops it, cancels the pending reveal and returns to Idle.
func (o *Orchestrator) Bind(s *Session) {
	o.mu.Lock()
	o.session = s
	o.mu.Unlock()
	if s != nil {
		s.OnClose(func() { o.handleSessionClosed(s) })
	}
}

// Session returns the bound session, or nil.
func (o *Orchestrator) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// SetConfig replaces the delay config. Changes apply to the next Activate or
// Deactivate, except that a running countdown is cut down to a shorter
// delay.
func (o *Orchestrator) SetConfig(cfg DelayConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
	if o.state == StateActive {
		o.countdown.Clamp(cfg.DelaySeconds)
	}
	return nil
}

// Config returns the delay config.
func (o *Orchestrator) Config() DelayConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	state, cfg, pending := o.state, o.cfg, o.reveal != nil
	o.mu.Unlock()

	remaining := 0
	if state == StateActive {
		remaining = o.countdown.Remaining()
	}
	return Snapshot{
		State:              state,
		StateName:          state.String(),
		CountdownRemaining: remaining,
		RevealPending:      pending,
		Config:             cfg,
	}
}

// Activate switches the live output to the delay scene behind the bridge
// input and schedules the reveal of the delayed input after DelaySeconds.
//
// Without a connected session or a delay scene it does nothing. Visibility
// and pulse failures are logged and skipped; a failed program scene switch
// is returned. Effects already applied are not rolled back.
func (o *Orchestrator) Activate(ctx context.Context) error {
	o.mu.Lock()
	s, cfg := o.session, o.cfg
	if !s.Connected() || cfg.DelayScene == "" {
		o.mu.Unlock()
		return nil
	}
	if o.policy.Reentry == ReentryReject && (o.state == StateActive || o.activating) {
		o.mu.Unlock()
		return ErrAlreadyActive
	}
	o.activating = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.activating = false
		o.mu.Unlock()
	}()

	logger.Infof("delay: activating (%s via %q)", FormatLabel(cfg.DelaySeconds), cfg.DelayScene)

	if err := s.StartVirtualOutput(ctx); err != nil {
		logger.Debugf("delay: start virtual output: %v", err)
	}

	bridgeVisible, err := IsEnabled(ctx, s, cfg.DelayScene, cfg.BridgeInput)
	if err != nil {
		logger.Warnf("delay: could not read %q in %q: %v", cfg.BridgeInput, cfg.DelayScene, err)
	}
	if bridgeVisible {
		if err := Pulse(ctx, s, o.clock, cfg.BridgeInput); err != nil {
			logger.Warnf("delay: could not pulse %q: %v", cfg.BridgeInput, err)
		}
	} else {
		if err := SetEnabled(ctx, s, cfg.DelayScene, cfg.BridgeInput, true); err != nil {
			logger.Warnf("delay: could not show %q in %q: %v", cfg.BridgeInput, cfg.DelayScene, err)
		}
	}

	delayVisible, err := IsEnabled(ctx, s, cfg.DelayScene, cfg.DelayInput)
	if err != nil {
		logger.Warnf("delay: could not read %q in %q: %v", cfg.DelayInput, cfg.DelayScene, err)
	}
	if delayVisible {
		if err := SetEnabled(ctx, s, cfg.DelayScene, cfg.DelayInput, false); err != nil {
			logger.Warnf("delay: could not hide %q in %q: %v", cfg.DelayInput, cfg.DelayScene, err)
		}
	}

	if err := s.SetProgramScene(ctx, cfg.DelayScene); err != nil {
		return fmt.Errorf("activate delay: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateActive
	o.countdown.Start(cfg.DelaySeconds)
	o.scheduleRevealLocked(s, cfg)
	return nil
}

// scheduleRevealLocked replaces any pending reveal with a new one.
func (o *Orchestrator) scheduleRevealLocked(s *Session, cfg DelayConfig) {
	o.cancelRevealLocked()
	o.revealSeq++
	seq := o.revealSeq
	o.reveal = o.clock.AfterFunc(cfg.Delay(), func() { o.runReveal(seq, s, cfg) })
}

func (o *Orchestrator) cancelRevealLocked() {
	if o.reveal != nil {
		o.reveal.Stop()
		o.reveal = nil
	}
}

// runReveal shows the delayed input and hides the bridge. It does not touch
// the orchestrator state.
func (o *Orchestrator) runReveal(seq uint64, s *Session, cfg DelayConfig) {
	o.mu.Lock()
	if seq != o.revealSeq || o.reveal == nil {
		o.mu.Unlock()
		return
	}
	o.reveal = nil
	o.mu.Unlock()

	logger.Infof("delay: revealing %q", cfg.DelayInput)
	ctx := context.Background()
	if err := SetEnabled(ctx, s, cfg.DelayScene, cfg.DelayInput, true); err != nil {
		logger.Errorf("delay: could not show %q after delay: %v", cfg.DelayInput, err)
	}
	if err := SetEnabled(ctx, s, cfg.DelayScene, cfg.BridgeInput, false); err != nil {
		logger.Errorf("delay: could not hide %q after delay: %v", cfg.BridgeInput, err)
	}
}

// Deactivate returns the live output to the record scene and hides the
// delayed input. While Idle, or without a connected session, it does
// nothing. A failed program scene switch is returned and leaves the state
// Active.
func (o *Orchestrator) Deactivate(ctx context.Context) error {
	o.mu.Lock()
	s, cfg, state := o.session, o.cfg, o.state
	o.mu.Unlock()
	if !s.Connected() || state != StateActive {
		return nil
	}

	logger.Infof("delay: deactivating")

	if err := s.StopVirtualOutput(ctx); err != nil {
		logger.Debugf("delay: stop virtual output: %v", err)
	}

	if cfg.RecordScene != "" {
		if err := s.SetProgramScene(ctx, cfg.RecordScene); err != nil {
			return fmt.Errorf("deactivate delay: %w", err)
		}
	}

	if err := SetEnabled(ctx, s, cfg.DelayScene, cfg.DelayInput, false); err != nil {
		logger.Warnf("delay: could not hide %q in %q: %v", cfg.DelayInput, cfg.DelayScene, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateIdle
	o.countdown.Stop()
	if o.policy.CancelRevealOnDeactivate {
		o.cancelRevealLocked()
	}
	return nil
}

// handleSessionClosed is the orchestrator's close handler.
func (o *Orchestrator) handleSessionClosed(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != s {
		return
	}
	o.session = nil
	o.state = StateIdle
	o.countdown.Stop()
	o.cancelRevealLocked()
}
