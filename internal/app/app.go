// Package app wires the connection manager, the orchestrator and the
// settings store into the operations the panel and the CLI expose.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bhandras/delaydeck/internal/delay"
	"github.com/bhandras/delaydeck/internal/storage"
	"github.com/bhandras/delaydeck/pkg/logger"
)

// SettingsStore persists operator settings. *storage.Store implements it.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (storage.Settings, error)
	SaveSettings(ctx context.Context, s storage.Settings) error
}

var _ SettingsStore = (*storage.Store)(nil)

// Options configures New.
type Options struct {
	// Host is the switcher host; the port comes from the settings.
	Host   string
	Dialer delay.Dialer
	// CallTimeout bounds each remote call (delay.DefaultCallTimeout when
	// zero).
	CallTimeout time.Duration
	// Store is optional; without it settings live in memory only.
	Store  SettingsStore
	Clock  delay.Clock
	Policy delay.Policy
	OnTick func(remaining int)
}

// App is the operator-facing service shared by the panel and the CLI.
type App struct {
	host  string
	store SettingsStore
	mgr   *delay.ConnectionManager
	orch  *delay.Orchestrator

	mu        sync.Mutex
	settings  storage.Settings
	inventory delay.Inventory
}

// New loads the stored settings and returns a disconnected App.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("app: nil dialer")
	}

	settings := storage.DefaultSettings()
	if opts.Store != nil {
		loaded, err := opts.Store.LoadSettings(ctx)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	a := &App{
		host:  opts.Host,
		store: opts.Store,
		mgr:   delay.NewConnectionManager(opts.Dialer, opts.CallTimeout),
		orch: delay.NewOrchestrator(delay.Options{
			Clock:  opts.Clock,
			Policy: opts.Policy,
			OnTick: opts.OnTick,
		}),
		settings: settings,
	}
	if err := a.orch.SetConfig(settings.Delay); err != nil {
		return nil, err
	}
	a.mgr.OnClose(a.handleClose)
	return a, nil
}

// ConnectRequest overrides the stored port and password when set.
type ConnectRequest struct {
	Port     *int    `json:"port,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Connect opens a session, fetches the inventory and binds the orchestrator
// to the session. Unset scene and input names are then filled from the
// inventory. An inventory failure leaves the session open in the Error
// status with the orchestrator unbound, so Activate does nothing until the
// next Connect.
func (a *App) Connect(ctx context.Context, req ConnectRequest) (delay.Inventory, error) {
	a.mu.Lock()
	next := a.settings
	if req.Port != nil {
		next.Port = *req.Port
	}
	if req.Password != nil {
		next.Password = *req.Password
	}
	a.mu.Unlock()

	if next.Port < 1 || next.Port > 65535 {
		return delay.Inventory{}, fmt.Errorf("invalid port %d", next.Port)
	}
	if err := a.saveSettings(ctx, next); err != nil {
		return delay.Inventory{}, err
	}

	sess, err := a.mgr.Connect(ctx, delay.Endpoint{
		Host:     a.host,
		Port:     next.Port,
		Password: next.Password,
	})
	if err != nil {
		return delay.Inventory{}, err
	}

	inv, err := delay.FetchInventory(ctx, sess)
	if err != nil {
		err = fmt.Errorf("fetch inventory: %w", err)
		a.mgr.Fail(sess, err)
		return delay.Inventory{}, err
	}
	a.orch.Bind(sess)

	a.mu.Lock()
	a.inventory = inv
	next = a.settings
	a.mu.Unlock()

	next.Delay = next.Delay.WithDefaults(inv)
	if err := a.UpdateSettings(ctx, next); err != nil {
		logger.Warnf("app: could not store default selection: %v", err)
	}
	logger.Infof("app: %d inputs, %d scenes", len(inv.Inputs), len(inv.Scenes))
	return inv, nil
}

// Disconnect closes the session, if any.
func (a *App) Disconnect() {
	a.mgr.Disconnect()
}

// OnDisconnect registers fn to run whenever a session ends.
func (a *App) OnDisconnect(fn func()) {
	a.mgr.OnClose(func(*delay.Session) { fn() })
}

// handleClose returns the app to its entry state when a session ends.
func (a *App) handleClose(*delay.Session) {
	a.mu.Lock()
	a.inventory = delay.Inventory{}
	a.mu.Unlock()
}

// Activate starts the delay choreography.
func (a *App) Activate(ctx context.Context) error {
	return a.orch.Activate(ctx)
}

// Deactivate ends the delay choreography.
func (a *App) Deactivate(ctx context.Context) error {
	return a.orch.Deactivate(ctx)
}

// Inventory returns the inventory of the current session.
func (a *App) Inventory() delay.Inventory {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inventory
}

// Settings returns the current settings.
func (a *App) Settings() storage.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// UpdateSettings validates, stores and applies s. Port and password take
// effect on the next Connect; the delay config applies to the next
// Activate or Deactivate.
func (a *App) UpdateSettings(ctx context.Context, s storage.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := a.saveSettings(ctx, s); err != nil {
		return err
	}
	return a.orch.SetConfig(s.Delay)
}

func (a *App) saveSettings(ctx context.Context, s storage.Settings) error {
	if a.store != nil {
		if err := a.store.SaveSettings(ctx, s); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	return nil
}

// Status is a point-in-time view for display.
type Status struct {
	Connection   string         `json:"connection"`
	Error        string         `json:"error,omitempty"`
	ProgramScene string         `json:"programScene,omitempty"`
	Delay        delay.Snapshot `json:"delay"`
	Port         int            `json:"port"`
	HasPassword  bool           `json:"hasPassword"`
}

// Status returns the current status. The password is never included.
func (a *App) Status() Status {
	status, connErr := a.mgr.Status()

	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()

	out := Status{
		Connection:  status.String(),
		Error:       connErr,
		Delay:       a.orch.Snapshot(),
		Port:        settings.Port,
		HasPassword: settings.Password != "",
	}
	if s := a.mgr.Session(); s != nil {
		out.ProgramScene = s.ProgramScene()
	}
	return out
}

// Close disconnects.
func (a *App) Close() {
	a.mgr.Disconnect()
}
