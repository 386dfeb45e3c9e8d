package delaytest

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/bhandras/delaydeck/internal/delay"
	"github.com/bhandras/delaydeck/internal/obsws"
)

// Call is one remote operation received by a FakeSwitcher.
type Call struct {
	Op       string
	Scene    string
	ItemID   int64
	Source   string
	Enabled  bool
	Input    string
	Settings map[string]any
	At       time.Time
}

// writeOps are the operations that change switcher state.
var writeOps = map[string]bool{
	obsws.RequestSetSceneItemEnabled:    true,
	obsws.RequestSetCurrentProgramScene: true,
	obsws.RequestSetInputSettings:       true,
	obsws.RequestStartVirtualCam:        true,
	obsws.RequestStopVirtualCam:         true,
}

// FakeSwitcher is an in-memory delay.Remote that records every call.
type FakeSwitcher struct {
	clock delay.Clock

	mu       sync.Mutex
	inputs   []obsws.Input
	scenes   []obsws.Scene
	program  string
	items    map[string][]obsws.SceneItem
	settings map[string]map[string]any
	failures map[string]error
	calls    []Call
	nextID   int64
	vcam     bool
	handler  obsws.EventHandler

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ delay.Remote = (*FakeSwitcher)(nil)

// NewFakeSwitcher returns an empty switcher. Calls are timestamped with
// clock when it is non-nil.
func NewFakeSwitcher(clock delay.Clock) *FakeSwitcher {
	return &FakeSwitcher{
		clock:    clock,
		items:    make(map[string][]obsws.SceneItem),
		settings: make(map[string]map[string]any),
		failures: make(map[string]error),
		done:     make(chan struct{}),
	}
}

// Dialer returns a delay.Dialer that always hands out this switcher.
func (f *FakeSwitcher) Dialer() delay.Dialer {
	return func(context.Context, delay.Endpoint) (delay.Remote, error) {
		return f, nil
	}
}

// AddInput registers an input with optional settings.
func (f *FakeSwitcher) AddInput(name string, settings map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, obsws.Input{Name: name, Kind: "ffmpeg_source"})
	if settings == nil {
		settings = map[string]any{}
	}
	f.settings[name] = maps.Clone(settings)
}

// AddScene registers a scene.
func (f *FakeSwitcher) AddScene(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes = append(f.scenes, obsws.Scene{Name: name, Index: len(f.scenes)})
	if f.program == "" {
		f.program = name
	}
}

// Place puts source into scene and returns the new item id.
func (f *FakeSwitcher) Place(scene, source string, enabled bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.items[scene] = append(f.items[scene], obsws.SceneItem{
		SourceName: source,
		ID:         f.nextID,
		Enabled:    enabled,
	})
	return f.nextID
}

// FailOn makes every call of op fail with err. A nil err clears it.
func (f *FakeSwitcher) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns every call received so far.
func (f *FakeSwitcher) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Writes returns the calls that change switcher state.
func (f *FakeSwitcher) Writes() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if writeOps[c.Op] {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded calls.
func (f *FakeSwitcher) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Visible reports the flag of the first item of source in scene.
func (f *FakeSwitcher) Visible(scene, source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items[scene] {
		if it.SourceName == source {
			return it.Enabled
		}
	}
	return false
}

// ItemsOf returns the items of source in scene.
func (f *FakeSwitcher) ItemsOf(scene, source string) []obsws.SceneItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []obsws.SceneItem
	for _, it := range f.items[scene] {
		if it.SourceName == source {
			out = append(out, it)
		}
	}
	return out
}

// Program returns the current program scene.
func (f *FakeSwitcher) Program() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.program
}

// VirtualCamActive reports whether the virtual camera is running.
func (f *FakeSwitcher) VirtualCamActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vcam
}

// InputSettings returns a copy of an input's settings.
func (f *FakeSwitcher) InputSettings(input string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.settings[input])
}

// Drop simulates the remote closing the channel with err.
func (f *FakeSwitcher) Drop(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeErr = err
		f.mu.Unlock()
		close(f.done)
	})
}

// record logs a call and returns the injected failure for op, if any.
func (f *FakeSwitcher) recordLocked(c Call) error {
	if f.clock != nil {
		c.At = f.clock.Now()
	}
	f.calls = append(f.calls, c)
	return f.failures[c.Op]
}

// GetInputList implements delay.Remote.
func (f *FakeSwitcher) GetInputList(ctx context.Context) ([]obsws.Input, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked(Call{Op: obsws.RequestGetInputList}); err != nil {
		return nil, err
	}
	return append([]obsws.Input(nil), f.inputs...), nil
}

// GetSceneList implements delay.Remote.
func (f *FakeSwitcher) GetSceneList(ctx context.Context) (obsws.SceneList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked(Call{Op: obsws.RequestGetSceneList}); err != nil {
		return obsws.SceneList{}, err
	}
	return obsws.SceneList{
		CurrentProgramSceneName: f.program,
		Scenes:                  append([]obsws.Scene(nil), f.scenes...),
	}, nil
}

// GetSceneItemList implements delay.Remote.
func (f *FakeSwitcher) GetSceneItemList(ctx context.Context, scene string) ([]obsws.SceneItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked(Call{Op: obsws.RequestGetSceneItemList, Scene: scene}); err != nil {
		return nil, err
	}
	return append([]obsws.SceneItem(nil), f.items[scene]...), nil
}

// SetSceneItemEnabled implements delay.Remote.
func (f *FakeSwitcher) SetSceneItemEnabled(ctx context.Context, scene string, itemID int64, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	source := ""
	for _, it := range f.items[scene] {
		if it.ID == itemID {
			source = it.SourceName
		}
	}
	call := Call{
		Op:      obsws.RequestSetSceneItemEnabled,
		Scene:   scene,
		ItemID:  itemID,
		Source:  source,
		Enabled: enabled,
	}
	if err := f.recordLocked(call); err != nil {
		return err
	}
	items := f.items[scene]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Enabled = enabled
		}
	}
	return nil
}

// SetCurrentProgramScene implements delay.Remote. It emits
// CurrentProgramSceneChanged like the real switcher.
func (f *FakeSwitcher) SetCurrentProgramScene(ctx context.Context, scene string) error {
	f.mu.Lock()
	if err := f.recordLocked(Call{Op: obsws.RequestSetCurrentProgramScene, Scene: scene}); err != nil {
		f.mu.Unlock()
		return err
	}
	f.program = scene
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(obsws.Event{
			Type:   obsws.EventCurrentProgramSceneChanged,
			Intent: int(obsws.EventSubscriptionScenes),
			Data:   map[string]any{"sceneName": scene},
		})
	}
	return nil
}

// GetInputSettings implements delay.Remote.
func (f *FakeSwitcher) GetInputSettings(ctx context.Context, input string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked(Call{Op: obsws.RequestGetInputSettings, Input: input}); err != nil {
		return nil, err
	}
	return maps.Clone(f.settings[input]), nil
}

// SetInputSettings implements delay.Remote.
func (f *FakeSwitcher) SetInputSettings(ctx context.Context, input string, settings map[string]any, overlay bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := Call{Op: obsws.RequestSetInputSettings, Input: input, Settings: maps.Clone(settings)}
	if err := f.recordLocked(call); err != nil {
		return err
	}
	if overlay {
		maps.Copy(f.settings[input], settings)
	} else {
		f.settings[input] = maps.Clone(settings)
	}
	return nil
}

// StartVirtualCam implements delay.Remote.
func (f *FakeSwitcher) StartVirtualCam(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked(Call{Op: obsws.RequestStartVirtualCam}); err != nil {
		return err
	}
	f.vcam = true
	return nil
}

// StopVirtualCam implements delay.Remote.
func (f *FakeSwitcher) StopVirtualCam(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordLocked(Call{Op: obsws.RequestStopVirtualCam}); err != nil {
		return err
	}
	f.vcam = false
	return nil
}

// SetEventHandler implements delay.Remote.
func (f *FakeSwitcher) SetEventHandler(handler obsws.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

// Done implements delay.Remote.
func (f *FakeSwitcher) Done() <-chan struct{} { return f.done }

// Err implements delay.Remote.
func (f *FakeSwitcher) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeErr
}

// Close implements delay.Remote.
func (f *FakeSwitcher) Close() error {
	f.Drop(nil)
	return nil
}
