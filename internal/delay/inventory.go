package delay

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bhandras/delaydeck/internal/obsws"
)

// Inventory is the switcher's input and scene names, in the order the
// switcher returned them. It is fetched once per connection.
type Inventory struct {
	Inputs []string `json:"inputs"`
	Scenes []string `json:"scenes"`
}

// FetchInventory lists inputs and scenes concurrently. If either call fails
// no inventory is returned.
func FetchInventory(ctx context.Context, s *Session) (Inventory, error) {
	if !s.Connected() {
		return Inventory{}, ErrNotConnected
	}

	var (
		inputs []obsws.Input
		scenes obsws.SceneList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.call(gctx, obsws.RequestGetInputList, func(ctx context.Context, r Remote) error {
			var err error
			inputs, err = r.GetInputList(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.call(gctx, obsws.RequestGetSceneList, func(ctx context.Context, r Remote) error {
			var err error
			scenes, err = r.GetSceneList(ctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return Inventory{}, err
	}

	inv := Inventory{
		Inputs: make([]string, 0, len(inputs)),
		Scenes: make([]string, 0, len(scenes.Scenes)),
	}
	for _, in := range inputs {
		inv.Inputs = append(inv.Inputs, in.Name)
	}
	for _, sc := range scenes.Scenes {
		inv.Scenes = append(inv.Scenes, sc.Name)
	}

	if scenes.CurrentProgramSceneName != "" {
		s.mu.Lock()
		s.programScene = scenes.CurrentProgramSceneName
		s.mu.Unlock()
	}
	return inv, nil
}
