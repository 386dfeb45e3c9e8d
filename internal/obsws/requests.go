package obsws

import "context"

// Input is one entry of GetInputList.
type Input struct {
	Name            string `json:"inputName"`
	Kind            string `json:"inputKind"`
	UnversionedKind string `json:"unversionedInputKind"`
}

// Scene is one entry of GetSceneList.
type Scene struct {
	Name  string `json:"sceneName"`
	Index int    `json:"sceneIndex"`
}

// SceneList is the GetSceneList response.
type SceneList struct {
	CurrentProgramSceneName string  `json:"currentProgramSceneName"`
	CurrentPreviewSceneName string  `json:"currentPreviewSceneName"`
	Scenes                  []Scene `json:"scenes"`
}

// SceneItem is the placement of a source inside a scene.
type SceneItem struct {
	SourceName string `json:"sourceName"`
	ID         int64  `json:"sceneItemId"`
	Enabled    bool   `json:"sceneItemEnabled"`
}

// GetInputList lists every input in the order the server returns them.
func (c *Client) GetInputList(ctx context.Context) ([]Input, error) {
	var resp struct {
		Inputs []Input `json:"inputs"`
	}
	if err := c.Call(ctx, RequestGetInputList, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Inputs, nil
}

// GetSceneList lists every scene in the order the server returns them.
func (c *Client) GetSceneList(ctx context.Context) (SceneList, error) {
	var resp SceneList
	if err := c.Call(ctx, RequestGetSceneList, nil, &resp); err != nil {
		return SceneList{}, err
	}
	return resp, nil
}

// GetSceneItemList lists the items placed in scene.
func (c *Client) GetSceneItemList(ctx context.Context, scene string) ([]SceneItem, error) {
	var resp struct {
		SceneItems []SceneItem `json:"sceneItems"`
	}
	req := map[string]any{"sceneName": scene}
	if err := c.Call(ctx, RequestGetSceneItemList, req, &resp); err != nil {
		return nil, err
	}
	return resp.SceneItems, nil
}

// SetSceneItemEnabled shows or hides one scene item.
func (c *Client) SetSceneItemEnabled(ctx context.Context, scene string, itemID int64, enabled bool) error {
	req := map[string]any{
		"sceneName":        scene,
		"sceneItemId":      itemID,
		"sceneItemEnabled": enabled,
	}
	return c.Call(ctx, RequestSetSceneItemEnabled, req, nil)
}

// SetCurrentProgramScene switches the live output.
func (c *Client) SetCurrentProgramScene(ctx context.Context, scene string) error {
	req := map[string]any{"sceneName": scene}
	return c.Call(ctx, RequestSetCurrentProgramScene, req, nil)
}

// GetInputSettings returns the input's settings. Keys depend on the input kind.
func (c *Client) GetInputSettings(ctx context.Context, input string) (map[string]any, error) {
	var resp struct {
		InputSettings map[string]any `json:"inputSettings"`
		InputKind     string         `json:"inputKind"`
	}
	req := map[string]any{"inputName": input}
	if err := c.Call(ctx, RequestGetInputSettings, req, &resp); err != nil {
		return nil, err
	}
	if resp.InputSettings == nil {
		resp.InputSettings = map[string]any{}
	}
	return resp.InputSettings, nil
}

// SetInputSettings writes settings. With overlay=false the server replaces
// the whole settings object.
func (c *Client) SetInputSettings(ctx context.Context, input string, settings map[string]any, overlay bool) error {
	req := map[string]any{
		"inputName":     input,
		"inputSettings": settings,
		"overlay":       overlay,
	}
	return c.Call(ctx, RequestSetInputSettings, req, nil)
}

// StartVirtualCam starts the virtual camera output.
func (c *Client) StartVirtualCam(ctx context.Context) error {
	return c.Call(ctx, RequestStartVirtualCam, nil, nil)
}

// StopVirtualCam stops the virtual camera output.
func (c *Client) StopVirtualCam(ctx context.Context) error {
	return c.Call(ctx, RequestStopVirtualCam, nil, nil)
}
