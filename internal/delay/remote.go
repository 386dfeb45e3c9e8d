package delay

import (
	"context"
	"time"

	"github.com/bhandras/delaydeck/internal/obsws"
)

// EventSubscriptions is the event mask sent when identifying: the general
// and scene categories only.
const EventSubscriptions = obsws.EventSubscriptionGeneral | obsws.EventSubscriptionScenes

// Remote is the switcher RPC surface the orchestrator drives.
// *obsws.Client implements it.
type Remote interface {
	GetInputList(ctx context.Context) ([]obsws.Input, error)
	GetSceneList(ctx context.Context) (obsws.SceneList, error)
	GetSceneItemList(ctx context.Context, scene string) ([]obsws.SceneItem, error)
	SetSceneItemEnabled(ctx context.Context, scene string, itemID int64, enabled bool) error
	SetCurrentProgramScene(ctx context.Context, scene string) error
	GetInputSettings(ctx context.Context, input string) (map[string]any, error)
	SetInputSettings(ctx context.Context, input string, settings map[string]any, overlay bool) error
	StartVirtualCam(ctx context.Context) error
	StopVirtualCam(ctx context.Context) error

	SetEventHandler(handler obsws.EventHandler)
	// Done is closed when the channel is gone, for any reason.
	Done() <-chan struct{}
	// Err reports why the channel closed; nil for a local close.
	Err() error
	Close() error
}

var _ Remote = (*obsws.Client)(nil)

// Endpoint locates the switcher.
type Endpoint struct {
	Host     string
	Port     int
	Password string
}

// Dialer opens a Remote for an endpoint.
type Dialer func(ctx context.Context, ep Endpoint) (Remote, error)

// DialOptions configures OBSDialer.
type DialOptions struct {
	Encoding       obsws.Encoding
	RequestTimeout time.Duration
}

// OBSDialer returns a Dialer backed by obs-websocket.
func OBSDialer(opts DialOptions) Dialer {
	return func(ctx context.Context, ep Endpoint) (Remote, error) {
		c, err := obsws.Dial(ctx, obsws.Options{
			Host:               ep.Host,
			Port:               ep.Port,
			Password:           ep.Password,
			Encoding:           opts.Encoding,
			EventSubscriptions: EventSubscriptions,
			RequestTimeout:     opts.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
