package obsws

// OpCode identifies the kind of an obs-websocket v5 frame.
type OpCode int

const (
	OpHello           OpCode = 0
	OpIdentify        OpCode = 1
	OpIdentified      OpCode = 2
	OpReidentify      OpCode = 3
	OpEvent           OpCode = 5
	OpRequest         OpCode = 6
	OpRequestResponse OpCode = 7
)

// RPCVersion is the only obs-websocket RPC version this client speaks.
const RPCVersion = 1

// EventSubscription is a bitmask of event categories delivered by the server.
type EventSubscription uint32

const (
	EventSubscriptionNone    EventSubscription = 0
	EventSubscriptionGeneral EventSubscription = 1 << 0
	EventSubscriptionConfig  EventSubscription = 1 << 1
	EventSubscriptionScenes  EventSubscription = 1 << 2
	EventSubscriptionInputs  EventSubscription = 1 << 3
	EventSubscriptionOutputs EventSubscription = 1 << 6
)

// Close codes sent by the server when it rejects a session.
const (
	CloseCodeAuthenticationFailed  = 4009
	CloseCodeUnsupportedRPCVersion = 4010
	CloseCodeNotIdentified         = 4007
)

// Request types consumed by delaydeck.
const (
	RequestGetInputList           = "GetInputList"
	RequestGetSceneList           = "GetSceneList"
	RequestGetSceneItemList       = "GetSceneItemList"
	RequestSetSceneItemEnabled    = "SetSceneItemEnabled"
	RequestSetCurrentProgramScene = "SetCurrentProgramScene"
	RequestGetInputSettings       = "GetInputSettings"
	RequestSetInputSettings       = "SetInputSettings"
	RequestStartVirtualCam        = "StartVirtualCam"
	RequestStopVirtualCam         = "StopVirtualCam"
)

// Event types the client understands. Others are forwarded untyped.
const (
	EventCurrentProgramSceneChanged = "CurrentProgramSceneChanged"
	EventExitStarted                = "ExitStarted"
)

// frame is the outer envelope of every message in both directions.
type frame struct {
	Op OpCode `json:"op"`
	D  any    `json:"d"`
}

// inboundFrame is decoded first; D is re-decoded once the opcode is known.
type inboundFrame struct {
	Op OpCode         `json:"op"`
	D  map[string]any `json:"d"`
}

type helloAuthentication struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

type helloPayload struct {
	OBSWebSocketVersion string               `json:"obsWebSocketVersion"`
	RPCVersion          int                  `json:"rpcVersion"`
	Authentication      *helloAuthentication `json:"authentication,omitempty"`
}

type identifyPayload struct {
	RPCVersion         int               `json:"rpcVersion"`
	Authentication     string            `json:"authentication,omitempty"`
	EventSubscriptions EventSubscription `json:"eventSubscriptions"`
}

type identifiedPayload struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type requestPayload struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type requestResponsePayload struct {
	RequestType   string         `json:"requestType"`
	RequestID     string         `json:"requestId"`
	RequestStatus requestStatus  `json:"requestStatus"`
	ResponseData  map[string]any `json:"responseData,omitempty"`
}

type eventPayload struct {
	EventType   string         `json:"eventType"`
	EventIntent int            `json:"eventIntent"`
	EventData   map[string]any `json:"eventData,omitempty"`
}

// Event is a server-pushed notification.
type Event struct {
	Type   string
	Intent int
	Data   map[string]any
}

// EventHandler receives events in arrival order on the read goroutine. It
// must not block.
type EventHandler func(Event)
