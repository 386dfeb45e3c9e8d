// Package obsws is a minimal obs-websocket v5 client: session identification,
// request/response calls and event delivery over a single websocket.
package obsws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bhandras/delaydeck/pkg/logger"
)

const (
	// DefaultRequestTimeout bounds how long we wait for a single
	// request/response round-trip.
	DefaultRequestTimeout = 10 * time.Second

	// defaultHandshakeTimeout bounds Hello/Identify/Identified when the caller
	// passes a context without a deadline.
	defaultHandshakeTimeout = 10 * time.Second

	// closeWriteWait bounds the close frame write during Close.
	closeWriteWait = time.Second
)

// Options configures Dial.
type Options struct {
	// Host and Port locate the obs-websocket server.
	Host string
	Port int
	// Password is optional; it is only used when the server asks for it.
	Password string
	// Encoding selects the json or msgpack subprotocol.
	Encoding Encoding
	// EventSubscriptions is sent in Identify.
	EventSubscriptions EventSubscription
	// RequestTimeout overrides DefaultRequestTimeout when positive.
	RequestTimeout time.Duration
	// Dialer overrides websocket.DefaultDialer (tests).
	Dialer *websocket.Dialer
}

// URL returns the websocket URL for the configured endpoint.
func (o Options) URL() string {
	host := o.Host
	if host == "" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(o.Port))
}

type response struct {
	payload requestResponsePayload
	err     error
}

// Client is an identified obs-websocket session.
type Client struct {
	conn           *websocket.Conn
	codec          codec
	requestTimeout time.Duration

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan response
	closed    bool
	closeErr  error
	eventFn   EventHandler
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the server, performs the Hello/Identify/Identified
// handshake and starts the read loop.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHandshakeTimeout)
		defer cancel()
	}

	want := newCodec(opts.Encoding)
	dialer := opts.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	dialer.Subprotocols = []string{want.subprotocol()}

	url := opts.URL()
	logger.Debugf("obsws: dialing %s (%s)", url, want.subprotocol())
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	negotiated, ok := codecForSubprotocol(conn.Subprotocol())
	if !ok {
		// Servers that ignore the subprotocol header speak JSON.
		negotiated = jsonCodec{}
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	client := &Client{
		conn:           conn,
		codec:          negotiated,
		requestTimeout: timeout,
		pending:        make(map[string]chan response),
		done:           make(chan struct{}),
	}

	if err := client.identify(ctx, opts); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go client.readLoop()
	return client, nil
}

// identify runs the handshake synchronously, before the read loop starts.
func (c *Client) identify(ctx context.Context, opts Options) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}

	var hello helloPayload
	if err := c.readExpected(OpHello, &hello); err != nil {
		return err
	}
	logger.Debugf("obsws: hello from obs-websocket %s (rpc %d)", hello.OBSWebSocketVersion, hello.RPCVersion)
	if hello.RPCVersion < RPCVersion {
		return fmt.Errorf("%w: server offers %d", ErrUnsupportedRPCVersion, hello.RPCVersion)
	}

	identify := identifyPayload{
		RPCVersion:         RPCVersion,
		EventSubscriptions: opts.EventSubscriptions,
	}
	if hello.Authentication != nil {
		if opts.Password == "" {
			return fmt.Errorf("%w: server requires a password", ErrAuthFailed)
		}
		identify.Authentication = authResponse(
			opts.Password, hello.Authentication.Salt, hello.Authentication.Challenge,
		)
	}
	if err := c.writeFrame(OpIdentify, identify); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	var identified identifiedPayload
	if err := c.readExpected(OpIdentified, &identified); err != nil {
		return err
	}
	if identified.NegotiatedRPCVersion != RPCVersion {
		return fmt.Errorf("%w: negotiated %d", ErrUnsupportedRPCVersion, identified.NegotiatedRPCVersion)
	}
	return nil
}

// readExpected reads one frame during the handshake and decodes it into dst.
func (c *Client) readExpected(op OpCode, dst any) error {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return classifyCloseError(err)
	}
	var in inboundFrame
	if err := c.codec.unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: decode frame: %v", ErrHandshake, err)
	}
	if in.Op != op {
		return fmt.Errorf("%w: expected op %d, got %d", ErrHandshake, op, in.Op)
	}
	return recode(c.codec, in.D, dst)
}

// classifyCloseError maps server close codes onto sentinel errors.
func classifyCloseError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case CloseCodeAuthenticationFailed:
			return fmt.Errorf("%w: %s", ErrAuthFailed, ce.Text)
		case CloseCodeUnsupportedRPCVersion:
			return fmt.Errorf("%w: %s", ErrUnsupportedRPCVersion, ce.Text)
		}
	}
	return err
}

// SetEventHandler sets the handler for server events.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventFn = handler
}

// Done is closed once the connection is gone, whichever side closed it.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open or after a
// local Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteWait),
	)
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.finish(nil)
	return err
}

// finish fails every pending request and closes Done exactly once.
func (c *Client) finish(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeErr = reason
		pending := c.pending
		c.pending = make(map[string]chan response)
		c.mu.Unlock()

		for _, ch := range pending {
			select {
			case ch <- response{err: ErrClosed}:
			default:
			}
		}
		close(c.done)
	})
}

// Call sends a request and waits for its response. responseData is decoded
// into out when out is non-nil.
func (c *Client) Call(ctx context.Context, requestType string, data any, out any) error {
	if c == nil {
		return ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.requestTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	respCh := make(chan response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = respCh
	c.mu.Unlock()

	logger.Tracef("obsws: -> %s %s", requestType, id)
	err := c.writeFrame(OpRequest, requestPayload{
		RequestType: requestType,
		RequestID:   id,
		RequestData: data,
	})
	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("send %s: %w", requestType, err)
	}

	select {
	case <-ctx.Done():
		c.dropPending(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrRequestTimeout, requestType)
		}
		return ctx.Err()

	case resp := <-respCh:
		if resp.err != nil {
			return resp.err
		}
		status := resp.payload.RequestStatus
		if !status.Result {
			return &RequestError{
				RequestType: requestType,
				Code:        status.Code,
				Comment:     status.Comment,
			}
		}
		if out == nil || resp.payload.ResponseData == nil {
			return nil
		}
		if err := recode(c.codec, resp.payload.ResponseData, out); err != nil {
			return fmt.Errorf("decode %s response: %w", requestType, err)
		}
		return nil
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) writeFrame(op OpCode, d any) error {
	raw, err := c.codec.marshal(frame{Op: op, D: d})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(c.codec.messageType(), raw)
}

// readLoop dispatches responses and events until the connection ends.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			local := c.closed
			c.mu.Unlock()
			if local {
				c.finish(nil)
			} else {
				logger.Debugf("obsws: connection lost: %v", err)
				c.finish(classifyCloseError(err))
			}
			return
		}

		var in inboundFrame
		if err := c.codec.unmarshal(data, &in); err != nil {
			logger.Warnf("obsws: dropped undecodable frame (len=%d): %v", len(data), err)
			continue
		}

		switch in.Op {
		case OpRequestResponse:
			var resp requestResponsePayload
			if err := recode(c.codec, in.D, &resp); err != nil {
				logger.Warnf("obsws: dropped malformed response: %v", err)
				continue
			}
			c.dispatchResponse(resp)

		case OpEvent:
			var ev eventPayload
			if err := recode(c.codec, in.D, &ev); err != nil {
				logger.Warnf("obsws: dropped malformed event: %v", err)
				continue
			}
			c.dispatchEvent(ev)

		default:
			logger.Tracef("obsws: ignored op %d", in.Op)
		}
	}
}

func (c *Client) dispatchResponse(resp requestResponsePayload) {
	logger.Tracef("obsws: <- %s %s result=%t", resp.RequestType, resp.RequestID, resp.RequestStatus.Result)
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	delete(c.pending, resp.RequestID)
	c.mu.Unlock()
	if !ok {
		logger.Debugf("obsws: response for unknown request %s", resp.RequestID)
		return
	}
	ch <- response{payload: resp}
}

func (c *Client) dispatchEvent(ev eventPayload) {
	c.mu.Lock()
	handler := c.eventFn
	c.mu.Unlock()
	logger.Tracef("obsws: event %s", ev.EventType)
	if handler == nil {
		return
	}
	handler(Event{Type: ev.EventType, Intent: ev.EventIntent, Data: ev.EventData})
}
