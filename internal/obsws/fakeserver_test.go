package obsws

import (
	"crypto/sha256"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	fakeSalt      = "c2FsdC1mb3ItdGVzdHM="
	fakeChallenge = "Y2hhbGxlbmdlLWZvci10ZXN0cw=="
)

// fakeReply is what a fake request handler answers.
type fakeReply struct {
	status requestStatus
	data   map[string]any
	// events are pushed before the response frame.
	events []eventPayload
	// stall drops the request without answering.
	stall bool
}

type fakeHandler func(data map[string]any) fakeReply

// fakeServer is an in-process obs-websocket v5 server.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	password string
	// helloRPCVersion is advertised in Hello (default RPCVersion).
	helloRPCVersion int
	// negotiatedVersion is returned in Identified (default RPCVersion).
	negotiatedVersion int
	// rejectVersion closes the session with 4010 on Identify.
	rejectVersion bool

	mu        sync.Mutex
	handlers  map[string]fakeHandler
	identify  identifyPayload
	requests  []requestPayload
	conns     []*websocket.Conn
	protocols []string
}

// newFakeServer starts a server; opts run before it accepts connections.
func newFakeServer(t *testing.T, opts ...func(*fakeServer)) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		t:                 t,
		helloRPCVersion:   RPCVersion,
		negotiatedVersion: RPCVersion,
		handlers:          make(map[string]fakeHandler),
	}
	for _, opt := range opts {
		opt(fs)
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) handle(requestType string, h fakeHandler) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.handlers[requestType] = h
}

func (fs *fakeServer) options() Options {
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(fs.srv.URL, "http://"))
	require.NoError(fs.t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(fs.t, err)
	return Options{
		Host:               host,
		Port:               port,
		EventSubscriptions: EventSubscriptionGeneral | EventSubscriptionScenes,
	}
}

func (fs *fakeServer) recorded() []requestPayload {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]requestPayload(nil), fs.requests...)
}

func (fs *fakeServer) identified() identifyPayload {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.identify
}

// dropAll closes every server-side connection without a close handshake.
func (fs *fakeServer) dropAll() {
	fs.mu.Lock()
	conns := fs.conns
	fs.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{
		Subprotocols: []string{
			jsonCodec{}.subprotocol(),
			msgpackCodec{}.subprotocol(),
		},
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cd, ok := codecForSubprotocol(conn.Subprotocol())
	if !ok {
		cd = jsonCodec{}
	}
	fs.mu.Lock()
	fs.conns = append(fs.conns, conn)
	fs.protocols = append(fs.protocols, conn.Subprotocol())
	fs.mu.Unlock()

	var writeMu sync.Mutex
	send := func(op OpCode, d any) {
		raw, err := cd.marshal(frame{Op: op, D: d})
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteMessage(cd.messageType(), raw)
	}
	closeWith := func(code int, text string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	}

	hello := helloPayload{OBSWebSocketVersion: "5.5.0", RPCVersion: fs.helloRPCVersion}
	if fs.password != "" {
		hello.Authentication = &helloAuthentication{Challenge: fakeChallenge, Salt: fakeSalt}
	}
	send(OpHello, hello)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in inboundFrame
		if err := cd.unmarshal(data, &in); err != nil {
			return
		}

		switch in.Op {
		case OpIdentify:
			var id identifyPayload
			if err := recode(cd, in.D, &id); err != nil {
				return
			}
			fs.mu.Lock()
			fs.identify = id
			fs.mu.Unlock()
			if fs.password != "" && id.Authentication != expectedAuth(fs.password) {
				closeWith(CloseCodeAuthenticationFailed, "Authentication failed.")
				return
			}
			if fs.rejectVersion {
				closeWith(CloseCodeUnsupportedRPCVersion, "Unsupported rpc version.")
				return
			}
			send(OpIdentified, identifiedPayload{NegotiatedRPCVersion: fs.negotiatedVersion})

		case OpRequest:
			var req requestPayload
			if err := recode(cd, in.D, &req); err != nil {
				return
			}
			fs.mu.Lock()
			fs.requests = append(fs.requests, req)
			h := fs.handlers[req.RequestType]
			fs.mu.Unlock()

			reply := fakeReply{status: requestStatus{Result: true, Code: 100}}
			if h != nil {
				var reqData map[string]any
				if req.RequestData != nil {
					_ = recode(cd, req.RequestData, &reqData)
				}
				reply = h(reqData)
			}
			if reply.stall {
				continue
			}
			for _, ev := range reply.events {
				send(OpEvent, ev)
			}
			send(OpRequestResponse, requestResponsePayload{
				RequestType:   req.RequestType,
				RequestID:     req.RequestID,
				RequestStatus: reply.status,
				ResponseData:  reply.data,
			})
		}
	}
}

// expectedAuth recomputes the auth string the server expects.
func expectedAuth(password string) string {
	first := sha256.Sum256([]byte(password + fakeSalt))
	second := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(first[:]) + fakeChallenge))
	return base64.StdEncoding.EncodeToString(second[:])
}

func okReply(data map[string]any) fakeReply {
	return fakeReply{status: requestStatus{Result: true, Code: 100}, data: data}
}
