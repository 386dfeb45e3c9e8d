package obsws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects the obs-websocket wire subprotocol.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgPack Encoding = "msgpack"
)

// ParseEncoding parses a user-supplied encoding name.
func ParseEncoding(raw string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return EncodingJSON, nil
	case "msgpack":
		return EncodingMsgPack, nil
	default:
		return "", fmt.Errorf("unknown encoding %q (expected json or msgpack)", raw)
	}
}

// codec converts frames to and from one websocket subprotocol.
type codec interface {
	subprotocol() string
	messageType() int
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
}

func newCodec(enc Encoding) codec {
	if enc == EncodingMsgPack {
		return msgpackCodec{}
	}
	return jsonCodec{}
}

// codecForSubprotocol returns the codec negotiated by the handshake.
func codecForSubprotocol(proto string) (codec, bool) {
	switch proto {
	case jsonCodec{}.subprotocol():
		return jsonCodec{}, true
	case msgpackCodec{}.subprotocol():
		return msgpackCodec{}, true
	}
	return nil, false
}

type jsonCodec struct{}

func (jsonCodec) subprotocol() string { return "obswebsocket.json" }
func (jsonCodec) messageType() int    { return websocket.TextMessage }

func (jsonCodec) marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) subprotocol() string { return "obswebsocket.msgpack" }
func (msgpackCodec) messageType() int    { return websocket.BinaryMessage }

// msgpack reuses the json struct tags so one set of payload types serves both
// subprotocols.
func (msgpackCodec) marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// recode converts a generically decoded value (maps, slices, scalars) into a
// typed destination by a round trip through the codec.
func recode(c codec, src any, dst any) error {
	if dst == nil {
		return nil
	}
	raw, err := c.marshal(src)
	if err != nil {
		return err
	}
	return c.unmarshal(raw, dst)
}
