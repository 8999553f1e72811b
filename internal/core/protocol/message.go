package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/openrts/openrts/internal/core/render"
	"github.com/openrts/openrts/internal/core/types"
	"github.com/openrts/openrts/pkg/generic"
)

// Feed message types.
const (
	// MsgHello is the first server message on a new session: feed identity,
	// the assigned session id and the state digest at attach time.
	MsgHello = "hello"
	// MsgKeyframe carries the full drawable state. Sent right after hello
	// and available for resync.
	MsgKeyframe = "keyframe"
	// MsgUpdate carries only the entities whose drawable state changed
	// since the previous frame, plus the ids that disappeared.
	MsgUpdate = "update"
	// MsgBye announces an orderly teardown from either side.
	MsgBye = "bye"
)

// Hello is the payload of MsgHello.
type Hello struct {
	Server    string `json:"server"`
	Session   string `json:"session"`
	Digest    uint64 `json:"digest,string"`
	FrameRate int    `json:"frame_rate"`
}

// Keyframe is the payload of MsgKeyframe.
type Keyframe struct {
	Frame    uint64            `json:"frame"`
	Digest   uint64            `json:"digest,string"`
	Entities []render.Snapshot `json:"entities"`
}

// Update is the payload of MsgUpdate. Every snapshot is a full per-entity
// state, so updates are safe to apply in isolation.
type Update struct {
	Frame   uint64            `json:"frame"`
	Changed []render.Snapshot `json:"changed,omitempty"`
	Gone    []types.EntityID  `json:"gone,omitempty"`
}

// Bye is the payload of MsgBye.
type Bye struct {
	Reason string `json:"reason,omitempty"`
}

// Message is the wire envelope: a type tag and the type's payload.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds an envelope around a payload value.
func NewMessage(msgType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &Message{Type: msgType, Payload: raw}, nil
}

// DecodePayload unmarshals the payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidMessage)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return nil
}

// Codec turns messages into transport frames and back.
type Codec interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}

// JSONCodec encodes envelopes as JSON. Encoding runs through a buffer pool
// so steady-state frames do not allocate a fresh buffer each time.
type JSONCodec struct {
	buffers *generic.Pool[*bytes.Buffer]
}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{
		buffers: generic.NewHotPool(func() *bytes.Buffer {
			return new(bytes.Buffer)
		}, 4),
	}
}

// Encode converts a Message into a JSON frame.
func (c *JSONCodec) Encode(msg *Message) ([]byte, error) {
	if msg == nil || msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	buf := c.buffers.Get()
	buf.Reset()
	defer c.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	// the buffer goes back to the pool; hand out a copy
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Decode converts a JSON frame back into a Message.
func (c *JSONCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return &msg, nil
}
