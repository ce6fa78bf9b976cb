// Package platform provides platform channel communication between Go and
// native code. The bridge uses it to reach the host's intent launcher,
// content provider, permission APIs and storage paths, and to receive calls
// and events from the application shell.
package platform

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MessageCodec encodes and decodes messages for platform channel communication.
type MessageCodec interface {
	// Encode converts a Go value to bytes for transmission to native code.
	Encode(value any) ([]byte, error)

	// Decode converts bytes received from native code to a Go value.
	Decode(data []byte) (any, error)
}

// TypedCodec is a MessageCodec that can also decode into a concrete type.
type TypedCodec interface {
	MessageCodec

	// DecodeInto deserializes data into v.
	DecodeInto(data []byte, v any) error
}

// JsonCodec implements MessageCodec using JSON encoding.
// JSON prioritizes interoperability and minimal native dependencies.
type JsonCodec struct{}

// Encode serializes the value to JSON bytes.
func (c JsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a Go value.
func (c JsonCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeInto deserializes JSON bytes into a specific type.
func (c JsonCodec) DecodeInto(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec implements MessageCodec using MessagePack encoding.
// It is more compact than JSON and keeps binary payloads as bytes.
type MsgpackCodec struct{}

// Encode serializes the value to MessagePack bytes.
func (c MsgpackCodec) Encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

// Decode deserializes MessagePack bytes to a Go value.
// Maps decode as map[string]any.
func (c MsgpackCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeInto deserializes MessagePack bytes into a specific type.
func (c MsgpackCodec) DecodeInto(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// CodecByName returns the codec for "json" or "msgpack".
func CodecByName(name string) (TypedCodec, error) {
	switch name {
	case "", "json":
		return JsonCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// DefaultCodec is the codec used by platform channels.
var DefaultCodec MessageCodec = JsonCodec{}

// SetDefaultCodec replaces the codec used by platform channels. It must be
// called before the native bridge is connected.
func SetDefaultCodec(c MessageCodec) {
	if c == nil {
		c = JsonCodec{}
	}
	DefaultCodec = c
}

// Standard errors for platform channel operations.
var (
	// ErrChannelNotFound indicates the requested platform channel does not exist.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound indicates the method is not implemented by the receiving side.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments indicates the arguments passed to the method were invalid.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable indicates the platform feature is not available
	// (e.g., no native bridge connected).
	ErrPlatformUnavailable = errors.New("platform feature unavailable")
)

// ChannelError represents an error returned across a platform channel.
type ChannelError struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details any    `json:"details,omitempty" msgpack:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError creates a new ChannelError with the given code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}
