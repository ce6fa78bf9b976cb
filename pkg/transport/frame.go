// Package transport carries platform channel traffic between the bridge and
// a shell process over a byte stream, typically stdin and stdout.
//
// Each frame is a 32-bit little-endian length followed by a codec-encoded
// Envelope. Both sides may originate calls; responses are matched by ID.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lilu-red/filebridge/pkg/platform"
)

const (
	// MaxFrameSize is the largest accepted payload (1 MiB).
	MaxFrameSize = 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Envelope kinds.
const (
	// KindCall invokes Method on Channel; the receiver answers with exactly
	// one result, error or not_implemented frame carrying the same ID.
	KindCall = "call"
	// KindResult answers a call with Result.
	KindResult = "result"
	// KindError answers a call with Error.
	KindError = "error"
	// KindNotImplemented answers a call for an unknown channel or method.
	KindNotImplemented = "not_implemented"
	// KindEvent delivers Args to an event channel, or Error when the stream failed.
	KindEvent = "event"
	// KindDone ends an event stream.
	KindDone = "done"
	// KindListen asks the peer to start an event stream. It is answered like a call.
	KindListen = "listen"
	// KindCancel asks the peer to stop an event stream. It is answered like a call.
	KindCancel = "cancel"
)

// Envelope is a single frame on the wire.
type Envelope struct {
	ID      uint64                 `json:"id,omitempty" msgpack:"id,omitempty"`
	Kind    string                 `json:"kind" msgpack:"kind"`
	Channel string                 `json:"channel,omitempty" msgpack:"channel,omitempty"`
	Method  string                 `json:"method,omitempty" msgpack:"method,omitempty"`
	Args    any                    `json:"args,omitempty" msgpack:"args,omitempty"`
	Result  any                    `json:"result,omitempty" msgpack:"result,omitempty"`
	Error   *platform.ChannelError `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Frame errors.
var (
	// ErrFrameTooLarge is returned for a length prefix above MaxFrameSize.
	ErrFrameTooLarge = errors.New("transport: frame too large")
	// ErrEmptyFrame is returned for a zero length prefix.
	ErrEmptyFrame = errors.New("transport: empty frame")
	// ErrPartialFrame is returned when the stream ends inside a frame.
	ErrPartialFrame = errors.New("transport: partial frame")
	// ErrMalformedFrame is returned when a payload does not decode to an Envelope.
	ErrMalformedFrame = errors.New("transport: malformed frame")
)

// ReadFrame reads one length-prefixed payload. It returns io.EOF only when
// the stream ends cleanly between frames.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: length prefix: %v", ErrPartialFrame, err)
	}

	length := binary.LittleEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrPartialFrame, err)
	}
	return payload, nil
}

// WriteFrame writes payload with its length prefix in a single write.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(payload), MaxFrameSize)
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// DecodeEnvelope decodes a frame payload.
func DecodeEnvelope(codec platform.TypedCodec, payload []byte) (*Envelope, error) {
	var env Envelope
	if err := codec.DecodeInto(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformedFrame)
	}
	return &env, nil
}

// EncodeEnvelope encodes env as a frame payload.
func EncodeEnvelope(codec platform.TypedCodec, env *Envelope) ([]byte, error) {
	return codec.Encode(env)
}
