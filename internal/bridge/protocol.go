// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

const (
	// ProtocolVersion is the envelope version this build speaks.
	ProtocolVersion = 1

	// ProtocolHeader carries ProtocolVersion in the WebSocket handshake.
	ProtocolHeader = "Modkit-Protocol"

	// DefaultMaxMessageSize bounds a single inbound frame.
	DefaultMaxMessageSize = 1 << 20
)

var (
	// ErrProtocolMismatch is returned when the peer speaks another protocol
	// version.
	ErrProtocolMismatch = errors.New("bridge protocol version mismatch")

	// ErrMalformedFrame is returned for frames that are not a valid envelope.
	ErrMalformedFrame = errors.New("malformed bridge frame")

	// ErrUnauthorized is returned when the bearer token is missing or wrong.
	ErrUnauthorized = errors.New("bridge token rejected")

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("bridge: cbor encoder options: %v", err))
	}
	decMode, err = cbor.DecOptions{
		MaxNestedLevels:  32,
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: cbor decoder options: %v", err))
	}
}

type (
	// Envelope is one frame on the wire. Kind is a command kind from the
	// client or an event kind from the server; Body is the kind-specific
	// payload, itself CBOR.
	Envelope struct {
		V    uint64          `cbor:"v"`
		Kind string          `cbor:"kind"`
		Req  string          `cbor:"req,omitempty"`
		Op   string          `cbor:"op,omitempty"`
		Body cbor.RawMessage `cbor:"body,omitempty"`
	}

	// VersionError reports a frame or handshake with another version.
	VersionError struct {
		Got string
	}
)

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("peer speaks protocol %q, want %d", e.Got, ProtocolVersion)
}

// Unwrap returns ErrProtocolMismatch for errors.Is.
func (e *VersionError) Unwrap() error { return ErrProtocolMismatch }

// NewEnvelope builds an envelope of the current version with body encoded.
// A nil body leaves Body empty.
func NewEnvelope(kind, req, op string, body any) (Envelope, error) {
	env := Envelope{V: ProtocolVersion, Kind: kind, Req: req, Op: op}
	if body != nil {
		raw, err := encMode.Marshal(body)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding %s body: %w", kind, err)
		}
		env.Body = raw
	}
	return env, nil
}

// Encode serializes env.
func Encode(env Envelope) ([]byte, error) {
	data, err := encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// Decode parses one frame and checks its version.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if env.V != ProtocolVersion {
		return Envelope{}, &VersionError{Got: strconv.FormatUint(env.V, 10)}
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("%w: missing kind", ErrMalformedFrame)
	}
	return env, nil
}

// DecodeBody unmarshals the body into v. An empty body leaves v untouched.
func (env Envelope) DecodeBody(v any) error {
	if len(env.Body) == 0 {
		return nil
	}
	if err := decMode.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("%w: %s body: %w", ErrMalformedFrame, env.Kind, err)
	}
	return nil
}

// checkHandshake validates the protocol header of an upgrade request.
func checkHandshake(value string) error {
	if value != strconv.Itoa(ProtocolVersion) {
		return &VersionError{Got: value}
	}
	return nil
}
