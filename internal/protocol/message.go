package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/connrelay/internal/fault"
)

const label = "protocol"

// Message is one decoded wire body. ID travels in the frame header and is
// not part of the JSON document.
type Message struct {
	ID      uint64          `json:"-"`
	Route   Path            `json:"route,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// Failed reports whether the message carries an inline error.
func (m Message) Failed() bool {
	return m.Error != nil
}

// WireError is an error flattened for transport. Kind survives the trip so
// the receiver can still match fault sentinels.
type WireError struct {
	Kind    fault.Kind `json:"kind"`
	Label   string     `json:"label,omitempty"`
	Message string     `json:"message"`
}

func NewWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	return &WireError{
		Kind:    fault.KindOf(err),
		Label:   fault.Label(err),
		Message: err.Error(),
	}
}

// Err rebuilds a local error that matches the original kind's sentinel.
func (w *WireError) Err() error {
	if w == nil {
		return nil
	}
	return fault.Remote(fault.ParseKind(string(w.Kind)), w.Label, w.Message)
}

func EncodeMessage(m Message) ([]byte, error) {
	if !m.Route.Valid() && m.Error == nil {
		return nil, fault.New(fault.KindSerialization, label, "invalid route %q", m.Route.String())
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fault.Wrap(fault.KindSerialization, label, err)
	}
	return b, nil
}

// DecodeMessage parses one message body. Unknown top-level fields, trailing
// data and a missing route on a non-error message are rejected.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := decodeStrict(b, &m); err != nil {
		return Message{}, fault.Wrap(fault.KindSerialization, label, err)
	}
	if m.Error == nil && !m.Route.Valid() {
		return Message{}, fault.New(fault.KindSerialization, label, "missing route")
	}
	return m, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after document")
	}
	return nil
}
