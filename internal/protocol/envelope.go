package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/danmuck/connrelay/internal/fault"
)

// Validator is implemented by payload types with required fields.
type Validator interface {
	Validate() error
}

// Envelope is the typed body of one exchange on a route. The same envelope
// shape carries the request out and the response back; Resp exists only in
// the type and is never written to the wire.
type Envelope[Req, Resp any] struct {
	Payload json.RawMessage
	Err     *WireError
}

// Package serializes req into a new envelope.
func Package[Req, Resp any](req Req) (Envelope[Req, Resp], error) {
	raw, err := encodePayload(req)
	if err != nil {
		return Envelope[Req, Resp]{}, err
	}
	return Envelope[Req, Resp]{Payload: raw}, nil
}

// Request decodes the envelope as the route's request type.
func (e Envelope[Req, Resp]) Request() (Req, error) {
	var req Req
	if e.Err != nil {
		return req, fault.New(fault.KindRouteMismatch, label, "request carries an error")
	}
	err := decodePayload(e.Payload, &req)
	return req, err
}

// Respond returns the envelope carrying resp back on the same route.
func (e Envelope[Req, Resp]) Respond(resp Resp) (Envelope[Req, Resp], error) {
	raw, err := encodePayload(resp)
	if err != nil {
		return Envelope[Req, Resp]{}, err
	}
	return Envelope[Req, Resp]{Payload: raw}, nil
}

// Unpack yields the typed response, or the inline error if one was sent.
func (e Envelope[Req, Resp]) Unpack() (Resp, error) {
	var resp Resp
	if e.Err != nil {
		return resp, e.Err.Err()
	}
	err := decodePayload(e.Payload, &resp)
	return resp, err
}

func encodePayload(v any) (json.RawMessage, error) {
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return nil, fault.Wrap(fault.KindSerialization, label, err)
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fault.Wrap(fault.KindSerialization, label, err)
	}
	return raw, nil
}

// decodePayload is strict: a payload that does not match the expected shape
// belongs to some other route.
func decodePayload(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fault.New(fault.KindRouteMismatch, label, "missing payload")
	}
	if err := decodeStrict(raw, v); err != nil {
		return fault.Wrap(fault.KindRouteMismatch, label, err)
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fault.Wrap(fault.KindRouteMismatch, label, err)
		}
	}
	return nil
}
