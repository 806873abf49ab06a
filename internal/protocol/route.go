package protocol

import (
	"fmt"

	"github.com/danmuck/connrelay/internal/fault"
)

// Route binds a path in the route tree to its request and response types.
type Route[Req, Resp any] struct {
	path Path
}

// NewRoute declares a route. It panics on an empty or blank segment since
// routes are package-level declarations.
func NewRoute[Req, Resp any](segments ...string) Route[Req, Resp] {
	p := Path(segments)
	if !p.Valid() {
		panic(fmt.Sprintf("protocol: invalid route path %q", p.String()))
	}
	return Route[Req, Resp]{path: append(Path(nil), p...)}
}

func (r Route[Req, Resp]) Path() Path {
	return append(Path(nil), r.path...)
}

func (r Route[Req, Resp]) String() string {
	return r.path.String()
}

// Package builds the request message for req.
func (r Route[Req, Resp]) Package(req Req) (Message, error) {
	env, err := Package[Req, Resp](req)
	if err != nil {
		return Message{}, err
	}
	return Message{Route: r.Path(), Payload: env.Payload}, nil
}

// Open returns the typed envelope of msg if msg sits on this route.
func (r Route[Req, Resp]) Open(msg Message) (Envelope[Req, Resp], error) {
	if !msg.Route.Equal(r.path) {
		return Envelope[Req, Resp]{}, fault.New(fault.KindRouteMismatch, label,
			"route=%s want=%s", msg.Route.String(), r.path.String())
	}
	return Envelope[Req, Resp]{Payload: msg.Payload, Err: msg.Error}, nil
}

// Request decodes msg as this route's request.
func (r Route[Req, Resp]) Request(msg Message) (Req, error) {
	env, err := r.Open(msg)
	if err != nil {
		var zero Req
		return zero, err
	}
	return env.Request()
}

// Reply builds the success response on this route.
func (r Route[Req, Resp]) Reply(resp Resp) (Message, error) {
	env, err := Envelope[Req, Resp]{}.Respond(resp)
	if err != nil {
		return Message{}, err
	}
	return Message{Route: r.Path(), Payload: env.Payload}, nil
}

// Fail builds the error response on this route.
func (r Route[Req, Resp]) Fail(err error) Message {
	return Message{Route: r.Path(), Error: NewWireError(err)}
}

// Unpack yields the typed response carried by msg. An error sent without a
// route (the peer could not read the request) is surfaced before the route
// is checked.
func (r Route[Req, Resp]) Unpack(msg Message) (Resp, error) {
	if msg.Error != nil && len(msg.Route) == 0 {
		var zero Resp
		return zero, msg.Error.Err()
	}
	env, err := r.Open(msg)
	if err != nil {
		var zero Resp
		return zero, err
	}
	return env.Unpack()
}
