package relay

import (
	"context"
	"fmt"
	"sort"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/danmuck/connrelay/internal/protocol"
	"github.com/rs/zerolog/log"
)

const muxLabel = "relay.mux"

type handler func(ctx context.Context, msg protocol.Message) protocol.Message

type node struct {
	children map[string]*node
	handler  handler
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Mux routes messages through a tree keyed by path segment. Register every
// route before the mux starts serving; lookups are not synchronized with
// registration.
type Mux struct {
	root *node
}

func NewMux() *Mux {
	return &Mux{root: newNode()}
}

// Handle registers fn for route. The request is decoded strictly as Req and
// the reply is written on the same route. Registering a path twice panics.
func Handle[Req, Resp any](m *Mux, route protocol.Route[Req, Resp], fn func(context.Context, Req) (Resp, error)) {
	m.register(route.Path(), func(ctx context.Context, msg protocol.Message) protocol.Message {
		req, err := route.Request(msg)
		if err != nil {
			return route.Fail(err)
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return route.Fail(err)
		}
		out, err := route.Reply(resp)
		if err != nil {
			return route.Fail(err)
		}
		return out
	})
}

func (m *Mux) register(path protocol.Path, h handler) {
	n := m.root
	for _, seg := range path {
		child, ok := n.children[seg]
		if !ok {
			child = newNode()
			n.children[seg] = child
		}
		n = child
	}
	if n.handler != nil {
		panic(fmt.Sprintf("relay: route %s registered twice", path.String()))
	}
	n.handler = h
}

func (m *Mux) lookup(path protocol.Path) handler {
	n := m.root
	for _, seg := range path {
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n.handler
}

// Dispatch always returns a well-formed response carrying msg's id. Unknown
// paths answer RouteMismatch and a panicking handler answers Internal.
func (m *Mux) Dispatch(ctx context.Context, msg protocol.Message) (out protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("route", msg.Route.String()).
				Interface("panic", r).
				Msg("relay.Mux.Dispatch handler panicked")
			out = protocol.Message{
				Route: msg.Route,
				Error: protocol.NewWireError(fault.New(fault.KindInternal, muxLabel, "handler panic: %v", r)),
			}
		}
		out.ID = msg.ID
	}()

	h := m.lookup(msg.Route)
	if h == nil {
		return protocol.Message{
			Route: msg.Route,
			Error: protocol.NewWireError(fault.New(fault.KindRouteMismatch, muxLabel, "no route %s", msg.Route.String())),
		}
	}
	return h(ctx, msg)
}

// Routes lists the registered paths in sorted order.
func (m *Mux) Routes() []string {
	var out []string
	var walk func(n *node, prefix protocol.Path)
	walk = func(n *node, prefix protocol.Path) {
		if n.handler != nil {
			out = append(out, prefix.String())
		}
		for seg, child := range n.children {
			walk(child, append(append(protocol.Path(nil), prefix...), seg))
		}
	}
	walk(m.root, nil)
	sort.Strings(out)
	return out
}
