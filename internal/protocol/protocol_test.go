package protocol

import (
	"encoding/json"
	"testing"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/stretchr/testify/require"
)

func wire(t *testing.T, msg Message) Message {
	t.Helper()
	b, err := EncodeMessage(msg)
	require.NoError(t, err)
	out, err := DecodeMessage(b)
	require.NoError(t, err)
	return out
}

func roundTrip[Req, Resp any](t *testing.T, route Route[Req, Resp], req Req, resp Resp) {
	t.Helper()
	msg, err := route.Package(req)
	require.NoError(t, err)
	gotReq, err := route.Request(wire(t, msg))
	require.NoError(t, err)
	require.Equal(t, req, gotReq)

	reply, err := route.Reply(resp)
	require.NoError(t, err)
	gotResp, err := route.Unpack(wire(t, reply))
	require.NoError(t, err)
	require.Equal(t, resp, gotResp)
}

func TestRoutesRoundTrip(t *testing.T) {
	roundTrip(t, ConnectionCreate, URL{URL: "db://host"}, ConnectionID{ConnectionID: "c1"})
	roundTrip(t, ConnectionClose, ConnectionID{ConnectionID: "c1"}, Empty{})
	roundTrip(t, ConnectionCheck, ConnectionID{ConnectionID: "c1"}, true)
	roundTrip(t, ConnectionCheck, ConnectionID{ConnectionID: "c1"}, false)
	roundTrip(t, RelayStats, Empty{}, Stats{Available: 2, Leased: 1})
}

func TestWrongVariantIsRouteMismatch(t *testing.T) {
	msg, err := ConnectionCreate.Package(URL{URL: "db://host"})
	require.NoError(t, err)

	_, err = ConnectionClose.Request(msg)
	require.ErrorIs(t, err, fault.ErrRouteMismatch)
	_, err = ConnectionCheck.Unpack(msg)
	require.ErrorIs(t, err, fault.ErrRouteMismatch)
}

func TestMismatchedPayloadShapeIsRejected(t *testing.T) {
	cases := []Message{
		{Route: ConnectionCheck.Path(), Payload: json.RawMessage(`{"url":"db://host"}`)},
		{Route: ConnectionCheck.Path(), Payload: json.RawMessage(`true`)},
		{Route: ConnectionCheck.Path(), Payload: json.RawMessage(`{}`)},
		{Route: ConnectionCheck.Path()},
	}
	for _, msg := range cases {
		_, err := ConnectionCheck.Request(msg)
		require.ErrorIs(t, err, fault.ErrRouteMismatch, "payload=%s", msg.Payload)
	}

	reply := Message{Route: ConnectionCheck.Path(), Payload: json.RawMessage(`{"connection_id":"c1"}`)}
	_, err := ConnectionCheck.Unpack(reply)
	require.ErrorIs(t, err, fault.ErrRouteMismatch)
}

func TestErrorPropagatesThroughRoute(t *testing.T) {
	cause := fault.New(fault.KindNotFound, "CONNECTION_ACTOR", "id=%q", "c9")
	msg := wire(t, ConnectionCheck.Fail(cause))

	_, err := ConnectionCheck.Unpack(msg)
	require.ErrorIs(t, err, fault.ErrNotFound)
	require.Equal(t, cause.Error(), err.Error())
	require.Equal(t, "CONNECTION_ACTOR", fault.Label(err))
}

func TestRoutelessErrorIsSurfacedFirst(t *testing.T) {
	msg := Message{Error: NewWireError(fault.New(fault.KindSerialization, "relay.server", "bad frame"))}
	msg = wire(t, msg)

	_, err := RelayStats.Unpack(msg)
	require.ErrorIs(t, err, fault.ErrSerialization)
}

func TestDecodeMessageRejectsMalformedInput(t *testing.T) {
	cases := []string{
		``,
		`{`,
		`{"route":["connection","create"],"payload":{"url":"db://ho`,
		`{"payload":{"url":"db://host"}}`,
		`{"route":[]}`,
		`{"route":["connection",""]}`,
		`{"route":["connection","create"],"extra":1}`,
		`{"route":["connection","create"]} {"route":["x"]}`,
	}
	for _, raw := range cases {
		_, err := DecodeMessage([]byte(raw))
		require.ErrorIs(t, err, fault.ErrSerialization, "raw=%s", raw)
	}
}

func TestEncodeMessageRequiresRoute(t *testing.T) {
	_, err := EncodeMessage(Message{Payload: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, fault.ErrSerialization)
}

func TestPackageValidatesRequest(t *testing.T) {
	_, err := ConnectionCreate.Package(URL{})
	require.ErrorIs(t, err, fault.ErrSerialization)
}

func TestNewRoutePanicsOnBlankSegment(t *testing.T) {
	require.Panics(t, func() { NewRoute[Empty, Empty]("relay", " ") })
	require.Panics(t, func() { NewRoute[Empty, Empty]() })
}

func TestPathHelpers(t *testing.T) {
	p := ConnectionCreate.Path()
	require.Equal(t, "connection.create", p.String())
	require.True(t, p.Equal(Path{"connection", "create"}))
	require.False(t, p.Equal(ConnectionClose.Path()))

	p[0] = "mutated"
	require.Equal(t, "connection.create", ConnectionCreate.String())
}
