package relay

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/danmuck/connrelay/internal/protocol"
	"github.com/danmuck/connrelay/internal/protocol/frame"
)

const clientLabel = "relay.client"

// Client is a blocking caller. Every call dials a fresh connection, writes
// one frame, reads one frame and hangs up.
type Client struct {
	cfg ClientConfig
	seq atomic.Uint64
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg.WithDefaults()}
}

func (c *Client) Addr() string {
	return c.cfg.Addr
}

// Open creates a connection to url and returns its id.
func (c *Client) Open(ctx context.Context, url string) (string, error) {
	resp, err := Call(ctx, c, protocol.ConnectionCreate, protocol.URL{URL: url})
	return resp.ConnectionID, err
}

func (c *Client) Close(ctx context.Context, id string) error {
	_, err := Call(ctx, c, protocol.ConnectionClose, protocol.ConnectionID{ConnectionID: id})
	return err
}

// Check reports whether the connection is open.
func (c *Client) Check(ctx context.Context, id string) (bool, error) {
	return Call(ctx, c, protocol.ConnectionCheck, protocol.ConnectionID{ConnectionID: id})
}

func (c *Client) Stats(ctx context.Context) (protocol.Stats, error) {
	return Call(ctx, c, protocol.RelayStats, protocol.Empty{})
}

// Call performs one exchange on route.
func Call[Req, Resp any](ctx context.Context, c *Client, route protocol.Route[Req, Resp], req Req) (Resp, error) {
	var zero Resp
	msg, err := route.Package(req)
	if err != nil {
		return zero, err
	}
	msg.ID = c.seq.Add(1)
	resp, err := c.roundTrip(ctx, msg)
	if err != nil {
		return zero, err
	}
	return route.Unpack(resp)
}

func (c *Client) roundTrip(ctx context.Context, msg protocol.Message) (protocol.Message, error) {
	payload, err := protocol.EncodeMessage(msg)
	if err != nil {
		return protocol.Message{}, err
	}
	if uint64(len(payload)) > uint64(c.cfg.Limits.MaxPayloadBytes) {
		return protocol.Message{}, fault.New(fault.KindSerialization, clientLabel,
			"request of %d bytes exceeds limit %d", len(payload), c.cfg.Limits.MaxPayloadBytes)
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return protocol.Message{}, c.transportErr(ctx, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	out := frame.Frame{Header: frame.Header{MessageID: msg.ID}, Payload: payload}
	if err := setDeadline(ctx, conn.SetWriteDeadline, c.cfg.WriteTimeout); err != nil {
		return protocol.Message{}, c.transportErr(ctx, err)
	}
	if err := frame.WriteFrame(conn, out, c.cfg.Limits); err != nil {
		return protocol.Message{}, c.transportErr(ctx, err)
	}

	if err := setDeadline(ctx, conn.SetReadDeadline, c.cfg.ReadTimeout); err != nil {
		return protocol.Message{}, c.transportErr(ctx, err)
	}
	in, err := frame.ReadFrame(conn, c.cfg.Limits)
	if err != nil {
		return protocol.Message{}, c.transportErr(ctx, err)
	}
	if !in.IsResponse() {
		return protocol.Message{}, fault.New(fault.KindSerialization, clientLabel, "peer sent a request frame")
	}
	if in.Header.MessageID != msg.ID {
		return protocol.Message{}, fault.New(fault.KindSerialization, clientLabel,
			"response id=%d want=%d", in.Header.MessageID, msg.ID)
	}
	resp, err := protocol.DecodeMessage(in.Payload)
	if err != nil {
		return protocol.Message{}, err
	}
	resp.ID = in.Header.MessageID
	return resp, nil
}

func (c *Client) transportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fault.Wrap(fault.KindTimeout, clientLabel, ctx.Err())
	}
	return readError(clientLabel, err)
}

// deadlineFor is now+timeout, capped at the ctx deadline.
func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

// setDeadline applies a capped deadline, then rechecks ctx so a cancel that
// fired before the set is not overridden.
func setDeadline(ctx context.Context, set func(time.Time) error, timeout time.Duration) error {
	if err := set(deadlineFor(ctx, timeout)); err != nil {
		return err
	}
	return ctx.Err()
}
