package conn

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/danmuck/connrelay/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		raw  string
		want Protocol
	}{
		{"ws://db.local:8000", ProtocolWS},
		{"WSS://db.local", ProtocolWS},
		{"http://db.local", ProtocolHTTP},
		{"https://db.local:443/rpc", ProtocolHTTP},
		{"db://host", ProtocolOpaque},
	}
	for _, tc := range cases {
		target, err := ParseTarget(tc.raw)
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, target.Protocol, tc.raw)
	}

	for _, raw := range []string{"", "   ", "host-only", "ws://", "::bad"} {
		_, err := ParseTarget(raw)
		require.ErrorIs(t, err, fault.ErrResource, raw)
	}
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("ws")
	require.NoError(t, err)
	require.Equal(t, ProtocolWS, p)

	p, err = ParseProtocol(" Http ")
	require.NoError(t, err)
	require.Equal(t, ProtocolHTTP, p)

	_, err = ParseProtocol("gopher")
	require.ErrorIs(t, err, fault.ErrResource)
	require.Contains(t, err.Error(), "invalid protocol: gopher")
}

func TestNetDialerRequiresPortForUnknownScheme(t *testing.T) {
	testlog.Start(t)
	target, err := ParseTarget("db://host")
	require.NoError(t, err)
	_, err = NetDialer{}.Dial(context.Background(), target)
	require.ErrorIs(t, err, fault.ErrResource)
}

func TestNetDialerHandleLiveness(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	target, err := ParseTarget("ws://" + ln.Addr().String())
	require.NoError(t, err)
	ctx := context.Background()
	h, err := NetDialer{Timeout: time.Second}.Dial(ctx, target)
	require.NoError(t, err)

	peer := <-accepted
	alive, err := h.Alive(ctx)
	require.NoError(t, err)
	require.True(t, alive)

	require.NoError(t, peer.Close())
	require.Eventually(t, func() bool {
		alive, err := h.Alive(ctx)
		return err == nil && !alive
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, h.Close(ctx))
	require.ErrorIs(t, h.Close(ctx), ErrHandleClosed)
	alive, err = h.Alive(ctx)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestNetHandleAliveKeepsPendingData(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	target, err := ParseTarget("ws://" + ln.Addr().String())
	require.NoError(t, err)
	ctx := context.Background()
	h, err := NetDialer{Timeout: time.Second}.Dial(ctx, target)
	require.NoError(t, err)
	defer h.Close(ctx)

	peer := <-accepted
	defer peer.Close()
	_, err = peer.Write([]byte("hello"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		alive, err := h.Alive(ctx)
		require.NoError(t, err)
		require.True(t, alive)
		time.Sleep(10 * time.Millisecond)
	}

	// a peer that closed with unread data still reads back in full
	require.NoError(t, peer.Close())
	session := h.(*netHandle).conn
	require.NoError(t, session.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 5)
	_, err = io.ReadFull(session, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestLoopbackHandleClose(t *testing.T) {
	ctx := context.Background()
	h, err := (&LoopbackDialer{}).Dial(ctx, Target{Raw: "db://host"})
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))
	require.ErrorIs(t, h.Close(ctx), ErrHandleClosed)
	alive, err := h.Alive(ctx)
	require.NoError(t, err)
	require.False(t, alive)
}
