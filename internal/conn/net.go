package conn

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/danmuck/connrelay/internal/fault"
)

const netLabel = "conn.net"

var defaultPorts = map[string]string{
	"ws":    "80",
	"http":  "80",
	"wss":   "443",
	"https": "443",
}

// NetDialer opens a TCP connection to the target host.
type NetDialer struct {
	Timeout time.Duration
}

func (d NetDialer) Dial(ctx context.Context, target Target) (Handle, error) {
	if target.URL == nil {
		return nil, fault.New(fault.KindResource, netLabel, "target has no url")
	}
	addr, err := hostPort(target)
	if err != nil {
		return nil, err
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fault.Wrap(fault.KindResource, netLabel, err)
	}
	return &netHandle{conn: c}, nil
}

func hostPort(target Target) (string, error) {
	host := target.URL.Hostname()
	port := target.URL.Port()
	if port == "" {
		p, ok := defaultPorts[strings.ToLower(target.URL.Scheme)]
		if !ok {
			return "", fault.New(fault.KindResource, netLabel, "url %q needs an explicit port", target.Raw)
		}
		port = p
	}
	return net.JoinHostPort(host, port), nil
}

type netHandle struct {
	conn   net.Conn
	closed bool
}

// Alive peeks at the socket without consuming pending session bytes.
func (h *netHandle) Alive(ctx context.Context) (bool, error) {
	if h.closed {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return peekAlive(h.conn), nil
}

func (h *netHandle) Close(context.Context) error {
	if h.closed {
		return ErrHandleClosed
	}
	h.closed = true
	return h.conn.Close()
}
