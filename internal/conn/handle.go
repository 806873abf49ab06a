package conn

import (
	"context"
	"errors"
)

var ErrHandleClosed = errors.New("conn: handle already closed")

// Handle is one live external connection. A Handle is never shared: the
// registry lends it to exactly one caller at a time, so implementations need
// no internal locking for Alive and Close.
type Handle interface {
	Alive(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Dialer opens handles for targets.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Handle, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, target Target) (Handle, error)

func (f DialerFunc) Dial(ctx context.Context, target Target) (Handle, error) {
	return f(ctx, target)
}
