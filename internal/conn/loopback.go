package conn

import (
	"context"
	"sync/atomic"
)

// LoopbackDialer opens in-process handles that stay alive until closed.
type LoopbackDialer struct {
	dialed atomic.Int64
}

func (d *LoopbackDialer) Dial(ctx context.Context, target Target) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.dialed.Add(1)
	return &loopbackHandle{target: target}, nil
}

// Dialed reports how many handles were opened.
func (d *LoopbackDialer) Dialed() int64 {
	return d.dialed.Load()
}

type loopbackHandle struct {
	target Target
	closed atomic.Bool
}

func (h *loopbackHandle) Alive(context.Context) (bool, error) {
	return !h.closed.Load(), nil
}

func (h *loopbackHandle) Close(context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrHandleClosed
	}
	return nil
}
