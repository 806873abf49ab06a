//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package conn

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peekAlive reports whether the peer is still connected. Pending data is
// left in the kernel buffer; an empty buffer is a live idle peer.
func peekAlive(c net.Conn) bool {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return true
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false
	}

	var (
		n       int
		peekErr error
		buf     [1]byte
	)
	err = raw.Read(func(fd uintptr) bool {
		n, _, peekErr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return false
	}
	switch {
	case peekErr == nil:
		// zero bytes without an error is an orderly shutdown by the peer
		return n > 0
	case errors.Is(peekErr, unix.EAGAIN), errors.Is(peekErr, unix.EWOULDBLOCK), errors.Is(peekErr, unix.EINTR):
		return true
	default:
		return false
	}
}
