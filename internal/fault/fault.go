// Package fault owns the relay error taxonomy.
//
// Every error that crosses a component boundary carries a Kind and a short
// label naming the actor or subsystem that produced it. Kinds survive the
// wire: a dispatcher encodes them into the response and the client rebuilds
// an error that still matches the same sentinel through errors.Is.
package fault

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindUnknownTicket Kind = "unknown_ticket"
	KindSerialization Kind = "serialization"
	KindRouteMismatch Kind = "route_mismatch"
	KindTransport     Kind = "transport"
	KindMailboxClosed Kind = "mailbox_closed"
	KindTimeout       Kind = "timeout"
	KindResource      Kind = "resource"
	KindInternal      Kind = "internal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownTicket = errors.New("unknown ticket")
	ErrSerialization = errors.New("serialization error")
	ErrRouteMismatch = errors.New("route mismatch")
	ErrTransport     = errors.New("transport error")
	ErrMailboxClosed = errors.New("mailbox closed")
	ErrTimeout       = errors.New("timeout")
	ErrResource      = errors.New("resource error")
	ErrInternal      = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindNotFound:      ErrNotFound,
	KindUnknownTicket: ErrUnknownTicket,
	KindSerialization: ErrSerialization,
	KindRouteMismatch: ErrRouteMismatch,
	KindTransport:     ErrTransport,
	KindMailboxClosed: ErrMailboxClosed,
	KindTimeout:       ErrTimeout,
	KindResource:      ErrResource,
	KindInternal:      ErrInternal,
}

// Sentinel returns the sentinel error for kind. Unknown kinds map to ErrInternal.
func Sentinel(kind Kind) error {
	if err, ok := sentinels[kind]; ok {
		return err
	}
	return ErrInternal
}

// ParseKind maps a wire kind back to a known Kind.
func ParseKind(raw string) Kind {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := sentinels[kind]; ok {
		return kind
	}
	return KindInternal
}

// Error is a labeled, classified failure.
type Error struct {
	Kind  Kind
	Label string
	Err   error
	// Text replaces the rendered message. Set on errors rebuilt from the wire.
	Text string
}

func (e *Error) Error() string {
	if e.Text != "" {
		return e.Text
	}
	var b strings.Builder
	if e.Label != "" {
		b.WriteString(e.Label)
		b.WriteString(": ")
	}
	b.WriteString(Sentinel(e.Kind).Error())
	if e.Err != nil && e.Err != Sentinel(e.Kind) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == Sentinel(e.Kind)
}

// New builds a labeled error of kind with a formatted detail message.
func New(kind Kind, label, format string, args ...any) *Error {
	return &Error{Kind: kind, Label: label, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, label string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Label: label, Err: err}
}

// Remote rebuilds an error received from a peer, keeping its text verbatim.
func Remote(kind Kind, label, text string) *Error {
	return &Error{Kind: kind, Label: label, Text: text}
}

// KindOf reports the kind of err. Context expiry is a timeout; anything
// unclassified is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// Label reports the label of the outermost *Error in err's chain.
func Label(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Label
	}
	return ""
}
