package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/connrelay/internal/testutil/testlog"
)

func TestDeadlineForCapsAtContextDeadline(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	want, _ := ctx.Deadline()

	if got := deadlineFor(ctx, time.Minute); !got.Equal(want) {
		t.Fatalf("expected ctx deadline %v, got %v", want, got)
	}
	if got := deadlineFor(ctx, time.Millisecond); !got.Before(want) {
		t.Fatalf("expected timeout before ctx deadline, got %v", got)
	}
	if got := deadlineFor(context.Background(), time.Minute); time.Until(got) < 50*time.Second {
		t.Fatalf("expected configured timeout without ctx deadline, got %v", got)
	}
}

func TestSetDeadlineRechecksCanceledContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var set time.Time
	err := setDeadline(ctx, func(d time.Time) error {
		set = d
		return nil
	}, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if set.IsZero() {
		t.Fatalf("expected deadline to be applied before the ctx check")
	}

	setErr := errors.New("closed")
	err = setDeadline(context.Background(), func(time.Time) error { return setErr }, time.Minute)
	if !errors.Is(err, setErr) {
		t.Fatalf("expected setter error, got %v", err)
	}
}
