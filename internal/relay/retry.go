package relay

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/rs/zerolog/log"
)

// NextBackoffDelay is the pause before retry attempt n. The first attempt
// waits InitialDelay; later ones grow by Multiplier up to MaxDelay. Jitter
// scales the grown delay into [0.5, 1.5), or exactly 0.5 with a nil rng.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	switch {
	case attempt <= 1:
		return cfg.InitialDelay
	case cfg.InitialDelay <= 0:
		return 0
	}
	growth := max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(growth, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		delay = min(delay, float64(cfg.MaxDelay))
	}
	if !cfg.Jitter {
		return time.Duration(delay)
	}
	scale := 0.5
	if rng != nil {
		scale += rng.Float64()
	}
	return time.Duration(delay * scale)
}

// Retry calls fn until it succeeds, fails with anything other than NotFound,
// or runs out of attempts. A checked-out id reports NotFound, so this is the
// caller-side answer to contention.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, fault.ErrNotFound) || attempt == attempts {
			return err
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Debug().Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("relay.Retry backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fault.Wrap(fault.KindTimeout, "relay.retry", ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
