package registry

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/danmuck/connrelay/internal/fault"
	"github.com/rs/zerolog/log"
)

const defaultMailboxCapacity = 64

// Config configures one registry actor.
type Config struct {
	// Label tags every error the registry produces, e.g. CONNECTION_ACTOR.
	Label           string
	MailboxCapacity int
	// LeaseTimeout bounds how long a checkout may stay out before the actor
	// reclaims it. Zero disables reclaim: an unreturned ticket is a leak.
	LeaseTimeout time.Duration
	Clock        clock.Clock
}

func DefaultConfig(label string) Config {
	return Config{
		Label:           label,
		MailboxCapacity: defaultMailboxCapacity,
		Clock:           clock.New(),
	}
}

func (c Config) withDefaults() Config {
	if c.Label == "" {
		c.Label = "REGISTRY_ACTOR"
	}
	if c.MailboxCapacity <= 0 {
		c.MailboxCapacity = defaultMailboxCapacity
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.LeaseTimeout < 0 {
		c.LeaseTimeout = 0
	}
	return c
}

// Ticket is a checked-out resource. Only the ticket handed out by the live
// checkout can put the value back.
type Ticket[K comparable, V any] struct {
	ID    K
	Value V
	Since time.Time
	token uint64
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Available int `json:"available"`
	Leased    int `json:"leased"`
}

// Registry owns an id->resource mapping. All access goes through the
// mailbox and is applied by a single goroutine in arrival order.
type Registry[K comparable, V any] struct {
	cfg      Config
	mailbox  chan command[K, V]
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New starts the registry actor.
func New[K comparable, V any](cfg Config) *Registry[K, V] {
	r, st := newRegistry[K, V](cfg)
	go r.run(st)
	return r
}

func newRegistry[K comparable, V any](cfg Config) (*Registry[K, V], *state[K, V]) {
	cfg = cfg.withDefaults()
	r := &Registry[K, V]{
		cfg:     cfg,
		mailbox: make(chan command[K, V], cfg.MailboxCapacity),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	st := &state[K, V]{
		label:        cfg.Label,
		clock:        cfg.Clock,
		leaseTimeout: cfg.LeaseTimeout,
		available:    make(map[K]V),
		leased:       make(map[K]lease[V]),
	}
	return r, st
}

func (r *Registry[K, V]) Label() string {
	return r.cfg.Label
}

// Done is closed once the actor has stopped.
func (r *Registry[K, V]) Done() <-chan struct{} {
	return r.done
}

// Insert stores value under id, replacing any prior entry. A live checkout
// of id is revoked.
func (r *Registry[K, V]) Insert(ctx context.Context, id K, value V) error {
	_, err := r.call(ctx, command[K, V]{op: opInsert, id: id, value: value})
	return err
}

// Get checks id out. An id that is absent or already checked out fails
// immediately with fault.ErrNotFound.
func (r *Registry[K, V]) Get(ctx context.Context, id K) (Ticket[K, V], error) {
	res, err := r.call(ctx, command[K, V]{op: opGet, id: id})
	if err != nil {
		return Ticket[K, V]{}, err
	}
	return res.ticket, nil
}

// Return puts a checked-out value back under its id. The value stored at
// checkout is restored; ticket.Value is not read.
func (r *Registry[K, V]) Return(ctx context.Context, ticket Ticket[K, V]) error {
	_, err := r.call(ctx, command[K, V]{op: opReturn, id: ticket.ID, ticket: ticket})
	return err
}

// Remove deletes id permanently, revoking any live checkout of it.
func (r *Registry[K, V]) Remove(ctx context.Context, id K) error {
	_, err := r.call(ctx, command[K, V]{op: opRemove, id: id})
	return err
}

func (r *Registry[K, V]) Stats(ctx context.Context) (Stats, error) {
	res, err := r.call(ctx, command[K, V]{op: opStats})
	return res.stats, err
}

// Reclaim moves checkouts older than the lease timeout back into the
// available set and reports how many moved.
func (r *Registry[K, V]) Reclaim(ctx context.Context) (int, error) {
	res, err := r.call(ctx, command[K, V]{op: opReclaim})
	return res.count, err
}

// Shutdown stops the actor and hands back every value it still owned,
// checked out or not.
func (r *Registry[K, V]) Shutdown(ctx context.Context) (map[K]V, error) {
	res, err := r.call(ctx, command[K, V]{op: opShutdown})
	if err != nil {
		return nil, err
	}
	return res.drained, nil
}

// Close stops the actor without draining it and waits for the loop to exit.
func (r *Registry[K, V]) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}

func (r *Registry[K, V]) closedErr() error {
	return fault.Wrap(fault.KindMailboxClosed, r.cfg.Label, fault.ErrMailboxClosed)
}

func (r *Registry[K, V]) timeoutErr(cmd command[K, V], err error) error {
	return fault.New(fault.KindTimeout, r.cfg.Label, "%s: %w", cmd.op, err)
}

// call delivers cmd and waits for its reply. A ctx expiry while waiting for
// the reply reports Timeout, but the actor still applies the queued command.
func (r *Registry[K, V]) call(ctx context.Context, cmd command[K, V]) (result[K, V], error) {
	cmd.reply = make(chan result[K, V], 1)
	select {
	case <-r.done:
		return result[K, V]{}, r.closedErr()
	default:
	}

	select {
	case r.mailbox <- cmd:
	case <-r.done:
		return result[K, V]{}, r.closedErr()
	case <-ctx.Done():
		return result[K, V]{}, r.timeoutErr(cmd, ctx.Err())
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-r.done:
		select {
		case res := <-cmd.reply:
			return res, res.err
		default:
		}
		return result[K, V]{}, r.closedErr()
	case <-ctx.Done():
		if cmd.op == opGet {
			go r.abandon(cmd)
		}
		return result[K, V]{}, r.timeoutErr(cmd, ctx.Err())
	}
}

// abandon returns a checkout whose caller stopped waiting for it.
func (r *Registry[K, V]) abandon(cmd command[K, V]) {
	select {
	case res := <-cmd.reply:
		if res.err != nil {
			return
		}
		log.Warn().
			Str("label", r.cfg.Label).
			Interface("id", cmd.id).
			Msg("registry.abandon returning checkout of canceled caller")
		if err := r.Return(context.Background(), res.ticket); err != nil {
			log.Warn().Err(err).Str("label", r.cfg.Label).Msg("registry.abandon return failed")
		}
	case <-r.done:
	}
}

func (r *Registry[K, V]) run(st *state[K, V]) {
	defer close(r.done)
	log.Debug().
		Str("label", r.cfg.Label).
		Int("mailbox", r.cfg.MailboxCapacity).
		Dur("lease_timeout", r.cfg.LeaseTimeout).
		Msg("registry.run started")

	var tick <-chan time.Time
	if r.cfg.LeaseTimeout > 0 {
		ticker := r.cfg.Clock.Ticker(reclaimEvery(r.cfg.LeaseTimeout))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.stop:
			log.Debug().Str("label", r.cfg.Label).Msg("registry.run stopped")
			return
		case <-tick:
			st.reclaim()
		case cmd := <-r.mailbox:
			res, stop := st.apply(cmd)
			cmd.reply <- res
			if stop {
				log.Debug().Str("label", r.cfg.Label).Msg("registry.run drained")
				return
			}
		}
	}
}

func reclaimEvery(leaseTimeout time.Duration) time.Duration {
	every := leaseTimeout / 2
	if every < 10*time.Millisecond {
		every = 10 * time.Millisecond
	}
	return every
}
