package conn

import (
	"context"
	"fmt"
	"sort"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/danmuck/connrelay/internal/registry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// ActorLabel tags errors produced by the connection registry.
const ActorLabel = "CONNECTION_ACTOR"

type (
	Registry = registry.Registry[string, Handle]
	Ticket   = registry.Ticket[string, Handle]
)

// NewRegistry starts the connection registry actor.
func NewRegistry(cfg registry.Config) *Registry {
	cfg.Label = ActorLabel
	return registry.New[string, Handle](cfg)
}

// Manager exposes connection operations on top of the registry.
type Manager struct {
	reg    *Registry
	dialer Dialer
	newID  func() string
}

func NewManager(reg *Registry, dialer Dialer) *Manager {
	if dialer == nil {
		dialer = &LoopbackDialer{}
	}
	return &Manager{
		reg:    reg,
		dialer: dialer,
		newID:  uuid.NewString,
	}
}

func (m *Manager) Registry() *Registry {
	return m.reg
}

// Checkout lends the connection with id to the caller until Release.
func (m *Manager) Checkout(ctx context.Context, id, label string) (Ticket, error) {
	return registry.Checkout(ctx, m.reg, id, label)
}

func (m *Manager) Release(ctx context.Context, ticket Ticket, label string) error {
	return registry.Release(ctx, m.reg, ticket, label)
}

// Create dials rawURL and registers the handle under a fresh id.
func (m *Manager) Create(ctx context.Context, rawURL string) (string, error) {
	target, err := ParseTarget(rawURL)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	h, err := m.dialer.Dial(ctx, target)
	if err != nil {
		if fault.KindOf(err) == fault.KindInternal {
			err = fault.Wrap(fault.KindResource, "conn.dial", err)
		}
		return "", fmt.Errorf("create: %w", err)
	}
	id := m.newID()
	if err := m.reg.Insert(ctx, id, h); err != nil {
		return "", multierr.Append(fmt.Errorf("create: %w", err), h.Close(ctx))
	}
	log.Info().
		Str("connection_id", id).
		Str("target", target.String()).
		Stringer("protocol", target.Protocol).
		Msg("conn.Manager.Create opened")
	return id, nil
}

// Close closes the connection and removes it for good. If the handle fails
// to close it goes back to the registry.
func (m *Manager) Close(ctx context.Context, id string) error {
	t, err := m.Checkout(ctx, id, "close")
	if err != nil {
		return err
	}
	if err := t.Value.Close(ctx); err != nil {
		closeErr := fault.Wrap(fault.KindResource, "close", err)
		return multierr.Append(closeErr, m.Release(ctx, t, "close"))
	}
	if err := m.reg.Remove(ctx, id); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	log.Info().Str("connection_id", id).Msg("conn.Manager.Close closed")
	return nil
}

// Check reports whether the connection is still open.
func (m *Manager) Check(ctx context.Context, id string) (bool, error) {
	t, err := m.Checkout(ctx, id, "check")
	if err != nil {
		return false, err
	}
	alive, aliveErr := t.Value.Alive(ctx)
	releaseErr := m.Release(ctx, t, "check")
	if aliveErr != nil {
		return false, multierr.Append(fault.Wrap(fault.KindResource, "check", aliveErr), releaseErr)
	}
	if releaseErr != nil {
		return false, releaseErr
	}
	return alive, nil
}

// Shutdown stops the registry and closes every handle it still owned.
func (m *Manager) Shutdown(ctx context.Context) error {
	drained, err := m.reg.Shutdown(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(drained))
	for id := range drained {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs error
	for _, id := range ids {
		if err := drained[id].Close(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	log.Info().Int("connections", len(ids)).Msg("conn.Manager.Shutdown drained")
	return errs
}
