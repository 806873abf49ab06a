package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/connrelay/internal/conn"
	"github.com/danmuck/connrelay/internal/fault"
	"github.com/danmuck/connrelay/internal/registry"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownDialer = errors.New("relay: unknown dialer")

// Service runs the relay listener and the connection registry as one process.
type Service struct {
	cfg ServiceConfig
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Run listens on ListenAddr and blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := Listen(s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve wires the registry, manager and mux onto ln and serves until ctx is
// done or the registry stops. Every connection still owned by the registry
// is closed before Serve returns.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	dialer, err := newDialer(s.cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}

	regCfg := registry.DefaultConfig(conn.ActorLabel)
	regCfg.MailboxCapacity = s.cfg.MailboxCapacity
	regCfg.LeaseTimeout = s.cfg.LeaseTimeout
	reg := conn.NewRegistry(regCfg)
	manager := conn.NewManager(reg, dialer)

	mux := NewMux()
	RegisterConnectionRoutes(mux, manager)
	RegisterRelayRoutes(mux, reg)
	server := NewServer(mux, s.cfg.Server)

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("dialer", s.cfg.Dialer).
		Dur("lease_timeout", s.cfg.LeaseTimeout).
		Strs("routes", mux.Routes()).
		Msg("relay.Service.Serve ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, ln)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-reg.Done():
			return fault.New(fault.KindMailboxClosed, conn.ActorLabel, "registry stopped")
		}
	})
	err = g.Wait()

	grace := s.cfg.ShutdownTimeout
	if grace <= 0 {
		grace = DefaultServiceConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil && !errors.Is(shutdownErr, fault.ErrMailboxClosed) {
		err = multierr.Append(err, shutdownErr)
	}
	log.Info().Err(err).Msg("relay.Service.Serve stopped")
	return err
}

func newDialer(cfg ServiceConfig) (conn.Dialer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Dialer)) {
	case "", DialerLoopback:
		return &conn.LoopbackDialer{}, nil
	case DialerTCP:
		return conn.NetDialer{Timeout: cfg.DialTimeout}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialer, cfg.Dialer)
	}
}
