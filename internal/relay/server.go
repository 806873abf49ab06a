package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/connrelay/internal/fault"
	"github.com/danmuck/connrelay/internal/protocol"
	"github.com/danmuck/connrelay/internal/protocol/frame"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const serverLabel = "relay.server"

// Server answers one request per accepted connection.
type Server struct {
	mux    *Mux
	cfg    ServerConfig
	slots  *semaphore.Weighted
	active atomic.Int64
}

func NewServer(mux *Mux, cfg ServerConfig) *Server {
	cfg = cfg.WithDefaults()
	return &Server{
		mux:   mux,
		cfg:   cfg,
		slots: semaphore.NewWeighted(cfg.MaxConnections),
	}
}

// Listen binds a TCP listener for Serve.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, serverLabel, err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is cancelled, then waits for in-flight
// exchanges. At most MaxConnections are handled at once; further clients
// wait in the listen backlog.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Int64("max_connections", s.cfg.MaxConnections).Msg("relay.Server.Serve listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil
		}
		c, err := ln.Accept()
		if err != nil {
			s.slots.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			return fault.Wrap(fault.KindTransport, serverLabel, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.slots.Release(1)
			s.handleConn(ctx, c)
		}()
	}
}

// Active reports how many exchanges are in flight.
func (s *Server) Active() int64 {
	return s.active.Load()
}

func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()
	remote := c.RemoteAddr().String()
	active := s.active.Add(1)
	defer s.active.Add(-1)
	log.Debug().Str("remote", remote).Int64("active", active).Msg("relay.Server.handleConn accepted")

	_ = c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	f, err := frame.ReadFrame(c, s.cfg.Limits)
	if err != nil {
		s.discardOversized(c, f, err)
		log.Warn().Str("remote", remote).Err(err).Msg("relay.Server.handleConn read failed")
		s.write(c, protocol.Message{ID: f.Header.MessageID, Error: protocol.NewWireError(readError(serverLabel, err))})
		return
	}

	msg, err := protocol.DecodeMessage(f.Payload)
	if err != nil {
		log.Warn().Str("remote", remote).Err(err).Msg("relay.Server.handleConn decode failed")
		s.write(c, protocol.Message{ID: f.Header.MessageID, Error: protocol.NewWireError(err)})
		return
	}
	msg.ID = f.Header.MessageID

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	resp := s.mux.Dispatch(reqCtx, msg)
	cancel()

	if resp.Failed() {
		log.Debug().Str("route", msg.Route.String()).Str("kind", string(resp.Error.Kind)).Msg("relay.Server.handleConn request failed")
	}
	s.write(c, resp)
}

// discardOversized drains the declared payload of a rejected frame so the
// error reply is not lost to a reset when the socket closes with unread data.
func (s *Server) discardOversized(c net.Conn, f frame.Frame, err error) {
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		return
	}
	_, _ = io.CopyN(io.Discard, c, int64(f.Header.PayloadLen))
}

func (s *Server) write(c net.Conn, msg protocol.Message) {
	out := encodeResponse(msg, s.cfg.Limits)
	_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := frame.WriteFrame(c, out, s.cfg.Limits); err != nil {
		log.Debug().Str("remote", c.RemoteAddr().String()).Err(err).Msg("relay.Server.write failed")
	}
}

// encodeResponse frames msg as a response. A reply that cannot be encoded
// or does not fit the limit is replaced by a Serialization error.
func encodeResponse(msg protocol.Message, limits frame.Limits) frame.Frame {
	payload, err := protocol.EncodeMessage(msg)
	if err == nil && uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		err = fault.New(fault.KindSerialization, serverLabel, "response of %d bytes exceeds limit %d", len(payload), limits.MaxPayloadBytes)
	}
	if err != nil {
		msg = protocol.Message{ID: msg.ID, Route: msg.Route, Error: protocol.NewWireError(err)}
		payload, _ = protocol.EncodeMessage(msg)
	}
	flags := frame.FlagIsResponse
	if msg.Failed() {
		flags |= frame.FlagIsError
	}
	return frame.Frame{
		Header:  frame.Header{Flags: flags, MessageID: msg.ID},
		Payload: payload,
	}
}

// readError classifies a failed frame read.
func readError(label string, err error) error {
	switch {
	case errors.Is(err, frame.ErrPayloadTooLarge),
		errors.Is(err, frame.ErrShortHeader),
		errors.Is(err, frame.ErrShortPayload),
		errors.Is(err, frame.ErrInvalidMagic),
		errors.Is(err, frame.ErrUnsupportedVersion):
		return fault.Wrap(fault.KindSerialization, label, err)
	case isTimeout(err):
		return fault.Wrap(fault.KindTimeout, label, err)
	default:
		return fault.Wrap(fault.KindTransport, label, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
