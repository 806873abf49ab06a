package relay

import (
	"context"

	"github.com/danmuck/connrelay/internal/conn"
	"github.com/danmuck/connrelay/internal/protocol"
)

// RegisterConnectionRoutes binds the connection subsystem to m.
func RegisterConnectionRoutes(mux *Mux, m *conn.Manager) {
	Handle(mux, protocol.ConnectionCreate, func(ctx context.Context, req protocol.URL) (protocol.ConnectionID, error) {
		id, err := m.Create(ctx, req.URL)
		return protocol.ConnectionID{ConnectionID: id}, err
	})
	Handle(mux, protocol.ConnectionClose, func(ctx context.Context, req protocol.ConnectionID) (protocol.Empty, error) {
		return protocol.Empty{}, m.Close(ctx, req.ConnectionID)
	})
	Handle(mux, protocol.ConnectionCheck, func(ctx context.Context, req protocol.ConnectionID) (bool, error) {
		return m.Check(ctx, req.ConnectionID)
	})
}

// RegisterRelayRoutes binds the relay introspection subsystem.
func RegisterRelayRoutes(mux *Mux, reg *conn.Registry) {
	Handle(mux, protocol.RelayStats, func(ctx context.Context, _ protocol.Empty) (protocol.Stats, error) {
		st, err := reg.Stats(ctx)
		return protocol.Stats{Available: st.Available, Leased: st.Leased}, err
	})
}
