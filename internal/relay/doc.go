// Package relay owns the transport edge of the connection relay.
//
// Ownership boundary:
// - Mux: route tree and typed handler registration
// - Server: one framed request/response exchange per TCP connection
// - Client: blocking calls (open, close, check, stats)
// - Service: process wiring of registry, manager, mux and server
//
// Errors never close a connection silently. Every failure the server can
// observe is answered with an error-flagged response frame.
package relay
