// Package conn owns live connection handles lent out by the relay.
//
// Ownership boundary:
// - URL targets and protocol selection
// - dialing handles (loopback and TCP)
// - connection checkout/release on top of the registry actor
// - create/close/check operations served by the relay
//
// What sits behind a Handle (a database session, a socket) is opaque here.
package conn
