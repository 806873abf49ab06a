// Package registry owns exclusive, revocable checkout of keyed resources.
//
// Ownership boundary:
// - one actor goroutine per Registry owns the id->resource maps
// - every mutation is a mailbox command answered on a private reply channel
// - no locks guard the maps; mailbox order is the serialization
//
// Checkout rules:
// - an id that is checked out is absent from the available set
// - a second Get of a checked-out id fails with fault.ErrNotFound, it never queues
// - Return requires the exact ticket of the live checkout
// - Insert and Remove revoke a live checkout; the stale ticket then fails with fault.ErrUnknownTicket
// - with Config.LeaseTimeout set, expired checkouts are reclaimed on a ticker
//
// A stopped registry answers every call with fault.ErrMailboxClosed.
package registry
