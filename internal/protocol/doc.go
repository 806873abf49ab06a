// Package protocol owns the relay wire contract.
//
// Ownership boundary:
// - route paths and typed Route[Req,Resp] descriptors
// - the JSON message body and inline wire errors
// - request/response envelopes for each registered route
//
// Byte framing lives in protocol/frame. Dispatch lives in relay.
package protocol
