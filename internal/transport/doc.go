// Package transport adapts a non-blocking duplex byte connection into a pair
// of message queues for the Quarry wire protocol: inbound bytes are buffered
// and incrementally re-parsed into complete messages, outbound messages are
// serialized and drained through a resumable write cursor.
//
// Ownership boundary:
// - read buffer, outgoing queue, and write cursor for one connection
// - would-block absorption and end-of-stream detection
// - the frame envelope exchanged with the request/response correlator
//
// One Transport is driven by exactly one goroutine at a time; there is no
// internal locking. Operations that cannot make progress return a "not ready"
// result instead of blocking, and must be retried after the connection
// signals readiness. Correlating requests with responses, limiting in-flight
// work, reconnecting, and deadline management all belong to the caller.
package transport
