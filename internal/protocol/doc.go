// Package protocol owns the Quarry wire contract and parsing primitives.
//
// Ownership boundary:
// - fixed frame header and TLV field primitives
// - blocking Encode/Decode over io.Writer/io.Reader
// - incremental Codec.Parse for transports that re-parse a growing buffer
// - semantic validation entry points
package protocol
