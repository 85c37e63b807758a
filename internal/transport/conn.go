package transport

import "github.com/quarrydb/quarrywire/internal/protocol"

// Conn is a non-blocking duplex byte stream.
//
// ReadSome and WriteSome transfer whatever bytes they can without blocking.
// When no progress is possible they return an error matching ErrWouldBlock
// via errors.Is. End-of-stream is reported as io.EOF or as a zero-byte read
// with a nil error; every other error is a terminal connection failure.
type Conn interface {
	ReadSome(p []byte) (int, error)
	WriteSome(p []byte) (int, error)

	// ReadReady and WriteReady report whether the corresponding direction may
	// make progress. Implementations without a real readiness source may
	// report true and rely on attempt-based discovery.
	ReadReady() bool
	WriteReady() bool

	Close() error
}

// Codec serializes and parses protocol messages. The transport treats it as
// an opaque, synchronous, side-effect-free function over bytes.
//
// Parse decodes at most one message from the front of its input, returning
// the bytes consumed; (nil, 0, nil) means the input is an incomplete prefix
// and more bytes are needed. A non-nil error means the stream is malformed
// and the connection must be torn down.
type Codec interface {
	Serialize(msg *protocol.Message) ([]byte, error)
	Parse(b []byte) (*protocol.Message, int, error)
}
