package transport

import "errors"

var (
	// ErrWouldBlock is returned by Conn implementations when no progress is
	// possible right now. The transport absorbs it; callers never see it from
	// Read, Write, or Flush.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrTruncated reports end-of-stream while the read buffer still holds an
	// incomplete message prefix.
	ErrTruncated = errors.New("transport: connection closed mid-message")

	// ErrUnsupportedFrame rejects frame variants this transport does not
	// implement. The rejection leaves queue and cursor state untouched.
	ErrUnsupportedFrame = errors.New("transport: unsupported frame variant")
)
