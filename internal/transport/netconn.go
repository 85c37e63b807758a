package transport

import (
	"errors"
	"net"
	"time"
)

const defaultPollInterval = time.Millisecond

// netConn adapts a standard net.Conn to the non-blocking Conn contract by
// bounding every read and write with a short deadline and mapping the
// resulting timeout to ErrWouldBlock. io.EOF passes through unchanged.
// Readiness is attempt-based: both directions report ready and callers
// discover would-block by trying.
type netConn struct {
	c    net.Conn
	poll time.Duration
}

// NetConn wraps c for use with a Transport. pollInterval bounds how long one
// ReadSome or WriteSome may wait for the socket before reporting would-block;
// zero selects a 1ms default.
func NetConn(c net.Conn, pollInterval time.Duration) Conn {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &netConn{c: c, poll: pollInterval}
}

func (n *netConn) ReadSome(p []byte) (int, error) {
	// A deadline failure is not reported on its own: once the peer has
	// closed, deadline setters fail with io.ErrClosedPipe while the Read
	// itself still reports the correct io.EOF. The read attempt carries
	// the authoritative result either way.
	_ = n.c.SetReadDeadline(time.Now().Add(n.poll))
	read, err := n.c.Read(p)
	return read, mapTimeout(err)
}

func (n *netConn) WriteSome(p []byte) (int, error) {
	_ = n.c.SetWriteDeadline(time.Now().Add(n.poll))
	written, err := n.c.Write(p)
	return written, mapTimeout(err)
}

func (n *netConn) ReadReady() bool  { return true }
func (n *netConn) WriteReady() bool { return true }

func (n *netConn) Close() error {
	return n.c.Close()
}

func mapTimeout(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrWouldBlock
	}
	return err
}
