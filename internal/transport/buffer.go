package transport

// readBuffer accumulates received bytes that no successful parse has
// consumed yet. It is a contiguous arena with explicit front-truncation:
// discard advances a start offset and the backing array is compacted only
// once the dead prefix outgrows the live data, bounding reallocation cost
// across repeated parse attempts.
type readBuffer struct {
	buf []byte
	off int
}

const compactThreshold = 4096

func (b *readBuffer) append(p []byte) {
	b.buf = append(b.buf, p...)
}

// bytes returns the unconsumed window. The slice aliases the arena and is
// invalidated by the next append or discard.
func (b *readBuffer) bytes() []byte {
	return b.buf[b.off:]
}

func (b *readBuffer) len() int {
	return len(b.buf) - b.off
}

// discard drops the first n unconsumed bytes; trailing bytes keep their
// order for the next parse attempt.
func (b *readBuffer) discard(n int) {
	if n <= 0 {
		return
	}
	if n > b.len() {
		n = b.len()
	}
	b.off += n
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
		return
	}
	if b.off >= compactThreshold && b.off > len(b.buf)-b.off {
		m := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:m]
		b.off = 0
	}
}

// writeCursor is the in-progress serialized form of the message currently
// being drained. pos tracks resumable progress; empty means pos == len(buf),
// at which point the cursor may be refilled from the outgoing queue.
type writeCursor struct {
	buf []byte
	pos int
}

func (c *writeCursor) empty() bool {
	return c.pos == len(c.buf)
}

func (c *writeCursor) remaining() []byte {
	return c.buf[c.pos:]
}

func (c *writeCursor) advance(n int) {
	c.pos += n
	if c.pos > len(c.buf) {
		c.pos = len(c.buf)
	}
}

func (c *writeCursor) reset(buf []byte) {
	c.buf = buf
	c.pos = 0
}
