package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quarrydb/quarrywire/internal/observability"
	"github.com/quarrydb/quarrywire/internal/protocol"
)

const defaultReadChunk = 4096

// Config tunes one Transport instance.
type Config struct {
	// Name labels this connection in logs and metrics.
	Name string
	// ReadChunk is the size of each ingestion read. Zero selects the default.
	ReadChunk int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "conn"
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = defaultReadChunk
	}
	return c
}

// Transport converts a non-blocking byte connection into message queues.
// It exclusively owns conn and all buffered state; a single goroutine drives
// it at a time.
type Transport struct {
	conn  Conn
	codec Codec
	cfg   Config
	log   zerolog.Logger

	// closed latches once the connection reports end-of-stream. The read
	// side issues no further connection reads after that.
	closed bool

	rd    readBuffer
	queue []*protocol.Message
	wr    writeCursor
}

func New(conn Conn, codec Codec, cfg Config) *Transport {
	cfg = cfg.withDefaults()
	return &Transport{
		conn:  conn,
		codec: codec,
		cfg:   cfg,
		log:   log.With().Str("component", "transport").Str("conn", cfg.Name).Logger(),
	}
}

// ReadReady reports whether a Read call may make progress.
func (t *Transport) ReadReady() bool {
	return t.conn.ReadReady()
}

// WriteReady always reports true: the transport accepts any number of
// enqueued messages and leaves admission control to the layer above.
func (t *Transport) WriteReady() bool {
	return true
}

// Read ingests whatever bytes the connection has available and parses at
// most one complete message from the front of the read buffer.
//
// It returns (nil, nil) when no complete message is buffered yet; the caller
// must wait for a read-readiness notification before retrying. It returns
// io.EOF once the peer has closed cleanly and the buffer is drained. A close
// that truncates a partially received message is reported as ErrTruncated.
// Malformed input and connection failures are terminal.
func (t *Transport) Read() (*Frame, error) {
	chunk := make([]byte, t.cfg.ReadChunk)
	for !t.closed {
		n, err := t.conn.ReadSome(chunk)
		if n > 0 {
			t.rd.append(chunk[:n])
			observability.RecordBytesRead(t.cfg.Name, n)
		}
		if err == nil {
			if n == 0 {
				t.closed = true
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			t.closed = true
			break
		}
		if errors.Is(err, ErrWouldBlock) {
			observability.RecordWouldBlock(t.cfg.Name, "read")
			break
		}
		return nil, fmt.Errorf("transport: read: %w", err)
	}

	msg, consumed, err := t.codec.Parse(t.rd.bytes())
	if err != nil {
		t.log.Error().Err(err).Int("buffered", t.rd.len()).Msg("malformed message")
		return nil, fmt.Errorf("transport: parse: %w", err)
	}
	if msg == nil {
		if t.closed {
			if t.rd.len() > 0 {
				t.log.Error().Int("buffered", t.rd.len()).Msg("stream closed mid-message")
				return nil, ErrTruncated
			}
			return nil, io.EOF
		}
		return nil, nil
	}

	t.rd.discard(consumed)
	observability.RecordMessageRead(t.cfg.Name)
	t.log.Trace().
		Int("consumed", consumed).
		Int("buffered", t.rd.len()).
		Uint64("message_id", msg.Header.MessageID).
		Msg("message parsed")
	frame := MessageFrame(msg)
	return &frame, nil
}

// Write accepts one outbound frame. Only FrameMessage is implemented; any
// other variant is rejected before queue or cursor state changes. Accepted
// messages join the back of the outgoing queue and a flush is attempted
// immediately. The boolean result mirrors Flush.
func (t *Transport) Write(f Frame) (bool, error) {
	if f.Kind != FrameMessage {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedFrame, f.Kind)
	}
	if f.Message == nil {
		return false, fmt.Errorf("%w: nil message", ErrUnsupportedFrame)
	}
	t.queue = append(t.queue, f.Message)
	return t.Flush()
}

// Flush drains as much pending output as the connection accepts without
// blocking. It returns (true, nil) once the queue and cursor are both empty,
// and (false, nil) when the connection would block; queued messages and
// cursor progress are preserved exactly for the next call.
func (t *Transport) Flush() (bool, error) {
	for {
		if t.wr.empty() {
			if len(t.queue) == 0 {
				return true, nil
			}
			msg := t.queue[0]
			t.queue = t.queue[1:]
			buf, err := t.codec.Serialize(msg)
			if err != nil {
				return false, fmt.Errorf("transport: serialize: %w", err)
			}
			t.wr.reset(buf)
		}

		t.log.Trace().Int("remaining", len(t.wr.remaining())).Msg("flush write")
		n, err := t.conn.WriteSome(t.wr.remaining())
		if n > 0 {
			t.wr.advance(n)
			observability.RecordBytesWritten(t.cfg.Name, n)
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				observability.RecordWouldBlock(t.cfg.Name, "write")
				return false, nil
			}
			return false, fmt.Errorf("transport: write: %w", err)
		}
		if t.wr.empty() {
			observability.RecordMessageWritten(t.cfg.Name)
		}
	}
}

// PendingWrites reports how many messages await serialization, excluding the
// one currently draining through the cursor.
func (t *Transport) PendingWrites() int {
	return len(t.queue)
}

// Close abandons all buffered state and closes the connection. Partially
// sent or received messages are lost; the caller owns correlating that loss
// with in-flight requests.
func (t *Transport) Close() error {
	t.queue = nil
	t.wr.reset(nil)
	t.rd.discard(t.rd.len())
	return t.conn.Close()
}
