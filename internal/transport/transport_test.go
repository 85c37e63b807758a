package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/quarrydb/quarrywire/internal/protocol"
	"github.com/quarrydb/quarrywire/internal/testutil/testlog"
)

var errConnBroken = errors.New("connection broken")

type readStep struct {
	data []byte
	err  error
}

// scriptConn replays a scripted sequence of read results and accepts writes
// under scripted per-call byte limits. A write limit of -1 reports
// would-block, -2 reports errConnBroken.
type scriptConn struct {
	reads  []readStep
	writes []int
	wrote  bytes.Buffer
	closed bool
}

func (c *scriptConn) ReadSome(p []byte) (int, error) {
	if len(c.reads) == 0 {
		return 0, ErrWouldBlock
	}
	step := c.reads[0]
	c.reads = c.reads[1:]
	if step.err != nil {
		return 0, step.err
	}
	return copy(p, step.data), nil
}

func (c *scriptConn) WriteSome(p []byte) (int, error) {
	if len(c.writes) == 0 {
		c.wrote.Write(p)
		return len(p), nil
	}
	limit := c.writes[0]
	c.writes = c.writes[1:]
	switch {
	case limit == -1:
		return 0, ErrWouldBlock
	case limit == -2:
		return 0, errConnBroken
	case limit > len(p):
		limit = len(p)
	}
	c.wrote.Write(p[:limit])
	return limit, nil
}

func (c *scriptConn) ReadReady() bool  { return true }
func (c *scriptConn) WriteReady() bool { return true }

func (c *scriptConn) Close() error {
	c.closed = true
	return nil
}

func queryMessage(id uint64, text string) *protocol.Message {
	return &protocol.Message{
		Header: protocol.Header{
			MessageID:   id,
			MessageType: protocol.MessageQuery,
		},
		Fields: []protocol.Field{
			protocol.NewFieldString(protocol.FieldQueryText, text),
			protocol.NewFieldUint16(protocol.FieldConsistency, 1),
		},
	}
}

func mustSerialize(t *testing.T, codec *protocol.Codec, msg *protocol.Message) []byte {
	t.Helper()
	buf, err := codec.Serialize(msg)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf
}

func newTestTransport(conn Conn) (*Transport, *protocol.Codec) {
	codec := protocol.NewCodec(protocol.DefaultLimits())
	return New(conn, codec, Config{Name: "test"}), codec
}

func queryText(t *testing.T, msg *protocol.Message) string {
	t.Helper()
	f, ok := protocol.GetField(msg.Fields, protocol.FieldQueryText)
	if !ok {
		t.Fatalf("missing query text field")
	}
	text, err := f.String()
	if err != nil {
		t.Fatalf("query text: %v", err)
	}
	return text
}

func TestReadReassemblesMessageAcrossArbitrarySplits(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(protocol.DefaultLimits())
	want := queryMessage(7, "SELECT host FROM system.peers")
	wire := mustSerialize(t, codec, want)

	for _, splits := range [][]int{
		{len(wire)},
		{1, len(wire) - 1},
		{int(protocol.HeaderSize), len(wire) - int(protocol.HeaderSize)},
		{int(protocol.HeaderSize) - 1, 1, len(wire) - int(protocol.HeaderSize)},
		{5, 5, 5, len(wire) - 15},
	} {
		conn := &scriptConn{}
		offset := 0
		for _, size := range splits {
			conn.reads = append(conn.reads,
				readStep{data: wire[offset : offset+size]},
				readStep{err: ErrWouldBlock},
			)
			offset += size
		}

		tr, _ := newTestTransport(conn)
		var got *Frame
		for call := 0; call < len(splits); call++ {
			frame, err := tr.Read()
			if err != nil {
				t.Fatalf("splits=%v call=%d read: %v", splits, call, err)
			}
			if frame != nil {
				got = frame
				if call != len(splits)-1 {
					t.Fatalf("splits=%v message completed early at call %d", splits, call)
				}
				break
			}
		}
		if got == nil {
			t.Fatalf("splits=%v no message after all bytes delivered", splits)
		}
		if got.Kind != FrameMessage {
			t.Fatalf("splits=%v unexpected frame kind %s", splits, got.Kind)
		}
		if got.Message.Header.MessageID != 7 {
			t.Fatalf("splits=%v unexpected message id %d", splits, got.Message.Header.MessageID)
		}
		if text := queryText(t, got.Message); text != "SELECT host FROM system.peers" {
			t.Fatalf("splits=%v unexpected query text %q", splits, text)
		}
		if tr.rd.len() != 0 {
			t.Fatalf("splits=%v read buffer should be empty, holds %d bytes", splits, tr.rd.len())
		}
	}
}

func TestReadConsumesExactlyParsedBytes(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(protocol.DefaultLimits())
	first := mustSerialize(t, codec, queryMessage(1, "SELECT 1"))
	second := mustSerialize(t, codec, queryMessage(2, "SELECT 2"))

	conn := &scriptConn{reads: []readStep{
		{data: append(append([]byte{}, first...), second...)},
		{err: ErrWouldBlock},
	}}
	tr, _ := newTestTransport(conn)

	frame, err := tr.Read()
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if frame == nil || frame.Message.Header.MessageID != 1 {
		t.Fatalf("unexpected first frame: %+v", frame)
	}
	if got := tr.rd.len(); got != len(second) {
		t.Fatalf("buffer should hold exactly the second message: got %d want %d", got, len(second))
	}
	if !bytes.Equal(tr.rd.bytes(), second) {
		t.Fatalf("remaining bytes reordered or corrupted")
	}

	frame, err = tr.Read()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if frame == nil || frame.Message.Header.MessageID != 2 {
		t.Fatalf("unexpected second frame: %+v", frame)
	}
	if tr.rd.len() != 0 {
		t.Fatalf("buffer should be empty after both parses")
	}
}

func TestReadNotReadyUntilSecondHalfArrives(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(protocol.DefaultLimits())
	wire := mustSerialize(t, codec, queryMessage(3, "SELECT now()"))
	half := len(wire) / 2

	conn := &scriptConn{reads: []readStep{
		{data: wire[:half]},
		{err: ErrWouldBlock},
		{data: wire[half:]},
		{err: ErrWouldBlock},
	}}
	tr, _ := newTestTransport(conn)

	frame, err := tr.Read()
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if frame != nil {
		t.Fatalf("expected not ready after half delivery, got frame")
	}

	frame, err = tr.Read()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if frame == nil || frame.Message.Header.MessageID != 3 {
		t.Fatalf("expected completed message, got %+v", frame)
	}
	if tr.rd.len() != 0 {
		t.Fatalf("read buffer should be empty")
	}
}

func TestWritePreservesEnqueueOrderAcrossPartialWrites(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{writes: []int{3, -1, 4, 1, -1, 10, -1}}
	tr, codec := newTestTransport(conn)

	var want []byte
	for i, text := range []string{"SELECT a", "SELECT bb", "SELECT ccc"} {
		msg := queryMessage(uint64(i+1), text)
		want = append(want, mustSerialize(t, codec, msg)...)
		done, err := tr.Write(MessageFrame(msg))
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if done {
			t.Fatalf("write %d should be blocked by scripted limits", i)
		}
	}

	for i := 0; i < 100; i++ {
		done, err := tr.Flush()
		if err != nil {
			t.Fatalf("flush: %v", err)
		}
		if done {
			break
		}
	}

	if !bytes.Equal(conn.wrote.Bytes(), want) {
		t.Fatalf("wire bytes differ from concatenated serialized messages:\n got %x\nwant %x",
			conn.wrote.Bytes(), want)
	}
	if tr.PendingWrites() != 0 {
		t.Fatalf("queue should be empty, holds %d", tr.PendingWrites())
	}
	if !tr.wr.empty() {
		t.Fatalf("cursor should be exhausted")
	}
}

func TestFlushPreservesCursorAcrossWouldBlock(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{writes: []int{2, -1}}
	tr, codec := newTestTransport(conn)

	msg := queryMessage(9, "SELECT * FROM quarry.blocks")
	wire := mustSerialize(t, codec, msg)

	done, err := tr.Write(MessageFrame(msg))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if done {
		t.Fatalf("expected partial flush")
	}
	if got := len(tr.wr.remaining()); got != len(wire)-2 {
		t.Fatalf("cursor remaining = %d, want %d", got, len(wire)-2)
	}

	done, err = tr.Flush()
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !done {
		t.Fatalf("expected fully flushed")
	}
	if !bytes.Equal(conn.wrote.Bytes(), wire) {
		t.Fatalf("bytes lost, duplicated, or reordered across partial writes")
	}
}

func TestWriteRejectsUnsupportedFrameWithoutMutatingState(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{}
	tr, codec := newTestTransport(conn)

	for _, kind := range []FrameKind{FrameMessageWithBody, FrameBodyChunk, FrameError, FrameDone} {
		_, err := tr.Write(Frame{Kind: kind})
		if !errors.Is(err, ErrUnsupportedFrame) {
			t.Fatalf("kind=%s expected ErrUnsupportedFrame, got %v", kind, err)
		}
		if tr.PendingWrites() != 0 {
			t.Fatalf("kind=%s mutated the outgoing queue", kind)
		}
		if !tr.wr.empty() {
			t.Fatalf("kind=%s mutated the write cursor", kind)
		}
	}

	_, err := tr.Write(MessageFrame(nil))
	if !errors.Is(err, ErrUnsupportedFrame) {
		t.Fatalf("nil message expected ErrUnsupportedFrame, got %v", err)
	}
	if tr.PendingWrites() != 0 {
		t.Fatalf("nil message mutated the outgoing queue")
	}

	msg := queryMessage(4, "SELECT 4")
	wire := mustSerialize(t, codec, msg)
	done, err := tr.Write(MessageFrame(msg))
	if err != nil {
		t.Fatalf("valid write after rejections: %v", err)
	}
	if !done {
		t.Fatalf("expected full flush")
	}
	if !bytes.Equal(conn.wrote.Bytes(), wire) {
		t.Fatalf("valid send corrupted after rejections")
	}
}

func TestReadReportsTruncationOnCloseMidMessage(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(protocol.DefaultLimits())
	wire := mustSerialize(t, codec, queryMessage(5, "SELECT truncated"))

	conn := &scriptConn{reads: []readStep{
		{data: wire[:len(wire)-3]},
		{err: io.EOF},
	}}
	tr, _ := newTestTransport(conn)

	for call := 0; call < 2; call++ {
		_, err := tr.Read()
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("call=%d expected ErrTruncated, got %v", call, err)
		}
	}
}

func TestReadReportsEOFAfterCleanClose(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(protocol.DefaultLimits())
	wire := mustSerialize(t, codec, queryMessage(6, "SELECT clean"))

	conn := &scriptConn{reads: []readStep{
		{data: wire},
		{err: io.EOF},
	}}
	tr, _ := newTestTransport(conn)

	frame, err := tr.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame == nil || frame.Message.Header.MessageID != 6 {
		t.Fatalf("expected buffered message before EOF, got %+v", frame)
	}

	for call := 0; call < 2; call++ {
		_, err := tr.Read()
		if !errors.Is(err, io.EOF) {
			t.Fatalf("call=%d expected io.EOF, got %v", call, err)
		}
	}
}

func TestReadTreatsZeroByteNilErrorReadAsClose(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{reads: []readStep{{data: nil}}}
	tr, _ := newTestTransport(conn)

	_, err := tr.Read()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadPropagatesMalformedStream(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(protocol.DefaultLimits())
	wire := mustSerialize(t, codec, queryMessage(8, "SELECT bad"))
	wire[0] ^= 0xff

	conn := &scriptConn{reads: []readStep{
		{data: wire},
		{err: ErrWouldBlock},
	}}
	tr, _ := newTestTransport(conn)

	_, err := tr.Read()
	if !errors.Is(err, protocol.ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadPropagatesConnectionFailure(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{reads: []readStep{{err: errConnBroken}}}
	tr, _ := newTestTransport(conn)

	_, err := tr.Read()
	if !errors.Is(err, errConnBroken) {
		t.Fatalf("expected connection failure, got %v", err)
	}
}

func TestFlushPropagatesConnectionFailure(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{writes: []int{-2}}
	tr, _ := newTestTransport(conn)

	_, err := tr.Write(MessageFrame(queryMessage(10, "SELECT fail")))
	if !errors.Is(err, errConnBroken) {
		t.Fatalf("expected connection failure, got %v", err)
	}
}

func TestFlushWithNothingPendingReportsDone(t *testing.T) {
	testlog.Start(t)
	tr, _ := newTestTransport(&scriptConn{})

	done, err := tr.Flush()
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !done {
		t.Fatalf("expected fully flushed on empty state")
	}
}

func TestWriteReadyAlwaysTrue(t *testing.T) {
	testlog.Start(t)
	tr, _ := newTestTransport(&scriptConn{writes: []int{-1}})
	if !tr.WriteReady() {
		t.Fatalf("write side must always report ready")
	}
	if _, err := tr.Write(MessageFrame(queryMessage(11, "SELECT pending"))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !tr.WriteReady() {
		t.Fatalf("write side must stay ready with a blocked cursor")
	}
}

func TestCloseAbandonsBufferedState(t *testing.T) {
	testlog.Start(t)
	conn := &scriptConn{writes: []int{-1}}
	tr, _ := newTestTransport(conn)

	if _, err := tr.Write(MessageFrame(queryMessage(12, "SELECT abandoned"))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !conn.closed {
		t.Fatalf("connection should be closed")
	}
	if tr.PendingWrites() != 0 || !tr.wr.empty() || tr.rd.len() != 0 {
		t.Fatalf("buffered state should be abandoned on close")
	}
}
