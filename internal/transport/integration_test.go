package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/quarrydb/quarrywire/internal/protocol"
	"github.com/quarrydb/quarrywire/internal/testutil/testlog"
)

// echoPeer answers every decoded query with a one-row result echoing the
// query text, using the blocking stream codec on its side of the pipe.
func echoPeer(t *testing.T, conn net.Conn, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		msg, err := protocol.Decode(conn)
		if err != nil {
			t.Errorf("peer decode: %v", err)
			return
		}
		text, _ := protocol.GetField(msg.Fields, protocol.FieldQueryText)
		resp := &protocol.Message{
			Header: protocol.Header{
				MessageID:   msg.Header.MessageID,
				MessageType: protocol.MessageResult,
				Flags:       protocol.FlagIsResponse,
			},
			Fields: []protocol.Field{
				protocol.NewFieldUint32(protocol.FieldRowCount, 1),
				protocol.NewFieldBytes(protocol.FieldRowData, text.Value),
			},
		}
		if err := protocol.Encode(conn, resp); err != nil {
			t.Errorf("peer encode: %v", err)
			return
		}
	}
}

func flushUntilDone(t *testing.T, tr *Transport) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		done, err := tr.Flush()
		if err != nil {
			t.Fatalf("flush: %v", err)
		}
		if done {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("flush never completed")
		}
	}
}

func readUntilFrame(t *testing.T, tr *Transport) *Frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		frame, err := tr.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame != nil {
			return frame
		}
		if time.Now().After(deadline) {
			t.Fatalf("no frame before deadline")
		}
	}
}

func TestTransportOverNetPipeRoundTrips(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer server.Close()

	const rounds = 3
	go echoPeer(t, server, rounds)

	codec := protocol.NewCodec(protocol.DefaultLimits())
	tr := New(NetConn(client, 5*time.Millisecond), codec, Config{Name: "pipe"})
	defer tr.Close()

	queries := []string{"SELECT a", "SELECT bb", "SELECT ccc"}
	for i, text := range queries {
		if _, err := tr.Write(MessageFrame(queryMessage(uint64(i+1), text))); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		flushUntilDone(t, tr)

		frame := readUntilFrame(t, tr)
		if frame.Message.Header.MessageID != uint64(i+1) {
			t.Fatalf("round %d: unexpected message id %d", i, frame.Message.Header.MessageID)
		}
		data, ok := protocol.GetField(frame.Message.Fields, protocol.FieldRowData)
		if !ok {
			t.Fatalf("round %d: missing row data", i)
		}
		if string(data.Value) != text {
			t.Fatalf("round %d: echoed %q want %q", i, data.Value, text)
		}
	}
}

func TestTransportOverNetPipeSeesCleanClose(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()

	server.Close()
	codec := protocol.NewCodec(protocol.DefaultLimits())
	tr := New(NetConn(client, time.Millisecond), codec, Config{Name: "pipe"})
	defer tr.Close()

	_, err := tr.Read()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
