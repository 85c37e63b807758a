package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/quarrydb/quarrywire/internal/testutil/testlog"
)

func TestNetConnMapsTimeoutToWouldBlock(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NetConn(client, time.Millisecond)
	buf := make([]byte, 16)
	_, err := conn.ReadSome(buf)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock on idle pipe, got %v", err)
	}
}

func TestNetConnDeliversAvailableBytes(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		server.Write([]byte("quarry"))
	}()

	conn := NetConn(client, 50*time.Millisecond)
	buf := make([]byte, 16)
	n, err := conn.ReadSome(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("quarry")) {
		t.Fatalf("unexpected bytes: %q", buf[:n])
	}
}

func TestNetConnPassesEOFThrough(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()

	server.Close()
	conn := NetConn(client, time.Millisecond)
	buf := make([]byte, 16)
	_, err := conn.ReadSome(buf)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after peer close, got %v", err)
	}
}

func TestNetConnWriteAfterPeerCloseFails(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()

	server.Close()
	conn := NetConn(client, time.Millisecond)
	_, err := conn.WriteSome([]byte("orphaned"))
	if err == nil || errors.Is(err, ErrWouldBlock) || errors.Is(err, io.EOF) {
		t.Fatalf("expected a fatal write error after peer close, got %v", err)
	}
}

func TestNetConnWriteWouldBlockWithoutReader(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NetConn(client, time.Millisecond)
	_, err := conn.WriteSome([]byte("stalled"))
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock with no reader, got %v", err)
	}
}

func TestNetConnWriteCompletesWithReader(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		got <- buf[:n]
	}()

	conn := NetConn(client, 100*time.Millisecond)
	n, err := conn.WriteSome([]byte("flowing"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len("flowing") {
		t.Fatalf("short write: %d", n)
	}
	if !bytes.Equal(<-got, []byte("flowing")) {
		t.Fatalf("reader saw wrong bytes")
	}
}
