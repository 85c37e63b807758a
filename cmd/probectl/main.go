package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quarrydb/quarrywire/internal/config"
	"github.com/quarrydb/quarrywire/internal/logging"
	"github.com/quarrydb/quarrywire/internal/protocol"
	"github.com/quarrydb/quarrywire/internal/transport"
)

const flushAttempts = 1000

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "cmd/probectl/ex.config.toml", "client config path")
	addr := flag.String("addr", "", "server address (overrides config)")
	query := flag.String("query", "SELECT release_version FROM system.local", "query to send")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *addr)
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}

	if err := run(cfg, *query); err != nil {
		log.Error().Err(err).Msg("probe failed")
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig, query string) error {
	c, err := net.DialTimeout("tcp", cfg.Addr, cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}

	codec := protocol.NewCodec(protocol.Limits{
		MaxAuthBytes:    cfg.MaxAuthBytes,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	})
	tr := transport.New(transport.NetConn(c, cfg.PollInterval), codec, transport.Config{
		Name:      cfg.Addr,
		ReadChunk: cfg.ReadChunk,
	})
	defer tr.Close()

	var messageID uint64

	messageID++
	startup := &protocol.Message{
		Header: protocol.Header{MessageID: messageID, MessageType: protocol.MessageStartup},
		Fields: []protocol.Field{
			protocol.NewFieldString(protocol.FieldProtocolVersion, "1.0"),
		},
	}
	if err := sendMessage(tr, startup, cfg.PollInterval); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	ready, err := awaitMessage(tr, cfg.ConnectTimeout, cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("await ready: %w", err)
	}
	if ready.Header.MessageType != protocol.MessageReady {
		return fmt.Errorf("unexpected startup response type %d", ready.Header.MessageType)
	}
	log.Info().Str("addr", cfg.Addr).Msg("session ready")

	messageID++
	q := &protocol.Message{
		Header: protocol.Header{MessageID: messageID, MessageType: protocol.MessageQuery},
		Fields: []protocol.Field{
			protocol.NewFieldString(protocol.FieldQueryText, query),
			protocol.NewFieldUint16(protocol.FieldConsistency, 1),
		},
	}
	if err := sendMessage(tr, q, cfg.PollInterval); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	resp, err := awaitMessage(tr, cfg.ConnectTimeout, cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("await result: %w", err)
	}
	return printResponse(resp)
}

// sendMessage enqueues msg and drives Flush until the transport reports
// fully flushed, sleeping between would-block rounds.
func sendMessage(tr *transport.Transport, msg *protocol.Message, retry time.Duration) error {
	done, err := tr.Write(transport.MessageFrame(msg))
	for attempt := 0; err == nil && !done && attempt < flushAttempts; attempt++ {
		time.Sleep(retry)
		done, err = tr.Flush()
	}
	if err != nil {
		return err
	}
	if !done {
		return errors.New("flush stalled")
	}
	return nil
}

// awaitMessage drives Read until a complete message arrives or timeout
// elapses, sleeping between not-ready rounds.
func awaitMessage(tr *transport.Transport, timeout, retry time.Duration) (*protocol.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		frame, err := tr.Read()
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame.Message, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.New("timed out waiting for response")
		}
		time.Sleep(retry)
	}
}

func printResponse(msg *protocol.Message) error {
	switch msg.Header.MessageType {
	case protocol.MessageResult:
		result, err := protocol.ResultOf(msg)
		if err != nil {
			return fmt.Errorf("result payload: %w", err)
		}
		fmt.Printf("rows=%d\n%s\n", result.Rows, result.Data)
		return nil
	case protocol.MessageError:
		failure, err := protocol.ErrorOf(msg)
		if err != nil {
			return fmt.Errorf("error payload: %w", err)
		}
		return fmt.Errorf("server error code=%#x: %s", failure.Code, failure.Reason)
	default:
		return fmt.Errorf("unexpected response type %d", msg.Header.MessageType)
	}
}
