// Command stubctl runs a minimal Quarry wire server for exercising clients:
// Startup gets Ready, Options gets Supported, and Query gets a one-row Result
// echoing the query text. Anything else gets a protocol Error response.
// Transport counters are scrapeable at /metrics.
package main

import (
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quarrydb/quarrywire/internal/observability"
	"github.com/quarrydb/quarrywire/internal/protocol"
	"github.com/quarrydb/quarrywire/internal/protocol/schema"
	"github.com/quarrydb/quarrywire/internal/transport"
)

const (
	errCodeInvalid     uint32 = 0x2000
	errCodeUnsupported uint32 = 0x2001

	pollInterval = time.Millisecond
)

func main() {
	observability.InitLogger("stubctl")

	addr := flag.String("addr", "127.0.0.1:9042", "listen address")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9100", "prometheus scrape address, empty disables")
	flag.Parse()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Str("addr", *metricsAddr).Msg("metrics server")
			}
		}()
		log.Info().Str("addr", *metricsAddr).Msg("metrics listening")
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Error().Err(err).Str("addr", *addr).Msg("listen")
		os.Exit(1)
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("stub server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error().Err(err).Msg("accept")
			os.Exit(1)
		}
		go serve(conn)
	}
}

func serve(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	codec := protocol.NewCodec(protocol.DefaultLimits())
	tr := transport.New(transport.NetConn(conn, pollInterval), codec, transport.Config{Name: peer})
	defer tr.Close()
	log.Info().Str("peer", peer).Msg("session open")

	for {
		frame, err := tr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Str("peer", peer).Msg("session closed")
				return
			}
			log.Warn().Err(err).Str("peer", peer).Msg("session failed")
			return
		}
		if frame == nil {
			time.Sleep(pollInterval)
			continue
		}

		if err := send(tr, respond(frame.Message)); err != nil {
			log.Warn().Err(err).Str("peer", peer).Msg("send response")
			return
		}
	}
}

func send(tr *transport.Transport, msg *protocol.Message) error {
	done, err := tr.Write(transport.MessageFrame(msg))
	for err == nil && !done {
		time.Sleep(pollInterval)
		done, err = tr.Flush()
	}
	return err
}

func respond(msg *protocol.Message) *protocol.Message {
	if err := schema.Validate(msg.Header.MessageType, msg.Fields); err != nil {
		return errorResponse(msg, errCodeInvalid, err.Error())
	}

	switch msg.Header.MessageType {
	case protocol.MessageStartup:
		return response(msg, protocol.MessageReady, nil)
	case protocol.MessageOptions:
		return response(msg, protocol.MessageSupported, []protocol.Field{
			protocol.NewFieldString(protocol.FieldOptionName, "PROTOCOL_VERSIONS"),
			protocol.NewFieldBytes(protocol.FieldOptionValues, []byte("1.0")),
		})
	case protocol.MessageQuery:
		text, _ := protocol.GetField(msg.Fields, protocol.FieldQueryText)
		return response(msg, protocol.MessageResult, []protocol.Field{
			protocol.NewFieldUint32(protocol.FieldRowCount, 1),
			protocol.NewFieldBytes(protocol.FieldRowData, text.Value),
		})
	default:
		return errorResponse(msg, errCodeUnsupported, "unsupported request type")
	}
}

func response(req *protocol.Message, mt protocol.MessageType, fields []protocol.Field) *protocol.Message {
	return &protocol.Message{
		Header: protocol.Header{
			MessageID:   req.Header.MessageID,
			MessageType: mt,
			Flags:       protocol.FlagIsResponse,
		},
		Fields: fields,
	}
}

func errorResponse(req *protocol.Message, code uint32, text string) *protocol.Message {
	resp := response(req, protocol.MessageError, []protocol.Field{
		protocol.NewFieldUint32(protocol.FieldErrorCode, code),
		protocol.NewFieldString(protocol.FieldErrorMessage, text),
	})
	resp.Header.Flags |= protocol.FlagIsError
	return resp
}
