package transport

import (
	"fmt"

	"github.com/quarrydb/quarrywire/internal/protocol"
)

// FrameKind tags one variant of the envelope exchanged with the correlator.
type FrameKind uint8

const (
	// FrameMessage carries one complete protocol message. This is the only
	// variant the transport implements end to end.
	FrameMessage FrameKind = iota + 1

	// FrameMessageWithBody, FrameBodyChunk, FrameError, and FrameDone belong
	// to a streaming extension of the envelope. Sending or receiving them is
	// rejected with ErrUnsupportedFrame; silently dropping one would
	// desynchronize protocol state with the peer.
	FrameMessageWithBody
	FrameBodyChunk
	FrameError
	FrameDone
)

func (k FrameKind) String() string {
	switch k {
	case FrameMessage:
		return "message"
	case FrameMessageWithBody:
		return "message_with_body"
	case FrameBodyChunk:
		return "body_chunk"
	case FrameError:
		return "error"
	case FrameDone:
		return "done"
	default:
		return fmt.Sprintf("frame_kind(%d)", uint8(k))
	}
}

// Frame is the envelope exchanged with the layer above the transport.
type Frame struct {
	Kind    FrameKind
	Message *protocol.Message

	// Body and Err back the unimplemented streaming variants. They are
	// declared so the envelope is a closed set, not so they can be sent.
	Body []byte
	Err  error
}

// MessageFrame wraps one message in the implemented envelope variant.
func MessageFrame(msg *protocol.Message) Frame {
	return Frame{Kind: FrameMessage, Message: msg}
}
