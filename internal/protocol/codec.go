package protocol

import "bytes"

// Limits constrains decode memory use.
type Limits struct {
	MaxAuthBytes    uint64
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxAuthBytes:    64 * 1024,
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// Codec serializes messages and incrementally parses them back out of a
// byte stream. A Codec is stateless; the same instance may serve any number
// of connections.
type Codec struct {
	limits Limits
}

func NewCodec(limits Limits) *Codec {
	return &Codec{limits: limits}
}

// Serialize renders msg into its complete wire form.
func (c *Codec) Serialize(msg *Message) ([]byte, error) {
	payloadLen, err := payloadLength(msg.Fields)
	if err != nil {
		return nil, err
	}
	if payloadLen > c.limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	if uint64(len(msg.AuthBlock)) > c.limits.MaxAuthBytes {
		return nil, ErrAuthTooLarge
	}
	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
