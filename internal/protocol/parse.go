package protocol

import "encoding/binary"

// Parse attempts to decode exactly one message from the front of b.
//
// It returns (nil, 0, nil) when b holds only an incomplete prefix; callers
// should retry once more bytes arrive. On success it returns the message and
// the number of bytes consumed. The returned message never aliases b: auth
// and field values are copied out, so callers are free to truncate or reuse
// the buffer afterwards.
func (c *Codec) Parse(b []byte) (*Message, int, error) {
	if len(b) < int(HeaderSize) {
		return nil, 0, nil
	}
	head, err := parseHeader(b[:HeaderSize])
	if err != nil {
		return nil, 0, err
	}
	if head.PayloadLen > c.limits.MaxPayloadBytes {
		return nil, 0, ErrPayloadTooLarge
	}
	offset := int(HeaderSize)

	var auth []byte
	if head.Flags&FlagHasAuth != 0 {
		if len(b) < offset+2 {
			return nil, 0, nil
		}
		authLen := int(binary.BigEndian.Uint16(b[offset : offset+2]))
		if uint64(authLen) > c.limits.MaxAuthBytes {
			return nil, 0, ErrAuthTooLarge
		}
		offset += 2
		if len(b) < offset+authLen {
			return nil, 0, nil
		}
		if authLen > 0 {
			auth = make([]byte, authLen)
			copy(auth, b[offset:offset+authLen])
		}
		offset += authLen
	}

	payloadLen := int(head.PayloadLen)
	if len(b) < offset+payloadLen {
		return nil, 0, nil
	}
	fields, err := parseFields(b[offset : offset+payloadLen])
	if err != nil {
		return nil, 0, err
	}
	offset += payloadLen

	return &Message{Header: head, AuthBlock: auth, Fields: fields}, offset, nil
}
