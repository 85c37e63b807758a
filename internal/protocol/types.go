package protocol

// Wire constants for the fixed header.
const (
	Magic      uint32 = 0x51575230 // "QWR0"
	Version    uint16 = 1
	HeaderSize uint16 = 32
)

// Header flag bits.
const (
	FlagHasAuth    uint32 = 0x01
	FlagIsResponse uint32 = 0x02
	FlagIsError    uint32 = 0x04
)

// MessageType identifies one request or response shape.
type MessageType uint32

// Request message types.
const (
	MessageStartup MessageType = 1
	MessageOptions MessageType = 2
	MessageQuery   MessageType = 3
)

// Response message types.
const (
	MessageReady     MessageType = 16
	MessageSupported MessageType = 17
	MessageResult    MessageType = 18
	MessageError     MessageType = 19
)

// FieldType identifies the value encoding of one TLV field.
type FieldType uint8

const (
	FieldUint8  FieldType = 1
	FieldUint16 FieldType = 2
	FieldUint32 FieldType = 3
	FieldUint64 FieldType = 4
	FieldBool   FieldType = 5
	FieldString FieldType = 6
	FieldBytes  FieldType = 7
)

// Field IDs from the wire contract.
const (
	FieldProtocolVersion uint16 = 1
	FieldCompression     uint16 = 2

	FieldQueryText   uint16 = 100
	FieldConsistency uint16 = 101
	FieldPageSize    uint16 = 102
	FieldKeyspace    uint16 = 103

	FieldOptionName   uint16 = 200
	FieldOptionValues uint16 = 201

	FieldRowCount uint16 = 300
	FieldRowData  uint16 = 301

	FieldErrorCode    uint16 = 400
	FieldErrorMessage uint16 = 401
)

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType MessageType
	Flags       uint32
	PayloadLen  uint64
}

// Field is one TLV payload field.
type Field struct {
	ID    uint16
	Type  FieldType
	Value []byte
}

// Message is one complete wire message.
type Message struct {
	Header    Header
	AuthBlock []byte
	Fields    []Field
}
