package protocol

import "fmt"

// FieldSpec declares a known field within a message type.
type FieldSpec struct {
	ID       uint16
	Type     FieldType
	Required bool
}

// Schema defines required and known fields for a message type.
type Schema struct {
	MessageType MessageType
	Fields      []FieldSpec
}

// Value is a decoded field value.
type Value struct {
	Type   FieldType
	Uint8  uint8
	Uint16 uint16
	Uint32 uint32
	Uint64 uint64
	Bool   bool
	String string
	Bytes  []byte
}

// SemanticMessage is a message with typed field values validated by a schema.
type SemanticMessage struct {
	Header      Header
	AuthBlock   []byte
	MessageType MessageType
	Fields      map[uint16]Value
	Unknown     []Field
}

// IsResponse reports whether the response flag is set.
func (m *Message) IsResponse() bool {
	return m.Header.Flags&FlagIsResponse != 0
}

// IsError reports whether the error flag is set.
func (m *Message) IsError() bool {
	return m.Header.Flags&FlagIsError != 0
}

// ResultView is the typed shape of a query result response.
type ResultView struct {
	MessageID uint64
	Rows      uint32
	Data      []byte
}

// ErrorView is the typed shape of an error response.
type ErrorView struct {
	MessageID uint64
	Code      uint32
	Reason    string
}

var resultSchema = Schema{
	MessageType: MessageResult,
	Fields: []FieldSpec{
		{ID: FieldRowCount, Type: FieldUint32, Required: true},
		{ID: FieldRowData, Type: FieldBytes, Required: true},
	},
}

var errorSchema = Schema{
	MessageType: MessageError,
	Fields: []FieldSpec{
		{ID: FieldErrorCode, Type: FieldUint32, Required: true},
		{ID: FieldErrorMessage, Type: FieldString, Required: true},
	},
}

// ResultOf narrows a result response to its typed fields. The message must
// carry the response flag.
func ResultOf(msg *Message) (ResultView, error) {
	if msg == nil || !msg.IsResponse() {
		return ResultView{}, ErrNotResponse
	}
	semantic, err := ParseSemantic(msg, resultSchema)
	if err != nil {
		return ResultView{}, err
	}
	return ResultView{
		MessageID: msg.Header.MessageID,
		Rows:      semantic.Fields[FieldRowCount].Uint32,
		Data:      semantic.Fields[FieldRowData].Bytes,
	}, nil
}

// ErrorOf narrows an error response to its typed fields. The message must
// carry both the response and error flags.
func ErrorOf(msg *Message) (ErrorView, error) {
	if msg == nil || !msg.IsResponse() || !msg.IsError() {
		return ErrorView{}, ErrNotResponse
	}
	semantic, err := ParseSemantic(msg, errorSchema)
	if err != nil {
		return ErrorView{}, err
	}
	return ErrorView{
		MessageID: msg.Header.MessageID,
		Code:      semantic.Fields[FieldErrorCode].Uint32,
		Reason:    semantic.Fields[FieldErrorMessage].String,
	}, nil
}

// ParseSemantic validates msg against schema and returns typed field values.
func ParseSemantic(msg *Message, schema Schema) (*SemanticMessage, error) {
	if msg == nil {
		return nil, ErrInvalidLength
	}
	if msg.Header.MessageType != schema.MessageType {
		return nil, ErrMessageTypeMismatch
	}
	known := make(map[uint16]FieldSpec, len(schema.Fields))
	required := make(map[uint16]struct{})
	for _, spec := range schema.Fields {
		known[spec.ID] = spec
		if spec.Required {
			required[spec.ID] = struct{}{}
		}
	}

	semantic := &SemanticMessage{
		Header:      msg.Header,
		AuthBlock:   msg.AuthBlock,
		MessageType: msg.Header.MessageType,
		Fields:      make(map[uint16]Value),
	}

	for _, field := range msg.Fields {
		spec, ok := known[field.ID]
		if !ok {
			semantic.Unknown = append(semantic.Unknown, field)
			continue
		}
		value, err := decodeValue(field, spec.Type)
		if err != nil {
			return nil, err
		}
		semantic.Fields[field.ID] = value
		delete(required, field.ID)
	}

	if len(required) != 0 {
		for id := range required {
			return nil, MissingFieldError{FieldID: id}
		}
	}

	return semantic, nil
}

// MissingFieldError indicates a required field was not present.
type MissingFieldError struct {
	FieldID uint16
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("protocol: missing required field %d", e.FieldID)
}

func decodeValue(field Field, expected FieldType) (Value, error) {
	if field.Type != expected {
		return Value{}, ErrFieldTypeMismatch
	}
	value := Value{Type: field.Type}
	switch field.Type {
	case FieldUint8:
		v, err := field.Uint8()
		if err != nil {
			return Value{}, err
		}
		value.Uint8 = v
	case FieldUint16:
		v, err := field.Uint16()
		if err != nil {
			return Value{}, err
		}
		value.Uint16 = v
	case FieldUint32:
		v, err := field.Uint32()
		if err != nil {
			return Value{}, err
		}
		value.Uint32 = v
	case FieldUint64:
		v, err := field.Uint64()
		if err != nil {
			return Value{}, err
		}
		value.Uint64 = v
	case FieldBool:
		v, err := field.Bool()
		if err != nil {
			return Value{}, err
		}
		value.Bool = v
	case FieldString:
		v, err := field.String()
		if err != nil {
			return Value{}, err
		}
		value.String = v
	case FieldBytes:
		v, err := field.Bytes()
		if err != nil {
			return Value{}, err
		}
		value.Bytes = v
	default:
		return Value{}, ErrFieldTypeMismatch
	}
	return value, nil
}
