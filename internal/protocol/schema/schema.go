package schema

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quarrydb/quarrywire/internal/protocol"
)

// Requirement names one field a message type must carry.
type Requirement struct {
	ID   uint16
	Type protocol.FieldType
}

type ValidationError struct {
	MessageType protocol.MessageType
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[protocol.MessageType][]Requirement{
	protocol.MessageStartup: {
		{protocol.FieldProtocolVersion, protocol.FieldString},
	},
	protocol.MessageOptions: {},
	protocol.MessageQuery: {
		{protocol.FieldQueryText, protocol.FieldString},
		{protocol.FieldConsistency, protocol.FieldUint16},
	},
	protocol.MessageReady: {},
	protocol.MessageSupported: {
		{protocol.FieldOptionName, protocol.FieldString},
		{protocol.FieldOptionValues, protocol.FieldBytes},
	},
	protocol.MessageResult: {
		{protocol.FieldRowCount, protocol.FieldUint32},
		{protocol.FieldRowData, protocol.FieldBytes},
	},
	protocol.MessageError: {
		{protocol.FieldErrorCode, protocol.FieldUint32},
		{protocol.FieldErrorMessage, protocol.FieldString},
	},
}

// For returns the semantic schema for one message type.
func For(messageType protocol.MessageType) (protocol.Schema, bool) {
	reqs, ok := requirements[messageType]
	if !ok {
		return protocol.Schema{}, false
	}
	specs := make([]protocol.FieldSpec, 0, len(reqs))
	for _, req := range reqs {
		specs = append(specs, protocol.FieldSpec{ID: req.ID, Type: req.Type, Required: true})
	}
	return protocol.Schema{MessageType: messageType, Fields: specs}, true
}

// Validate enforces required fields and required field types for a message type.
// Unknown fields are ignored by design.
func Validate(messageType protocol.MessageType, fields []protocol.Field) error {
	log.Debug().Uint32("message_type", uint32(messageType)).Int("fields", len(fields)).Msg("schema validate")
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", uint32(messageType)).Msg("schema validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := protocol.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint32("message_type", uint32(messageType)).
				Uint16("field_id", req.ID).
				Msg("schema validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Uint32("message_type", uint32(messageType)).
				Uint16("field_id", req.ID).
				Uint8("got", uint8(f.Type)).
				Uint8("want", uint8(req.Type)).
				Msg("schema validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
