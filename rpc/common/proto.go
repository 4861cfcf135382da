package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Begin fields
	Name     string `json:"name,omitempty"`      // Used for: Begin
	Label    string `json:"label,omitempty"`     // Used for: Begin
	ReadOnly bool   `json:"read_only,omitempty"` // Used for: Begin

	// General fields
	Key   string       `json:"key,omitempty"`   // Used for: Remove, Len, Type, Put, Get
	Type  kvstore.Type `json:"type,omitempty"`  // Used for: Len, Put, Get (request), Type (response)
	Size  uint32       `json:"size,omitempty"`  // Used for: Get (request), Len, Put (response)
	Value []byte       `json:"value,omitempty"` // Used for: Put (request), Get (response)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Set on every successful response
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// newResponse creates a response of type t carrying err
func newResponse(t MessageType, err error) *Message {
	msg := &Message{
		MsgType: t,
		Ok:      err == nil,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewBeginRequest creates a new Begin request
func NewBeginRequest(name string, readOnly bool, label string) *Message {
	return &Message{
		MsgType:  MsgTPrefBegin,
		Name:     name,
		ReadOnly: readOnly,
		Label:    label,
	}
}

// NewBeginResponse creates a new Begin response
func NewBeginResponse(err error) *Message {
	return newResponse(MsgTPrefBegin, err)
}

// NewEndRequest creates a new End request
func NewEndRequest() *Message {
	return &Message{MsgType: MsgTPrefEnd}
}

// NewEndResponse creates a new End response
func NewEndResponse(err error) *Message {
	return newResponse(MsgTPrefEnd, err)
}

// NewClearRequest creates a new Clear request
func NewClearRequest() *Message {
	return &Message{MsgType: MsgTPrefClear}
}

// NewClearResponse creates a new Clear response
func NewClearResponse(err error) *Message {
	return newResponse(MsgTPrefClear, err)
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(key string) *Message {
	return &Message{
		MsgType: MsgTPrefRemove,
		Key:     key,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(err error) *Message {
	return newResponse(MsgTPrefRemove, err)
}

// NewLenRequest creates a new Len request
func NewLenRequest(key string, t kvstore.Type) *Message {
	return &Message{
		MsgType: MsgTPrefLen,
		Key:     key,
		Type:    t,
	}
}

// NewLenResponse creates a new Len response
func NewLenResponse(size int, err error) *Message {
	msg := newResponse(MsgTPrefLen, err)
	msg.Size = uint32(size)
	return msg
}

// NewTypeRequest creates a new Type request
func NewTypeRequest(key string) *Message {
	return &Message{
		MsgType: MsgTPrefType,
		Key:     key,
	}
}

// NewTypeResponse creates a new Type response
func NewTypeResponse(t kvstore.Type, err error) *Message {
	msg := newResponse(MsgTPrefType, err)
	msg.Type = t
	return msg
}

// NewPutRequest creates a new Put request
func NewPutRequest(key string, t kvstore.Type, value []byte) *Message {
	return &Message{
		MsgType: MsgTPrefPut,
		Key:     key,
		Type:    t,
		Value:   value,
	}
}

// NewPutResponse creates a new Put response
func NewPutResponse(size int, err error) *Message {
	msg := newResponse(MsgTPrefPut, err)
	msg.Size = uint32(size)
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string, t kvstore.Type, size int) *Message {
	return &Message{
		MsgType: MsgTPrefGet,
		Key:     key,
		Type:    t,
		Size:    uint32(size),
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, err error) *Message {
	msg := newResponse(MsgTPrefGet, err)
	msg.Value = value
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// RemoteError returns the error carried by a response, or nil if it
// succeeded. Store errors keep their return code across the wire.
func (m *Message) RemoteError() error {
	if m.Ok && m.Err == "" {
		return nil
	}
	if m.Err == "" {
		return kvstore.NewError(kvstore.RetCTransport, fmt.Sprintf("%s failed without error message", m.MsgType))
	}

	rest, found := strings.CutPrefix(m.Err, "kvstore error (code ")
	if name, msg, ok := strings.Cut(rest, "): "); found && ok {
		for code := kvstore.RetCSuccess; code <= kvstore.RetCInvalidValue; code++ {
			if code.String() == name {
				return kvstore.NewError(code, msg)
			}
		}
	}
	return kvstore.NewError(kvstore.RetCTransport, m.Err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:    "success",
	MsgTError:      "error",
	MsgTPrefBegin:  "begin",
	MsgTPrefEnd:    "end",
	MsgTPrefClear:  "clear",
	MsgTPrefRemove: "remove",
	MsgTPrefLen:    "len",
	MsgTPrefType:   "type",
	MsgTPrefPut:    "put",
	MsgTPrefGet:    "get",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Preferences bus operations

	MsgTPrefBegin  // Open a namespace
	MsgTPrefEnd    // Close the namespace
	MsgTPrefClear  // Erase the namespace
	MsgTPrefRemove // Remove a key
	MsgTPrefLen    // Length of a typed value
	MsgTPrefType   // Stored type of a key
	MsgTPrefPut    // Store a typed value
	MsgTPrefGet    // Read a typed value
)
