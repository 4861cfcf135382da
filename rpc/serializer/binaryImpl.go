package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// NewBinarySerializer creates a new serializer using a compact binary format
// suited for a slow co-processor bus
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	[msg type][flags][value type] then the fields whose flag is set, in flag
//	order. Strings and byte slices are prefixed with a big endian uint32
//	length, Size is a big endian uint32.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasName     byte = 1 << 0
	hasLabel    byte = 1 << 1
	hasKey      byte = 1 << 2
	hasSize     byte = 1 << 3
	hasValue    byte = 1 << 4
	hasErr      byte = 1 << 5
	hasOk       byte = 1 << 6
	hasReadOnly byte = 1 << 7
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, headerSize, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)
	result[2] = byte(msg.Type)

	var flags byte
	appendString := func(flag byte, s string) {
		if s == "" {
			return
		}
		flags |= flag
		result = binary.BigEndian.AppendUint32(result, uint32(len(s)))
		result = append(result, s...)
	}

	appendString(hasName, msg.Name)
	appendString(hasLabel, msg.Label)
	appendString(hasKey, msg.Key)

	if msg.Size > 0 {
		flags |= hasSize
		result = binary.BigEndian.AppendUint32(result, msg.Size)
	}

	// a nil value and an empty value are different messages
	if msg.Value != nil {
		flags |= hasValue
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Value)))
		result = append(result, msg.Value...)
	}

	appendString(hasErr, msg.Err)

	// booleans are carried by their flag alone
	if msg.Ok {
		flags |= hasOk
	}
	if msg.ReadOnly {
		flags |= hasReadOnly
	}

	result[1] = flags
	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	msg.Type = kvstore.Type(data[2])
	pos := headerSize

	readBytes := func(field string) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", field)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			return nil, fmt.Errorf("data too short for %s data", field)
		}
		out := data[pos : pos+n]
		pos += n
		return out, nil
	}

	readString := func(flag byte, field string) (string, error) {
		if flags&flag == 0 {
			return "", nil
		}
		raw, err := readBytes(field)
		return string(raw), err
	}

	var err error
	if msg.Name, err = readString(hasName, "name"); err != nil {
		return err
	}
	if msg.Label, err = readString(hasLabel, "label"); err != nil {
		return err
	}
	if msg.Key, err = readString(hasKey, "key"); err != nil {
		return err
	}

	msg.Size = 0
	if flags&hasSize != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for size")
		}
		msg.Size = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	msg.Value = nil
	if flags&hasValue != 0 {
		raw, err := readBytes("value")
		if err != nil {
			return err
		}
		// copy, the frame buffer is reused by the transport
		msg.Value = make([]byte, len(raw))
		copy(msg.Value, raw)
	}

	if msg.Err, err = readString(hasErr, "error"); err != nil {
		return err
	}

	msg.Ok = flags&hasOk != 0
	msg.ReadOnly = flags&hasReadOnly != 0

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	for _, s := range []string{msg.Name, msg.Label, msg.Key, msg.Err} {
		if s != "" {
			size += 4 + len(s)
		}
	}
	if msg.Size > 0 {
		size += 4
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	return size
}
