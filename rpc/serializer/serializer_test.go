package serializer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages returns one request and one response per bus operation
func testMessages() []common.Message {
	return []common.Message{
		{MsgType: common.MsgTSuccess},
		*common.NewBeginRequest("wifi", true, "nvs_ext"),
		*common.NewBeginResponse(nil),
		*common.NewEndRequest(),
		*common.NewClearResponse(kvstore.ErrReadOnly),
		*common.NewRemoveRequest("ssid"),
		*common.NewLenRequest("ssid", kvstore.TypeStr),
		*common.NewLenResponse(12, nil),
		*common.NewTypeRequest("ssid"),
		*common.NewTypeResponse(kvstore.TypeU64, nil),
		*common.NewTypeResponse(kvstore.TypeI8, nil),
		*common.NewPutRequest("counter", kvstore.TypeU32, []byte{1, 0, 0, 0}),
		*common.NewPutResponse(4, nil),
		*common.NewGetRequest("blob", kvstore.TypeBlob, 4096),
		*common.NewGetResponse([]byte("payload"), nil),
		*common.NewGetResponse(nil, kvstore.ErrNotFound),
		*common.NewErrorResponse("unknown device"),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range testMessages() {
				data, err := serializer.Serialize(msg)
				require.NoError(t, err, "message %d", i)

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), "message %d", i)
				require.Equal(t, msg, result, "message %d (%s)", i, msg.MsgType)
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTPrefGet; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				require.NoError(t, err, msgType.String())

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), msgType.String())
				require.Equal(t, msgType, result.MsgType)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		s, err := ByName(name)
		require.NoError(t, err)
		require.NotNil(t, s)
	}
	_, err := ByName("protobuf")
	require.Error(t, err)
}

// TestBinarySerializerSpecific tests edge cases only the binary format preserves
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{"Empty message", common.Message{}},
		{"Empty value slice but not nil", common.Message{MsgType: common.MsgTPrefGet, Value: []byte{}, Ok: true}},
		{"Largest size", common.Message{MsgType: common.MsgTPrefGet, Key: "k", Size: 1<<32 - 1}},
		{"Every flag", common.Message{
			MsgType:  common.MsgTPrefBegin,
			Name:     "ns",
			Label:    "part",
			ReadOnly: true,
			Key:      "k",
			Type:     kvstore.TypeBlob,
			Size:     3,
			Value:    []byte{0, 0, 0},
			Ok:       true,
			Err:      "e",
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			require.NoError(t, err)

			var result common.Message
			require.NoError(t, serializer.Deserialize(data, &result))
			require.Equal(t, tc.msg, result)
			require.Equal(t, tc.msg.Value == nil, result.Value == nil)
		})
	}
}

func TestBinaryLayout(t *testing.T) {
	data, err := NewBinarySerializer().Serialize(*common.NewLenResponse(5, nil))
	require.NoError(t, err)
	require.Equal(t, []byte{
		byte(common.MsgTPrefLen), hasSize | hasOk, 0,
		0, 0, 0, 5,
	}, data)
}

func TestBinaryValueIsCopied(t *testing.T) {
	serializer := NewBinarySerializer()
	data, err := serializer.Serialize(*common.NewGetResponse([]byte{7, 7}, nil))
	require.NoError(t, err)

	var msg common.Message
	require.NoError(t, serializer.Deserialize(data, &msg))
	for i := range data {
		data[i] = 0
	}
	require.Equal(t, []byte{7, 7}, msg.Value)
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{"Empty data", []byte{}, true},
		{"Too short header", []byte{1, 0}, true},
		{"Valid header only", []byte{1, 0, 0}, false},
		{"Invalid length for key", []byte{1, hasKey, 0, 0, 0, 0, 5, 'a', 'b', 'c'}, true},
		{"Invalid length for value", []byte{1, hasValue, 0, 0, 0, 0, 10}, true},
		{"Truncated size", []byte{1, hasSize, 0, 0, 1}, true},
		{"Trailing bytes", []byte{1, 0, 0, 9}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)
			if tc.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
