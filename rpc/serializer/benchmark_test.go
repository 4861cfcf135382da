package serializer

import (
	"testing"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	return map[string]common.Message{
		"Empty":        {MsgType: common.MsgTSuccess},
		"Begin":        *common.NewBeginRequest("preferences", false, "nvs"),
		"TypeRequest":  *common.NewTypeRequest("a_fifteen_chars"),
		"TypeResponse": *common.NewTypeResponse(kvstore.TypeU32, nil),
		"PutScalar":    *common.NewPutRequest("counter", kvstore.TypeU64, make([]byte, 8)),
		"PutString":    *common.NewPutRequest("ssid", kvstore.TypeStr, []byte("my-home-network-2.4ghz")),
		"GetBlob1K":    *common.NewGetResponse(make([]byte, 1024), nil),
		"GetBlob16K":   *common.NewGetResponse(make([]byte, 1024*16), nil),
		"ErrorMessage": *common.NewErrorResponse(kvstore.Errorf(kvstore.RetCInvalidValue, "blob of %d bytes exceeds %d", 600000, 508000).Error()),
	}
}

// BenchmarkSerializers measures encoding and decoding of every bus message
// and reports its encoded size
func BenchmarkSerializers(b *testing.B) {
	for name, factory := range testSerializers {
		s := factory()
		for msgName, msg := range benchmarkMessages() {
			data, err := s.Serialize(msg)
			if err != nil {
				b.Fatalf("%s: serialize %s: %v", name, msgName, err)
			}

			b.Run(name+"/encode/"+msgName, func(b *testing.B) {
				b.ReportAllocs()
				b.ReportMetric(float64(len(data)), "bytes")
				for i := 0; i < b.N; i++ {
					if _, err := s.Serialize(msg); err != nil {
						b.Fatal(err)
					}
				}
			})

			b.Run(name+"/decode/"+msgName, func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					var out common.Message
					if err := s.Deserialize(data, &out); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
