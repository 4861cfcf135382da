// Package serializer encodes the preferences bus messages exchanged between a
// host and a storage co-processor. It defines a common interface and several
// interchangeable wire formats.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Compact format for slow serial links. A three byte
//     header (message type, presence flags, value type) is followed only by the
//     fields whose flag is set. Booleans live in the flags alone.
//
//   - jsonSerializerImpl: Human readable, handy when sniffing the bus. Value types
//     and message types are written by name.
//
//   - gobSerializerImpl: Go's gob encoding. Kept for compatibility, it produces the
//     largest frames.
//
// Note that only the binary format distinguishes an empty value from a missing
// one. The other formats decode both as nil.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.ByName("binary")
//	data, err := s.Serialize(*common.NewTypeRequest("ssid"))
//	// ... send data ...
//	var reply common.Message
//	err = s.Deserialize(received, &reply)
package serializer
