// Package base implements the framed stream protocol shared by the tcp and
// unix transports. Protocol specific parts (dialing, listening, socket
// options) are injected through connectors.
//
// Frame layout, all integers big endian:
//
//	deviceId  uint64
//	requestId uint64
//	length    uint32
//	payload   [length]byte
//
// Responses echo the request id, so a single connection carries many
// requests at once. Payloads above MaxFrameSize are rejected.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: protocol specific operations.
//
//   - clientTransport: manages several connections per endpoint with
//     round-robin selection. Dialing, reconnecting and sending are retried with
//     exponential backoff and jitter (avast/retry-go). Requests still waiting
//     when a connection drops fail immediately and are retried on the next one.
//
//   - serverTransport: accepts connections and runs a bounded pool of workers
//     per connection. Read buffers come from a sync.Pool. Close stops the
//     accept loop and closes every open connection.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use.
package base
