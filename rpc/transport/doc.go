// Package transport defines how serialized bus messages travel between a host
// and an emulated storage co-processor.
//
// Every request is addressed to a device id. A server hosts several devices
// and routes each request by that id; a device is one independent storage
// backend with its own namespace session.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - IConnServerTransport: Server transports with long-lived connections
//     (tcp, unix) also pass a ConnID to the handler and report closed
//     connections through a DisconnectFunc.
//
// Implementations live in the tcp, unix and http subpackages. The first two
// share the framed protocol of the base package.
package transport
