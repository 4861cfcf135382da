package transport

import (
	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the addressed device id and a request and returns a response
type ServerHandleFunc func(deviceId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called for every request frame received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and serves incoming requests until
	// Close is called. It returns nil after Close.
	Listen(config common.ServerConfig) error
	// Close stops listening and closes all open connections
	Close() error
}

// ConnID identifies one client connection of a server transport
type ConnID uint64

// ConnHandleFunc handles a request like ServerHandleFunc and also receives
// the connection the request arrived on
type ConnHandleFunc func(conn ConnID, deviceId uint64, req []byte) (resp []byte)

// DisconnectFunc is called once per connection after it closed and all of
// its requests were answered
type DisconnectFunc func(conn ConnID)

// IConnServerTransport is implemented by server transports whose clients
// keep a connection between requests (tcp, unix). State bound to a client,
// like an open namespace session, can be released when it goes away.
type IConnServerTransport interface {
	IRPCServerTransport
	// RegisterConnHandler registers handler instead of a ServerHandleFunc
	// and disconnect for connection teardown
	RegisterConnHandler(handler ConnHandleFunc, disconnect DisconnectFunc)
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for a device to the server and returns the response
	Send(deviceId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
