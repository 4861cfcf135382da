// Package tcp carries the framed device bus over TCP sockets. It provides
// the TCP implementations of the base package's connector interfaces. See
// the base package for framing, worker pools and retries.
//
// Key Components:
//
//   - clientConnector: TCP implementation of base.IClientConnector with
//     no-delay and keep-alive options
//
//   - serverConnector: TCP implementation of base.IServerConnector. It is
//     exported through NewServerConnector so the AT modem emulator can accept
//     on the same kind of socket.
package tcp
