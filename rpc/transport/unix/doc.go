// Package unix carries the framed device bus over Unix domain sockets, the
// usual choice when the emulator runs on the same machine as the host.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. A stale socket file of
//     a previous run is removed first.
//
// The default server read buffer is 64 KB.
package unix
