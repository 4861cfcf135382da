// Package common provides the data structures shared by the rpc client and
// server of the co-processor bus.
//
// Key Components:
//
//   - Message: the single request/response structure of the preferences bus,
//     with factory functions per operation. Strings never carry a terminator
//     on the bus.
//
//   - MessageType: the operations of the bus (begin, end, clear, remove, len,
//     type, put, get) plus success and error.
//
//   - ServerConfig / ClientConfig: configuration of the emulator server and of
//     the host side client, with String() renderings for startup logs.
//
//   - Logger: a zap backed factory for dragonboat's logger facade. Every
//     package obtains its logger through logger.GetLogger; InitLoggers picks
//     the encoding (console, json, logfmt) and the level.
package common
