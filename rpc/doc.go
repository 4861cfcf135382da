// Package rpc connects a host to emulated storage co-processors. The host
// side is the pref kvstore backend; the device side is an emulator server
// hosting one backing store per device id.
//
// The package is organized into several subpackages:
//
//   - common: the Message of the preferences bus, configuration structures
//     and the zap backed logger factory.
//
//   - transport: framed tcp and unix sockets plus an http variant.
//
//   - serializer: binary, JSON and GOB encodings of Message.
//
//   - client: a pref.Driver that sends every call as a request message.
//
//   - server: the emulator, routing requests to devices and answering them
//     with a local pref.Driver.
package rpc
