// Package pref implements kvstore.ITypedStore for boards whose storage lives
// on a network co-processor (the WiFiNINA preferences calls).
//
// The host side only sees the Driver interface. rpc/client provides a Driver
// that talks to a co-processor emulator over the rpc transport; NewLocalDriver
// serves the same calls from an in-process backend and is what the emulator
// itself runs on.
//
// The co-processor keeps type metadata, so type discovery uses the type call
// instead of probing. Strings are counted with their trailing NUL on the
// host side and without it on the bus.
package pref
