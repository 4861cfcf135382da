package pref

import (
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Driver is the preferences call set a co-processor exposes on its bus.
// On the wire strings never carry a terminator; lengths and byte counts
// refer to the payload only.
type Driver interface {
	// Begin opens the namespace name on the co-processor
	Begin(name string, readOnly bool, partitionLabel string) error
	// End closes the open namespace
	End() error
	// Clear erases the open namespace
	Clear() error
	// Remove deletes key
	Remove(key string) error
	// Len returns the payload length of the value of type t at key
	Len(key string, t kvstore.Type) (int, error)
	// Type returns the type stored at key (TypeInvalid if absent)
	Type(key string) (kvstore.Type, error)
	// Put stores value with type t and returns the payload bytes written
	Put(key string, t kvstore.Type, value []byte) (int, error)
	// Get reads the value of type t at key. size is the payload length the
	// caller can accept.
	Get(key string, t kvstore.Type, size int) ([]byte, error)
}

// --------------------------------------------------------------------------
// Local driver
// --------------------------------------------------------------------------

// localDriver serves the Driver calls from an in-process backend. The rpc
// server uses it to answer bus requests.
type localDriver struct {
	store kvstore.IStore
}

// NewLocalDriver exposes store through the Driver call set
func NewLocalDriver(store kvstore.IStore) Driver {
	return &localDriver{store: store}
}

func (d *localDriver) Begin(name string, readOnly bool, partitionLabel string) error {
	if !d.store.Begin(name, readOnly, partitionLabel) {
		return kvstore.Errorf(kvstore.RetCNotStarted, "begin %q failed", name)
	}
	return nil
}

func (d *localDriver) End() error {
	if !d.store.End() {
		return kvstore.ErrNotStarted
	}
	return nil
}

func (d *localDriver) Clear() error {
	if !d.store.Clear() {
		return kvstore.NewError(kvstore.RetCTransport, "clear failed")
	}
	return nil
}

func (d *localDriver) Remove(key string) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}
	if !d.store.Remove(key) {
		return kvstore.Errorf(kvstore.RetCNotFound, "remove %q failed", key)
	}
	return nil
}

func (d *localDriver) Len(key string, t kvstore.Type) (int, error) {
	n := kvstore.TypedLength(d.store, key, t)
	if n == 0 {
		return 0, kvstore.ErrNotFound
	}
	return d.payloadLength(t, n), nil
}

func (d *localDriver) Type(key string) (kvstore.Type, error) {
	return kvstore.DiscoverType(d.store, key), nil
}

func (d *localDriver) Put(key string, t kvstore.Type, value []byte) (int, error) {
	n := kvstore.WriteTyped(d.store, key, t, value)
	if n == 0 {
		return 0, kvstore.Errorf(kvstore.RetCInvalidValue, "put %q (%s) failed", key, t)
	}
	return d.payloadLength(t, n), nil
}

func (d *localDriver) Get(key string, t kvstore.Type, size int) ([]byte, error) {
	if size <= 0 {
		return nil, kvstore.ErrBufferTooSmall
	}
	bufLen := size
	if d.terminated(t) {
		bufLen++
	}

	buf := make([]byte, bufLen)
	n := kvstore.ReadTyped(d.store, key, t, buf)
	if n == 0 {
		return nil, kvstore.Errorf(kvstore.RetCNotFound, "get %q (%s) failed", key, t)
	}
	return buf[:d.payloadLength(t, n)], nil
}

// terminated reports whether the backend counts a NUL for values of type t
func (d *localDriver) terminated(t kvstore.Type) bool {
	return t == kvstore.TypeStr && kvstore.Supports(d.store, kvstore.FeatureStringTerminator)
}

func (d *localDriver) payloadLength(t kvstore.Type, n int) int {
	if d.terminated(t) && n > 0 {
		return n - 1
	}
	return n
}
