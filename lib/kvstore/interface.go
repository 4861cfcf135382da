package kvstore

import (
	"fmt"
	"strings"
)

// DefaultName is the namespace opened when callers do not choose one.
const DefaultName = "arduino"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the capability contract every backend implements.
// Keys passed to a backend are already validated by the generic layer
// (non-empty, no NUL bytes). Failures are reported as 0 or false; the
// contract does not distinguish between not-found, buffer-too-small and
// transport errors.
type IStore interface {
	// Begin opens the namespace name on the given partition. It fails if the
	// store is already begun.
	Begin(name string, readOnly bool, partitionLabel string) (ok bool)
	// End releases the session. Operations after End fail until the next Begin.
	End() (ok bool)
	// Clear erases all keys of the open namespace.
	Clear() (ok bool)
	// Remove deletes the entry for key. It must not succeed partially.
	Remove(key string) (ok bool)
	// Exists reports whether a value of any type is stored at key.
	Exists(key string) (ok bool)
	// PutBytes overwrites the value at key and returns the number of bytes
	// written, or 0 on failure (read-only store, backend error, empty value).
	PutBytes(key string, value []byte) (n int)
	// GetBytes copies the value at key into buf and returns the number of
	// bytes copied. It returns 0 without touching buf if the stored value is
	// larger than len(buf).
	GetBytes(key string, buf []byte) (n int)
	// GetBytesLength returns the stored length of key. 0 means absent.
	GetBytesLength(key string) (n int)
}

// ITypedStore is implemented by backends that store values with a type tag
// and offer one native call per width. Getters for the wrong type must fail
// instead of reinterpreting bytes.
type ITypedStore interface {
	IStore
	// PutTyped stores raw (little-endian for scalars) under the tag t.
	PutTyped(key string, t Type, raw []byte) (n int)
	// GetTyped reads a value of type t into buf. Scalars require
	// len(buf) == t.Size().
	GetTyped(key string, t Type, buf []byte) (n int)
	// GetTypedLength returns the stored length of a TypeStr or TypeBlob value,
	// or the width of a scalar of type t. 0 if there is no value of type t.
	GetTypedLength(key string, t Type) (n int)
	// MaxKeyLength is the longest key the backend accepts, 0 for no limit.
	MaxKeyLength() int
}

// ITypeInfo is implemented by backends that can report the stored type
// directly.
type ITypeInfo interface {
	GetType(key string) Type
}

// IFeatureStore lets wrappers declare exactly which optional capabilities
// are available behind them.
type IFeatureStore interface {
	SupportsFeature(feature Feature) (ok bool)
}

// --------------------------------------------------------------------------
// Features
// --------------------------------------------------------------------------

// Feature represents optional backend capabilities as bit flags
type Feature uint64

const (
	FeatureBytes            Feature = 1 << iota // Capability contract (always present)
	FeatureTypedIO                              // Native per-width typed calls (ITypedStore)
	FeatureTypeInfo                             // Stored type metadata (ITypeInfo)
	FeatureStringTerminator                     // String lengths include a trailing NUL
)

func (f Feature) String() string {
	switch f {
	case FeatureBytes:
		return "Bytes"
	case FeatureTypedIO:
		return "TypedIO"
	case FeatureTypeInfo:
		return "TypeInfo"
	case FeatureStringTerminator:
		return "StringTerminator"
	}

	var names []string
	for bit := FeatureBytes; bit <= FeatureStringTerminator; bit <<= 1 {
		if f&bit != 0 {
			names = append(names, bit.String())
		}
	}
	if len(names) == 0 {
		return "Unknown"
	}
	return strings.Join(names, "|")
}

// Supports reports whether every feature in f is available on s.
// Multiple features can be checked at once using bitwise OR.
func Supports(s IStore, f Feature) bool {
	s = unwrap(s)
	if fs, ok := s.(IFeatureStore); ok {
		return fs.SupportsFeature(f)
	}
	return Features(s)&f == f
}

// Features returns the capabilities derived from the interfaces s implements.
func Features(s IStore) Feature {
	s = unwrap(s)
	if fs, ok := s.(IFeatureStore); ok {
		var all Feature
		for bit := FeatureBytes; bit <= FeatureStringTerminator; bit <<= 1 {
			if fs.SupportsFeature(bit) {
				all |= bit
			}
		}
		return all
	}

	f := FeatureBytes
	if _, ok := s.(ITypedStore); ok {
		f |= FeatureTypedIO
	}
	if _, ok := s.(ITypeInfo); ok {
		f |= FeatureTypeInfo
	}
	return f
}

// unwrap returns the backend behind a facade such as *KVStore.
func unwrap(s IStore) IStore {
	for {
		w, ok := s.(interface{ Unwrap() IStore })
		if !ok {
			return s
		}
		s = w.Unwrap()
	}
}

// typed returns s as ITypedStore if it declares native typed calls.
func typed(s IStore) (ITypedStore, bool) {
	s = unwrap(s)
	ts, ok := s.(ITypedStore)
	if !ok || !Supports(s, FeatureTypedIO) {
		return nil, false
	}
	return ts, true
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and a message. Backends return it from their
// vendor layer; the capability contract reduces it to 0/false.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("kvstore error (code %s): %s", e.Code, e.Msg)
}

// Is matches errors by code so that wrapped errors compare equal to the
// sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

var (
	ErrNotStarted     = NewError(RetCNotStarted, "store not started")
	ErrReadOnly       = NewError(RetCReadOnly, "store is read-only")
	ErrNotFound       = NewError(RetCNotFound, "key not found")
	ErrBufferTooSmall = NewError(RetCBufferTooSmall, "buffer too small")
	ErrInvalidKey     = NewError(RetCInvalidKey, "invalid key")
	ErrTypeMismatch   = NewError(RetCTypeMismatch, "type mismatch")
	ErrInvalidValue   = NewError(RetCInvalidValue, "invalid value")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Command executed successfully.
	RetCNotStarted                    // 1: Store used before Begin or after End.
	RetCReadOnly                      // 2: Mutation on a read-only store.
	RetCNotFound                      // 3: No value stored at key.
	RetCBufferTooSmall                // 4: Destination smaller than stored value.
	RetCTransport                     // 5: Vendor, bus or line failure.
	RetCInvalidKey                    // 6: Key empty, too long or malformed.
	RetCTypeMismatch                  // 7: Value stored with a different type.
	RetCInvalidValue                  // 8: Empty or malformed value.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCNotStarted:
		return "NotStarted"
	case RetCReadOnly:
		return "ReadOnly"
	case RetCNotFound:
		return "NotFound"
	case RetCBufferTooSmall:
		return "BufferTooSmall"
	case RetCTransport:
		return "Transport"
	case RetCInvalidKey:
		return "InvalidKey"
	case RetCTypeMismatch:
		return "TypeMismatch"
	case RetCInvalidValue:
		return "InvalidValue"
	default:
		return "Unknown"
	}
}
