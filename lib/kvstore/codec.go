package kvstore

import (
	"encoding/binary"
	"strings"
)

// Scalar lists the fixed-width types the typed codec can store. Integers
// map to their own tag, bool is stored as i8 and floats travel as blobs.
type Scalar interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | bool | float32 | float64
}

// ValidKey reports whether key may be passed to a backend. Backends add
// their own limits on top (e.g. 15 bytes for flash NVS).
func ValidKey(key string) bool {
	return key != "" && strings.IndexByte(key, 0) < 0
}

// --------------------------------------------------------------------------
// Generic Put / Get
// --------------------------------------------------------------------------

// Put stores value under key and returns the number of bytes written
// (binary.Size of T), or 0 on failure.
func Put[T Scalar](s IStore, key string, value T) int {
	raw, err := binary.Append(nil, binary.LittleEndian, value)
	if err != nil {
		return 0
	}
	return WriteTyped(s, key, TypeOf[T](), raw)
}

// Get returns a Reference seeded with the value stored at key, or with def
// if the key is absent or holds a value of a different width or type.
func Get[T Scalar](s IStore, key string, def T) *Reference[T] {
	ref := NewReference(key, def, s)
	if v, ok := load[T](s, key); ok {
		ref.value = v
	}
	return ref
}

// load decodes the value at key. Stored data whose length differs from
// sizeof(T) is rejected rather than reinterpreted.
func load[T Scalar](s IStore, key string) (T, bool) {
	var v T
	size := binary.Size(v)
	buf := make([]byte, size)
	if ReadTyped(s, key, TypeOf[T](), buf) != size {
		return v, false
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, &v); err != nil {
		return v, false
	}
	return v, true
}

// --------------------------------------------------------------------------
// Per-width dispatch
// --------------------------------------------------------------------------

// WriteTyped stores raw under key with type t. Scalars and strings go to
// the backend's native typed call when it has one; everything else uses
// PutBytes.
func WriteTyped(s IStore, key string, t Type, raw []byte) int {
	if !ValidKey(key) || !t.Valid() || len(raw) == 0 {
		return 0
	}
	if t.IsScalar() && len(raw) != t.Size() {
		return 0
	}
	if ts, ok := typed(s); ok && t != TypeBlob {
		return ts.PutTyped(key, t, raw)
	}
	return s.PutBytes(key, raw)
}

// ReadTyped reads a value of type t into buf and returns the number of
// bytes read. For scalars the stored length must equal t.Size().
func ReadTyped(s IStore, key string, t Type, buf []byte) int {
	if !ValidKey(key) || !t.Valid() || len(buf) == 0 {
		return 0
	}
	if t.IsScalar() && len(buf) != t.Size() {
		return 0
	}
	if ts, ok := typed(s); ok && t != TypeBlob {
		return ts.GetTyped(key, t, buf)
	}
	if t.IsScalar() && s.GetBytesLength(key) != t.Size() {
		return 0
	}
	return s.GetBytes(key, buf)
}

// TypedLength returns the stored length of the value of type t at key, or 0.
func TypedLength(s IStore, key string, t Type) int {
	if !ValidKey(key) || !t.Valid() {
		return 0
	}
	if ts, ok := typed(s); ok {
		return ts.GetTypedLength(key, t)
	}
	n := s.GetBytesLength(key)
	if t.IsScalar() && n != t.Size() {
		return 0
	}
	return n
}

// --------------------------------------------------------------------------
// Strings
// --------------------------------------------------------------------------

// PutString stores value as a string. Whether the returned length counts a
// trailing NUL depends on the backend (see FeatureStringTerminator); the
// same convention applies to GetString.
func PutString(s IStore, key, value string) int {
	return WriteTyped(s, key, TypeStr, []byte(value))
}

// GetString copies the string stored at key into buf. It returns 0 if buf
// cannot hold the stored length.
func GetString(s IStore, key string, buf []byte) int {
	return ReadTyped(s, key, TypeStr, buf)
}

// GetStringValue returns the string stored at key without terminator, or def.
func GetStringValue(s IStore, key, def string) string {
	n := TypedLength(s, key, TypeStr)
	if n == 0 {
		return def
	}
	buf := make([]byte, n)
	if ReadTyped(s, key, TypeStr, buf) != n {
		return def
	}
	if Supports(s, FeatureStringTerminator) && buf[n-1] == 0 {
		n--
	}
	return string(buf[:n])
}
