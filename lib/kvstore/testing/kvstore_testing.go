package testing

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

// StoreFactory creates a fresh, unbegun backend. Resources are released
// through t.Cleanup.
type StoreFactory func(t *testing.T) kvstore.IStore

// testNamespace is short enough for every backend's name limit.
const testNamespace = "conformance"

// RunStoreTests runs the conformance suite for a kvstore.IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Lifecycle", func(t *testing.T) {
			testLifecycle(t, factory(t))
		})

		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, begin(t, factory(t)))
		})

		t.Run("AbsenceDefault", func(t *testing.T) {
			testAbsenceDefault(t, begin(t, factory(t)))
		})

		t.Run("RemoveThenAbsent", func(t *testing.T) {
			testRemoveThenAbsent(t, begin(t, factory(t)))
		})

		t.Run("Bytes", func(t *testing.T) {
			testBytes(t, begin(t, factory(t)))
		})

		t.Run("BufferSafety", func(t *testing.T) {
			testBufferSafety(t, begin(t, factory(t)))
		})

		t.Run("TypeDiscovery", func(t *testing.T) {
			testTypeDiscovery(t, begin(t, factory(t)))
		})

		t.Run("WriteThroughReference", func(t *testing.T) {
			testWriteThroughReference(t, begin(t, factory(t)))
		})

		t.Run("ReadThroughReference", func(t *testing.T) {
			testReadThroughReference(t, begin(t, factory(t)))
		})

		t.Run("ReadOnly", func(t *testing.T) {
			testReadOnly(t, factory(t))
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, begin(t, factory(t)))
		})

		t.Run("Strings", func(t *testing.T) {
			testStrings(t, begin(t, factory(t)))
		})

		t.Run("Helpers", func(t *testing.T) {
			testHelpers(t, begin(t, factory(t)))
		})

		t.Run("CountScenario", func(t *testing.T) {
			testCountScenario(t, begin(t, factory(t)))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, begin(t, factory(t)))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// begin wraps the backend in the facade and opens the test namespace
func begin(t *testing.T, s kvstore.IStore) *kvstore.KVStore {
	t.Helper()
	kv := kvstore.New(s)
	if !kv.Begin(testNamespace, false, "") {
		t.Fatalf("Expected Begin to succeed")
	}
	t.Cleanup(func() { kv.End() })
	return kv
}

// typedOrInfo reports whether the backend records the type of stored values
func typedOrInfo(kv *kvstore.KVStore) bool {
	return kvstore.Supports(kv, kvstore.FeatureTypedIO) || kvstore.Supports(kv, kvstore.FeatureTypeInfo)
}

// roundTrip puts every value under key and expects to read it back
func roundTrip[T kvstore.Scalar](t *testing.T, kv *kvstore.KVStore, key string, def T, values ...T) {
	t.Helper()
	for _, v := range values {
		if n := kvstore.Put(kv, key, v); n != binary.Size(v) {
			t.Errorf("Put(%s, %v): expected %d bytes written, got %d", key, v, binary.Size(v), n)
			continue
		}
		if got := kvstore.Get(kv, key, def).Value(); got != v {
			t.Errorf("Get(%s): expected %v, got %v", key, v, got)
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testLifecycle(t *testing.T, s kvstore.IStore) {
	kv := kvstore.New(s)

	if n := kv.PutBytes("life", []byte{1}); n != 0 {
		t.Errorf("Expected PutBytes before Begin to fail, got %d", n)
	}
	if kv.Exists("life") {
		t.Errorf("Expected Exists before Begin to be false")
	}
	if n := kv.GetBytesLength("life"); n != 0 {
		t.Errorf("Expected GetBytesLength before Begin to be 0, got %d", n)
	}
	if kv.Clear() {
		t.Errorf("Expected Clear before Begin to fail")
	}
	if kv.End() {
		t.Errorf("Expected End before Begin to fail")
	}

	if !kv.Begin(testNamespace, false, "") {
		t.Fatalf("Expected Begin to succeed")
	}
	if kv.Begin(testNamespace, false, "") {
		t.Errorf("Expected double Begin to fail")
	}
	if n := kv.PutBytes("life", []byte{1, 2}); n != 2 {
		t.Errorf("Expected PutBytes to write 2 bytes, got %d", n)
	}
	if !kv.End() {
		t.Errorf("Expected End to succeed")
	}

	if n := kv.PutBytes("life", []byte{3}); n != 0 {
		t.Errorf("Expected PutBytes after End to fail, got %d", n)
	}
	if n := kv.GetBytes("life", make([]byte, 2)); n != 0 {
		t.Errorf("Expected GetBytes after End to fail, got %d", n)
	}
	if kv.Remove("life") {
		t.Errorf("Expected Remove after End to fail")
	}

	// a new session sees the data of the previous one
	if !kv.Begin(testNamespace, false, "") {
		t.Fatalf("Expected Begin after End to succeed")
	}
	defer kv.End()
	if n := kv.GetBytesLength("life"); n != 2 {
		t.Errorf("Expected value to persist across sessions, got length %d", n)
	}
}

func testRoundTrip(t *testing.T, kv *kvstore.KVStore) {
	roundTrip[int8](t, kv, "rt_i8", 42, 0, -1, math.MaxInt8, math.MinInt8)
	roundTrip[uint8](t, kv, "rt_u8", 42, 0, 1, math.MaxUint8)
	roundTrip[int16](t, kv, "rt_i16", 42, 0, -1, math.MaxInt16, math.MinInt16)
	roundTrip[uint16](t, kv, "rt_u16", 42, 0, 1, math.MaxUint16)
	roundTrip[int32](t, kv, "rt_i32", 42, 0, -1, math.MaxInt32, math.MinInt32)
	roundTrip[uint32](t, kv, "rt_u32", 42, 0, 1, math.MaxUint32)
	roundTrip[int64](t, kv, "rt_i64", 42, 0, -1, math.MaxInt64, math.MinInt64)
	roundTrip[uint64](t, kv, "rt_u64", 42, 0, 1, math.MaxUint64)
	roundTrip[bool](t, kv, "rt_bool", false, true, false)
	roundTrip[float32](t, kv, "rt_f32", 42, 0, -1.5, math.MaxFloat32, math.SmallestNonzeroFloat32)
	roundTrip[float64](t, kv, "rt_f64", 42, 0, -1.5, math.MaxFloat64, math.SmallestNonzeroFloat64)

	// a width mismatch falls back to the default instead of reinterpreting bytes
	kvstore.Put[int32](kv, "rt_width", 0x01020304)
	if got := kvstore.Get[int16](kv, "rt_width", 7).Value(); got != 7 {
		t.Errorf("Expected default for width mismatch, got %d", got)
	}
	if got := kvstore.Get[int64](kv, "rt_width", 7).Value(); got != 7 {
		t.Errorf("Expected default for width mismatch, got %d", got)
	}
}

func testAbsenceDefault(t *testing.T, kv *kvstore.KVStore) {
	if got := kvstore.Get[int32](kv, "absent", -5).Value(); got != -5 {
		t.Errorf("Expected default -5 for absent key, got %d", got)
	}
	if got := kvstore.Get[uint64](kv, "absent", math.MaxUint64).Value(); got != math.MaxUint64 {
		t.Errorf("Expected default for absent key, got %d", got)
	}
	if kv.Exists("absent") {
		t.Errorf("Expected absent key not to exist")
	}

	// reading a default does not fabricate an entry
	ref := kvstore.Get[int8](kv, "absent", 3)
	_ = ref.Value()
	if kv.Exists("absent") {
		t.Errorf("Expected reading a default not to create the key")
	}
	if got := kv.Type("absent"); got != kvstore.TypeInvalid {
		t.Errorf("Expected type invalid for absent key, got %s", got)
	}
}

func testRemoveThenAbsent(t *testing.T, kv *kvstore.KVStore) {
	if n := kvstore.Put[uint16](kv, "rm", 1234); n != 2 {
		t.Fatalf("Expected 2 bytes written, got %d", n)
	}
	if !kv.Exists("rm") {
		t.Errorf("Expected key to exist after Put")
	}
	if !kv.Remove("rm") {
		t.Errorf("Expected Remove to succeed")
	}
	if kv.Exists("rm") {
		t.Errorf("Expected key not to exist after Remove")
	}
	if got := kvstore.Get[uint16](kv, "rm", 9).Value(); got != 9 {
		t.Errorf("Expected default after Remove, got %d", got)
	}
	if n := kv.GetBytesLength("rm"); n != 0 {
		t.Errorf("Expected length 0 after Remove, got %d", n)
	}
}

func testBytes(t *testing.T, kv *kvstore.KVStore) {
	value := []byte{0x00, 0xff, 0x10, 0x00, 0x7f}

	if n := kv.PutBytes("blob", value); n != len(value) {
		t.Fatalf("Expected %d bytes written, got %d", len(value), n)
	}
	if n := kv.GetBytesLength("blob"); n != len(value) {
		t.Errorf("Expected length %d, got %d", len(value), n)
	}
	buf := make([]byte, len(value))
	if n := kv.GetBytes("blob", buf); n != len(value) {
		t.Errorf("Expected %d bytes read, got %d", len(value), n)
	}
	if !bytes.Equal(buf, value) {
		t.Errorf("Expected %x, got %x", value, buf)
	}

	// the caller's slice is not retained
	value[0] = 0xAA
	kv.GetBytes("blob", buf)
	if buf[0] != 0x00 {
		t.Errorf("Expected stored value to be independent of the input slice")
	}

	// overwrite with a shorter value
	if n := kv.PutBytes("blob", []byte{9}); n != 1 {
		t.Errorf("Expected 1 byte written, got %d", n)
	}
	if n := kv.GetBytesLength("blob"); n != 1 {
		t.Errorf("Expected length 1 after overwrite, got %d", n)
	}
}

func testBufferSafety(t *testing.T, kv *kvstore.KVStore) {
	value := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if n := kv.PutBytes("safe", value); n != len(value) {
		t.Fatalf("Expected %d bytes written, got %d", len(value), n)
	}

	small := bytes.Repeat([]byte{0xAA}, 4)
	if n := kv.GetBytes("safe", small); n != 0 {
		t.Errorf("Expected GetBytes into a small buffer to fail, got %d", n)
	}
	if !bytes.Equal(small, bytes.Repeat([]byte{0xAA}, 4)) {
		t.Errorf("Expected small buffer to be untouched, got %x", small)
	}

	large := bytes.Repeat([]byte{0xAA}, 16)
	if n := kv.GetBytes("safe", large); n != len(value) {
		t.Errorf("Expected %d bytes read, got %d", len(value), n)
	}
	if !bytes.Equal(large[:8], value) || !bytes.Equal(large[8:], bytes.Repeat([]byte{0xAA}, 8)) {
		t.Errorf("Expected only the stored length to be written, got %x", large)
	}
}

func testTypeDiscovery(t *testing.T, kv *kvstore.KVStore) {
	tests := []struct {
		key  string
		put  func(key string) int
		want kvstore.Type
	}{
		{"td_i8_0", func(k string) int { return kvstore.Put[int8](kv, k, 0) }, kvstore.TypeI8},
		{"td_i8_m1", func(k string) int { return kvstore.Put[int8](kv, k, -1) }, kvstore.TypeI8},
		{"td_i8_min", func(k string) int { return kvstore.Put[int8](kv, k, math.MinInt8) }, kvstore.TypeI8},
		{"td_u8_max", func(k string) int { return kvstore.Put[uint8](kv, k, math.MaxUint8) }, kvstore.TypeU8},
		{"td_u8_0", func(k string) int { return kvstore.Put[uint8](kv, k, 0) }, kvstore.TypeU8},
		{"td_i16_m1", func(k string) int { return kvstore.Put[int16](kv, k, -1) }, kvstore.TypeI16},
		{"td_i16_max", func(k string) int { return kvstore.Put[int16](kv, k, math.MaxInt16) }, kvstore.TypeI16},
		{"td_u16_max", func(k string) int { return kvstore.Put[uint16](kv, k, math.MaxUint16) }, kvstore.TypeU16},
		{"td_i32_min", func(k string) int { return kvstore.Put[int32](kv, k, math.MinInt32) }, kvstore.TypeI32},
		{"td_i32_0", func(k string) int { return kvstore.Put[int32](kv, k, 0) }, kvstore.TypeI32},
		{"td_u32_max", func(k string) int { return kvstore.Put[uint32](kv, k, math.MaxUint32) }, kvstore.TypeU32},
		{"td_i64_m1", func(k string) int { return kvstore.Put[int64](kv, k, -1) }, kvstore.TypeI64},
		{"td_i64_max", func(k string) int { return kvstore.Put[int64](kv, k, math.MaxInt64) }, kvstore.TypeI64},
		{"td_u64_max", func(k string) int { return kvstore.Put[uint64](kv, k, math.MaxUint64) }, kvstore.TypeU64},
		{"td_u64_0", func(k string) int { return kvstore.Put[uint64](kv, k, 0) }, kvstore.TypeU64},
		{"td_str", func(k string) int { return kv.PutString(k, "text") }, kvstore.TypeStr},
		{"td_blob", func(k string) int { return kv.PutBytes(k, []byte{1, 2, 3}) }, kvstore.TypeBlob},
	}

	typed := typedOrInfo(kv)
	for _, tt := range tests {
		if n := tt.put(tt.key); n == 0 {
			t.Errorf("Put(%s) failed", tt.key)
			continue
		}

		want := tt.want
		if !typed {
			want = kvstore.TypeBlob
		}
		if got := kv.Type(tt.key); got != want {
			t.Errorf("Type(%s): expected %s, got %s", tt.key, want, got)
		}
		if !kv.Exists(tt.key) {
			t.Errorf("Expected %s to exist", tt.key)
		}
	}

	if got := kv.Type("td_missing"); got != kvstore.TypeInvalid {
		t.Errorf("Expected invalid type for missing key, got %s", got)
	}
}

func testWriteThroughReference(t *testing.T, kv *kvstore.KVStore) {
	ref := kvstore.Get[int32](kv, "wt", 0)
	if kv.Exists("wt") {
		t.Fatalf("Expected key not to exist before assignment")
	}

	ref.Set(5)
	if !kv.Exists("wt") {
		t.Errorf("Expected assignment to persist immediately")
	}
	if got := kvstore.Get[int32](kv, "wt", 0).Value(); got != 5 {
		t.Errorf("Expected fresh Get to observe 5, got %d", got)
	}

	// assignment from another reference copies the value and saves it
	other := kvstore.NewReference[int32]("wt_other", 0, kv)
	other.Assign(ref)
	if got := kvstore.Get[int32](kv, "wt_other", 0).Value(); got != 5 {
		t.Errorf("Expected assigned reference to be saved, got %d", got)
	}

	// remove keeps the cache, a reload falls back to the default
	if !ref.Remove() {
		t.Errorf("Expected Remove through the reference to succeed")
	}
	if ref.Exists() {
		t.Errorf("Expected key not to exist after Remove")
	}
	if got := ref.Cached(); got != 5 {
		t.Errorf("Expected cached value to survive Remove, got %d", got)
	}
	if got := ref.Value(); got != 0 {
		t.Errorf("Expected reload after Remove to yield the default, got %d", got)
	}
}

func testReadThroughReference(t *testing.T, kv *kvstore.KVStore) {
	ref1 := kvstore.Get[uint32](kv, "rth", 1)
	ref2 := kvstore.Get[uint32](kv, "rth", 2)

	ref1.Set(100)
	if got := ref2.Value(); got != 100 {
		t.Errorf("Expected ref2 to observe write through ref1, got %d", got)
	}

	// external write on the store
	kvstore.Put[uint32](kv, "rth", 200)
	if got := ref1.Value(); got != 200 {
		t.Errorf("Expected ref1 to re-fetch the external write, got %d", got)
	}
	if got := ref1.Key(); got != "rth" {
		t.Errorf("Expected key rth, got %s", got)
	}
}

func testReadOnly(t *testing.T, s kvstore.IStore) {
	kv := kvstore.New(s)
	if !kv.Begin(testNamespace, false, "") {
		t.Fatalf("Expected Begin to succeed")
	}
	kvstore.Put[int32](kv, "ro_i32", 7)
	kv.PutBytes("ro_blob", []byte{1, 2, 3})
	kv.PutString("ro_str", "keep")
	kv.End()

	if !kv.Begin(testNamespace, true, "") {
		t.Fatalf("Expected read-only Begin to succeed")
	}
	defer kv.End()

	if n := kvstore.Put[int32](kv, "ro_i32", 8); n != 0 {
		t.Errorf("Expected Put on read-only store to fail, got %d", n)
	}
	if n := kvstore.Put[int32](kv, "ro_new", 8); n != 0 {
		t.Errorf("Expected Put of a new key on read-only store to fail, got %d", n)
	}
	if n := kv.PutBytes("ro_blob", []byte{9}); n != 0 {
		t.Errorf("Expected PutBytes on read-only store to fail, got %d", n)
	}
	if n := kv.PutString("ro_str", "changed"); n != 0 {
		t.Errorf("Expected PutString on read-only store to fail, got %d", n)
	}
	if kv.Remove("ro_i32") {
		t.Errorf("Expected Remove on read-only store to fail")
	}
	if kv.Clear() {
		t.Errorf("Expected Clear on read-only store to fail")
	}

	if got := kvstore.Get[int32](kv, "ro_i32", 0).Value(); got != 7 {
		t.Errorf("Expected value 7 to be unchanged, got %d", got)
	}
	buf := make([]byte, 3)
	if n := kv.GetBytes("ro_blob", buf); n != 3 || !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("Expected blob to be unchanged, got %x (%d)", buf, n)
	}
	if got := kv.GetStringValue("ro_str", ""); got != "keep" {
		t.Errorf("Expected string to be unchanged, got %q", got)
	}
	if kv.Exists("ro_new") {
		t.Errorf("Expected no new key on read-only store")
	}
}

func testClear(t *testing.T, kv *kvstore.KVStore) {
	kvstore.Put[int8](kv, "clr_a", 1)
	kv.PutBytes("clr_b", []byte{1, 2})
	kv.PutString("clr_c", "x")

	if !kv.Clear() {
		t.Fatalf("Expected Clear to succeed")
	}
	for _, key := range []string{"clr_a", "clr_b", "clr_c"} {
		if kv.Exists(key) {
			t.Errorf("Expected %s not to exist after Clear", key)
		}
	}

	// the store stays usable
	if n := kvstore.Put[int8](kv, "clr_a", 2); n != 1 {
		t.Errorf("Expected Put after Clear to succeed, got %d", n)
	}
}

func testStrings(t *testing.T, kv *kvstore.KVStore) {
	value := "hello world"
	want := len(value)
	terminated := kvstore.Supports(kv, kvstore.FeatureStringTerminator)
	if terminated {
		want++
	}

	if n := kv.PutString("str", value); n != want {
		t.Fatalf("Expected PutString to report %d, got %d", want, n)
	}

	buf := make([]byte, want)
	if n := kv.GetString("str", buf); n != want {
		t.Errorf("Expected GetString to report %d, got %d", want, n)
	}
	if string(buf[:len(value)]) != value {
		t.Errorf("Expected %q, got %q", value, buf[:len(value)])
	}
	if terminated && buf[len(value)] != 0 {
		t.Errorf("Expected a trailing NUL, got %x", buf[len(value)])
	}

	if n := kv.GetString("str", make([]byte, want-1)); n != 0 {
		t.Errorf("Expected GetString into a short buffer to fail, got %d", n)
	}
	if got := kv.GetStringValue("str", "def"); got != value {
		t.Errorf("Expected %q, got %q", value, got)
	}
	if got := kv.GetStringValue("nostr", "def"); got != "def" {
		t.Errorf("Expected default for missing string, got %q", got)
	}
	if n := kv.PutString("str_empty", ""); n != 0 {
		t.Errorf("Expected empty string to be rejected, got %d", n)
	}
}

func testHelpers(t *testing.T, kv *kvstore.KVStore) {
	if n := kv.PutChar("h_char", -3); n != 1 {
		t.Errorf("PutChar: expected 1, got %d", n)
	}
	if got := kv.GetChar("h_char", 0); got != -3 {
		t.Errorf("GetChar: expected -3, got %d", got)
	}
	if n := kv.PutUShort("h_ushort", 65000); n != 2 {
		t.Errorf("PutUShort: expected 2, got %d", n)
	}
	if got := kv.GetUShort("h_ushort", 0); got != 65000 {
		t.Errorf("GetUShort: expected 65000, got %d", got)
	}
	if n := kv.PutLong("h_long", -70000); n != 4 {
		t.Errorf("PutLong: expected 4, got %d", n)
	}
	if got := kv.GetLong("h_long", 0); got != -70000 {
		t.Errorf("GetLong: expected -70000, got %d", got)
	}
	if n := kv.PutULong64("h_ulong64", math.MaxUint64); n != 8 {
		t.Errorf("PutULong64: expected 8, got %d", n)
	}
	if got := kv.GetULong64("h_ulong64", 0); got != math.MaxUint64 {
		t.Errorf("GetULong64: expected max, got %d", got)
	}
	if n := kv.PutFloat("h_float", 1.5); n != 4 {
		t.Errorf("PutFloat: expected 4, got %d", n)
	}
	if got := kv.GetFloat("h_float", kvstore.NaN32()); got != 1.5 {
		t.Errorf("GetFloat: expected 1.5, got %f", got)
	}
	if got := kv.GetFloat("h_nofloat", kvstore.NaN32()); !math.IsNaN(float64(got)) {
		t.Errorf("GetFloat: expected NaN default, got %f", got)
	}
	if n := kv.PutDouble("h_double", math.Pi); n != 8 {
		t.Errorf("PutDouble: expected 8, got %d", n)
	}
	if got := kv.GetDouble("h_double", 0); got != math.Pi {
		t.Errorf("GetDouble: expected pi, got %f", got)
	}
	if n := kv.PutBool("h_bool", true); n != 1 {
		t.Errorf("PutBool: expected 1, got %d", n)
	}
	if got := kv.GetBool("h_bool", false); !got {
		t.Errorf("GetBool: expected true")
	}
	if got := kv.GetBool("h_nobool", true); !got {
		t.Errorf("GetBool: expected default true")
	}
}

func testCountScenario(t *testing.T, kv *kvstore.KVStore) {
	if n := kvstore.Put[int32](kv, "count", 42); n != 4 {
		t.Errorf("Expected Put to return 4, got %d", n)
	}
	if got := kvstore.Get[int32](kv, "count", 0).Value(); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if !kv.Remove("count") {
		t.Errorf("Expected Remove to succeed")
	}
	if kv.Exists("count") {
		t.Errorf("Expected count not to exist")
	}
	if got := kvstore.Get[int32](kv, "count", 0).Value(); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

func testEdgeCases(t *testing.T, kv *kvstore.KVStore) {
	if n := kvstore.Put[int32](kv, "", 1); n != 0 {
		t.Errorf("Expected Put with empty key to fail, got %d", n)
	}
	if n := kv.PutBytes("", []byte{1}); n != 0 {
		t.Errorf("Expected PutBytes with empty key to fail, got %d", n)
	}
	if n := kv.PutBytes("bad\x00key", []byte{1}); n != 0 {
		t.Errorf("Expected PutBytes with NUL in key to fail, got %d", n)
	}
	if kv.Exists("") {
		t.Errorf("Expected Exists with empty key to be false")
	}
	if n := kv.PutBytes("empty", nil); n != 0 {
		t.Errorf("Expected PutBytes with empty value to fail, got %d", n)
	}
	if kv.Exists("empty") {
		t.Errorf("Expected failed PutBytes not to create the key")
	}
	if n := kv.GetBytes("missing", make([]byte, 8)); n != 0 {
		t.Errorf("Expected GetBytes of missing key to return 0, got %d", n)
	}
	if n := kv.GetBytesLength("missing"); n != 0 {
		t.Errorf("Expected GetBytesLength of missing key to return 0, got %d", n)
	}
	if got := kvstore.Get[int64](kv, "", 11).Value(); got != 11 {
		t.Errorf("Expected default for empty key, got %d", got)
	}
}
