package kvstore_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/memory"
)

// taggedStore is a minimal typed backend: every entry remembers the tag it
// was written with and typed getters fail on a mismatch.
type taggedStore struct {
	started  bool
	entries  map[string]taggedEntry
	info     bool
	maxKey   int
	probes   int
	features kvstore.Feature
}

type taggedEntry struct {
	t   kvstore.Type
	raw []byte
}

func newTaggedStore() *taggedStore {
	return &taggedStore{
		entries:  map[string]taggedEntry{},
		maxKey:   15,
		features: kvstore.FeatureBytes | kvstore.FeatureTypedIO,
	}
}

func (s *taggedStore) Begin(string, bool, string) bool { s.started = true; return true }
func (s *taggedStore) End() bool                       { s.started = false; return true }
func (s *taggedStore) Clear() bool                     { s.entries = map[string]taggedEntry{}; return true }

func (s *taggedStore) Remove(key string) bool {
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

func (s *taggedStore) Exists(key string) bool {
	_, ok := s.entries[key]
	return ok
}

func (s *taggedStore) PutBytes(key string, value []byte) int {
	return s.PutTyped(key, kvstore.TypeBlob, value)
}

func (s *taggedStore) GetBytes(key string, buf []byte) int {
	return s.GetTyped(key, kvstore.TypeBlob, buf)
}

func (s *taggedStore) GetBytesLength(key string) int {
	return s.GetTypedLength(key, kvstore.TypeBlob)
}

func (s *taggedStore) PutTyped(key string, t kvstore.Type, raw []byte) int {
	s.entries[key] = taggedEntry{t: t, raw: append([]byte(nil), raw...)}
	return len(raw)
}

func (s *taggedStore) GetTyped(key string, t kvstore.Type, buf []byte) int {
	s.probes++
	e, ok := s.entries[key]
	if !ok || e.t != t || len(e.raw) > len(buf) {
		return 0
	}
	return copy(buf, e.raw)
}

func (s *taggedStore) GetTypedLength(key string, t kvstore.Type) int {
	e, ok := s.entries[key]
	if !ok || e.t != t {
		return 0
	}
	return len(e.raw)
}

func (s *taggedStore) MaxKeyLength() int { return s.maxKey }

func (s *taggedStore) GetType(key string) kvstore.Type {
	if e, ok := s.entries[key]; ok {
		return e.t
	}
	return kvstore.TypeInvalid
}

func (s *taggedStore) SupportsFeature(f kvstore.Feature) bool {
	return s.features&f == f
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestPutDispatchesToTypedCalls(t *testing.T) {
	ts := newTaggedStore()
	kv := kvstore.New(ts)
	require.True(t, kv.Begin("", false, ""))

	require.Equal(t, 4, kvstore.Put[int32](kv, "count", 42))
	require.Equal(t, kvstore.TypeI32, ts.entries["count"].t)
	require.Equal(t, []byte{42, 0, 0, 0}, ts.entries["count"].raw)

	require.Equal(t, 1, kv.PutBool("flag", true))
	require.Equal(t, kvstore.TypeI8, ts.entries["flag"].t)

	require.Equal(t, 8, kv.PutDouble("pi", math.Pi))
	require.Equal(t, kvstore.TypeBlob, ts.entries["pi"].t)

	require.Equal(t, 3, kv.PutString("name", "abc"))
	require.Equal(t, kvstore.TypeStr, ts.entries["name"].t)
}

func TestGetRejectsOtherTags(t *testing.T) {
	ts := newTaggedStore()
	kv := kvstore.New(ts)

	kvstore.Put[uint32](kv, "v", 7)
	require.Equal(t, int32(-1), kvstore.Get[int32](kv, "v", -1).Value())
	require.Equal(t, uint32(7), kvstore.Get[uint32](kv, "v", 0).Value())
}

func TestProbeOrderAndKeyLimit(t *testing.T) {
	ts := newTaggedStore()
	kvstore.Put[uint64](ts, "wide", 1)

	ts.probes = 0
	require.Equal(t, kvstore.TypeU64, kvstore.DiscoverType(ts, "wide"))
	require.Equal(t, 8, ts.probes, "u64 is the last width probed")

	ts.probes = 0
	require.Equal(t, kvstore.TypeInvalid, kvstore.DiscoverType(ts, "a_key_longer_than_15"))
	require.Zero(t, ts.probes, "overlong keys must not reach the backend")

	ts.probes = 0
	require.Equal(t, kvstore.TypeInvalid, kvstore.ProbeType(ts, "missing"))
	require.Equal(t, 8, ts.probes)
}

func TestDiscoverPrefersTypeInfo(t *testing.T) {
	ts := newTaggedStore()
	ts.features |= kvstore.FeatureTypeInfo
	kvstore.Put[int16](ts, "s", -2)

	ts.probes = 0
	require.Equal(t, kvstore.TypeI16, kvstore.DiscoverType(kvstore.New(ts), "s"))
	require.Zero(t, ts.probes)
}

func TestDiscoverByteOnlyBackend(t *testing.T) {
	kv := kvstore.New(memory.NewMemoryStore())
	require.True(t, kv.Begin("disc", false, ""))
	defer kv.End()

	kv.PutInt("n", 1)
	require.Equal(t, kvstore.TypeBlob, kv.Type("n"))
	require.Equal(t, kvstore.TypeInvalid, kv.Type("none"))
}

func TestFeatures(t *testing.T) {
	mem := memory.NewMemoryStore()
	require.Equal(t, kvstore.FeatureBytes, kvstore.Features(mem))
	require.False(t, kvstore.Supports(mem, kvstore.FeatureTypedIO))

	ts := newTaggedStore()
	kv := kvstore.New(ts)
	require.True(t, kvstore.Supports(kv, kvstore.FeatureBytes|kvstore.FeatureTypedIO))
	require.False(t, kvstore.Supports(kv, kvstore.FeatureTypeInfo))

	// a typed backend that disables typed IO falls back to the byte path
	ts.features = kvstore.FeatureBytes
	kvstore.Put[int8](kv, "b", 1)
	require.Equal(t, kvstore.TypeBlob, ts.entries["b"].t)

	require.Equal(t, "TypedIO", kvstore.FeatureTypedIO.String())
	require.Equal(t, "Bytes|StringTerminator", (kvstore.FeatureBytes | kvstore.FeatureStringTerminator).String())
}

func TestReferenceSemantics(t *testing.T) {
	kv := kvstore.New(memory.NewMemoryStore())
	require.True(t, kv.Begin("ref", false, ""))
	defer kv.End()

	ref := kvstore.NewReference[int16]("r", 3, kv)
	require.False(t, ref.Exists(), "creating a reference does not write")
	require.Equal(t, int16(3), ref.Cached())

	ref.Set(9)
	require.Equal(t, int16(9), kv.GetShort("r", 0))

	kv.PutShort("r", 11)
	require.Equal(t, int16(9), ref.Cached())
	require.Equal(t, int16(11), ref.Value())
	require.Equal(t, "r=11", ref.String())

	require.True(t, ref.Remove())
	ref.Load()
	require.Equal(t, int16(3), ref.Cached(), "absent key restores the creation default")
}

func TestFacadeValidation(t *testing.T) {
	ts := newTaggedStore()
	kv := kvstore.New(ts)
	require.Same(t, ts, kv.Unwrap())

	require.Zero(t, kv.PutBytes("", []byte{1}))
	require.Zero(t, kv.PutBytes("k", nil))
	require.Zero(t, kv.GetBytes("k", nil))
	require.False(t, kv.Remove("a\x00b"))
	require.Empty(t, ts.entries)
}

func TestTypeNames(t *testing.T) {
	for typ := kvstore.TypeI8; typ < kvstore.TypeInvalid; typ++ {
		parsed, err := kvstore.ParseType(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, parsed)
	}
	_, err := kvstore.ParseType("f32")
	require.Error(t, err)

	raw, err := json.Marshal(kvstore.TypeU16)
	require.NoError(t, err)
	require.JSONEq(t, `"u16"`, string(raw))

	require.Equal(t, 8, kvstore.TypeI64.Size())
	require.Zero(t, kvstore.TypeStr.Size())
	require.True(t, kvstore.TypeI32.IsSigned())
	require.False(t, kvstore.TypeU32.IsSigned())
	require.Equal(t, kvstore.TypeI8, kvstore.TypeOf[bool]())
	require.Equal(t, kvstore.TypeBlob, kvstore.TypeOf[float32]())
	require.Equal(t, kvstore.TypeStr, kvstore.TypeOfValue("s"))
}

func TestErrorsMatchByCode(t *testing.T) {
	err := kvstore.Errorf(kvstore.RetCReadOnly, "namespace %q", "x")
	require.ErrorIs(t, err, kvstore.ErrReadOnly)
	require.NotErrorIs(t, err, kvstore.ErrNotFound)
	require.Contains(t, err.Error(), "ReadOnly")
}
