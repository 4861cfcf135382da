package nvs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	kvtesting "github.com/andreagilardoni/ArduinoStorage/lib/kvstore/testing"
)

func newTestStore(t testing.TB) kvstore.ITypedStore {
	return NewNVSStore(&Options{
		Dir:         t.TempDir(),
		FileMode:    0o600,
		LockTimeout: defaultTimeout,
	})
}

func Test(t *testing.T) {
	kvtesting.RunStoreTests(t, "NVS", func(t *testing.T) kvstore.IStore {
		return newTestStore(t)
	})
}

func Benchmark(b *testing.B) {
	kvtesting.RunStoreBenchmarks(b, "NVS", func(b *testing.B) kvstore.IStore {
		return newTestStore(b)
	})
}

func TestKeyLengthLimit(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Begin("limits", false, ""))
	defer s.End()

	kv := kvstore.New(s)
	require.Equal(t, 4, kv.PutInt("fifteen_chars_k", 1))
	require.Zero(t, kv.PutInt("sixteen_chars_ke", 1))
	require.Zero(t, kv.PutBytes("sixteen_chars_ke", []byte{1}))
	require.Equal(t, kvstore.TypeI32, kv.Type("fifteen_chars_k"))
	require.Equal(t, kvstore.TypeInvalid, kv.Type("sixteen_chars_ke"))

	require.True(t, s.End())
	require.False(t, s.Begin("a_namespace_too_long", false, ""))
}

func TestTypedGettersRejectOtherTypes(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Begin("typed", false, ""))
	defer s.End()

	require.Equal(t, 2, s.PutTyped("v", kvstore.TypeU16, []byte{1, 2}))
	require.Zero(t, s.GetTyped("v", kvstore.TypeI16, make([]byte, 2)))
	require.Zero(t, s.GetBytesLength("v"), "scalars are not visible as blobs")
	require.Equal(t, 2, s.GetTyped("v", kvstore.TypeU16, make([]byte, 2)))

	// a write with another type replaces the entry
	require.Equal(t, 4, s.PutTyped("v", kvstore.TypeStr, []byte("abc")))
	require.Zero(t, s.GetTypedLength("v", kvstore.TypeU16))
	require.Equal(t, 4, s.GetTypedLength("v", kvstore.TypeStr))

	buf := make([]byte, 4)
	require.Equal(t, 4, s.GetTyped("v", kvstore.TypeStr, buf))
	require.Equal(t, []byte("abc\x00"), buf)

	require.Zero(t, s.PutTyped("bad", kvstore.TypeStr, []byte("a\x00b")))
	require.Zero(t, s.PutTyped("bad", kvstore.TypeI32, []byte{1}))
	require.False(t, s.Exists("bad"))
}

func TestPersistenceAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	opts := &Options{Dir: dir, FileMode: 0o600, LockTimeout: defaultTimeout}

	first := kvstore.New(NewNVSStore(opts))
	require.True(t, first.Begin("persist", false, "data"))
	first.PutULong64("big", 1<<40)
	first.PutString("name", "esp32")
	require.True(t, first.End())

	_, err := os.Stat(filepath.Join(dir, "data.nvs"))
	require.NoError(t, err)

	second := kvstore.New(NewNVSStore(opts))
	require.True(t, second.Begin("persist", true, "data"))
	defer second.End()
	require.Equal(t, uint64(1<<40), second.GetULong64("big", 0))
	require.Equal(t, "esp32", second.GetStringValue("name", ""))
	require.Equal(t, kvstore.TypeStr, second.Type("name"))
}

func TestReadOnlyRequiresNamespace(t *testing.T) {
	s := newTestStore(t)
	require.False(t, s.Begin("missing", true, ""), "no partition file yet")

	require.True(t, s.Begin("present", false, ""))
	require.True(t, s.End())
	require.False(t, s.Begin("missing", true, ""), "partition exists but namespace does not")
	require.True(t, s.Begin("present", true, ""))
	require.True(t, s.End())
}
