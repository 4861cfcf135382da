package pref

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/memory"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/nvs"
	kvtesting "github.com/andreagilardoni/ArduinoStorage/lib/kvstore/testing"
)

func Test(t *testing.T) {
	kvtesting.RunStoreTests(t, "Pref", func(t *testing.T) kvstore.IStore {
		device := nvs.NewNVSStore(&nvs.Options{Dir: t.TempDir(), FileMode: 0o600})
		return NewPrefStore(NewLocalDriver(device))
	})
}

func Benchmark(b *testing.B) {
	kvtesting.RunStoreBenchmarks(b, "Pref", func(b *testing.B) kvstore.IStore {
		device := nvs.NewNVSStore(&nvs.Options{Dir: b.TempDir(), FileMode: 0o600})
		return NewPrefStore(NewLocalDriver(device))
	})
}

func TestWireLengthsExcludeTerminator(t *testing.T) {
	device := nvs.NewNVSStore(&nvs.Options{Dir: t.TempDir(), FileMode: 0o600})
	driver := NewLocalDriver(device)
	require.NoError(t, driver.Begin("wire", false, ""))
	defer driver.End()

	n, err := driver.Put("s", kvstore.TypeStr, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = driver.Len("s", kvstore.TypeStr)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	value, err := driver.Get("s", kvstore.TypeStr, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), value)

	typ, err := driver.Type("s")
	require.NoError(t, err)
	require.Equal(t, kvstore.TypeStr, typ)

	_, err = driver.Len("missing", kvstore.TypeStr)
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestByteOnlyDevice(t *testing.T) {
	kv := kvstore.New(NewPrefStore(NewLocalDriver(memory.NewMemoryStore())))
	require.True(t, kv.Begin("mem", false, ""))
	defer kv.End()

	require.Equal(t, 4, kv.PutInt("n", 42))
	require.Equal(t, int32(42), kv.GetInt("n", 0))
	require.Equal(t, kvstore.TypeBlob, kv.Type("n"), "the device cannot tell the type")
	require.Equal(t, 6, kv.PutString("s", "hello"), "the host still counts the NUL")
	require.Equal(t, "hello", kv.GetStringValue("s", ""))
}

// failingDriver fails every call after Begin
type failingDriver struct{}

var errBus = errors.New("bus error")

func (failingDriver) Begin(string, bool, string) error { return nil }
func (failingDriver) End() error                       { return errBus }
func (failingDriver) Clear() error                     { return errBus }
func (failingDriver) Remove(string) error              { return errBus }

func (failingDriver) Len(string, kvstore.Type) (int, error) { return 0, errBus }
func (failingDriver) Type(string) (kvstore.Type, error)     { return kvstore.TypeInvalid, errBus }

func (failingDriver) Put(string, kvstore.Type, []byte) (int, error) { return 0, errBus }
func (failingDriver) Get(string, kvstore.Type, int) ([]byte, error) { return nil, errBus }

func TestDriverErrorsBecomeZero(t *testing.T) {
	kv := kvstore.New(NewPrefStore(failingDriver{}))
	require.True(t, kv.Begin("x", false, ""))

	require.Zero(t, kv.PutInt("k", 1))
	require.Equal(t, int32(7), kv.GetInt("k", 7))
	require.False(t, kv.Exists("k"))
	require.False(t, kv.Remove("k"))
	require.False(t, kv.Clear())
	require.Equal(t, kvstore.TypeInvalid, kv.Type("k"))
	require.False(t, kv.End())
	require.False(t, kv.End(), "the session is closed even if the driver failed")
}

func TestKeyLimitChecksBeforeTheBus(t *testing.T) {
	s := NewPrefStore(failingDriver{})
	require.True(t, s.Begin("x", false, ""))
	require.Equal(t, kvstore.TypeInvalid, kvstore.ProbeType(s, "a_key_longer_than_15"))
}
