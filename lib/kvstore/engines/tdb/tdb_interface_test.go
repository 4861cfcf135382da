package tdb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	kvtesting "github.com/andreagilardoni/ArduinoStorage/lib/kvstore/testing"
)

func Test(t *testing.T) {
	kvtesting.RunStoreTests(t, "TDB", func(t *testing.T) kvstore.IStore {
		return NewTDBStore(nil)
	})
}

func TestWithImage(t *testing.T) {
	kvtesting.RunStoreTests(t, "TDBImage", func(t *testing.T) kvstore.IStore {
		return NewTDBStore(&Options{Dir: t.TempDir()})
	})
}

func Benchmark(b *testing.B) {
	kvtesting.RunStoreBenchmarks(b, "TDB", func(b *testing.B) kvstore.IStore {
		return NewTDBStore(nil)
	})
}

func BenchmarkWithImage(b *testing.B) {
	kvtesting.RunStoreBenchmarks(b, "TDBImage", func(b *testing.B) kvstore.IStore {
		return NewTDBStore(&Options{Dir: b.TempDir()})
	})
}

func TestImageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	kv := kvstore.New(NewTDBStore(&Options{Dir: dir}))
	require.True(t, kv.Begin("cfg", false, "user"))
	require.Equal(t, 8, kv.PutLong64("uptime", 123456789))
	require.Equal(t, 5, kv.PutString("ssid", "guest"))
	require.True(t, kv.End())

	reopened := kvstore.New(NewTDBStore(&Options{Dir: dir}))
	require.True(t, reopened.Begin("cfg", true, "user"))
	defer reopened.End()
	require.Equal(t, int64(123456789), reopened.GetLong64("uptime", 0))
	require.Equal(t, "guest", reopened.GetStringValue("ssid", ""))
	require.Equal(t, kvstore.TypeBlob, reopened.Type("ssid"))
}

func TestDamagedImage(t *testing.T) {
	dir := t.TempDir()
	path := ImagePath(dir, "", "broken")

	kv := kvstore.New(NewTDBStore(&Options{Dir: dir}))
	require.True(t, kv.Begin("broken", false, ""))
	kv.PutInt("n", 1)
	require.True(t, kv.End())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-5] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	strict := kvstore.New(NewTDBStore(&Options{Dir: dir}))
	require.False(t, strict.Begin("broken", false, ""))

	lenient := kvstore.New(NewTDBStore(&Options{Dir: dir, Reformat: true}))
	require.True(t, lenient.Begin("broken", false, ""))
	defer lenient.End()
	require.False(t, lenient.Exists("n"))
	require.Equal(t, 4, lenient.PutInt("n", 2))
}

func TestRejectsInvalidNames(t *testing.T) {
	s := NewTDBStore(nil)
	require.False(t, s.Begin("bad/name", false, ""))
	require.False(t, s.Begin("ok", false, "bad label"))
	require.True(t, s.Begin("ok", false, "label"))
	require.True(t, s.End())
}
