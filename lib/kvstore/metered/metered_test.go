package metered

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/memory"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/nvs"
	kvtesting "github.com/andreagilardoni/ArduinoStorage/lib/kvstore/testing"
)

func counter(backend, op, result string) uint64 {
	return Set.GetOrCreateCounter(OpsName(backend, op, result)).Get()
}

func TestMeteredMemory(t *testing.T) {
	kvtesting.RunStoreTests(t, "MeteredMemory", func(t *testing.T) kvstore.IStore {
		return New(memory.NewMemoryStore(), "memory_conformance")
	})
}

func TestMeteredNVS(t *testing.T) {
	kvtesting.RunStoreTests(t, "MeteredNVS", func(t *testing.T) kvstore.IStore {
		return New(nvs.NewNVSStore(&nvs.Options{Dir: t.TempDir(), FileMode: 0o600}), "nvs_conformance")
	})
}

func Benchmark(b *testing.B) {
	kvtesting.RunStoreBenchmarks(b, "MeteredMemory", func(b *testing.B) kvstore.IStore {
		return New(memory.NewMemoryStore(), "memory_bench")
	})
}

func TestFeaturesMatchBackend(t *testing.T) {
	mem := New(memory.NewMemoryStore(), "m")
	require.Equal(t, kvstore.Features(memory.NewMemoryStore()), kvstore.Features(mem))
	require.False(t, kvstore.Supports(mem, kvstore.FeatureTypedIO))

	typed := New(nvs.NewNVSStore(nil), "n")
	require.True(t, kvstore.Supports(typed, kvstore.FeatureTypedIO|kvstore.FeatureStringTerminator))
	require.Equal(t, nvs.MaxKeyLength, typed.MaxKeyLength())
}

func TestCountsOutcomes(t *testing.T) {
	const backend = "count_test"
	kv := kvstore.New(New(memory.NewMemoryStore(), backend))

	require.True(t, kv.Begin("m", false, ""))
	kv.PutInt("a", 1)
	kv.PutInt("b", 2)
	kv.GetInt("a", 0)
	kv.GetInt("missing", 0)

	require.Equal(t, uint64(1), counter(backend, OpBegin, resultOK))
	require.Equal(t, uint64(2), counter(backend, OpPut, resultOK))
	require.Equal(t, uint64(1), counter(backend, OpGet, resultOK))
	require.GreaterOrEqual(t, counter(backend, OpLen, resultErr)+counter(backend, OpGet, resultErr), uint64(1))

	var buf bytes.Buffer
	WritePrometheus(&buf)
	require.Contains(t, buf.String(), `kvstore_ops_total{backend="count_test",op="put",result="ok"} 2`)
	require.Contains(t, buf.String(), `kvstore_op_duration_seconds_bucket{backend="count_test",op="put"`)
}

func TestTypedCallsOnByteOnlyBackend(t *testing.T) {
	m := New(memory.NewMemoryStore(), "bytes_only")
	require.Zero(t, m.PutTyped("k", kvstore.TypeI8, []byte{1}))
	require.Zero(t, m.GetTyped("k", kvstore.TypeI8, make([]byte, 1)))
	require.Zero(t, m.MaxKeyLength())
	require.Equal(t, "metered(bytes_only)", m.(interface{ String() string }).String())
}
