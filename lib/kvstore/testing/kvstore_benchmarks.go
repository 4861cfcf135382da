package testing

import (
	"fmt"
	"testing"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

// BenchFactory creates a fresh, unbegun backend for one benchmark.
// Resources are released through b.Cleanup.
type BenchFactory func(b *testing.B) kvstore.IStore

// benchKeys is the number of distinct keys a benchmark cycles through
const benchKeys = 256

// RunStoreBenchmarks runs all benchmarks for a kvstore.IStore implementation.
// Backends have a single owner, so operations are issued sequentially.
func RunStoreBenchmarks(b *testing.B, name string, factory BenchFactory) {

	for _, t := range scalarTypes {
		b.Run("Put/"+t.String(), func(b *testing.B) {
			benchmarkPutTyped(b, factory, t)
		})
	}

	for _, t := range scalarTypes {
		b.Run("Get/"+t.String(), func(b *testing.B) {
			benchmarkGetTyped(b, factory, t)
		})
	}

	b.Run("PutString", func(b *testing.B) {
		benchmarkPutString(b, factory)
	})

	b.Run("GetString", func(b *testing.B) {
		benchmarkGetString(b, factory)
	})

	b.Run("PutBytes", func(b *testing.B) {
		benchmarkPutBytes(b, factory, 64)
	})

	b.Run("PutBytesLarge", func(b *testing.B) {
		benchmarkPutBytes(b, factory, 4096)
	})

	b.Run("GetBytes", func(b *testing.B) {
		benchmarkGetBytes(b, factory)
	})

	b.Run("DiscoverType", func(b *testing.B) {
		benchmarkDiscoverType(b, factory)
	})

	b.Run("Exists(not)", func(b *testing.B) {
		benchmarkExistsNot(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory)
	})
}

// scalarTypes are the fixed widths, in probe order
var scalarTypes = []kvstore.Type{
	kvstore.TypeI8, kvstore.TypeU8, kvstore.TypeI16, kvstore.TypeU16,
	kvstore.TypeI32, kvstore.TypeU32, kvstore.TypeI64, kvstore.TypeU64,
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// beginBench opens the test namespace on a fresh backend
func beginBench(b *testing.B, factory BenchFactory) *kvstore.KVStore {
	b.Helper()
	kv := kvstore.New(factory(b))
	if !kv.Begin(testNamespace, false, "") {
		b.Fatalf("Expected Begin to succeed")
	}
	b.Cleanup(func() { kv.End() })
	return kv
}

func benchKey(i int) string {
	return fmt.Sprintf("bench-%d", i%benchKeys)
}

// fill writes every bench key with type t
func fill(b *testing.B, kv *kvstore.KVStore, t kvstore.Type, raw []byte) {
	b.Helper()
	for i := 0; i < benchKeys; i++ {
		if kvstore.WriteTyped(kv, benchKey(i), t, raw) == 0 {
			b.Fatalf("Failed to prepare %s", benchKey(i))
		}
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkPutTyped(b *testing.B, factory BenchFactory, t kvstore.Type) {
	kv := beginBench(b, factory)
	raw := make([]byte, t.Size())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		raw[0] = byte(i)
		if kvstore.WriteTyped(kv, benchKey(i), t, raw) == 0 {
			b.Fatalf("Put %s failed", t)
		}
	}
}

func benchmarkGetTyped(b *testing.B, factory BenchFactory, t kvstore.Type) {
	kv := beginBench(b, factory)
	raw := make([]byte, t.Size())
	fill(b, kv, t, raw)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kvstore.ReadTyped(kv, benchKey(i), t, raw) != t.Size() {
			b.Fatalf("Get %s failed", t)
		}
	}
}

func benchmarkPutString(b *testing.B, factory BenchFactory) {
	kv := beginBench(b, factory)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kv.PutString(benchKey(i), "my-home-network") == 0 {
			b.Fatalf("PutString failed")
		}
	}
}

func benchmarkGetString(b *testing.B, factory BenchFactory) {
	kv := beginBench(b, factory)
	fill(b, kv, kvstore.TypeStr, []byte("my-home-network"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kv.GetStringValue(benchKey(i), "") == "" {
			b.Fatalf("GetString failed")
		}
	}
}

func benchmarkPutBytes(b *testing.B, factory BenchFactory, size int) {
	kv := beginBench(b, factory)
	value := make([]byte, size)
	for i := range value {
		value[i] = byte(i)
	}

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kv.PutBytes(benchKey(i), value) != size {
			b.Fatalf("PutBytes failed")
		}
	}
}

func benchmarkGetBytes(b *testing.B, factory BenchFactory) {
	kv := beginBench(b, factory)
	value := make([]byte, 64)
	fill(b, kv, kvstore.TypeBlob, value)

	b.SetBytes(int64(len(value)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kv.GetBytes(benchKey(i), value) != len(value) {
			b.Fatalf("GetBytes failed")
		}
	}
}

// benchmarkDiscoverType stores the widest scalar, the last one a probe reaches
func benchmarkDiscoverType(b *testing.B, factory BenchFactory) {
	kv := beginBench(b, factory)
	fill(b, kv, kvstore.TypeU64, make([]byte, 8))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kv.Type(benchKey(i)) == kvstore.TypeInvalid {
			b.Fatalf("DiscoverType found nothing")
		}
	}
}

func benchmarkExistsNot(b *testing.B, factory BenchFactory) {
	kv := beginBench(b, factory)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if kv.Exists(benchKey(i)) {
			b.Fatalf("Exists reported a missing key")
		}
	}
}

// benchmarkMixedUsage runs put, get, type and remove in a fixed rotation
func benchmarkMixedUsage(b *testing.B, factory BenchFactory) {
	kv := beginBench(b, factory)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := benchKey(i)
		switch i % 4 {
		case 0:
			kv.PutUInt(key, uint32(i))
		case 1:
			kv.GetUInt(key, 0)
		case 2:
			kv.Type(key)
		case 3:
			kv.Remove(key)
		}
	}
}
