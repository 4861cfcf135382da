package memory

import (
	"testing"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	kvtesting "github.com/andreagilardoni/ArduinoStorage/lib/kvstore/testing"
)

func Test(t *testing.T) {
	kvtesting.RunStoreTests(t, "Memory", func(t *testing.T) kvstore.IStore {
		return NewMemoryStore()
	})
}

func Benchmark(b *testing.B) {
	kvtesting.RunStoreBenchmarks(b, "Memory", func(b *testing.B) kvstore.IStore {
		return NewMemoryStore()
	})
}

func TestNamespaceIsolation(t *testing.T) {
	s := NewMemoryStore()

	if !s.Begin("one", false, "") {
		t.Fatalf("Expected Begin to succeed")
	}
	s.PutBytes("key", []byte{1})
	s.End()

	if !s.Begin("two", false, "") {
		t.Fatalf("Expected Begin to succeed")
	}
	if s.Exists("key") {
		t.Errorf("Expected key not to leak into another namespace")
	}
	s.End()

	if !s.Begin("one", false, "other") {
		t.Fatalf("Expected Begin to succeed")
	}
	if s.Exists("key") {
		t.Errorf("Expected key not to leak into another partition")
	}
	s.End()
}
