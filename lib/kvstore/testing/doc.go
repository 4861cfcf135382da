// Package testing provides a standardised conformance suite for backends
// that satisfy the kvstore.IStore capability contract.
//
// The suite checks the contract every backend must honour identically:
//   - lifecycle: operations before Begin and after End fail, double Begin fails
//   - typed round trips for every width including boundary values
//   - default values for absent and removed keys
//   - buffer safety of GetBytes
//   - type discovery (exact tags for typed backends, blob for byte-only ones)
//   - write-through and read-through references
//   - read-only enforcement
//   - the per-backend string terminator convention
//
// Example usage:
//
//	func TestInterface(t *testing.T) {
//		kvtesting.RunStoreTests(t, "MyBackend", func(t *testing.T) kvstore.IStore {
//			return NewMyBackend(t.TempDir())
//		})
//	}
//
// RunStoreBenchmarks measures the same backends: typed puts and gets per
// width, strings, raw bytes, type discovery and a mixed rotation.
//
//	func Benchmark(b *testing.B) {
//		kvtesting.RunStoreBenchmarks(b, "MyBackend", func(b *testing.B) kvstore.IStore {
//			return NewMyBackend(b.TempDir())
//		})
//	}
//
// The factory must return a fresh, unbegun store for every call.
package testing
