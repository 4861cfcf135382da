// Package kvstore provides a typed key-value facade over embedded storage
// backends. Every backend implements the small byte-oriented capability
// contract IStore; typed access, reference proxies and type discovery are
// built once on top of it.
//
// Layers:
//
//   - IStore: lifecycle (Begin/End/Clear), Remove, Exists and the raw byte
//     primitives PutBytes, GetBytes and GetBytesLength.
//
//   - Typed codec: Put[T] and Get[T] encode fixed-width scalars as their raw
//     little-endian representation. Backends with native typed storage
//     implement ITypedStore and receive those values through the per-width
//     dispatch helpers (WriteTyped, ReadTyped, TypedLength) instead of the
//     byte path.
//
//   - Reference: a key-bound proxy. Set writes through immediately, Value
//     always re-fetches from the backend before returning.
//
//   - Type discovery: DiscoverType answers "which type is stored at key".
//     Backends with a metadata call implement ITypeInfo. Typed backends
//     without one are probed in the fixed order i8, u8, i16, u16, i32, u32,
//     i64, u64, str, blob (ProbeType).
//
// Results follow the embedded convention: failures are reported as 0 or
// false, never as panics. The backend packages log the underlying cause.
//
// Usage:
//
//	kv := kvstore.New(memory.NewMemoryStore())
//	if !kv.Begin(kvstore.DefaultName, false, "") {
//		panic("begin failed")
//	}
//	defer kv.End()
//
//	kvstore.Put[int32](kv, "count", 42) // 4
//	ref := kvstore.Get[int32](kv, "count", 0)
//	ref.Set(43)                         // write-through
//	fmt.Println(ref.Value())            // re-fetches: 43
package kvstore
