package kvstore

import "fmt"

// Reference is a key-bound handle with write-through and read-through
// semantics. It caches one value; the backend owns the canonical copy and
// must outlive the reference.
//
// Every Set results in exactly one backend write attempt. The outcome is
// not reported: callers that need error checking use Put directly.
type Reference[T Scalar] struct {
	key   string
	value T
	def   T
	store IStore
}

// NewReference binds key to store with an initial cached value. It does not
// touch the backend. value is also used as the default when a later Load
// finds the key absent.
func NewReference[T Scalar](key string, value T, store IStore) *Reference[T] {
	return &Reference[T]{
		key:   key,
		value: value,
		def:   value,
		store: store,
	}
}

// Key returns the key the reference is bound to.
func (r *Reference[T]) Key() string {
	return r.key
}

// Value reloads the value from the backend and returns it.
// Read always re-fetches, so writes made through other references or
// directly on the store are observed.
func (r *Reference[T]) Value() T {
	r.Load()
	return r.value
}

// Cached returns the cached value without contacting the backend.
func (r *Reference[T]) Cached() T {
	return r.value
}

// Set assigns v and saves it immediately.
func (r *Reference[T]) Set(v T) {
	r.value = v
	r.Save()
}

// Assign copies the cached value of o and saves it under this key.
func (r *Reference[T]) Assign(o *Reference[T]) {
	r.Set(o.value)
}

// Load overwrites the cached value with the stored one. An absent key loads
// the default the reference was created with.
func (r *Reference[T]) Load() {
	if v, ok := load[T](r.store, r.key); ok {
		r.value = v
		return
	}
	r.value = r.def
}

// Save writes the cached value to the backend.
func (r *Reference[T]) Save() {
	Put(r.store, r.key, r.value)
}

// Exists reports whether the backend holds a value for the key, regardless
// of the cached value.
func (r *Reference[T]) Exists() bool {
	return ValidKey(r.key) && r.store.Exists(r.key)
}

// Remove deletes the key from the backend. The cached value is kept.
func (r *Reference[T]) Remove() bool {
	return ValidKey(r.key) && r.store.Remove(r.key)
}

func (r *Reference[T]) String() string {
	return fmt.Sprintf("%s=%v", r.key, r.value)
}
