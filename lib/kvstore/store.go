package kvstore

import (
	"math"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("kvstore")

// KVStore is the caller-facing facade over a backend. It validates keys
// before calling down and offers the typed helpers. Generic Put/Get accept
// a *KVStore and dispatch on the wrapped backend.
type KVStore struct {
	backend IStore
}

// New wraps backend. The backend still has to be begun.
func New(backend IStore) *KVStore {
	return &KVStore{backend: backend}
}

// Unwrap returns the wrapped backend.
func (k *KVStore) Unwrap() IStore {
	return k.backend
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (k *KVStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	if name == "" {
		name = DefaultName
	}
	ok := k.backend.Begin(name, readOnly, partitionLabel)
	if !ok {
		Logger.Warningf("begin %q (read-only=%t, partition=%q) failed", name, readOnly, partitionLabel)
	}
	return ok
}

func (k *KVStore) End() bool {
	return k.backend.End()
}

func (k *KVStore) Clear() bool {
	return k.backend.Clear()
}

func (k *KVStore) Remove(key string) bool {
	return ValidKey(key) && k.backend.Remove(key)
}

func (k *KVStore) Exists(key string) bool {
	return ValidKey(key) && k.backend.Exists(key)
}

func (k *KVStore) PutBytes(key string, value []byte) int {
	if !ValidKey(key) || len(value) == 0 {
		return 0
	}
	return k.backend.PutBytes(key, value)
}

func (k *KVStore) GetBytes(key string, buf []byte) int {
	if !ValidKey(key) || len(buf) == 0 {
		return 0
	}
	return k.backend.GetBytes(key, buf)
}

func (k *KVStore) GetBytesLength(key string) int {
	if !ValidKey(key) {
		return 0
	}
	return k.backend.GetBytesLength(key)
}

// Type reports the type stored at key (see DiscoverType).
func (k *KVStore) Type(key string) Type {
	return DiscoverType(k.backend, key)
}

// --------------------------------------------------------------------------
// Typed helpers
// --------------------------------------------------------------------------

func (k *KVStore) PutChar(key string, value int8) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutUChar(key string, value uint8) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutShort(key string, value int16) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutUShort(key string, value uint16) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutInt(key string, value int32) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutUInt(key string, value uint32) int {
	return Put(k.backend, key, value)
}

// PutLong stores a 32-bit value, the width of long on the supported targets.
func (k *KVStore) PutLong(key string, value int32) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutULong(key string, value uint32) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutLong64(key string, value int64) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutULong64(key string, value uint64) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutFloat(key string, value float32) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutDouble(key string, value float64) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutBool(key string, value bool) int {
	return Put(k.backend, key, value)
}

func (k *KVStore) PutString(key, value string) int {
	return PutString(k.backend, key, value)
}

func (k *KVStore) GetChar(key string, def int8) int8 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetUChar(key string, def uint8) uint8 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetShort(key string, def int16) int16 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetUShort(key string, def uint16) uint16 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetInt(key string, def int32) int32 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetUInt(key string, def uint32) uint32 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetLong(key string, def int32) int32 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetULong(key string, def uint32) uint32 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetLong64(key string, def int64) int64 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetULong64(key string, def uint64) uint64 {
	return Get(k.backend, key, def).Cached()
}

// GetFloat returns the float stored at key. Pass NaN32() for the usual
// "no value" default.
func (k *KVStore) GetFloat(key string, def float32) float32 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetDouble(key string, def float64) float64 {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetBool(key string, def bool) bool {
	return Get(k.backend, key, def).Cached()
}

func (k *KVStore) GetString(key string, buf []byte) int {
	return GetString(k.backend, key, buf)
}

func (k *KVStore) GetStringValue(key, def string) string {
	return GetStringValue(k.backend, key, def)
}

// NaN32 is the float32 NaN used as default by GetFloat callers.
func NaN32() float32 {
	return float32(math.NaN())
}
