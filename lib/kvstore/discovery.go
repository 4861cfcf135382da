package kvstore

// DiscoverType reports the type stored at key, or TypeInvalid if there is
// none. A backend metadata call is preferred; typed backends without one
// are probed; byte-only backends can only report TypeBlob.
func DiscoverType(s IStore, key string) Type {
	if !ValidKey(key) {
		return TypeInvalid
	}

	inner := unwrap(s)
	if ti, ok := inner.(ITypeInfo); ok && Supports(inner, FeatureTypeInfo) {
		return ti.GetType(key)
	}
	if ts, ok := typed(inner); ok {
		return ProbeType(ts, key)
	}
	if inner.GetBytesLength(key) > 0 {
		return TypeBlob
	}
	return TypeInvalid
}

// ProbeType determines the stored type by requesting every width in the
// fixed order i8, u8, i16, u16, i32, u32, i64, u64, then str and blob, and
// returning the first that succeeds. It relies on the backend failing a
// typed get for the wrong type. Keys longer than the backend limit yield
// TypeInvalid without touching the backend.
func ProbeType(s ITypedStore, key string) Type {
	if !ValidKey(key) {
		return TypeInvalid
	}
	if limit := s.MaxKeyLength(); limit > 0 && len(key) > limit {
		return TypeInvalid
	}

	var buf [8]byte
	for _, t := range probeOrder {
		if s.GetTyped(key, t, buf[:t.Size()]) == t.Size() {
			return t
		}
	}
	if s.GetTypedLength(key, TypeStr) > 0 {
		return TypeStr
	}
	if s.GetTypedLength(key, TypeBlob) > 0 {
		return TypeBlob
	}
	return TypeInvalid
}
