package pref

import (
	"sync"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("pref")

// MaxKeyLength is the key limit of the NVS partition behind the co-processor
const MaxKeyLength = 15

// prefStore adapts a Driver to kvstore.ITypedStore and kvstore.ITypeInfo.
// Like the device firmware, strings are counted with their trailing NUL.
type prefStore struct {
	mu       sync.Mutex
	driver   Driver
	begun    bool
	readOnly bool
}

// NewPrefStore creates an unbegun store on top of driver
func NewPrefStore(driver Driver) kvstore.ITypedStore {
	return &prefStore{driver: driver}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (p *prefStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.begun {
		return false
	}
	if err := p.driver.Begin(name, readOnly, partitionLabel); err != nil {
		Logger.Warningf("begin %q: %v", name, err)
		return false
	}
	p.begun, p.readOnly = true, readOnly
	return true
}

func (p *prefStore) End() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.begun {
		return false
	}
	p.begun, p.readOnly = false, false
	if err := p.driver.End(); err != nil {
		Logger.Warningf("end: %v", err)
		return false
	}
	return true
}

func (p *prefStore) Clear() bool {
	if err := p.writable(); err != nil {
		return false
	}
	return p.logged("clear", p.driver.Clear())
}

func (p *prefStore) Remove(key string) bool {
	if err := p.writable(); err != nil {
		return false
	}
	return p.logged("remove "+key, p.driver.Remove(key))
}

func (p *prefStore) Exists(key string) bool {
	return p.GetType(key) != kvstore.TypeInvalid
}

func (p *prefStore) PutBytes(key string, value []byte) int {
	return p.PutTyped(key, kvstore.TypeBlob, value)
}

func (p *prefStore) GetBytes(key string, buf []byte) int {
	return p.GetTyped(key, kvstore.TypeBlob, buf)
}

func (p *prefStore) GetBytesLength(key string) int {
	return p.GetTypedLength(key, kvstore.TypeBlob)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.ITypedStore and kvstore.ITypeInfo)
// --------------------------------------------------------------------------

func (p *prefStore) PutTyped(key string, t kvstore.Type, raw []byte) int {
	if err := p.writable(); err != nil || len(key) > MaxKeyLength {
		return 0
	}
	n, err := p.driver.Put(key, t, raw)
	if !p.logged("put "+key, err) || n != len(raw) {
		return 0
	}
	if t == kvstore.TypeStr {
		return n + 1
	}
	return n
}

func (p *prefStore) GetTyped(key string, t kvstore.Type, buf []byte) int {
	stored := p.GetTypedLength(key, t)
	switch {
	case stored == 0:
		return 0
	case t.IsScalar() && len(buf) != stored:
		return 0
	case len(buf) < stored:
		return 0
	}

	size := stored
	if t == kvstore.TypeStr {
		size--
	}
	value, err := p.driver.Get(key, t, size)
	if !p.logged("get "+key, err) || len(value) != size {
		return 0
	}

	n := copy(buf, value)
	if t == kvstore.TypeStr {
		buf[n] = 0
		n++
	}
	return n
}

func (p *prefStore) GetTypedLength(key string, t kvstore.Type) int {
	if !p.started() || len(key) > MaxKeyLength {
		return 0
	}
	n, err := p.driver.Len(key, t)
	if err != nil || n <= 0 {
		return 0
	}
	if t == kvstore.TypeStr {
		return n + 1
	}
	return n
}

func (p *prefStore) MaxKeyLength() int {
	return MaxKeyLength
}

func (p *prefStore) GetType(key string) kvstore.Type {
	if !p.started() || len(key) > MaxKeyLength {
		return kvstore.TypeInvalid
	}
	t, err := p.driver.Type(key)
	if err != nil {
		Logger.Debugf("type %q: %v", key, err)
		return kvstore.TypeInvalid
	}
	return t
}

func (p *prefStore) SupportsFeature(feature kvstore.Feature) bool {
	const supported = kvstore.FeatureBytes | kvstore.FeatureTypedIO |
		kvstore.FeatureTypeInfo | kvstore.FeatureStringTerminator
	return feature&^supported == 0
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p *prefStore) started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begun
}

func (p *prefStore) writable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !p.begun:
		return kvstore.ErrNotStarted
	case p.readOnly:
		return kvstore.ErrReadOnly
	}
	return nil
}

func (p *prefStore) logged(op string, err error) bool {
	if err != nil {
		Logger.Debugf("%s: %v", op, err)
		return false
	}
	return true
}
