package memory

import (
	"sync"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("memory")

// namespace holds the entries of one (partition, name) pair.
type namespace = xsync.MapOf[string, []byte]

// memoryStore is a byte-only backend kept in process memory. Namespaces
// survive End/Begin cycles for the lifetime of the store value, which makes
// it usable as the reference backend in tests.
type memoryStore struct {
	mu         sync.Mutex
	namespaces *xsync.MapOf[string, *namespace]
	current    *namespace
	readOnly   bool
}

// NewMemoryStore creates an empty, unbegun in-memory store.
func NewMemoryStore() kvstore.IStore {
	return &memoryStore{
		namespaces: xsync.NewMapOf[string, *namespace](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (m *memoryStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		Logger.Debugf("begin %q: already begun", name)
		return false
	}
	if name == "" {
		return false
	}

	ns, _ := m.namespaces.LoadOrCompute(partitionLabel+"\x00"+name, func() *namespace {
		return xsync.NewMapOf[string, []byte]()
	})
	m.current = ns
	m.readOnly = readOnly
	return true
}

func (m *memoryStore) End() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	m.current = nil
	m.readOnly = false
	return true
}

func (m *memoryStore) Clear() bool {
	ns, err := m.writable()
	if err != nil {
		Logger.Debugf("clear: %v", err)
		return false
	}
	ns.Clear()
	return true
}

func (m *memoryStore) Remove(key string) bool {
	ns, err := m.writable()
	if err != nil {
		Logger.Debugf("remove %q: %v", key, err)
		return false
	}
	_, loaded := ns.LoadAndDelete(key)
	return loaded
}

func (m *memoryStore) Exists(key string) bool {
	return m.GetBytesLength(key) > 0
}

func (m *memoryStore) PutBytes(key string, value []byte) int {
	ns, err := m.writable()
	if err != nil {
		Logger.Debugf("put %q: %v", key, err)
		return 0
	}
	if len(value) == 0 {
		return 0
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	ns.Store(key, stored)
	return len(value)
}

func (m *memoryStore) GetBytes(key string, buf []byte) int {
	ns := m.readable()
	if ns == nil {
		return 0
	}
	value, ok := ns.Load(key)
	if !ok || len(value) > len(buf) {
		return 0
	}
	return copy(buf, value)
}

func (m *memoryStore) GetBytesLength(key string) int {
	ns := m.readable()
	if ns == nil {
		return 0
	}
	value, ok := ns.Load(key)
	if !ok {
		return 0
	}
	return len(value)
}

func (m *memoryStore) SupportsFeature(feature kvstore.Feature) bool {
	return feature&^kvstore.FeatureBytes == 0
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *memoryStore) readable() *namespace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *memoryStore) writable() (*namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.current == nil:
		return nil, kvstore.ErrNotStarted
	case m.readOnly:
		return nil, kvstore.ErrReadOnly
	default:
		return m.current, nil
	}
}
