package metered

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
)

var Logger = logger.GetLogger("metered")

// Set holds every series recorded by metered stores
var Set = metrics.NewSet()

// WritePrometheus writes the metered series in Prometheus text format
func WritePrometheus(w io.Writer) {
	Set.WritePrometheus(w)
}

// Operation names used as the op label
const (
	OpBegin   = "begin"
	OpEnd     = "end"
	OpClear   = "clear"
	OpRemove  = "remove"
	OpExists  = "exists"
	OpPut     = "put"
	OpGet     = "get"
	OpLen     = "len"
	OpType    = "type"
	resultOK  = "ok"
	resultErr = "fail"
)

// meteredStore forwards every call to the wrapped backend and records a
// counter per outcome and a latency histogram per operation. It does not
// expose Unwrap, so typed dispatch keeps going through the wrapper.
type meteredStore struct {
	inner    kvstore.IStore
	typed    kvstore.ITypedStore // nil if inner has no typed calls
	info     kvstore.ITypeInfo   // nil if inner has no metadata call
	features kvstore.Feature
	backend  string
}

// New wraps store. backend is the value of the backend label.
func New(store kvstore.IStore, backend string) kvstore.ITypedStore {
	m := &meteredStore{
		inner:    store,
		features: kvstore.Features(store),
		backend:  backend,
	}
	m.typed, _ = store.(kvstore.ITypedStore)
	m.info, _ = store.(kvstore.ITypeInfo)
	Logger.Debugf("metering %s backend with features %s", backend, m.features)
	return m
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (m *meteredStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	defer m.observe(OpBegin, time.Now())
	return m.countBool(OpBegin, m.inner.Begin(name, readOnly, partitionLabel))
}

func (m *meteredStore) End() bool {
	defer m.observe(OpEnd, time.Now())
	return m.countBool(OpEnd, m.inner.End())
}

func (m *meteredStore) Clear() bool {
	defer m.observe(OpClear, time.Now())
	return m.countBool(OpClear, m.inner.Clear())
}

func (m *meteredStore) Remove(key string) bool {
	defer m.observe(OpRemove, time.Now())
	return m.countBool(OpRemove, m.inner.Remove(key))
}

func (m *meteredStore) Exists(key string) bool {
	defer m.observe(OpExists, time.Now())
	return m.countBool(OpExists, m.inner.Exists(key))
}

func (m *meteredStore) PutBytes(key string, value []byte) int {
	defer m.observe(OpPut, time.Now())
	return m.countInt(OpPut, m.inner.PutBytes(key, value))
}

func (m *meteredStore) GetBytes(key string, buf []byte) int {
	defer m.observe(OpGet, time.Now())
	return m.countInt(OpGet, m.inner.GetBytes(key, buf))
}

func (m *meteredStore) GetBytesLength(key string) int {
	defer m.observe(OpLen, time.Now())
	return m.countInt(OpLen, m.inner.GetBytesLength(key))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.ITypedStore and kvstore.ITypeInfo)
// --------------------------------------------------------------------------

func (m *meteredStore) PutTyped(key string, t kvstore.Type, raw []byte) int {
	if m.typed == nil {
		return 0
	}
	defer m.observe(OpPut, time.Now())
	return m.countInt(OpPut, m.typed.PutTyped(key, t, raw))
}

func (m *meteredStore) GetTyped(key string, t kvstore.Type, buf []byte) int {
	if m.typed == nil {
		return 0
	}
	defer m.observe(OpGet, time.Now())
	return m.countInt(OpGet, m.typed.GetTyped(key, t, buf))
}

func (m *meteredStore) GetTypedLength(key string, t kvstore.Type) int {
	if m.typed == nil {
		return 0
	}
	defer m.observe(OpLen, time.Now())
	return m.countInt(OpLen, m.typed.GetTypedLength(key, t))
}

func (m *meteredStore) MaxKeyLength() int {
	if m.typed == nil {
		return 0
	}
	return m.typed.MaxKeyLength()
}

func (m *meteredStore) GetType(key string) kvstore.Type {
	if m.info == nil {
		return kvstore.TypeInvalid
	}
	defer m.observe(OpType, time.Now())
	t := m.info.GetType(key)
	m.count(OpType, t != kvstore.TypeInvalid)
	return t
}

// SupportsFeature reports the features of the wrapped backend
func (m *meteredStore) SupportsFeature(feature kvstore.Feature) bool {
	return m.features&feature == feature
}

// String names the backend
func (m *meteredStore) String() string {
	return fmt.Sprintf("metered(%s)", m.backend)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *meteredStore) countBool(op string, ok bool) bool {
	m.count(op, ok)
	return ok
}

func (m *meteredStore) countInt(op string, n int) int {
	m.count(op, n > 0)
	return n
}

func (m *meteredStore) count(op string, ok bool) {
	result := resultOK
	if !ok {
		result = resultErr
	}
	Set.GetOrCreateCounter(OpsName(m.backend, op, result)).Inc()
}

func (m *meteredStore) observe(op string, start time.Time) {
	Set.GetOrCreateHistogram(DurationName(m.backend, op)).Update(time.Since(start).Seconds())
}

// OpsName returns the series name counting op calls with the given result
func OpsName(backend, op, result string) string {
	return fmt.Sprintf(`kvstore_ops_total{backend=%q,op=%q,result=%q}`, backend, op, result)
}

// DurationName returns the series name of the op latency histogram
func DurationName(backend, op string) string {
	return fmt.Sprintf(`kvstore_op_duration_seconds{backend=%q,op=%q}`, backend, op)
}
