package atmodem

import (
	"strconv"
	"sync"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("atmodem")

// atStore adapts the preferences command set of a Modem to
// kvstore.ITypedStore and kvstore.ITypeInfo. Strings travel and are counted
// without a terminator.
type atStore struct {
	mu       sync.Mutex
	modem    *Modem
	begun    bool
	readOnly bool
}

// NewATStore creates an unbegun store that talks to modem
func NewATStore(modem *Modem) kvstore.ITypedStore {
	return &atStore{modem: modem}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (s *atStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.begun || name == "" || !validField(name) || !validField(partitionLabel) {
		return false
	}
	if err := s.modem.Handshake(); err != nil {
		Logger.Warningf("begin %q: modem not responding: %v", name, err)
		return false
	}
	if !s.flag(CmdBegin, name, formatBool(readOnly), partitionLabel) {
		return false
	}
	s.begun, s.readOnly = true, readOnly
	return true
}

func (s *atStore) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.begun {
		return false
	}
	s.begun, s.readOnly = false, false
	return s.flag(CmdEnd)
}

func (s *atStore) Clear() bool {
	if !s.writable() {
		return false
	}
	return s.flag(CmdClear)
}

func (s *atStore) Remove(key string) bool {
	if !s.writable() || !validKey(key) {
		return false
	}
	return s.flag(CmdRemove, key)
}

func (s *atStore) Exists(key string) bool {
	return s.GetType(key) != kvstore.TypeInvalid
}

func (s *atStore) PutBytes(key string, value []byte) int {
	return s.PutTyped(key, kvstore.TypeBlob, value)
}

func (s *atStore) GetBytes(key string, buf []byte) int {
	return s.GetTyped(key, kvstore.TypeBlob, buf)
}

func (s *atStore) GetBytesLength(key string) int {
	return s.GetTypedLength(key, kvstore.TypeBlob)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.ITypedStore and kvstore.ITypeInfo)
// --------------------------------------------------------------------------

func (s *atStore) PutTyped(key string, t kvstore.Type, raw []byte) int {
	if !s.writable() || !validKey(key) || !t.Valid() || len(raw) == 0 || len(raw) > maxValueSize {
		return 0
	}

	var (
		reply string
		err   error
	)
	if t.IsScalar() {
		var value string
		if value, err = formatScalar(t, raw); err != nil {
			return 0
		}
		reply, err = s.modem.Command(CmdPut, key, formatType(t), value)
	} else {
		reply, err = s.modem.CommandData(CmdPut, raw, key, formatType(t), strconv.Itoa(len(raw)))
	}
	if err != nil {
		Logger.Debugf("put %q (%s): %v", key, t, err)
		return 0
	}

	n, err := strconv.Atoi(reply)
	if err != nil || n != len(raw) {
		return 0
	}
	return n
}

func (s *atStore) GetTyped(key string, t kvstore.Type, buf []byte) int {
	if !s.started() || !validKey(key) || !t.Valid() {
		return 0
	}

	if t.IsScalar() {
		if len(buf) != t.Size() {
			return 0
		}
		reply, err := s.modem.Command(CmdGet, key, formatType(t))
		if err != nil {
			Logger.Debugf("get %q (%s): %v", key, t, err)
			return 0
		}
		raw, err := parseScalar(t, reply)
		if err != nil {
			Logger.Debugf("get %q (%s): %v", key, t, err)
			return 0
		}
		return copy(buf, raw)
	}

	stored := s.GetTypedLength(key, t)
	if stored == 0 || stored > len(buf) {
		return 0
	}
	value, err := s.modem.CommandSized(CmdGet, key, formatType(t))
	if err != nil || len(value) > len(buf) {
		Logger.Debugf("get %q (%s): %v", key, t, err)
		return 0
	}
	return copy(buf, value)
}

// GetTypedLength asks for the stored type first because AT+PREFLEN carries
// no type. A device without type metadata reports every value as blob, so
// a blob answers for any requested type.
func (s *atStore) GetTypedLength(key string, t kvstore.Type) int {
	stored := s.GetType(key)
	switch {
	case stored == kvstore.TypeInvalid:
		return 0
	case stored == t && t.IsScalar():
		return t.Size()
	case stored != t && stored != kvstore.TypeBlob:
		return 0
	}

	reply, err := s.modem.Command(CmdLen, key)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(reply)
	if err != nil || n < 0 || (t.IsScalar() && n != t.Size()) {
		return 0
	}
	return n
}

func (s *atStore) MaxKeyLength() int {
	return MaxKeyLength
}

func (s *atStore) GetType(key string) kvstore.Type {
	if !s.started() || !validKey(key) {
		return kvstore.TypeInvalid
	}
	reply, err := s.modem.Command(CmdType, key)
	if err != nil {
		Logger.Debugf("type %q: %v", key, err)
		return kvstore.TypeInvalid
	}
	t, err := parseType(reply)
	if err != nil {
		return kvstore.TypeInvalid
	}
	return t
}

func (s *atStore) SupportsFeature(feature kvstore.Feature) bool {
	const supported = kvstore.FeatureBytes | kvstore.FeatureTypedIO | kvstore.FeatureTypeInfo
	return feature&^supported == 0
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// flag runs a command answered with 1 or 0
func (s *atStore) flag(name string, args ...string) bool {
	reply, err := s.modem.Command(name, args...)
	if err != nil {
		Logger.Debugf("%s: %v", name, err)
		return false
	}
	return reply == "1"
}

func (s *atStore) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begun
}

func (s *atStore) writable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begun && !s.readOnly
}
