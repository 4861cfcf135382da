package internal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum     = "TDBSTORE" // Image format identifier
	imageVersion = 1          // Image format version

	MaxKeySize   = 128         // Including the terminating NUL, as in mbed::KVStore
	MaxValueSize = 1024 * 1024 // Largest value a single record may hold

	invalidKeyChars = "*/?:;\"|<>\\ "
)

// Flags mirror the mbed::KVStore create flags
const (
	FlagWriteOnce uint32 = 1 << iota
	FlagRequireConfidentiality
	FlagRequireReplayProtection
)

// --------------------------------------------------------------------------
// Result codes
// --------------------------------------------------------------------------

// Code is a vendor result. Every operation returns one instead of an error,
// like the mbed block device API.
type Code int

const (
	CodeSuccess Code = iota
	CodeItemNotFound
	CodeInvalidSize
	CodeInvalidArgument
	CodeWriteProtected
	CodeNotReady
	CodeInvalidDataDetected
	CodeWriteFailed
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "Success"
	case CodeItemNotFound:
		return "ItemNotFound"
	case CodeInvalidSize:
		return "InvalidSize"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeWriteProtected:
		return "WriteProtected"
	case CodeNotReady:
		return "NotReady"
	case CodeInvalidDataDetected:
		return "InvalidDataDetected"
	case CodeWriteFailed:
		return "WriteFailed"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record is one stored value together with its create flags
type Record struct {
	Data  []byte
	Flags uint32
}

// Info is returned by GetInfo
type Info struct {
	Size  int
	Flags uint32
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store emulates a TDBStore on one block device area. With an empty path
// the area only lives in memory; otherwise every mutation rewrites the
// image file before returning.
type Store struct {
	mu      sync.RWMutex
	path    string
	ready   bool
	entries *xsync.MapOf[string, Record]
}

// NewStore creates an uninitialized store backed by the image at path
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		entries: xsync.NewMapOf[string, Record](),
	}
}

// Path returns the image path (empty for memory-only areas)
func (s *Store) Path() string {
	return s.path
}

// Init loads the image. A missing image yields an empty store; a damaged
// one leaves the store unusable and returns CodeInvalidDataDetected.
func (s *Store) Init() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return CodeSuccess
	}
	if s.path != "" {
		if err := s.loadFile(); err != nil {
			return CodeInvalidDataDetected
		}
	}
	s.ready = true
	return CodeSuccess
}

// Deinit releases the store. The image on disk is already up to date.
func (s *Store) Deinit() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return CodeNotReady
	}
	s.ready = false
	return CodeSuccess
}

// Format discards whatever the image holds and initializes an empty store
func (s *Store) Format() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Clear()
	s.ready = true
	return s.commit()
}

// Reset removes every record, including write-once ones
func (s *Store) Reset() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return CodeNotReady
	}
	s.entries.Clear()
	return s.commit()
}

// Set creates or overwrites key
func (s *Store) Set(key string, data []byte, flags uint32) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.ready:
		return CodeNotReady
	case !ValidKey(key):
		return CodeInvalidArgument
	case flags&^FlagWriteOnce != 0:
		return CodeInvalidArgument
	case len(data) > MaxValueSize:
		return CodeInvalidSize
	}
	if old, ok := s.entries.Load(key); ok && old.Flags&FlagWriteOnce != 0 {
		return CodeWriteProtected
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	old, hadOld := s.entries.Load(key)
	s.entries.Store(key, Record{Data: stored, Flags: flags})

	if code := s.commit(); code != CodeSuccess {
		// keep memory and image consistent
		if hadOld {
			s.entries.Store(key, old)
		} else {
			s.entries.Delete(key)
		}
		return code
	}
	return CodeSuccess
}

// Get copies the value of key into buf and returns the value size. The
// buffer must be able to hold the whole value.
func (s *Store) Get(key string, buf []byte) (int, Code) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return 0, CodeNotReady
	}
	rec, ok := s.entries.Load(key)
	if !ok {
		return 0, CodeItemNotFound
	}
	if len(buf) < len(rec.Data) {
		return len(rec.Data), CodeInvalidSize
	}
	return copy(buf, rec.Data), CodeSuccess
}

// GetInfo returns size and flags of key
func (s *Store) GetInfo(key string) (Info, Code) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return Info{}, CodeNotReady
	}
	rec, ok := s.entries.Load(key)
	if !ok {
		return Info{}, CodeItemNotFound
	}
	return Info{Size: len(rec.Data), Flags: rec.Flags}, CodeSuccess
}

// Remove deletes key unless it was written with FlagWriteOnce
func (s *Store) Remove(key string) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return CodeNotReady
	}
	rec, ok := s.entries.Load(key)
	if !ok {
		return CodeItemNotFound
	}
	if rec.Flags&FlagWriteOnce != 0 {
		return CodeWriteProtected
	}

	s.entries.Delete(key)
	if code := s.commit(); code != CodeSuccess {
		s.entries.Store(key, rec)
		return code
	}
	return CodeSuccess
}

// Keys returns the sorted keys starting with prefix
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	s.entries.Range(func(key string, _ Record) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// ValidKey applies the mbed key rules
func ValidKey(key string) bool {
	return key != "" && len(key) < MaxKeySize && !strings.ContainsAny(key, invalidKeyChars+"\x00")
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes the image: magic, version, record count, the records sorted
// by key, and a CRC32 over everything before it.
func (s *Store) Save(w io.Writer) error {
	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(w, crc))

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(imageVersion)); err != nil {
		return err
	}

	keys := s.sortedKeys()
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(keys))); err != nil {
		return err
	}

	for _, key := range keys {
		rec, ok := s.entries.Load(key)
		if !ok {
			continue
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, rec.Flags); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(rec.Data))); err != nil {
			return err
		}
		if _, err := bw.Write(rec.Data); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, crc.Sum32())
}

// Load replaces the content of the store with the image read from r.
// Nothing is replaced if the image is damaged.
func (s *Store) Load(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(raw) < len(magicNum)+1+4+4 {
		return fmt.Errorf("invalid image: %d bytes", len(raw))
	}

	body, sum := raw[:len(raw)-4], binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return fmt.Errorf("invalid image: checksum mismatch")
	}

	br := bytes.NewReader(body)
	magic := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != magicNum {
		return fmt.Errorf("invalid image: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != imageVersion {
		return fmt.Errorf("unsupported image version: %d (expected %d)", version, imageVersion)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	loaded := make(map[string]Record, count)
	for i := uint32(0); i < count; i++ {
		var keyLen uint16
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var rec Record
		if err := binary.Read(br, binary.LittleEndian, &rec.Flags); err != nil {
			return err
		}
		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		if valueLen > MaxValueSize {
			return fmt.Errorf("invalid image: record %q of %d bytes", key, valueLen)
		}
		rec.Data = make([]byte, valueLen)
		if _, err := io.ReadFull(br, rec.Data); err != nil {
			return err
		}
		loaded[string(key)] = rec
	}

	s.entries.Clear()
	for key, rec := range loaded {
		s.entries.Store(key, rec)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Store) sortedKeys() []string {
	keys := make([]string, 0, s.entries.Size())
	s.entries.Range(func(key string, _ Record) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// loadFile reads the image if there is one. Caller holds mu.
func (s *Store) loadFile() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.entries.Clear()
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Load(f)
}

// commit rewrites the image through a temporary file. Caller holds mu.
func (s *Store) commit() Code {
	if s.path == "" {
		return CodeSuccess
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return CodeWriteFailed
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return CodeWriteFailed
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp); err != nil {
		_ = tmp.Close()
		return CodeWriteFailed
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return CodeWriteFailed
	}
	if err := tmp.Close(); err != nil {
		return CodeWriteFailed
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return CodeWriteFailed
	}
	return CodeSuccess
}
