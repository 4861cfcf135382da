package nvs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/lni/dragonboat/v4/logger"
	bolt "go.etcd.io/bbolt"
)

var Logger = logger.GetLogger("nvs")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	MaxKeyLength       = 15     // NVS_KEY_NAME_MAX_SIZE - 1
	MaxNamespaceLength = 15     // NVS_NS_NAME_MAX_SIZE - 1
	MaxStringLength    = 4000   // longest string nvs_set_str accepts (without NUL)
	MaxBlobLength      = 508000 // longest blob on a default 0x6000 partition
	DefaultPartition   = "nvs"  // partition used when no label is given

	fileExtension  = ".nvs"
	defaultTimeout = time.Second
)

// --------------------------------------------------------------------------
// Core NVS structure
// --------------------------------------------------------------------------

// nvsStore emulates an ESP32 NVS partition. Each partition label is one bbolt
// file, each namespace one bucket. Records carry a one byte type tag followed
// by the payload, so typed getters can refuse values of another type.
type nvsStore struct {
	mu       sync.Mutex
	opts     *Options
	db       *bolt.DB
	bucket   []byte
	readOnly bool
}

// Options configures where partitions are stored
type Options struct {
	Dir         string        // Directory holding the partition files
	FileMode    os.FileMode   // Mode used when creating partition files
	LockTimeout time.Duration // How long Begin waits for the file lock
}

// DefaultOptions stores partitions in the working directory
func DefaultOptions() *Options {
	return &Options{
		Dir:         ".",
		FileMode:    0o600,
		LockTimeout: defaultTimeout,
	}
}

// NewNVSStore creates an unbegun NVS store (opts may be nil)
func NewNVSStore(opts *Options) kvstore.ITypedStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &nvsStore{opts: opts}
}

// PartitionPath returns the file backing the partition label in dir
func PartitionPath(dir, label string) string {
	if label == "" {
		label = DefaultPartition
	}
	return filepath.Join(dir, label+fileExtension)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (s *nvsStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(name, readOnly, partitionLabel); err != nil {
		Logger.Warningf("begin %q on partition %q: %v", name, partitionLabel, err)
		return false
	}
	return true
}

func (s *nvsStore) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return false
	}
	err := s.db.Close()
	s.db, s.bucket, s.readOnly = nil, nil, false
	if err != nil {
		Logger.Warningf("end: %v", err)
		return false
	}
	return true
}

func (s *nvsStore) Clear() bool {
	err := s.update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
	if err != nil {
		Logger.Debugf("clear: %v", err)
		return false
	}
	return true
}

func (s *nvsStore) Remove(key string) bool {
	if err := checkKey(key); err != nil {
		return false
	}
	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(key)) == nil {
			return kvstore.ErrNotFound
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		Logger.Debugf("remove %q: %v", key, err)
		return false
	}
	return true
}

// Exists reports whether any typed value is stored at key
func (s *nvsStore) Exists(key string) bool {
	return kvstore.ProbeType(s, key) != kvstore.TypeInvalid
}

func (s *nvsStore) PutBytes(key string, value []byte) int {
	return s.PutTyped(key, kvstore.TypeBlob, value)
}

func (s *nvsStore) GetBytes(key string, buf []byte) int {
	return s.GetTyped(key, kvstore.TypeBlob, buf)
}

func (s *nvsStore) GetBytesLength(key string) int {
	return s.GetTypedLength(key, kvstore.TypeBlob)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.ITypedStore)
// --------------------------------------------------------------------------

func (s *nvsStore) PutTyped(key string, t kvstore.Type, raw []byte) int {
	if err := checkValue(key, t, raw); err != nil {
		Logger.Debugf("put %q (%s): %v", key, t, err)
		return 0
	}

	rec := make([]byte, 0, len(raw)+1)
	rec = append(rec, byte(t))
	rec = append(rec, raw...)

	err := s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), rec)
	})
	if err != nil {
		Logger.Debugf("put %q (%s): %v", key, t, err)
		return 0
	}

	if t == kvstore.TypeStr {
		return len(raw) + 1
	}
	return len(raw)
}

func (s *nvsStore) GetTyped(key string, t kvstore.Type, buf []byte) int {
	n := 0
	err := s.record(key, t, func(payload []byte) error {
		need := storedLength(t, payload)
		switch {
		case t.IsScalar() && len(buf) != need:
			return kvstore.ErrBufferTooSmall
		case len(buf) < need:
			return kvstore.ErrBufferTooSmall
		}
		n = copy(buf, payload)
		if t == kvstore.TypeStr {
			buf[n] = 0
			n++
		}
		return nil
	})
	if err != nil {
		return 0
	}
	return n
}

func (s *nvsStore) GetTypedLength(key string, t kvstore.Type) int {
	n := 0
	_ = s.record(key, t, func(payload []byte) error {
		n = storedLength(t, payload)
		return nil
	})
	return n
}

func (s *nvsStore) MaxKeyLength() int {
	return MaxKeyLength
}

func (s *nvsStore) SupportsFeature(feature kvstore.Feature) bool {
	const supported = kvstore.FeatureBytes | kvstore.FeatureTypedIO | kvstore.FeatureStringTerminator
	return feature&^supported == 0
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// open maps the namespace to a bucket in the partition file. A read-only
// session requires the namespace to exist already.
func (s *nvsStore) open(name string, readOnly bool, label string) error {
	if s.db != nil {
		return fmt.Errorf("already begun on %s", s.db.Path())
	}
	if name == "" || len(name) > MaxNamespaceLength {
		return fmt.Errorf("namespace %q: %w", name, kvstore.ErrInvalidKey)
	}

	if !readOnly {
		if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
			return err
		}
	}

	path := PartitionPath(s.opts.Dir, label)
	db, err := bolt.Open(path, s.opts.FileMode, &bolt.Options{
		Timeout:  s.opts.LockTimeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		return fmt.Errorf("open partition %s: %w", path, err)
	}

	bucket := []byte(name)
	if readOnly {
		err = db.View(func(tx *bolt.Tx) error {
			if tx.Bucket(bucket) == nil {
				return fmt.Errorf("namespace %q: %w", name, kvstore.ErrNotFound)
			}
			return nil
		})
	} else {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucket)
			return err
		})
	}
	if err != nil {
		_ = db.Close()
		return err
	}

	s.db, s.bucket, s.readOnly = db, bucket, readOnly
	return nil
}

// update runs fn in a write transaction. bbolt commits synchronously.
func (s *nvsStore) update(fn func(tx *bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.db == nil:
		return kvstore.ErrNotStarted
	case s.readOnly:
		return kvstore.ErrReadOnly
	}
	return s.db.Update(fn)
}

// record calls fn with the payload of key if it was stored with type t.
// The payload is only valid inside fn.
func (s *nvsStore) record(key string, t kvstore.Type, fn func(payload []byte) error) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return kvstore.ErrNotStarted
	}
	return s.db.View(func(tx *bolt.Tx) error {
		rec := tx.Bucket(s.bucket).Get([]byte(key))
		switch {
		case rec == nil:
			return kvstore.ErrNotFound
		case len(rec) < 1 || kvstore.Type(rec[0]) != t:
			return kvstore.ErrTypeMismatch
		}
		return fn(rec[1:])
	})
}

// storedLength is the length reported for a payload of type t. Strings
// count their terminating NUL.
func storedLength(t kvstore.Type, payload []byte) int {
	if t == kvstore.TypeStr {
		return len(payload) + 1
	}
	return len(payload)
}

func checkKey(key string) error {
	if !kvstore.ValidKey(key) || len(key) > MaxKeyLength {
		return kvstore.Errorf(kvstore.RetCInvalidKey, "key %q exceeds %d characters", key, MaxKeyLength)
	}
	return nil
}

func checkValue(key string, t kvstore.Type, raw []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	switch {
	case !t.Valid() || len(raw) == 0:
		return kvstore.ErrInvalidValue
	case t.IsScalar() && len(raw) != t.Size():
		return kvstore.Errorf(kvstore.RetCInvalidValue, "%s needs %d bytes, got %d", t, t.Size(), len(raw))
	case t == kvstore.TypeStr && (len(raw) > MaxStringLength || bytes.IndexByte(raw, 0) >= 0):
		return kvstore.Errorf(kvstore.RetCInvalidValue, "invalid string of %d bytes", len(raw))
	case t == kvstore.TypeBlob && len(raw) > MaxBlobLength:
		return kvstore.Errorf(kvstore.RetCInvalidValue, "blob of %d bytes exceeds %d", len(raw), MaxBlobLength)
	}
	return nil
}
