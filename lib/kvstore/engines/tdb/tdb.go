package tdb

import (
	"path/filepath"
	"sync"

	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore"
	"github.com/andreagilardoni/ArduinoStorage/lib/kvstore/engines/tdb/internal"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("tdb")

// DefaultPartition names the area used when Begin gets no partition label
const DefaultPartition = "kvstore"

// Options configures the block device images
type Options struct {
	Dir      string // Directory of the images, empty keeps every area in memory
	Reformat bool   // Wipe damaged images on Begin instead of failing
}

// tdbStore adapts the TDBStore-like vendor layer to kvstore.IStore. Each
// (partition, namespace) pair is a separate area with its own image.
type tdbStore struct {
	mu       sync.Mutex
	opts     Options
	areas    *xsync.MapOf[string, *internal.Store]
	current  *internal.Store
	readOnly bool
}

// NewTDBStore creates an unbegun store (opts may be nil)
func NewTDBStore(opts *Options) kvstore.IStore {
	if opts == nil {
		opts = &Options{}
	}
	return &tdbStore{
		opts:  *opts,
		areas: xsync.NewMapOf[string, *internal.Store](),
	}
}

// ImagePath returns the image file of an area below dir
func ImagePath(dir, label, name string) string {
	if label == "" {
		label = DefaultPartition
	}
	return filepath.Join(dir, label, name+".tdb")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kvstore.IStore)
// --------------------------------------------------------------------------

func (s *tdbStore) Begin(name string, readOnly bool, partitionLabel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil || !internal.ValidKey(name) || (partitionLabel != "" && !internal.ValidKey(partitionLabel)) {
		Logger.Debugf("begin %q on %q: rejected", name, partitionLabel)
		return false
	}

	area, _ := s.areas.LoadOrCompute(partitionLabel+"\x00"+name, func() *internal.Store {
		if s.opts.Dir == "" {
			return internal.NewStore("")
		}
		return internal.NewStore(ImagePath(s.opts.Dir, partitionLabel, name))
	})

	code := area.Init()
	if code == internal.CodeInvalidDataDetected && s.opts.Reformat && !readOnly {
		Logger.Warningf("image %s is damaged, reformatting", area.Path())
		code = area.Format()
	}
	if code != internal.CodeSuccess {
		Logger.Warningf("begin %q on %q: %s", name, partitionLabel, code)
		return false
	}

	s.current = area
	s.readOnly = readOnly
	return true
}

func (s *tdbStore) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	code := s.current.Deinit()
	s.current, s.readOnly = nil, false
	return code == internal.CodeSuccess
}

func (s *tdbStore) Clear() bool {
	area, err := s.writable()
	if err != nil {
		Logger.Debugf("clear: %v", err)
		return false
	}
	return check("clear", area.Reset())
}

func (s *tdbStore) Remove(key string) bool {
	area, err := s.writable()
	if err != nil {
		Logger.Debugf("remove %q: %v", key, err)
		return false
	}
	return check("remove "+key, area.Remove(key))
}

// Exists uses the info query only
func (s *tdbStore) Exists(key string) bool {
	return s.GetBytesLength(key) > 0
}

func (s *tdbStore) PutBytes(key string, value []byte) int {
	area, err := s.writable()
	if err != nil {
		Logger.Debugf("put %q: %v", key, err)
		return 0
	}
	if len(value) == 0 || !check("put "+key, area.Set(key, value, 0)) {
		return 0
	}
	return len(value)
}

func (s *tdbStore) GetBytes(key string, buf []byte) int {
	area := s.readable()
	if area == nil {
		return 0
	}
	n, code := area.Get(key, buf)
	if code != internal.CodeSuccess {
		return 0
	}
	return n
}

func (s *tdbStore) GetBytesLength(key string) int {
	area := s.readable()
	if area == nil {
		return 0
	}
	info, code := area.GetInfo(key)
	if code != internal.CodeSuccess {
		return 0
	}
	return info.Size
}

func (s *tdbStore) SupportsFeature(feature kvstore.Feature) bool {
	return feature&^kvstore.FeatureBytes == 0
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *tdbStore) readable() *internal.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *tdbStore) writable() (*internal.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.current == nil:
		return nil, kvstore.ErrNotStarted
	case s.readOnly:
		return nil, kvstore.ErrReadOnly
	default:
		return s.current, nil
	}
}

// check logs vendor failures and reports success
func check(op string, code internal.Code) bool {
	if code != internal.CodeSuccess {
		Logger.Debugf("%s: %s", op, code)
		return false
	}
	return true
}
