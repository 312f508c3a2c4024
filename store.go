// Package shmstore is a fixed-capacity key/value store living in a named
// shared-memory segment. Multiple processes (and goroutines within them)
// can attach the same segment by name and read and write entries at
// memory speed, with no serialization and no syscall per operation.
//
// The store is a linear-probing hash table laid out directly in the
// mapped segment. Capacity is fixed when the segment is created: keys are
// at most 63 bytes, values at most 255 bytes, and there is no eviction.
// Oversize inputs and inserts into a full table report failure as a
// boolean result rather than an error, since callers handle both on the
// hot path.
//
//	store, err := shmstore.Open(shmstore.Config{Name: "prices", MaxKeys: 1024})
//	if err != nil {
//		...
//	}
//	defer store.Close()
//
//	store.Set("sku-42", []byte("199"))
//	value, ok := store.Get("sku-42")
package shmstore

import (
	"time"

	"github.com/Meesho/BharatMLStack/shmstore/internal/layout"
	"github.com/Meesho/BharatMLStack/shmstore/internal/segment"
	"github.com/Meesho/BharatMLStack/shmstore/internal/table"
	"github.com/Meesho/BharatMLStack/shmstore/pkg/metrics"
)

const (
	// DefaultMaxKeys is used when Config.MaxKeys is zero.
	DefaultMaxKeys = 1024

	// MaxKeyLen and MaxValueLen are the fixed per-entry limits.
	MaxKeyLen   = layout.MaxKeyLen
	MaxValueLen = layout.MaxValueLen
)

// Errors returned by Open. Re-exported from the segment layer so callers
// do not import internal packages.
var (
	ErrEmptyName       = segment.ErrEmptyName
	ErrInvalidCapacity = segment.ErrInvalidCapacity
	ErrNotReady        = segment.ErrNotReady
	ErrBadMagic        = segment.ErrBadMagic
	ErrBadVersion      = segment.ErrBadVersion
)

// Config describes a store to open. Name identifies the segment across
// processes. MaxKeys only matters for the process that ends up creating
// the segment; attachers adopt the capacity stored in it. With Persist
// set, the segment name outlives the creating process and a later Open
// finds the prior contents.
type Config struct {
	Name    string
	MaxKeys uint64
	Persist bool

	// Metrics, when non-nil, receives operation counters for this handle.
	Metrics *metrics.Collector
}

// Entry is one key/value pair copied out of the store.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a handle to an attached segment. A Store is safe for
// concurrent use by multiple goroutines; separate processes coordinate
// through the segment itself.
type Store struct {
	seg   *segment.Segment
	tbl   *table.Table
	stats *metrics.Collector
}

// Open creates the named segment or attaches to an existing one. It fails
// only on configuration errors (empty name, zero capacity) or when the
// OS-level mapping cannot be established.
func Open(cfg Config) (*Store, error) {
	maxKeys := cfg.MaxKeys
	if maxKeys == 0 {
		maxKeys = DefaultMaxKeys
	}

	seg, err := segment.Open(cfg.Name, maxKeys, cfg.Persist)
	if err != nil {
		return nil, err
	}

	return &Store{
		seg:   seg,
		tbl:   table.New(seg.Mem),
		stats: cfg.Metrics,
	}, nil
}

// Set inserts or updates key. It returns false when key exceeds 63 bytes,
// value exceeds 255 bytes, or the table has no slot left for a new key;
// the store is untouched in all three cases.
func (s *Store) Set(key string, value []byte) bool {
	ok := s.tbl.Set(key, value)
	if s.stats != nil {
		s.stats.Sets.Add(1)
		if !ok {
			if len(key) > MaxKeyLen || len(value) > MaxValueLen {
				s.stats.Oversize.Add(1)
			} else {
				s.stats.TableFull.Add(1)
			}
		}
	}
	return ok
}

// Get returns a copy of the value stored for key.
func (s *Store) Get(key string) ([]byte, bool) {
	value, ok := s.tbl.Get(key)
	if s.stats != nil {
		s.stats.Gets.Add(1)
		if ok {
			s.stats.Hits.Add(1)
		}
	}
	return value, ok
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	return s.tbl.Has(key)
}

// Delete removes key and reports whether an entry was removed.
func (s *Store) Delete(key string) bool {
	ok := s.tbl.Delete(key)
	if s.stats != nil && ok {
		s.stats.Deletes.Add(1)
	}
	return ok
}

// Keys returns every live key in unspecified order. Concurrent writers
// may be partially reflected.
func (s *Store) Keys() []string {
	return s.tbl.Keys()
}

// Entries returns every live key/value pair under the same consistency
// contract as Keys.
func (s *Store) Entries() []Entry {
	raw := s.tbl.Entries()
	entries := make([]Entry, len(raw))
	for i, e := range raw {
		entries[i] = Entry{Key: e.Key, Value: e.Value}
	}
	return entries
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.tbl.Clear()
	if s.stats != nil {
		s.stats.Clears.Add(1)
	}
}

// Size returns the advisory occupancy count. It can transiently lag the
// true occupancy under concurrent mutation.
func (s *Store) Size() uint64 {
	return s.tbl.Size()
}

// MaxKeys returns the capacity fixed at segment creation, which may
// differ from the value this handle requested.
func (s *Store) MaxKeys() uint64 {
	return s.tbl.MaxKeys()
}

// LastWrite returns the time key's slot was last written. Informational
// only; it is not a logical clock.
func (s *Store) LastWrite(key string) (time.Time, bool) {
	return s.tbl.LastWrite(key)
}

// Creator reports whether this handle created the segment.
func (s *Store) Creator() bool {
	return s.seg.Creator()
}

// Path returns the segment's backing file path.
func (s *Store) Path() string {
	return s.seg.Path()
}

// Close detaches from the segment. If this handle created it and
// persistence was not requested, the segment name is removed; processes
// still attached keep their mappings but can no longer be joined by name.
func (s *Store) Close() error {
	return s.seg.Close()
}
