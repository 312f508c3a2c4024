// Package table implements the concurrent hash table living inside a
// mapped segment: linear probing over a fixed slot array, one lock per
// slot, and a table-wide lock reserved for bulk operations.
//
// Probe order for a key is (fnv1a(key) + i) mod maxKeys for i in
// [0, maxKeys). Single-key reads and deletes always walk the full
// sequence: deletes puncture probe chains, so stopping at the first
// non-occupied slot would strand keys placed behind the hole. Deleted
// slots become tombstones rather than empty, and Set checks the whole
// sequence for an existing entry before reusing an earlier hole; this
// removes the duplicate-live-entry hazard of tombstone-free linear
// probing.
package table

import (
	"time"

	"github.com/Meesho/BharatMLStack/shmstore/internal/hash"
	"github.com/Meesho/BharatMLStack/shmstore/internal/layout"
	"github.com/Meesho/BharatMLStack/shmstore/internal/shmlock"
)

// Entry is one key/value pair copied out of the table.
type Entry struct {
	Key   string
	Value []byte
}

// Table is a view over an attached segment's slot array. Any number of
// Tables across any number of processes may operate on the same segment
// concurrently.
type Table struct {
	mem     []byte
	hdr     *layout.Header
	maxKeys uint64
}

// New builds a table view over mapped segment memory whose header has
// already been initialized.
func New(mem []byte) *Table {
	hdr := layout.HeaderOf(mem)
	return &Table{
		mem:     mem,
		hdr:     hdr,
		maxKeys: hdr.MaxKeys(),
	}
}

func (t *Table) slot(probeStart, i uint64) *layout.Slot {
	return layout.SlotAt(t.mem, (probeStart+i)%t.maxKeys)
}

func (t *Table) probeStart(key string) uint64 {
	return uint64(hash.Sum32String(key)) % t.maxKeys
}

// Set inserts or updates key. It returns false for oversize inputs
// (nothing is touched) and when every slot in the probe sequence is
// occupied by other keys.
func (t *Table) Set(key string, value []byte) bool {
	if len(key) > layout.MaxKeyLen || len(value) > layout.MaxValueLen {
		return false
	}
	kb := []byte(key)
	start := t.probeStart(key)

	// Pass 1: find an existing entry for the key anywhere in the sequence,
	// remembering the first reusable hole on the way.
	reuse := uint64(0)
	haveReuse := false
	for i := uint64(0); i < t.maxKeys; i++ {
		s := t.slot(start, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied && s.KeyEquals(kb) {
			s.SetValue(value)
			s.SetLastWrite(nowNanos())
			lk.Unlock()
			return true
		}
		if !haveReuse && s.State() != layout.SlotOccupied {
			reuse = i
			haveReuse = true
		}
		lk.Unlock()
	}
	if !haveReuse {
		return false
	}

	// Pass 2: claim a hole, starting from the remembered probe position.
	// The slot may have been taken since pass 1, in which case probing
	// simply continues.
	for i := reuse; i < t.maxKeys; i++ {
		s := t.slot(start, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied {
			if s.KeyEquals(kb) {
				// A concurrent writer inserted the same key meanwhile.
				s.SetValue(value)
				s.SetLastWrite(nowNanos())
				lk.Unlock()
				return true
			}
			lk.Unlock()
			continue
		}
		s.SetEntry(kb, value)
		s.SetLastWrite(nowNanos())
		s.SetState(layout.SlotOccupied)
		t.hdr.IncEntryCount()
		lk.Unlock()
		return true
	}
	return false
}

// Get returns a copy of the value stored for key.
func (t *Table) Get(key string) ([]byte, bool) {
	if len(key) > layout.MaxKeyLen {
		return nil, false
	}
	kb := []byte(key)
	start := t.probeStart(key)

	for i := uint64(0); i < t.maxKeys; i++ {
		s := t.slot(start, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied && s.KeyEquals(kb) {
			value := append([]byte(nil), s.Value()...)
			lk.Unlock()
			return value, true
		}
		lk.Unlock()
	}
	return nil, false
}

// Has reports whether key is present.
func (t *Table) Has(key string) bool {
	if len(key) > layout.MaxKeyLen {
		return false
	}
	kb := []byte(key)
	start := t.probeStart(key)

	for i := uint64(0); i < t.maxKeys; i++ {
		s := t.slot(start, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		found := s.State() == layout.SlotOccupied && s.KeyEquals(kb)
		lk.Unlock()
		if found {
			return true
		}
	}
	return false
}

// Delete removes key, leaving a tombstone so later probes keep walking
// past the hole. Returns whether an entry was removed.
func (t *Table) Delete(key string) bool {
	if len(key) > layout.MaxKeyLen {
		return false
	}
	kb := []byte(key)
	start := t.probeStart(key)

	for i := uint64(0); i < t.maxKeys; i++ {
		s := t.slot(start, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied && s.KeyEquals(kb) {
			s.SetState(layout.SlotTombstone)
			s.Wipe()
			t.hdr.DecEntryCount()
			lk.Unlock()
			return true
		}
		lk.Unlock()
	}
	return false
}

// LastWrite returns the informational write timestamp of key's slot. It
// is not a logical clock; concurrent writers make no ordering promise.
func (t *Table) LastWrite(key string) (time.Time, bool) {
	if len(key) > layout.MaxKeyLen {
		return time.Time{}, false
	}
	kb := []byte(key)
	start := t.probeStart(key)

	for i := uint64(0); i < t.maxKeys; i++ {
		s := t.slot(start, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied && s.KeyEquals(kb) {
			ns := s.LastWrite()
			lk.Unlock()
			return time.Unix(0, int64(ns)), true
		}
		lk.Unlock()
	}
	return time.Time{}, false
}

// Keys collects every live key in slot-array order. No snapshot
// isolation: concurrent writers may be partially reflected.
func (t *Table) Keys() []string {
	keys := make([]string, 0, t.hdr.EntryCount())
	for i := uint64(0); i < t.maxKeys; i++ {
		s := layout.SlotAt(t.mem, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied {
			keys = append(keys, string(s.Key()))
		}
		lk.Unlock()
	}
	return keys
}

// Entries collects every live key/value pair under the same consistency
// contract as Keys.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, t.hdr.EntryCount())
	for i := uint64(0); i < t.maxKeys; i++ {
		s := layout.SlotAt(t.mem, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() == layout.SlotOccupied {
			entries = append(entries, Entry{
				Key:   string(s.Key()),
				Value: append([]byte(nil), s.Value()...),
			})
		}
		lk.Unlock()
	}
	return entries
}

// Clear empties the whole table. The table lock is held for the full
// sweep so no concurrent insert can resurrect an entry mid-clear; slot
// locks nest inside it, and that nesting order is fixed for any future
// bulk operation.
func (t *Table) Clear() {
	tl := shmlock.At(t.hdr.TableLockWord())
	tl.Lock()
	defer tl.Unlock()

	for i := uint64(0); i < t.maxKeys; i++ {
		s := layout.SlotAt(t.mem, i)
		lk := shmlock.At(s.LockWord())
		lk.Lock()
		if s.State() != layout.SlotEmpty {
			// Tombstones are reclaimed here too.
			s.SetState(layout.SlotEmpty)
			s.Wipe()
		}
		lk.Unlock()
	}
	t.hdr.ResetEntryCount()
}

// Size returns the advisory occupancy counter.
func (t *Table) Size() uint64 {
	return t.hdr.EntryCount()
}

// MaxKeys returns the fixed capacity of the table.
func (t *Table) MaxKeys() uint64 {
	return t.maxKeys
}

func nowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}
