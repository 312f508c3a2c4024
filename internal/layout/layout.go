// Package layout defines the byte-exact format of a store segment. Every
// attaching process computes slot addresses from these constants, so any
// change here is a format break and must bump Version.
package layout

import (
	"sync/atomic"
	"unsafe"
)

const (
	// Magic identifies a store segment ("SHMK", little-endian).
	Magic uint32 = 0x4b4d4853

	// Version of the segment format.
	Version uint32 = 1

	// HeaderSize is the fixed size of the segment header in bytes.
	HeaderSize = 64

	// SlotSize is the fixed size of one slot record in bytes.
	SlotSize = 344

	KeyBufSize   = 64
	ValueBufSize = 256

	// MaxKeyLen and MaxValueLen are the largest usable lengths. One byte of
	// each buffer is kept spare so the on-disk format matches the original
	// NUL-terminated layout widths.
	MaxKeyLen   = KeyBufSize - 1
	MaxValueLen = ValueBufSize - 1
)

// Slot states.
const (
	SlotEmpty     uint32 = 0
	SlotOccupied  uint32 = 1
	SlotTombstone uint32 = 2
)

// Header is the segment header. Field order is the wire format; do not
// reorder. maxKeys is written once by the creator and never changes, the
// rest of the mutable fields are accessed atomically.
type Header struct {
	magic      uint32
	version    uint32
	maxKeys    uint64
	entryCount uint64
	tableLock  uint32
	ready      uint32
	reserved   [32]byte
}

// Slot is one fixed-size record of the table. Field order is the wire
// format; do not reorder. All fields are guarded by the slot lock except
// state and lastWrite, which are additionally readable atomically.
type Slot struct {
	lock      uint32
	state     uint32
	keyLen    uint32
	valueLen  uint32
	lastWrite uint64
	key       [KeyBufSize]byte
	value     [ValueBufSize]byte
}

// Compile-time format checks: the declared constants must match the real
// struct sizes or every cross-process offset computation is wrong.
var _ = [1]struct{}{}[HeaderSize-unsafe.Sizeof(Header{})]
var _ = [1]struct{}{}[SlotSize-unsafe.Sizeof(Slot{})]

// SegmentSize returns the total byte size of a segment with the given
// capacity.
func SegmentSize(maxKeys uint64) uint64 {
	return HeaderSize + maxKeys*SlotSize
}

// HeaderOf interprets the start of the mapped segment as the header.
func HeaderOf(mem []byte) *Header {
	return (*Header)(unsafe.Pointer(&mem[0]))
}

// SlotAt returns the i-th slot of the mapped segment. i must be < maxKeys.
func SlotAt(mem []byte, i uint64) *Slot {
	return (*Slot)(unsafe.Pointer(&mem[HeaderSize+i*SlotSize]))
}

func (h *Header) Magic() uint32   { return atomic.LoadUint32(&h.magic) }
func (h *Header) Version() uint32 { return atomic.LoadUint32(&h.version) }
func (h *Header) MaxKeys() uint64 { return h.maxKeys }

// Init writes the immutable header fields. Creator only, before Ready.
func (h *Header) Init(maxKeys uint64) {
	atomic.StoreUint32(&h.magic, Magic)
	atomic.StoreUint32(&h.version, Version)
	h.maxKeys = maxKeys
	atomic.StoreUint64(&h.entryCount, 0)
}

// Ready reports whether the creator finished initializing the segment.
func (h *Header) Ready() bool { return atomic.LoadUint32(&h.ready) == 1 }

// SetReady publishes the segment to attachers. Must be the creator's last
// initialization store.
func (h *Header) SetReady() { atomic.StoreUint32(&h.ready, 1) }

// EntryCount is the advisory occupancy counter. It can transiently lag the
// occupancy a full scan would observe; never derive capacity decisions
// from it.
func (h *Header) EntryCount() uint64 { return atomic.LoadUint64(&h.entryCount) }

func (h *Header) IncEntryCount() { atomic.AddUint64(&h.entryCount, 1) }
func (h *Header) DecEntryCount() { atomic.AddUint64(&h.entryCount, ^uint64(0)) }

func (h *Header) ResetEntryCount() { atomic.StoreUint64(&h.entryCount, 0) }

// TableLockWord exposes the futex word serializing bulk operations.
func (h *Header) TableLockWord() *uint32 { return &h.tableLock }

func (s *Slot) LockWord() *uint32 { return &s.lock }

func (s *Slot) State() uint32         { return atomic.LoadUint32(&s.state) }
func (s *Slot) SetState(state uint32) { atomic.StoreUint32(&s.state, state) }

func (s *Slot) LastWrite() uint64      { return atomic.LoadUint64(&s.lastWrite) }
func (s *Slot) SetLastWrite(ns uint64) { atomic.StoreUint64(&s.lastWrite, ns) }

// Key returns the live key bytes. Caller must hold the slot lock and copy
// before releasing it.
func (s *Slot) Key() []byte { return s.key[:s.keyLen] }

// Value returns the live value bytes under the same contract as Key.
func (s *Slot) Value() []byte { return s.value[:s.valueLen] }

// KeyEquals reports whether the stored key equals k. Slot lock required.
func (s *Slot) KeyEquals(k []byte) bool {
	if uint32(len(k)) != s.keyLen {
		return false
	}
	return string(s.key[:s.keyLen]) == string(k)
}

// SetEntry overwrites the slot's key and value. Slot lock required.
func (s *Slot) SetEntry(key, value []byte) {
	copy(s.key[:], key)
	s.keyLen = uint32(len(key))
	copy(s.value[:], value)
	s.valueLen = uint32(len(value))
}

// SetValue overwrites only the value, for same-key updates. Slot lock
// required.
func (s *Slot) SetValue(value []byte) {
	copy(s.value[:], value)
	s.valueLen = uint32(len(value))
}

// Wipe zeroes the record's payload so deleted data does not linger in the
// shared mapping. Slot lock required.
func (s *Slot) Wipe() {
	s.key = [KeyBufSize]byte{}
	s.value = [ValueBufSize]byte{}
	s.keyLen = 0
	s.valueLen = 0
}
