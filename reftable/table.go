package reftable

import (
	"sync"
)

// Reserved well-known indices. Decoders treat index 0 as "nothing".
const (
	IdxUndefined uint32 = 0
	IdxNull      uint32 = 1
	IdxTrue      uint32 = 2
	IdxFalse     uint32 = 3
)

// GrowBatch is the number of slots added when the free list is exhausted.
// Growing in batches amortizes resize cost; the table never shrinks.
const GrowBatch = 128

// Undefined is the value stored in reserved slot 0 (and the decode of any
// deallocated slot read through Get).
type Undefined struct{}

func (Undefined) String() string { return "undefined" }

// Null is the value stored in reserved slot 1.
type Null struct{}

func (Null) String() string { return "null" }

type slot struct {
	value    any
	occupied bool
}

// Table is a growable indirection table mapping small integer indices to
// arbitrary host values. Safe for concurrent use.
type Table struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	live  int
}

// New creates a table, grows it by one batch and seeds the reserved slots.
func New() *Table {
	t := &Table{}
	t.grow()
	t.slots[IdxUndefined] = slot{value: Undefined{}, occupied: true}
	t.slots[IdxNull] = slot{value: Null{}, occupied: true}
	t.slots[IdxTrue] = slot{value: true, occupied: true}
	t.slots[IdxFalse] = slot{value: false, occupied: true}
	// Reserved slots never enter the free list.
	t.free = t.free[:len(t.free)-4]
	return t
}

// grow appends one batch of slots and pushes them onto the free list in
// reverse so low indices are handed out first.
func (t *Table) grow() {
	base := uint32(len(t.slots))
	t.slots = append(t.slots, make([]slot, GrowBatch)...)
	for i := base + GrowBatch; i > base; i-- {
		t.free = append(t.free, i-1)
	}
}

// Alloc stores value in a free slot and returns its index. Previously
// deallocated slots are reused before the table grows.
func (t *Table) Alloc(value any) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.free) == 0 {
		t.grow()
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.slots[idx] = slot{value: value, occupied: true}
	t.live++
	return idx
}

// Get returns the value at idx without releasing the slot.
func (t *Table) Get(idx uint32) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(idx) >= len(t.slots) || !t.slots[idx].occupied {
		return nil, false
	}
	return t.slots[idx].value, true
}

// Take returns the value at idx and releases the slot in one operation, so
// the value is owned exactly once by the caller. Reserved slots are returned
// but never released.
func (t *Table) Take(idx uint32) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(idx) >= len(t.slots) || !t.slots[idx].occupied {
		return nil, false
	}
	v := t.slots[idx].value
	if idx > IdxFalse {
		t.release(idx)
	}
	return v, true
}

// Dealloc returns the slot to the free list. Releasing a reserved or already
// free slot is a no-op. The table does not shrink.
func (t *Table) Dealloc(idx uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx <= IdxFalse || int(idx) >= len(t.slots) || !t.slots[idx].occupied {
		return
	}
	t.release(idx)
}

func (t *Table) release(idx uint32) {
	t.slots[idx] = slot{}
	t.free = append(t.free, idx)
	t.live--
}

// Live returns the number of allocated (non-reserved) slots. Used by tests
// to assert the table does not leak.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Size returns the current slot capacity including reserved and free slots.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
