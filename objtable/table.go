// Package objtable implements the Object Table (C3): a bidirectional map
// between guest-chosen 64-bit handle ids and host-resident Vulkan
// objects, enforcing type and lifetime invariants (SPEC_FULL.md §4.3).
//
// The slot layout and free-list reuse are grounded on the teacher's
// portableHandleMap in fuse/handle.go, generalized with a (GuestID, Type)
// composite key since FUSE's handle map has no type tag.
package objtable

import (
	"sync"

	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/gpuerr"
)

// DefaultCapacity is the initial slot count (SPEC_FULL.md §4.3).
const DefaultCapacity = 1024

// Table is the Object Table. Zero value is not usable; construct with New.
type Table struct {
	mu      sync.RWMutex
	slots   []Entry
	freeIDs []int
	count   int

	// created and destroyed back the Handler Context's objects_created and
	// objects_destroyed counters (SPEC_FULL.md §3). destroyed+count==created
	// always holds, which is the no-leaks-on-teardown property.
	created   uint64
	destroyed uint64
}

// New returns a Table pre-sized to DefaultCapacity free slots.
func New() *Table {
	return &Table{slots: make([]Entry, 0, DefaultCapacity)}
}

// Count returns the number of in-use slots.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Add inserts guestID/hostHandle/typ into the first free slot, growing
// the table (doubling) if none is free. A null host handle is rejected.
// Per SPEC_FULL.md §4.3, growth never invalidates an outstanding index
// because dispatch is single-threaded per ring; the mutex here exists
// only to let the table be used safely from auxiliary goroutines (e.g.
// a metrics scrape) that are not on the hot dispatch path.
func (t *Table) Add(guestID uint64, hostHandle backend.Handle, typ ObjectType) error {
	if hostHandle.Zero() {
		return gpuerr.ErrInvalidHandle
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, idx := range t.freeIDs {
		if !t.slots[idx].InUse {
			t.slots[idx] = Entry{InUse: true, GuestID: guestID, Host: hostHandle, Type: typ}
			t.removeFree(idx)
			t.count++
			t.created++
			return nil
		}
	}

	if len(t.slots) == cap(t.slots) && cap(t.slots) > 0 {
		grown := make([]Entry, len(t.slots), cap(t.slots)*2)
		copy(grown, t.slots)
		t.slots = grown
	}
	t.slots = append(t.slots, Entry{InUse: true, GuestID: guestID, Host: hostHandle, Type: typ})
	t.count++
	t.created++
	return nil
}

// Created returns the lifetime count of objects successfully added.
func (t *Table) Created() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.created
}

// Destroyed returns the lifetime count of objects removed.
func (t *Table) Destroyed() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.destroyed
}

func (t *Table) removeFree(idx int) {
	for i, v := range t.freeIDs {
		if v == idx {
			t.freeIDs = append(t.freeIDs[:i], t.freeIDs[i+1:]...)
			return
		}
	}
}

// Get returns the first in-use slot matching guestID, regardless of type.
func (t *Table) Get(guestID uint64) (backend.Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.slots {
		if e.InUse && e.GuestID == guestID {
			return e.Host, true
		}
	}
	return 0, false
}

// GetTyped returns the in-use slot matching guestID AND expected type.
// Handlers must use this form whenever the protocol specifies an object
// type, per SPEC_FULL.md §4.3's type-safety invariant.
func (t *Table) GetTyped(guestID uint64, expected ObjectType) (backend.Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.slots {
		if e.InUse && e.GuestID == guestID && e.Type == expected {
			return e.Host, true
		}
	}
	return 0, false
}

// State returns the CommandBufferState of the in-use CommandBuffer slot
// for guestID.
func (t *Table) State(guestID uint64) (CommandBufferState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.slots {
		if e.InUse && e.GuestID == guestID && e.Type == CommandBuffer {
			return e.State, true
		}
	}
	return 0, false
}

// SetState transitions a CommandBuffer slot's recording state.
func (t *Table) SetState(guestID uint64, state CommandBufferState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		e := &t.slots[i]
		if e.InUse && e.GuestID == guestID && e.Type == CommandBuffer {
			e.State = state
			return true
		}
	}
	return false
}

// Remove marks the slot for guestID free. It never releases the host
// resource — only the command handler that owns that Vulkan type may do
// so, via the backend, before calling Remove. Missing ids are a no-op.
func (t *Table) Remove(guestID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i].InUse && t.slots[i].GuestID == guestID {
			t.slots[i] = Entry{}
			t.freeIDs = append(t.freeIDs, i)
			t.count--
			t.destroyed++
			return
		}
	}
}

// Each calls fn for every in-use entry. Used by teardown to release
// residents via the backend (SPEC_FULL.md §3 Lifecycle) and by
// diagnostics.
func (t *Table) Each(fn func(Entry)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.slots {
		if e.InUse {
			fn(e)
		}
	}
}
