package arena

import "math"

// Handle packs a slot index (high 32 bits) and a generation (low 32 bits)
// into one opaque 64-bit value. A handle is valid only while the slot at its
// index is active and carries the same generation.
type Handle uint64

// Pack builds a handle from an index and a generation.
func Pack(index, generation uint32) Handle {
	return Handle(uint64(index)<<32 | uint64(generation))
}

// Index returns the slot index encoded in the handle.
func (h Handle) Index() uint32 {
	return uint32(h >> 32)
}

// Generation returns the generation encoded in the handle.
func (h Handle) Generation() uint32 {
	return uint32(h)
}

// retireGeneration is the sentinel after which a slot is never recycled.
// Recycling such a slot would wrap the generation back to zero and let a
// stale handle alias a fresh value.
const retireGeneration = math.MaxUint32

type slot[T any] struct {
	payload    T
	generation uint32
	active     bool
}

// Arena is a vector of reusable slots plus a free list. Destroyed slots are
// recycled with a bumped generation, so handles issued before a destroy can
// never resolve to a reused slot.
//
// Arena is not safe for concurrent use; the dispatcher owns exactly one
// logical thread of control.
type Arena[T any] struct {
	slots    []slot[T]
	freeList []uint32
	reserved uint32
	active   int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{
		slots:    make([]slot[T], 0, 16),
		freeList: make([]uint32, 0, 8),
	}
}

// NewReserved creates an arena whose first n slots are pre-activated at
// construction and protected from Destroy. Reserved slots hold host
// singletons the guest refers to by well-known index.
func NewReserved[T any](n uint32) *Arena[T] {
	a := &Arena[T]{
		slots:    make([]slot[T], n, n+16),
		freeList: make([]uint32, 0, 8),
		reserved: n,
	}
	for i := range a.slots {
		a.slots[i].active = true
	}
	a.active = int(n)
	return a
}

// Create stores a value and returns a handle for it. Free slots are reused
// with an incremented generation; otherwise a new slot is appended at
// generation zero.
func (a *Arena[T]) Create(value T) Handle {
	if n := len(a.freeList); n > 0 {
		index := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]

		s := &a.slots[index]
		s.generation++
		s.payload = value
		s.active = true
		a.active++
		return Pack(index, s.generation)
	}

	index := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{payload: value, active: true})
	a.active++
	return Pack(index, 0)
}

// Get resolves a handle to its payload. A stale or out-of-range handle
// returns the zero value and false, never panics.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.resolve(h); s != nil {
		return s.payload, true
	}
	var zero T
	return zero, false
}

// Update replaces the payload of an active slot. Returns false for a stale
// or out-of-range handle.
func (a *Arena[T]) Update(h Handle, value T) bool {
	s := a.resolve(h)
	if s == nil {
		return false
	}
	s.payload = value
	return true
}

// Destroy clears the payload, deactivates the slot, and recycles its index
// unless the generation has reached the retirement sentinel. Destroying a
// reserved slot always fails and never mutates it.
func (a *Arena[T]) Destroy(h Handle) bool {
	if h.Index() < a.reserved {
		return false
	}
	s := a.resolve(h)
	if s == nil {
		return false
	}

	var zero T
	s.payload = zero
	s.active = false
	a.active--

	if s.generation != retireGeneration {
		a.freeList = append(a.freeList, h.Index())
	}
	return true
}

// StoreAt activates the exact slot named by a pre-allocated handle and
// stores value into it. The slot vector grows with inactive filler slots as
// needed. It fails if the named slot is already active under a different
// generation.
func (a *Arena[T]) StoreAt(h Handle, value T) bool {
	index := h.Index()
	if index < a.reserved {
		return false
	}

	for uint32(len(a.slots)) <= index {
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[index]
	if s.active && s.generation != h.Generation() {
		return false
	}
	if !s.active {
		a.removeFromFreeList(index)
		s.active = true
		a.active++
	}
	s.generation = h.Generation()
	s.payload = value
	return true
}

// Len returns the number of active slots.
func (a *Arena[T]) Len() int {
	return a.active
}

// Clear deactivates every non-reserved slot and resets the free list.
// Generations are preserved so handles issued before Clear stay dead.
func (a *Arena[T]) Clear() {
	var zero T
	a.freeList = a.freeList[:0]
	for i := range a.slots {
		s := &a.slots[i]
		if uint32(i) < a.reserved {
			continue
		}
		if s.active {
			s.active = false
			s.payload = zero
			a.active--
		}
		if s.generation != retireGeneration {
			a.freeList = append(a.freeList, uint32(i))
		}
	}
}

func (a *Arena[T]) resolve(h Handle) *slot[T] {
	index := h.Index()
	if uint64(index) >= uint64(len(a.slots)) {
		return nil
	}
	s := &a.slots[index]
	if !s.active || s.generation != h.Generation() {
		return nil
	}
	return s
}

func (a *Arena[T]) removeFromFreeList(index uint32) {
	for i, fi := range a.freeList {
		if fi == index {
			a.freeList[i] = a.freeList[len(a.freeList)-1]
			a.freeList = a.freeList[:len(a.freeList)-1]
			return
		}
	}
}
