package arena

import "testing"

func TestHandle_Pack(t *testing.T) {
	h := Pack(7, 3)
	if h.Index() != 7 {
		t.Fatalf("Index() = %d, want 7", h.Index())
	}
	if h.Generation() != 3 {
		t.Fatalf("Generation() = %d, want 3", h.Generation())
	}
	if uint64(h) != 7<<32|3 {
		t.Fatalf("packed value = %#x", uint64(h))
	}
}

func TestArena_Basic(t *testing.T) {
	a := New[string]()

	h := a.Create("hello")
	v, ok := a.Get(h)
	if !ok || v != "hello" {
		t.Fatalf("Get = (%q, %v), want (hello, true)", v, ok)
	}

	if !a.Update(h, "world") {
		t.Fatal("Update failed")
	}
	v, _ = a.Get(h)
	if v != "world" {
		t.Fatalf("after Update, Get = %q", v)
	}

	if a.Len() != 1 {
		t.Fatalf("Len = %d, want 1", a.Len())
	}

	if !a.Destroy(h) {
		t.Fatal("Destroy failed")
	}
	if a.Len() != 0 {
		t.Fatalf("Len after Destroy = %d, want 0", a.Len())
	}
	if a.Destroy(h) {
		t.Fatal("second Destroy should fail")
	}
}

func TestArena_StaleHandleAfterRecycle(t *testing.T) {
	a := New[int]()

	old := a.Create(1)
	if !a.Destroy(old) {
		t.Fatal("Destroy failed")
	}

	fresh := a.Create(2)
	if fresh.Index() != old.Index() {
		t.Fatalf("expected index reuse: old=%d fresh=%d", old.Index(), fresh.Index())
	}
	if fresh.Generation() != old.Generation()+1 {
		t.Fatalf("expected generation bump: old=%d fresh=%d", old.Generation(), fresh.Generation())
	}

	if _, ok := a.Get(old); ok {
		t.Fatal("stale handle must not resolve after recycle")
	}
	if a.Update(old, 9) {
		t.Fatal("stale handle must not update")
	}
	if v, ok := a.Get(fresh); !ok || v != 2 {
		t.Fatalf("fresh handle Get = (%d, %v)", v, ok)
	}
}

func TestArena_RecycleScenario(t *testing.T) {
	// Create three, destroy the second, create a new one: the new handle
	// must reuse the second's index with an incremented generation while
	// the first and third stay valid.
	a := New[string]()

	h1 := a.Create("a")
	h2 := a.Create("b")
	h3 := a.Create("c")

	if !a.Destroy(h2) {
		t.Fatal("Destroy h2 failed")
	}

	h4 := a.Create("d")
	if h4.Index() != h2.Index() {
		t.Fatalf("h4 index = %d, want %d", h4.Index(), h2.Index())
	}
	if h4.Generation() != h2.Generation()+1 {
		t.Fatalf("h4 generation = %d, want %d", h4.Generation(), h2.Generation()+1)
	}

	if v, ok := a.Get(h1); !ok || v != "a" {
		t.Fatalf("h1 = (%q, %v)", v, ok)
	}
	if v, ok := a.Get(h3); !ok || v != "c" {
		t.Fatalf("h3 = (%q, %v)", v, ok)
	}
	if v, ok := a.Get(h4); !ok || v != "d" {
		t.Fatalf("h4 = (%q, %v)", v, ok)
	}
	if _, ok := a.Get(h2); ok {
		t.Fatal("h2 must be stale")
	}
}

func TestArena_OutOfRangeHandle(t *testing.T) {
	a := New[int]()
	a.Create(1)

	bogus := Pack(1000, 0)
	if _, ok := a.Get(bogus); ok {
		t.Fatal("out-of-range handle resolved")
	}
	if a.Update(bogus, 2) {
		t.Fatal("out-of-range handle updated")
	}
	if a.Destroy(bogus) {
		t.Fatal("out-of-range handle destroyed")
	}
}

func TestArena_ReservedSlotProtection(t *testing.T) {
	a := NewReserved[any](5)

	if a.Len() != 5 {
		t.Fatalf("Len = %d, want 5", a.Len())
	}

	for i := uint32(0); i < 5; i++ {
		h := Pack(i, 0)
		if a.Destroy(h) {
			t.Fatalf("Destroy of reserved index %d succeeded", i)
		}
		if _, ok := a.Get(h); !ok {
			t.Fatalf("reserved index %d mutated by failed Destroy", i)
		}
	}

	// Non-reserved slots still work normally.
	h := a.Create("payload")
	if h.Index() < 5 {
		t.Fatalf("Create reused a reserved index: %d", h.Index())
	}
	if !a.Destroy(h) {
		t.Fatal("Destroy of non-reserved slot failed")
	}
}

func TestArena_RetiredSlotNotRecycled(t *testing.T) {
	a := New[int]()
	h := a.Create(1)

	// Push the slot to the retirement sentinel.
	a.slots[h.Index()].generation = retireGeneration
	retired := Pack(h.Index(), retireGeneration)

	if !a.Destroy(retired) {
		t.Fatal("Destroy of retired-generation slot failed")
	}

	next := a.Create(2)
	if next.Index() == retired.Index() {
		t.Fatal("retired slot was recycled")
	}
}

func TestArena_StoreAt(t *testing.T) {
	a := New[string]()

	// Guest pre-allocates a handle beyond the current slot vector.
	pre := Pack(4, 0)
	if !a.StoreAt(pre, "fn") {
		t.Fatal("StoreAt failed")
	}
	if v, ok := a.Get(pre); !ok || v != "fn" {
		t.Fatalf("Get = (%q, %v)", v, ok)
	}

	// Same handle may be overwritten.
	if !a.StoreAt(pre, "fn2") {
		t.Fatal("StoreAt overwrite failed")
	}

	// A different generation over an active slot must fail.
	other := Pack(4, 1)
	if a.StoreAt(other, "bad") {
		t.Fatal("StoreAt with mismatched generation succeeded")
	}

	// Filler slots created by growth must not resolve.
	if _, ok := a.Get(Pack(2, 0)); ok {
		t.Fatal("inactive filler slot resolved")
	}
}

func TestArena_StoreAtReclaimsFreeListEntry(t *testing.T) {
	a := New[int]()
	h1 := a.Create(1)
	a.Destroy(h1)

	// StoreAt on the freed index must remove it from the free list so a
	// later Create cannot hand out the same slot.
	target := Pack(h1.Index(), 7)
	if !a.StoreAt(target, 42) {
		t.Fatal("StoreAt failed")
	}

	h2 := a.Create(2)
	if h2.Index() == target.Index() {
		t.Fatal("Create reused an index occupied via StoreAt")
	}
}

func TestArena_Clear(t *testing.T) {
	a := NewReserved[int](2)
	h := a.Create(10)

	a.Clear()

	if a.Len() != 2 {
		t.Fatalf("Len after Clear = %d, want 2 reserved", a.Len())
	}
	if _, ok := a.Get(h); ok {
		t.Fatal("handle survived Clear")
	}
	if _, ok := a.Get(Pack(0, 0)); !ok {
		t.Fatal("reserved slot cleared")
	}
}
