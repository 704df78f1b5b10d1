// Package arena provides a generational slot allocator for minting opaque
// 64-bit handles that are safe against reuse-after-free.
//
// # Handles
//
// A Handle packs a slot index in the high 32 bits and a generation counter
// in the low 32 bits. Destroying a slot bumps nothing by itself; the next
// Create that recycles the index increments the generation, so every handle
// issued before the destroy fails resolution afterwards:
//
//	a := arena.New[string]()
//	h := a.Create("first")
//	a.Destroy(h)
//	h2 := a.Create("second") // same index, new generation
//	_, ok := a.Get(h)        // ok == false
//
// A slot whose generation reaches the sentinel maximum is permanently
// retired instead of recycled, so generation wraparound can never alias.
//
// # Registries
//
// Type confusion across handle spaces is prevented by using disjoint arena
// instances, not by a shared tag: the dispatcher owns three independent
// arenas (functions, generic objects, external resources).
package arena
