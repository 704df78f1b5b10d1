// Package hostmem provides the host-side accessor over the guest's linear
// memory.
//
// All reads are range-checked against the current memory size before
// slicing. Writes never pick their own addresses: the accessor always asks
// the guest for a fresh allocation through its exported allocation entry
// points and then copies bytes into the returned range, so the guest's own
// allocator stays authoritative for its address space.
package hostmem
