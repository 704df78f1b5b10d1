package wire

// Buffer is the growable byte buffer replies are encoded into. It starts
// near 80 bytes and doubles whenever projected usage would exceed 70% of
// the current capacity. Bytes returns an exact-length copy so no
// uninitialized capacity tail ever crosses the boundary.
type Buffer struct {
	data []byte
}

const (
	initialCapacity = 80
	growThreshold   = 0.7
)

// NewBuffer creates an empty reply buffer at the initial capacity.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, initialCapacity)}
}

// ensure grows capacity until projected usage stays under the threshold.
func (b *Buffer) ensure(n int) {
	projected := len(b.data) + n
	capacity := cap(b.data)
	if capacity > 0 && float64(projected) <= growThreshold*float64(capacity) {
		return
	}
	if capacity == 0 {
		// Zero-value Buffer; start from the same capacity NewBuffer uses.
		capacity = initialCapacity
	}
	for float64(projected) > growThreshold*float64(capacity) {
		capacity *= 2
	}
	grown := make([]byte, len(b.data), capacity)
	copy(grown, b.data)
	b.data = grown
}

// WriteByte appends one byte.
func (b *Buffer) WriteByte(v byte) {
	b.ensure(1)
	b.data = append(b.data, v)
}

// Write appends raw bytes.
func (b *Buffer) Write(p []byte) {
	b.ensure(len(p))
	b.data = append(b.data, p...)
}

// WriteU32 appends a little-endian 32-bit value.
func (b *Buffer) WriteU32(v uint32) {
	b.ensure(4)
	b.data = append(b.data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteU64 appends a little-endian 64-bit value.
func (b *Buffer) WriteU64(v uint64) {
	b.ensure(8)
	b.data = append(b.data,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the current capacity. Exposed for growth tests.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes returns the written bytes shrunk to their exact final size.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Reset discards written bytes but keeps the allocation.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
