package guestbridge

import "context"

// Memory represents the guest's linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of guest linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// GuestExports is the set of raw guest export functions the host calls.
// A guest module that wants to receive data or callbacks from the host
// must export all four.
type GuestExports interface {
	// CreateAllocation asks the guest to reserve size bytes and returns an
	// opaque allocation handle.
	CreateAllocation(ctx context.Context, size uint32) (uint64, error)
	// AllocationStartPointer resolves an allocation handle to the first
	// byte of its range in linear memory.
	AllocationStartPointer(ctx context.Context, handle uint64) (uint32, error)
	// InvokeCallback delivers an encoded async result to the guest.
	InvokeCallback(ctx context.Context, callback uint64, payloadPtr uint32) error
	// Main runs the guest entry point.
	Main(ctx context.Context) error
}
