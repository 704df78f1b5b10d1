package hostmem

import (
	"context"
	"math"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/errors"
)

// Accessor reads and writes byte ranges of the guest's linear memory and
// requests new guest-side allocations through the guest's own exports.
//
// Views returned by Read alias guest memory and are valid only until the
// next guest call that can grow or reallocate memory; re-derive views per
// operation instead of caching them.
type Accessor struct {
	mem     guestbridge.Memory
	exports guestbridge.GuestExports
}

// New creates an accessor over a guest memory and its raw exports.
func New(mem guestbridge.Memory, exports guestbridge.GuestExports) *Accessor {
	return &Accessor{mem: mem, exports: exports}
}

// Memory returns the underlying guest memory.
func (a *Accessor) Memory() guestbridge.Memory {
	return a.mem
}

// Read returns a view of the byte range [ptr, ptr+length). The range is
// checked against the current memory size before slicing.
func (a *Accessor) Read(ptr, length uint32) ([]byte, error) {
	if err := a.checkBounds(ptr, length); err != nil {
		return nil, err
	}
	data, err := a.mem.Read(ptr, length)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "read guest memory")
	}
	return data, nil
}

// Write requests a fresh guest allocation sized for data, copies data into
// it, and returns the allocation handle plus the start pointer.
func (a *Accessor) Write(ctx context.Context, data []byte) (uint64, uint32, error) {
	if len(data) > math.MaxUint32 {
		return 0, 0, errors.Overflow(errors.PhaseMemory, len(data), "guest allocation size")
	}

	handle, ptr, err := a.RequestAllocation(ctx, uint32(len(data)))
	if err != nil {
		return 0, 0, err
	}

	if err := a.mem.Write(ptr, data); err != nil {
		return 0, 0, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "copy into guest allocation")
	}
	return handle, ptr, nil
}

// RequestAllocation asks the guest for size bytes and resolves the returned
// allocation handle to its start pointer.
func (a *Accessor) RequestAllocation(ctx context.Context, size uint32) (uint64, uint32, error) {
	handle, err := a.exports.CreateAllocation(ctx, size)
	if err != nil {
		return 0, 0, errors.AllocationFailed(errors.PhaseMemory, size, err)
	}

	ptr, err := a.exports.AllocationStartPointer(ctx, handle)
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "resolve allocation pointer")
	}
	return handle, ptr, nil
}

func (a *Accessor) checkBounds(ptr, length uint32) error {
	end := uint64(ptr) + uint64(length)
	if sizer, ok := a.mem.(guestbridge.MemorySizer); ok {
		if size := sizer.Size(); end > uint64(size) {
			return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(ptr), uint64(length), uint64(size))
		}
	}
	return nil
}
