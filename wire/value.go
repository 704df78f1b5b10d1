package wire

import (
	"unsafe"

	"github.com/wippyai/guest-bridge/arena"
)

// Undefined is the decoded form of the undefined tag, distinct from nil.
type Undefined struct{}

// ExternRef is a packed handle into the external-resource or function
// registry.
type ExternRef arena.Handle

// ObjectRef is a packed handle into the generic-object registry.
type ObjectRef arena.Handle

// S128 is a signed 128-bit integer as (low 64, high 64) little-endian halves.
type S128 struct {
	Lo uint64
	Hi int64
}

// U128 is an unsigned 128-bit integer as (low 64, high 64) halves.
type U128 struct {
	Lo uint64
	Hi uint64
}

// ElemKind identifies the element type of a typed array payload.
type ElemKind uint8

const (
	ElemU8 ElemKind = iota
	ElemS8
	ElemU16
	ElemS16
	ElemU32
	ElemS32
	ElemU64
	ElemS64
	ElemF32
	ElemF64
)

// Size returns the element size in bytes.
func (k ElemKind) Size() int {
	switch k {
	case ElemU8, ElemS8:
		return 1
	case ElemU16, ElemS16:
		return 2
	case ElemU32, ElemS32, ElemF32:
		return 4
	case ElemU64, ElemS64, ElemF64:
		return 8
	}
	return 0
}

func (k ElemKind) String() string {
	switch k {
	case ElemU8:
		return "u8"
	case ElemS8:
		return "s8"
	case ElemU16:
		return "u16"
	case ElemS16:
		return "s16"
	case ElemU32:
		return "u32"
	case ElemS32:
		return "s32"
	case ElemU64:
		return "u64"
	case ElemS64:
		return "s64"
	case ElemF32:
		return "f32"
	case ElemF64:
		return "f64"
	}
	return "unknown"
}

// TypedArray is a decoded typed numeric array parameter.
//
// When Shared is true, Data aliases the guest's linear memory directly and
// must be consumed before any further guest call that could grow or
// reallocate memory. When Shared is false, Data is an owned copy and safe to
// retain.
type TypedArray struct {
	Elem   ElemKind
	Data   []byte
	Shared bool
}

// Len returns the number of elements.
func (a *TypedArray) Len() int {
	return len(a.Data) / a.Elem.Size()
}

// The typed accessors reinterpret the backing bytes in place; element data
// is little-endian, matching guest linear memory layout.

func (a *TypedArray) Uint8s() []uint8 { return a.Data }

func (a *TypedArray) Int8s() []int8 {
	if len(a.Data) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&a.Data[0])), len(a.Data))
}

func (a *TypedArray) Uint16s() []uint16 {
	n := len(a.Data) / 2
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Int16s() []int16 {
	n := len(a.Data) / 2
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Uint32s() []uint32 {
	n := len(a.Data) / 4
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Int32s() []int32 {
	n := len(a.Data) / 4
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Uint64s() []uint64 {
	n := len(a.Data) / 8
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Int64s() []int64 {
	n := len(a.Data) / 8
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Float32s() []float32 {
	n := len(a.Data) / 4
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&a.Data[0])), n)
}

func (a *TypedArray) Float64s() []float64 {
	n := len(a.Data) / 8
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&a.Data[0])), n)
}
