package wire

import (
	"math"
	"unicode/utf16"

	"github.com/wippyai/guest-bridge/arena"
)

// StreamWriter builds operation and text buffers in the batch wire format.
// The guest side normally produces these streams; on the host it backs the
// package tests and the opdump tool's sample mode.
type StreamWriter struct {
	Ops  []byte
	Text []byte
}

// BeginBatch opens the operations stream.
func (w *StreamWriter) BeginBatch() *StreamWriter {
	w.Ops = append(w.Ops, OpsBegin)
	return w
}

// EndBatch closes the operations stream.
func (w *StreamWriter) EndBatch() *StreamWriter {
	w.Ops = append(w.Ops, OpsStop)
	return w
}

// BeginOp writes an operation id.
func (w *StreamWriter) BeginOp(id byte) *StreamWriter {
	w.Ops = append(w.Ops, id)
	return w
}

// EndOp closes the current operation.
func (w *StreamWriter) EndOp() *StreamWriter {
	w.Ops = append(w.Ops, OpEnd)
	return w
}

// Byte writes one raw byte into the operations stream.
func (w *StreamWriter) Byte(b byte) *StreamWriter {
	w.Ops = append(w.Ops, b)
	return w
}

// U32 writes a little-endian 32-bit value.
func (w *StreamWriter) U32(v uint32) *StreamWriter {
	w.Ops = append(w.Ops, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	return w
}

// U64 writes a little-endian 64-bit value.
func (w *StreamWriter) U64(v uint64) *StreamWriter {
	w.U32(uint32(v))
	w.U32(uint32(v >> 32))
	return w
}

// Handle writes a packed registry handle.
func (w *StreamWriter) Handle(h arena.Handle) *StreamWriter {
	return w.U64(uint64(h))
}

// Region appends raw bytes to the text buffer and returns the (start,
// length) pair that addresses them.
func (w *StreamWriter) Region(data []byte) (start, length uint32) {
	start = uint32(len(w.Text))
	w.Text = append(w.Text, data...)
	return start, uint32(len(data))
}

// BeginArgs opens an argument list.
func (w *StreamWriter) BeginArgs() *StreamWriter {
	w.Ops = append(w.Ops, ArgsBegin)
	return w
}

// EndArg closes the current argument value.
func (w *StreamWriter) EndArg() *StreamWriter {
	w.Ops = append(w.Ops, ArgEnd)
	return w
}

// EndArgs closes the argument list.
func (w *StreamWriter) EndArgs() *StreamWriter {
	w.Ops = append(w.Ops, ArgsStop)
	return w
}

// Null writes a null value.
func (w *StreamWriter) Null() *StreamWriter {
	return w.Byte(byte(TagNull))
}

// Undefined writes an undefined value.
func (w *StreamWriter) Undefined() *StreamWriter {
	return w.Byte(byte(TagUndefined))
}

// Bool writes a boolean value.
func (w *StreamWriter) Bool(v bool) *StreamWriter {
	w.Byte(byte(TagBool))
	if v {
		return w.Byte(1)
	}
	return w.Byte(0)
}

// TextUTF8 appends s to the text buffer and writes a UTF-8 text value.
func (w *StreamWriter) TextUTF8(s string) *StreamWriter {
	start, length := w.Region([]byte(s))
	return w.Byte(byte(TagTextUTF8)).U32(start).U32(length)
}

// TextUTF16 appends s as little-endian UTF-16 code units and writes a
// UTF-16 text value.
func (w *StreamWriter) TextUTF16(s string) *StreamWriter {
	units := utf16.Encode([]rune(s))
	raw := make([]byte, 0, 2*len(units))
	for _, u := range units {
		raw = append(raw, byte(u), byte(u>>8))
	}
	start, length := w.Region(raw)
	return w.Byte(byte(TagTextUTF16)).U32(start).U32(length)
}

// InternText appends s to the text buffer and writes an interning text
// value.
func (w *StreamWriter) InternText(s string) *StreamWriter {
	start, length := w.Region([]byte(s))
	return w.Byte(byte(TagInternText)).U32(start).U32(length)
}

// CachedText writes a cached-text reference.
func (w *StreamWriter) CachedText(id uint32) *StreamWriter {
	return w.Byte(byte(TagCachedText)).U32(id)
}

// Int writes an integer value under tag at the given quantization tier.
// bits carries the payload sign/zero-extended to 64 bits; only the tier's
// width is emitted.
func (w *StreamWriter) Int(tag Tag, tier Tier, bits uint64) *StreamWriter {
	w.Byte(byte(tag)).Byte(byte(tier))
	width := tier.width(tag)
	if width > 8 {
		// Full-width 128-bit payload with a sign/zero-extended high half.
		w.U64(bits)
		if tag == TagS128 && int64(bits) < 0 {
			return w.U64(math.MaxUint64)
		}
		return w.U64(0)
	}
	for i := 0; i < width; i++ {
		w.Byte(byte(bits >> (8 * i)))
	}
	return w
}

// Int128 writes a full-width 128-bit integer value.
func (w *StreamWriter) Int128(tag Tag, lo, hi uint64) *StreamWriter {
	return w.Byte(byte(tag)).Byte(byte(TierNone)).U64(lo).U64(hi)
}

// F32 writes a 32-bit float value.
func (w *StreamWriter) F32(v float32) *StreamWriter {
	return w.Byte(byte(TagF32)).U32(math.Float32bits(v))
}

// F64 writes a 64-bit float value.
func (w *StreamWriter) F64(v float64) *StreamWriter {
	return w.Byte(byte(TagF64)).U64(math.Float64bits(v))
}

// Ref writes an extern or object reference.
func (w *StreamWriter) Ref(tag Tag, h arena.Handle) *StreamWriter {
	return w.Byte(byte(tag)).U64(uint64(h))
}

// Array writes a typed array value addressing guest memory.
func (w *StreamWriter) Array(tag Tag, ptr, byteLen uint32) *StreamWriter {
	return w.Byte(byte(tag)).U32(ptr).U32(byteLen)
}

// Hint writes a return hint.
func (w *StreamWriter) Hint(h Hint) *StreamWriter {
	w.Byte(HintStart).Byte(byte(h.Arity))
	for _, st := range h.States {
		w.Byte(byte(len(st.Accepted)))
		for _, tag := range st.Accepted {
			w.Byte(byte(tag))
		}
	}
	return w.Byte(HintStop)
}

// MakeFunction writes a complete register-function operation: the
// pre-allocated handle plus the (start, length) region naming the function
// in the text buffer.
func (w *StreamWriter) MakeFunction(h arena.Handle, name string) *StreamWriter {
	start, length := w.Region([]byte(name))
	return w.BeginOp(OpMakeFunction).Handle(h).U32(start).U32(length).EndOp()
}

// InvokeHead writes the fixed prefix of an invoke operation; the caller
// appends arguments and EndOp.
func (w *StreamWriter) InvokeHead(fn arena.Handle, hint Hint) *StreamWriter {
	return w.BeginOp(OpInvoke).Handle(fn).Hint(hint)
}

// InvokeAsyncHead writes the fixed prefix of an async invoke operation.
func (w *StreamWriter) InvokeAsyncHead(fn arena.Handle, callback uint64, hint Hint) *StreamWriter {
	return w.BeginOp(OpInvokeAsync).Handle(fn).U64(callback).Hint(hint)
}
