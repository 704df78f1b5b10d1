// Package wire implements the boundary-crossing calling convention shared
// by the host and the guest: tagged values, width-quantized integers,
// return hints, and the framed reply formats.
//
// # Streams
//
// An operation stream is framed as
//
//	OpsBegin(0x00) [op-id payload OpEnd(0xFE)]* OpsStop(0xFF)
//
// with op ids MakeFunction=1, Invoke=2, InvokeAsync=3. Argument lists are
// framed as
//
//	ArgsBegin(0x02) [tagged-value ArgEnd(0x03)]* ArgsStop(0x04)
//
// and return hints as
//
//	HintStart(200) arity [state]* HintStop(201)
//
// All multibyte integers are little-endian. Decoding is purely sequential
// and cursor-driven: no random access, no backtracking. Corrupt length
// fields are the only failure mode, so every (start, length) and
// (ptr, length) pair is validated against its buffer before slicing.
//
// # Width quantization
//
// Integer tags carry a tier byte selecting the actual encoded width, which
// may be narrower than the logical type: a 64-bit logical integer holding a
// small value is encoded in one byte. A tier wider than the logical type,
// or an unknown tier, is a fatal decode error.
//
// # Replies
//
// Replies are self-describing: every emitted value carries its resolved
// type tag and a fixed 8-byte payload slot, so the guest decoder never
// needs the original hint. Returning batches aggregate per-operation
// results into a group reply whose entries are tagged with their hint
// arity.
package wire
