// Package guestbridge is the host-side marshaling runtime for a WebAssembly
// guest sharing a single linear memory with the host.
//
// The guest can only exchange raw bytes and integers across the boundary, so
// the host side tracks the lifetime of objects handed to the guest, decodes
// and encodes a compact binary wire format carrying typed arguments and
// return values, and dispatches batched operation streams covering function
// registration and synchronous or asynchronous invocation.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	guestbridge/         Root package with Memory and GuestExports interfaces
//	├── runtime/         High-level API for loading and running guest modules
//	├── engine/          Low-level wazero integration and host module install
//	├── dispatch/        Batch dispatcher, registries and async callback bridge
//	├── wire/            Tagged-value decoder, return hints and reply encoding
//	├── hostmem/         Linear memory accessor and guest-side allocation
//	├── arena/           Generational slot allocator for safe 64-bit handles
//	├── text/            UTF-8/UTF-16 codec and string interning cache
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load and run a guest module:
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.RegisterFunc("add", func(a, b int32) int32 { return a + b })
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	if err := inst.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	inst.Drain(ctx) // settle outstanding async calls
//
// # Wire Format
//
// A batch is one framed sequence of operations. The guest writes an
// operations byte region and a text byte region into its own memory, then
// calls apply_operations or apply_operations_returning with (pointer, length)
// pairs for each. Arguments are tagged values; integers carry a width
// quantization tier so small values stay compact. Return shapes are described
// by a per-invocation hint that the host validates results against before
// encoding a self-describing reply.
//
// # Thread Safety
//
// Batches are serialized through one dispatcher mutex: one batch runs to
// completion before another starts. Async settlement goroutines encode
// their results under the same mutex, so the registries, the string cache,
// and guest memory never see two writers at once. No lock is held across
// the callback into the guest, so a callback may dispatch a fresh batch.
package guestbridge
