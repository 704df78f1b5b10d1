// Package runtime is the high-level entry point for hosting a guest module.
//
// Usage:
//
//	rt, err := runtime.New(ctx)
//	rt.RegisterFunc("math.add", func(a, b int32) int32 { return a + b })
//	mod, err := rt.Load(ctx, wasmBytes)
//	inst, err := mod.Instantiate(ctx)
//	defer inst.Close(ctx)
//
//	err = inst.Run(ctx)    // guest main; batches arrive via the env imports
//	err = inst.Drain(ctx)  // await async deliveries
//
// Each instance owns its own registries, string cache, and async bridge;
// nothing is shared across instances except the host function registry,
// which is read-only during execution.
package runtime
