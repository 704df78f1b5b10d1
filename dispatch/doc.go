// Package dispatch executes operation batches against the host's function
// and object registries.
//
// # Batch lifecycle
//
// A batch arrives as two buffers: an operations stream and a text buffer the
// stream's (start, length) regions index into. Execution is staged:
//
//	stage    decode every operation, verify the full frame
//	execute  run the staged operations in order
//
// Nothing executes until the whole frame has verified, so a framing or
// decode error never leaves partial effects behind. Execution-stage errors
// abort the batch; effects of operations that already ran stay applied.
//
// # Operations
//
//	make-function  bind a compiled callable to a guest-allocated handle
//	invoke         call a function synchronously, encode per return hint
//	invoke-async   call a function that yields a Deferred; the Bridge
//	               delivers the settled result to a guest callback later
//
// Apply runs fire-and-forget batches (results validated, not encoded);
// ApplyReturning aggregates per-operation results into a group reply. Trace
// decodes a batch without executing it, for tooling.
//
// # Async delivery
//
// The Bridge keeps a pending table keyed by the guest's opaque callback
// handle. When a Deferred settles, the outcome is encoded into the
// single-reply format (or an error-code reply), copied into a fresh guest
// allocation, and handed to the guest's callback export. Delivery failures
// are logged and swallowed.
//
// Settlement goroutines encode under the dispatcher's batch mutex, so the
// registries, the string cache, and guest memory have exactly one writer at
// a time. The mutex is released before the callback into the guest; a
// callback that dispatches a fresh batch re-enters the dispatcher cleanly.
package dispatch
