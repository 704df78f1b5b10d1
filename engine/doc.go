// Package engine integrates the bridge with wazero.
//
// Engine wraps a wazero runtime and installs the "env" host module whose
// apply_operations and apply_operations_returning functions hand guest
// batches to the dispatcher. Host functions are installed once per runtime;
// the live per-instance dispatcher travels in the call context, attached
// with WithDispatcher.
//
// Instance adapts the guest side: WazeroMemory implements the bridge Memory
// interface over api.Memory, and the guest's create_allocation,
// allocation_start_pointer, invoke_callback, and main exports are resolved
// at instantiation so a missing export fails loading instead of panicking on
// first use.
package engine
