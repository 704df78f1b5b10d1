package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/guest-bridge/dispatch"
	"github.com/wippyai/guest-bridge/hostmem"
)

// Host module "env": the two entry points the guest imports to hand
// operation batches to the host. Both take (ops_ptr, ops_len, text_ptr,
// text_len); the returning variant yields the reply pointer, or 0 when the
// batch failed.
const (
	hostModuleName      = "env"
	fnApplyOps          = "apply_operations"
	fnApplyOpsReturning = "apply_operations_returning"
)

// batchState is the per-instance dispatcher handle the host functions pull
// out of context. Host functions are installed once per runtime, before any
// instance exists, so the live dispatcher has to travel with the call.
type batchState struct {
	dispatcher *dispatch.Dispatcher
	accessor   *hostmem.Accessor
}

type batchStateKey struct{}

// WithDispatcher attaches an instance's dispatcher and accessor to the
// context every guest call runs under.
func WithDispatcher(ctx context.Context, d *dispatch.Dispatcher, acc *hostmem.Accessor) context.Context {
	return context.WithValue(ctx, batchStateKey{}, &batchState{dispatcher: d, accessor: acc})
}

func batchStateFrom(ctx context.Context) (*batchState, bool) {
	st, ok := ctx.Value(batchStateKey{}).(*batchState)
	return st, ok
}

func (e *Engine) installHostModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(applyOperations),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			nil).
		Export(fnApplyOps).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(applyOperationsReturning),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32}).
		Export(fnApplyOpsReturning).
		Instantiate(ctx)
	return err
}

// readBatch copies the ops and text regions out of guest memory. Copies, not
// views: executing the batch can grow memory and invalidate views.
func readBatch(mod api.Module, stack []uint64) (ops, text []byte, ok bool) {
	mem := mod.Memory()
	opsPtr, opsLen := uint32(stack[0]), uint32(stack[1])
	textPtr, textLen := uint32(stack[2]), uint32(stack[3])

	opsView, ok := mem.Read(opsPtr, opsLen)
	if !ok {
		return nil, nil, false
	}
	textView, ok := mem.Read(textPtr, textLen)
	if !ok {
		return nil, nil, false
	}
	return append([]byte(nil), opsView...), append([]byte(nil), textView...), true
}

func applyOperations(ctx context.Context, mod api.Module, stack []uint64) {
	st, ok := batchStateFrom(ctx)
	if !ok {
		Logger().Error("apply_operations called without a bound dispatcher")
		return
	}

	ops, text, ok := readBatch(mod, stack)
	if !ok {
		Logger().Error("apply_operations batch regions out of bounds")
		return
	}

	if err := st.dispatcher.Apply(ctx, ops, text); err != nil {
		Logger().Warn("batch rejected", zap.Error(err))
	}
}

func applyOperationsReturning(ctx context.Context, mod api.Module, stack []uint64) {
	st, ok := batchStateFrom(ctx)
	if !ok {
		Logger().Error("apply_operations_returning called without a bound dispatcher")
		stack[0] = 0
		return
	}

	ops, text, ok := readBatch(mod, stack)
	if !ok {
		Logger().Error("apply_operations_returning batch regions out of bounds")
		stack[0] = 0
		return
	}

	reply, err := st.dispatcher.ApplyReturning(ctx, ops, text)
	if err != nil {
		Logger().Warn("batch rejected", zap.Error(err))
		stack[0] = 0
		return
	}

	_, ptr, err := st.accessor.Write(ctx, reply)
	if err != nil {
		Logger().Warn("reply allocation failed", zap.Error(err))
		stack[0] = 0
		return
	}
	stack[0] = uint64(ptr)
}
