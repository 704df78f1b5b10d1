package dispatch

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wippyai/guest-bridge/arena"
	"github.com/wippyai/guest-bridge/errors"
	"github.com/wippyai/guest-bridge/hostmem"
	"github.com/wippyai/guest-bridge/text"
	"github.com/wippyai/guest-bridge/wire"
)

// guestMem is a flat in-process stand-in for guest linear memory.
type guestMem struct {
	data []byte
}

func newGuestMem(size uint32) *guestMem {
	return &guestMem{data: make([]byte, size)}
}

func (m *guestMem) Size() uint32 { return uint32(len(m.data)) }

func (m *guestMem) Read(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return nil, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), uint64(length), uint64(len(m.data)))
	}
	return m.data[offset : offset+length], nil
}

func (m *guestMem) Write(offset uint32, p []byte) error {
	if uint64(offset)+uint64(len(p)) > uint64(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), uint64(len(p)), uint64(len(m.data)))
	}
	copy(m.data[offset:], p)
	return nil
}

func (m *guestMem) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *guestMem) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (m *guestMem) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (m *guestMem) ReadU64(offset uint32) (uint64, error) {
	lo, err := m.ReadU32(offset)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadU32(offset + 4)
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (m *guestMem) WriteU8(offset uint32, v uint8) error {
	return m.Write(offset, []byte{v})
}

func (m *guestMem) WriteU16(offset uint32, v uint16) error {
	return m.Write(offset, []byte{byte(v), byte(v >> 8)})
}

func (m *guestMem) WriteU32(offset uint32, v uint32) error {
	return m.Write(offset, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (m *guestMem) WriteU64(offset uint32, v uint64) error {
	if err := m.WriteU32(offset, uint32(v)); err != nil {
		return err
	}
	return m.WriteU32(offset+4, uint32(v>>32))
}

// guestExports fakes the guest's allocation and callback exports with a
// bump allocator. Settlement goroutines call it concurrently with the test
// goroutine, so it carries its own lock.
type guestExports struct {
	mu        sync.Mutex
	mem       *guestMem
	nextPtr   uint32
	allocs    map[uint64]uint32 // handle -> start pointer
	sizes     map[uint32]uint32 // start pointer -> size
	nextAlloc uint64
	callbacks []callbackRecord
	failAlloc bool
}

type callbackRecord struct {
	callback uint64
	payload  []byte
}

func newGuestExports(mem *guestMem) *guestExports {
	return &guestExports{
		mem:       mem,
		nextPtr:   1024,
		allocs:    make(map[uint64]uint32),
		sizes:     make(map[uint32]uint32),
		nextAlloc: 1,
	}
}

func (g *guestExports) CreateAllocation(_ context.Context, size uint32) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAlloc {
		return 0, errors.InvalidInput(errors.PhaseMemory, "allocator exhausted")
	}
	handle := g.nextAlloc
	g.nextAlloc++
	g.allocs[handle] = g.nextPtr
	g.sizes[g.nextPtr] = size
	g.nextPtr += size
	return handle, nil
}

func (g *guestExports) AllocationStartPointer(_ context.Context, handle uint64) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ptr, ok := g.allocs[handle]
	if !ok {
		return 0, errors.NotFound(errors.PhaseMemory, "allocation", "handle")
	}
	return ptr, nil
}

func (g *guestExports) InvokeCallback(_ context.Context, callback uint64, payloadPtr uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	payload, err := g.mem.Read(payloadPtr, g.sizes[payloadPtr])
	if err != nil {
		return err
	}
	g.callbacks = append(g.callbacks, callbackRecord{
		callback: callback,
		payload:  append([]byte(nil), payload...),
	})
	return nil
}

func (g *guestExports) deliveries() []callbackRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]callbackRecord(nil), g.callbacks...)
}

func (g *guestExports) Main(context.Context) error { return nil }

// harness wires a dispatcher over fake guest memory.
type harness struct {
	dispatcher *Dispatcher
	registries *Registries
	hosts      *HostRegistry
	bridge     *Bridge
	exports    *guestExports
	mem        *guestMem
}

func newHarness() *harness {
	mem := newGuestMem(64 * 1024)
	exports := newGuestExports(mem)
	accessor := hostmem.New(mem, exports)
	registries := NewRegistries()
	hosts := NewHostRegistry()
	bridge := NewBridge(accessor, exports)

	d := New(Config{
		Registries: registries,
		Compiler:   hosts,
		Cache:      text.NewCache(),
		Memory:     mem,
		Accessor:   accessor,
		Bridge:     bridge,
	})
	return &harness{
		dispatcher: d,
		registries: registries,
		hosts:      hosts,
		bridge:     bridge,
		exports:    exports,
		mem:        mem,
	}
}

func boolHint() wire.Hint {
	return wire.Hint{
		Arity:  wire.AritySingle,
		States: []wire.State{{Accepted: []wire.Tag{wire.TagBool}}},
	}
}

func TestInvoke_SingleBoolReturning(t *testing.T) {
	h := newHarness()

	fn := h.registries.Funcs.Create(func(context.Context, []any) (any, error) {
		return true, nil
	})

	w := new(wire.StreamWriter).BeginBatch()
	w.InvokeHead(fn, boolHint()).BeginArgs().EndArgs().EndOp()
	w.EndBatch()

	reply, err := h.dispatcher.ApplyReturning(context.Background(), w.Ops, w.Text)
	if err != nil {
		t.Fatalf("ApplyReturning failed: %v", err)
	}

	entries, err := wire.ParseGroupReply(reply)
	if err != nil {
		t.Fatalf("reply parse failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.Arity != wire.AritySingle || e.Values[0].Tag != wire.TagBool || e.Values[0].Slot != 1 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestMakeFunctionThenInvoke(t *testing.T) {
	h := newHarness()

	if err := h.hosts.RegisterFunc("math.add", func(a, b int32) int32 {
		return a + b
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// The guest pre-allocates the handle and registers the function and
	// invokes it in one batch.
	handle := arena.Pack(2, 0)
	hint := wire.Hint{
		Arity:  wire.AritySingle,
		States: []wire.State{{Accepted: []wire.Tag{wire.TagS8, wire.TagS32}}},
	}

	w := new(wire.StreamWriter).BeginBatch()
	w.MakeFunction(handle, "math.add")
	w.InvokeHead(handle, hint).BeginArgs().
		Int(wire.TagS32, wire.TierEight, 30).EndArg().
		Int(wire.TagS32, wire.TierEight, 12).EndArg().
		EndArgs().EndOp()
	w.EndBatch()

	reply, err := h.dispatcher.ApplyReturning(context.Background(), w.Ops, w.Text)
	if err != nil {
		t.Fatalf("ApplyReturning failed: %v", err)
	}

	entries, err := wire.ParseGroupReply(reply)
	if err != nil {
		t.Fatalf("reply parse failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Values[0].Tag != wire.TagS8 || entries[0].Values[0].Slot != 42 {
		t.Fatalf("entry = %+v", entries[0])
	}
	if h.registries.Funcs.Len() != 1 {
		t.Fatalf("function registry holds %d entries", h.registries.Funcs.Len())
	}
}

func TestApply_FireAndForget(t *testing.T) {
	h := newHarness()

	called := 0
	fn := h.registries.Funcs.Create(func(_ context.Context, args []any) (any, error) {
		called++
		return true, nil
	})

	w := new(wire.StreamWriter).BeginBatch()
	w.InvokeHead(fn, boolHint()).BeginArgs().EndArgs().EndOp()
	w.EndBatch()

	if err := h.dispatcher.Apply(context.Background(), w.Ops, w.Text); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if called != 1 {
		t.Fatalf("called = %d", called)
	}
	// Fire-and-forget never mints handles for results.
	if h.registries.Objects.Len() != 0 {
		t.Fatalf("objects registry holds %d entries", h.registries.Objects.Len())
	}
}

func TestApply_FramingErrorNoPartialEffects(t *testing.T) {
	h := newHarness()

	if err := h.hosts.RegisterFunc("noop", func() {}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Valid make-function op, but the batch never closes.
	w := new(wire.StreamWriter).BeginBatch()
	w.MakeFunction(arena.Pack(0, 0), "noop")

	err := h.dispatcher.Apply(context.Background(), w.Ops, w.Text)
	if err == nil {
		t.Fatal("expected framing error")
	}
	if h.registries.Funcs.Len() != 0 {
		t.Fatal("truncated batch mutated the function registry")
	}
}

func TestInvoke_StaleHandle(t *testing.T) {
	h := newHarness()

	fn := h.registries.Funcs.Create(func(context.Context, []any) (any, error) {
		return true, nil
	})
	h.registries.Funcs.Destroy(fn)

	w := new(wire.StreamWriter).BeginBatch()
	w.InvokeHead(fn, boolHint()).BeginArgs().EndArgs().EndOp()
	w.EndBatch()

	err := h.dispatcher.Apply(context.Background(), w.Ops, w.Text)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindStaleHandle {
		t.Fatalf("wrong error: %v", err)
	}
}

func TestInvoke_ArgumentsDecoded(t *testing.T) {
	h := newHarness()

	var got []any
	fn := h.registries.Funcs.Create(func(_ context.Context, args []any) (any, error) {
		got = args
		return nil, nil
	})

	hint := wire.Hint{Arity: wire.ArityNone}
	w := new(wire.StreamWriter).BeginBatch()
	w.InvokeHead(fn, hint).BeginArgs().
		TextUTF8("hello").EndArg().
		Int(wire.TagU32, wire.TierEight, 9).EndArg().
		Null().EndArg().
		EndArgs().EndOp()
	w.EndBatch()

	if err := h.dispatcher.Apply(context.Background(), w.Ops, w.Text); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d args", len(got))
	}
	if got[0] != "hello" || got[1] != uint32(9) || got[2] != nil {
		t.Fatalf("args = %v", got)
	}
}

func TestMakeFunction_UnknownName(t *testing.T) {
	h := newHarness()

	w := new(wire.StreamWriter).BeginBatch()
	w.MakeFunction(arena.Pack(0, 0), "no.such.function")
	w.EndBatch()

	if err := h.dispatcher.Apply(context.Background(), w.Ops, w.Text); err == nil {
		t.Fatal("expected compile error")
	}
	if h.registries.Funcs.Len() != 0 {
		t.Fatal("failed compile mutated the registry")
	}
}

func TestTrace(t *testing.T) {
	handle := arena.Pack(4, 0)
	w := new(wire.StreamWriter).BeginBatch()
	w.MakeFunction(handle, "util.flag")
	w.InvokeHead(handle, boolHint()).BeginArgs().
		Bool(true).EndArg().
		TextUTF8("hi").EndArg().
		EndArgs().EndOp()
	w.EndBatch()

	traces, err := Trace(w.Ops, w.Text, nil)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if len(traces) != 2 {
		t.Fatalf("got %d traces", len(traces))
	}

	if traces[0].Op != "make-function" || traces[0].Name != "util.flag" {
		t.Fatalf("traces[0] = %+v", traces[0])
	}
	if traces[1].Op != "invoke" || traces[1].Arity != "single" {
		t.Fatalf("traces[1] = %+v", traces[1])
	}
	if len(traces[1].Args) != 2 || traces[1].Args[0] != "true" || traces[1].Args[1] != `"hi"` {
		t.Fatalf("args = %v", traces[1].Args)
	}
	if len(traces[1].Hint) != 1 || traces[1].Hint[0][0] != "bool" {
		t.Fatalf("hint = %v", traces[1].Hint)
	}
}

func TestTrace_NoExecution(t *testing.T) {
	w := new(wire.StreamWriter).BeginBatch()
	w.MakeFunction(arena.Pack(0, 0), "never.compiled")
	w.EndBatch()

	// Trace must succeed even though the name resolves to nothing.
	if _, err := Trace(w.Ops, w.Text, nil); err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
}
