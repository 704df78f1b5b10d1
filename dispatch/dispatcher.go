package dispatch

import (
	"context"
	"fmt"
	"sync"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/arena"
	"github.com/wippyai/guest-bridge/errors"
	"github.com/wippyai/guest-bridge/hostmem"
	"github.com/wippyai/guest-bridge/text"
	"github.com/wippyai/guest-bridge/wire"

	"go.uber.org/zap"
)

// Config assembles the collaborators a dispatcher needs. Registries, Cache,
// and Memory are required; Accessor is required for returning batches that
// emit raw text replies; Bridge is required only when batches carry async
// invokes.
type Config struct {
	Registries *Registries
	Compiler   Compiler
	Cache      *text.Cache
	Memory     guestbridge.Memory
	Accessor   *hostmem.Accessor
	Bridge     *Bridge
}

// Dispatcher executes operation batches. A batch is decoded and staged in
// full before anything executes, so a framing or decode error can never
// leave partial effects behind: either the whole frame verifies or nothing
// runs.
//
// Batches run under one mutex, and the async bridge encodes its settlements
// under the same mutex, so the registries, the string cache, and guest
// memory are never mutated from two threads at once. Batches never nest: a
// guest callback may dispatch a fresh batch only because the bridge releases
// the mutex before calling into the guest.
type Dispatcher struct {
	mu         sync.Mutex
	registries *Registries
	compiler   Compiler
	cache      *text.Cache
	memory     guestbridge.Memory
	accessor   *hostmem.Accessor
	bridge     *Bridge
}

// New creates a dispatcher and, when a bridge is supplied, binds it as the
// bridge's encoding sink.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		registries: cfg.Registries,
		compiler:   cfg.Compiler,
		cache:      cfg.Cache,
		memory:     cfg.Memory,
		accessor:   cfg.Accessor,
		bridge:     cfg.Bridge,
	}
	if d.bridge != nil {
		d.bridge.bindSink(d)
	}
	return d
}

// stagedOp is one decoded operation waiting for the execution stage.
type stagedOp struct {
	op       byte
	target   arena.Handle // function slot (make-function) or callee (invoke)
	name     string       // make-function source name
	callback uint64       // invoke-async callback handle
	hint     wire.Hint
	args     []any
}

// stage walks the full batch frame and decodes every operation. No registry
// is touched and no function runs until the closing marker has been seen.
func (d *Dispatcher) stage(ops, textBuf []byte) ([]stagedOp, error) {
	src := &wire.Source{Ops: ops, Text: textBuf, Memory: d.memory, Cache: d.cache}

	marker, cursor, err := src.ReadByte(0)
	if err != nil {
		return nil, err
	}
	if marker != wire.OpsBegin {
		return nil, errors.Framing(errors.PhaseDecode, 0, wire.OpsBegin, marker)
	}

	var staged []stagedOp
	for {
		var opID byte
		opID, cursor, err = src.ReadByte(cursor)
		if err != nil {
			return nil, err
		}
		if opID == wire.OpsStop {
			return staged, nil
		}

		var op stagedOp
		op, cursor, err = d.stageOp(src, opID, cursor)
		if err != nil {
			return nil, err
		}

		marker, cursor, err = src.ReadByte(cursor)
		if err != nil {
			return nil, err
		}
		if marker != wire.OpEnd {
			return nil, errors.Framing(errors.PhaseDecode, cursor-1, wire.OpEnd, marker)
		}
		staged = append(staged, op)
	}
}

func (d *Dispatcher) stageOp(src *wire.Source, opID byte, cursor int) (stagedOp, int, error) {
	op := stagedOp{op: opID}

	switch opID {
	case wire.OpMakeFunction:
		raw, cursor, err := src.ReadU64(cursor)
		if err != nil {
			return op, 0, err
		}
		op.target = arena.Handle(raw)

		start, cursor, err := src.ReadU32(cursor)
		if err != nil {
			return op, 0, err
		}
		length, cursor, err := src.ReadU32(cursor)
		if err != nil {
			return op, 0, err
		}
		raw2, err := src.TextRegion(start, length)
		if err != nil {
			return op, 0, err
		}
		op.name, err = text.Decode(raw2, text.UTF8)
		if err != nil {
			return op, 0, err
		}
		return op, cursor, nil

	case wire.OpInvoke:
		raw, cursor, err := src.ReadU64(cursor)
		if err != nil {
			return op, 0, err
		}
		op.target = arena.Handle(raw)
		return d.stageCall(src, op, cursor)

	case wire.OpInvokeAsync:
		raw, cursor, err := src.ReadU64(cursor)
		if err != nil {
			return op, 0, err
		}
		op.target = arena.Handle(raw)

		op.callback, cursor, err = src.ReadU64(cursor)
		if err != nil {
			return op, 0, err
		}
		return d.stageCall(src, op, cursor)

	default:
		return op, 0, errors.New(errors.PhaseDecode, errors.KindFraming).
			Detail("unknown operation id %d", opID).
			Value(opID).
			Build()
	}
}

func (d *Dispatcher) stageCall(src *wire.Source, op stagedOp, cursor int) (stagedOp, int, error) {
	var err error
	op.hint, cursor, err = wire.ParseHint(src, cursor)
	if err != nil {
		return op, 0, err
	}
	op.args, cursor, err = wire.DecodeArgs(src, cursor)
	if err != nil {
		return op, 0, err
	}
	return op, cursor, nil
}

// Apply executes a fire-and-forget batch: results are validated against
// their hints but no reply is produced.
func (d *Dispatcher) Apply(ctx context.Context, ops, textBuf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	staged, err := d.stage(ops, textBuf)
	if err != nil {
		return err
	}
	for i := range staged {
		if err := d.execute(ctx, &staged[i], nil); err != nil {
			return err
		}
	}
	return nil
}

// ApplyReturning executes a returning batch and produces the group-encoded
// reply bytes.
func (d *Dispatcher) ApplyReturning(ctx context.Context, ops, textBuf []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	staged, err := d.stage(ops, textBuf)
	if err != nil {
		return nil, err
	}

	group := wire.NewGroupWriter(wire.NewBuffer())
	for i := range staged {
		if err := d.execute(ctx, &staged[i], group); err != nil {
			return nil, err
		}
	}
	return group.Finish(), nil
}

func (d *Dispatcher) execute(ctx context.Context, op *stagedOp, group *wire.GroupWriter) error {
	switch op.op {
	case wire.OpMakeFunction:
		if d.compiler == nil {
			return errors.NotInitialized(errors.PhaseDispatch, "compiler")
		}
		fn, err := d.compiler.Compile(op.name)
		if err != nil {
			return errors.Wrap(errors.PhaseDispatch, errors.KindNotFound, err,
				"compile function "+op.name)
		}
		if !d.registries.Funcs.StoreAt(op.target, fn) {
			return errors.StaleHandle(errors.PhaseRegistry, uint64(op.target))
		}
		return nil

	case wire.OpInvoke:
		fn, ok := d.registries.Funcs.Get(op.target)
		if !ok {
			return errors.StaleHandle(errors.PhaseDispatch, uint64(op.target))
		}
		result, err := fn(ctx, op.args)
		if err != nil {
			return errors.Wrap(errors.PhaseDispatch, errors.KindInvalidData, err, "function call failed")
		}
		if group == nil {
			return op.hint.Validate(result)
		}
		values, err := op.hint.ResolveResult(ctx, d, result)
		if err != nil {
			return err
		}
		group.Add(op.hint.Arity, values)
		return nil

	default: // wire.OpInvokeAsync
		if d.bridge == nil {
			return errors.NotInitialized(errors.PhaseDispatch, "async bridge")
		}
		fn, ok := d.registries.Funcs.Get(op.target)
		if !ok {
			return errors.StaleHandle(errors.PhaseDispatch, uint64(op.target))
		}
		result, err := fn(ctx, op.args)
		if err != nil {
			return errors.Wrap(errors.PhaseDispatch, errors.KindInvalidData, err, "async producer failed to start")
		}
		deferred, ok := result.(*Deferred)
		if !ok {
			return errors.TypeMismatch(errors.PhaseDispatch, nil,
				"async function must return a deferred result")
		}
		d.bridge.Watch(ctx, op.callback, op.hint, deferred)
		Logger().Debug("async call pending",
			zap.Uint64("callback", op.callback),
			zap.Uint64("function", uint64(op.target)))
		return nil
	}
}

// Sink implementation: the dispatcher supplies the side effects result
// encoding needs.

func (d *Dispatcher) InternString(s string) uint32 {
	return d.cache.Intern(s)
}

func (d *Dispatcher) AllocString(ctx context.Context, s string) (uint32, uint32, error) {
	if d.accessor == nil {
		return 0, 0, errors.NotInitialized(errors.PhaseEncode, "memory accessor")
	}
	_, ptr, err := d.accessor.Write(ctx, []byte(s))
	if err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), nil
}

func (d *Dispatcher) StoreFunc(v any) (arena.Handle, bool) {
	fn, err := adaptFunc(v)
	if err != nil {
		return 0, false
	}
	return d.registries.Funcs.Create(fn), true
}

func (d *Dispatcher) StoreObject(v any) arena.Handle {
	return d.registries.Objects.Create(v)
}

// OpTrace is the decoded shape of one operation, for inspection tooling.
// Traces serialize to CBOR for offline analysis.
type OpTrace struct {
	Op       string     `cbor:"op" json:"op"`
	Target   uint64     `cbor:"target,omitempty" json:"target,omitempty"`
	Name     string     `cbor:"name,omitempty" json:"name,omitempty"`
	Callback uint64     `cbor:"callback,omitempty" json:"callback,omitempty"`
	Arity    string     `cbor:"arity,omitempty" json:"arity,omitempty"`
	Hint     [][]string `cbor:"hint,omitempty" json:"hint,omitempty"`
	Args     []string   `cbor:"args,omitempty" json:"args,omitempty"`
}

// Trace decodes a batch without executing anything: no registry is touched
// and no function runs. When mem is nil, typed array payloads decode against
// an all-zero stand-in memory so the walk can continue without a live guest.
func Trace(ops, textBuf []byte, mem guestbridge.Memory) ([]OpTrace, error) {
	if mem == nil {
		mem = zeroMemory{}
	}
	d := &Dispatcher{memory: mem, cache: text.NewCache()}

	staged, err := d.stage(ops, textBuf)
	if err != nil {
		return nil, err
	}

	traces := make([]OpTrace, 0, len(staged))
	for _, op := range staged {
		tr := OpTrace{Target: uint64(op.target)}
		switch op.op {
		case wire.OpMakeFunction:
			tr.Op = "make-function"
			tr.Name = op.name
		case wire.OpInvoke:
			tr.Op = "invoke"
		default:
			tr.Op = "invoke-async"
			tr.Callback = op.callback
		}

		if op.op != wire.OpMakeFunction {
			tr.Arity = op.hint.Arity.String()
			for _, st := range op.hint.States {
				accepted := make([]string, len(st.Accepted))
				for i, tag := range st.Accepted {
					accepted[i] = tag.String()
				}
				tr.Hint = append(tr.Hint, accepted)
			}
			for _, arg := range op.args {
				tr.Args = append(tr.Args, formatArg(arg))
			}
		}
		traces = append(traces, tr)
	}
	return traces, nil
}

func formatArg(v any) string {
	switch a := v.(type) {
	case nil:
		return "null"
	case wire.Undefined:
		return "undefined"
	case string:
		return fmt.Sprintf("%q", a)
	case *wire.TypedArray:
		mode := "copy"
		if a.Shared {
			mode = "view"
		}
		return fmt.Sprintf("%s[%d bytes, %s]", a.Elem, len(a.Data), mode)
	}
	return fmt.Sprintf("%v", v)
}

// traceArrayLimit caps array materialization during a trace; trace inputs
// are untrusted files, not live guest memory.
const traceArrayLimit = 1 << 20

// zeroMemory reads as all zeroes and rejects writes. It stands in for guest
// memory when tracing a batch offline.
type zeroMemory struct{}

func (zeroMemory) Read(_ uint32, length uint32) ([]byte, error) {
	if length > traceArrayLimit {
		return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"trace"}, 0, uint64(length), traceArrayLimit)
	}
	return make([]byte, length), nil
}

func (zeroMemory) Write(uint32, []byte) error {
	return errors.Unsupported(errors.PhaseMemory, "trace memory is read-only")
}

func (zeroMemory) ReadU8(uint32) (uint8, error)   { return 0, nil }
func (zeroMemory) ReadU16(uint32) (uint16, error) { return 0, nil }
func (zeroMemory) ReadU32(uint32) (uint32, error) { return 0, nil }
func (zeroMemory) ReadU64(uint32) (uint64, error) { return 0, nil }

func (zeroMemory) WriteU8(uint32, uint8) error {
	return errors.Unsupported(errors.PhaseMemory, "trace memory is read-only")
}
func (zeroMemory) WriteU16(uint32, uint16) error {
	return errors.Unsupported(errors.PhaseMemory, "trace memory is read-only")
}
func (zeroMemory) WriteU32(uint32, uint32) error {
	return errors.Unsupported(errors.PhaseMemory, "trace memory is read-only")
}
func (zeroMemory) WriteU64(uint32, uint64) error {
	return errors.Unsupported(errors.PhaseMemory, "trace memory is read-only")
}
