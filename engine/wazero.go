package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/errors"
)

// Guest export names the bridge requires from every module.
const (
	exportCreateAllocation = "create_allocation"
	exportAllocationStart  = "allocation_start_pointer"
	exportInvokeCallback   = "invoke_callback"
	exportMain             = "main"
)

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB
	// each). 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Engine wraps a wazero runtime with the bridge's host module installed.
type Engine struct {
	runtime wazero.Runtime
}

// New creates an engine with default configuration.
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates an engine with custom configuration and installs the
// "env" host module the guest imports its batch entry points from.
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	e := &Engine{runtime: runtime}

	if err := e.installHostModule(ctx); err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

// Load compiles a wasm module.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// Close releases the runtime and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Module is a compiled wasm module ready to instantiate.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Instantiate creates a fresh instance. The guest's start section is not
// run implicitly; Main drives the guest entry point explicitly.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	mem := instance.Memory()
	if mem == nil {
		_ = instance.Close(ctx)
		return nil, errors.Load("module exports no memory", nil)
	}

	exports, err := resolveExports(instance)
	if err != nil {
		_ = instance.Close(ctx)
		return nil, err
	}

	return &Instance{
		module:  instance,
		memory:  &WazeroMemory{mem: mem},
		exports: exports,
	}, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instance is one live guest with its memory and export adapters.
type Instance struct {
	module  api.Module
	memory  *WazeroMemory
	exports *guestExports
}

// Memory returns the instance's linear memory adapter.
func (i *Instance) Memory() guestbridge.Memory {
	return i.memory
}

// Exports returns the instance's guest export adapter.
func (i *Instance) Exports() guestbridge.GuestExports {
	return i.exports
}

// Main runs the guest entry point.
func (i *Instance) Main(ctx context.Context) error {
	return i.exports.Main(ctx)
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	if i.module == nil {
		return nil
	}
	err := i.module.Close(ctx)
	i.module = nil
	i.memory = nil
	i.exports = nil
	return err
}

// resolveExports binds the four required guest exports. A missing export is
// a load error at instantiation, not a nil panic later.
func resolveExports(mod api.Module) (*guestExports, error) {
	g := &guestExports{}
	for _, binding := range []struct {
		name string
		dst  *api.Function
	}{
		{exportCreateAllocation, &g.createAllocation},
		{exportAllocationStart, &g.allocationStart},
		{exportInvokeCallback, &g.invokeCallback},
		{exportMain, &g.main},
	} {
		fn := mod.ExportedFunction(binding.name)
		if fn == nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
				Detail("guest does not export %q", binding.name).
				Build()
		}
		*binding.dst = fn
	}
	return g, nil
}

// guestExports adapts the guest's raw wasm exports to the bridge interface.
type guestExports struct {
	createAllocation api.Function
	allocationStart  api.Function
	invokeCallback   api.Function
	main             api.Function
}

func (g *guestExports) CreateAllocation(ctx context.Context, size uint32) (uint64, error) {
	results, err := g.createAllocation.Call(ctx, uint64(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "guest create_allocation")
	}
	if len(results) != 1 {
		return 0, errors.InvalidData(errors.PhaseMemory, nil, "create_allocation returned no handle")
	}
	return results[0], nil
}

func (g *guestExports) AllocationStartPointer(ctx context.Context, handle uint64) (uint32, error) {
	results, err := g.allocationStart.Call(ctx, handle)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "guest allocation_start_pointer")
	}
	if len(results) != 1 {
		return 0, errors.InvalidData(errors.PhaseMemory, nil, "allocation_start_pointer returned no pointer")
	}
	return uint32(results[0]), nil
}

func (g *guestExports) InvokeCallback(ctx context.Context, callback uint64, payloadPtr uint32) error {
	if _, err := g.invokeCallback.Call(ctx, callback, uint64(payloadPtr)); err != nil {
		return errors.Wrap(errors.PhaseCallback, errors.KindInvalidData, err, "guest invoke_callback")
	}
	return nil
}

func (g *guestExports) Main(ctx context.Context) error {
	if _, err := g.main.Call(ctx); err != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "guest main")
	}
	return nil
}

// WazeroMemory wraps wazero memory to implement guestbridge.Memory.
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), uint64(length), uint64(m.Size()))
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), uint64(len(data)), uint64(m.Size()))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), 4, uint64(m.Size()))
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), 8, uint64(m.Size()))
	}
	return val, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), 4, uint64(m.Size()))
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(offset), 8, uint64(m.Size()))
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Compile-time check that WazeroMemory implements guestbridge.Memory and MemorySizer
var _ guestbridge.Memory = (*WazeroMemory)(nil)
var _ guestbridge.MemorySizer = (*WazeroMemory)(nil)
