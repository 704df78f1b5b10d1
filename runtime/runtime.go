package runtime

import (
	"context"

	"github.com/wippyai/guest-bridge/dispatch"
	"github.com/wippyai/guest-bridge/engine"
)

// Runtime owns the wasm engine and the host function registry shared by
// every module loaded through it.
type Runtime struct {
	engine *engine.Engine
	hosts  *dispatch.HostRegistry
}

// New creates a runtime with default engine configuration.
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a runtime with custom engine configuration.
func NewWithConfig(ctx context.Context, cfg *engine.Config) (*Runtime, error) {
	eng, err := engine.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		engine: eng,
		hosts:  dispatch.NewHostRegistry(),
	}, nil
}

// RegisterFunc registers a host function the guest can bind with a
// register-function operation.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	return r.hosts.RegisterFunc(name, fn)
}

// RegisterHost registers every exported method of h under its namespace.
func (r *Runtime) RegisterHost(h dispatch.Host) error {
	return r.hosts.RegisterHost(h)
}

// Load compiles a wasm module.
func (r *Runtime) Load(ctx context.Context, wasmBytes []byte) (*Module, error) {
	mod, err := r.engine.Load(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	return &Module{runtime: r, module: mod}, nil
}

// Close releases the engine and every module and instance created from it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}
