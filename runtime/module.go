package runtime

import (
	"context"

	"github.com/wippyai/guest-bridge/engine"
)

// Module is a compiled wasm module bound to its runtime.
type Module struct {
	runtime *Runtime
	module  *engine.Module
}

// Instantiate creates a live instance with its own registries, string cache,
// memory accessor, dispatcher, and async bridge.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	guest, err := m.module.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return newInstance(guest, m.runtime.hosts), nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.module.Close(ctx)
}
