package dispatch

import (
	"context"

	"github.com/wippyai/guest-bridge/arena"
)

// Func is the host-side callable shape every invokable function is adapted
// to. Arguments arrive as decoded wire values; the result is validated and
// encoded against the operation's return hint.
type Func func(ctx context.Context, args []any) (any, error)

// reservedExternals is the number of well-known external slots the guest
// addresses by fixed index without a prior host handout.
const reservedExternals = 5

// Registries groups the three handle tables one instance owns: invokable
// functions, generic host objects handed out as opaque references, and
// external resources with reserved low slots.
//
// Registries are owned by the instance wrapper and passed explicitly; there
// is no process-global table.
type Registries struct {
	Funcs     *arena.Arena[Func]
	Objects   *arena.Arena[any]
	Externals *arena.Arena[any]
}

// NewRegistries creates the three tables for a fresh instance.
func NewRegistries() *Registries {
	return &Registries{
		Funcs:     arena.New[Func](),
		Objects:   arena.New[any](),
		Externals: arena.NewReserved[any](reservedExternals),
	}
}

// Clear tears down every non-reserved entry in all three tables. Handles
// issued before Clear stay dead afterwards.
func (r *Registries) Clear() {
	r.Funcs.Clear()
	r.Objects.Clear()
	r.Externals.Clear()
}
