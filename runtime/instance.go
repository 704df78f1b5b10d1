package runtime

import (
	"context"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/dispatch"
	"github.com/wippyai/guest-bridge/engine"
	"github.com/wippyai/guest-bridge/hostmem"
	"github.com/wippyai/guest-bridge/text"
)

// guestInstance is the slice of an engine instance the wrapper needs.
// Satisfied by *engine.Instance; tests substitute an in-process fake.
type guestInstance interface {
	Memory() guestbridge.Memory
	Exports() guestbridge.GuestExports
	Main(ctx context.Context) error
	Close(ctx context.Context) error
}

// Instance is one live guest with the full bridge assembled around it:
// registries, string cache, memory accessor, dispatcher, and async bridge.
// All of it is torn down with the instance.
type Instance struct {
	guest      guestInstance
	registries *dispatch.Registries
	cache      *text.Cache
	accessor   *hostmem.Accessor
	dispatcher *dispatch.Dispatcher
	bridge     *dispatch.Bridge
}

func newInstance(guest guestInstance, hosts *dispatch.HostRegistry) *Instance {
	mem := guest.Memory()
	exports := guest.Exports()
	accessor := hostmem.New(mem, exports)
	registries := dispatch.NewRegistries()
	cache := text.NewCache()
	bridge := dispatch.NewBridge(accessor, exports)

	dispatcher := dispatch.New(dispatch.Config{
		Registries: registries,
		Compiler:   hosts,
		Cache:      cache,
		Memory:     mem,
		Accessor:   accessor,
		Bridge:     bridge,
	})

	return &Instance{
		guest:      guest,
		registries: registries,
		cache:      cache,
		accessor:   accessor,
		dispatcher: dispatcher,
		bridge:     bridge,
	}
}

// withState attaches the instance's dispatcher to the context so the "env"
// host functions can reach it from inside a guest call.
func (i *Instance) withState(ctx context.Context) context.Context {
	return engine.WithDispatcher(ctx, i.dispatcher, i.accessor)
}

// Run executes the guest entry point.
func (i *Instance) Run(ctx context.Context) error {
	return i.guest.Main(i.withState(ctx))
}

// Apply executes a fire-and-forget batch from the host side. Used by tests
// and tooling; guests normally enter through the env host functions.
func (i *Instance) Apply(ctx context.Context, ops, textBuf []byte) error {
	return i.dispatcher.Apply(i.withState(ctx), ops, textBuf)
}

// ApplyReturning executes a returning batch from the host side.
func (i *Instance) ApplyReturning(ctx context.Context, ops, textBuf []byte) ([]byte, error) {
	return i.dispatcher.ApplyReturning(i.withState(ctx), ops, textBuf)
}

// Drain blocks until every outstanding async call has settled and delivered,
// or the context expires.
func (i *Instance) Drain(ctx context.Context) error {
	return i.bridge.Drain(ctx)
}

// Close tears down the registries and cache and releases the guest. Handles
// issued by this instance are dead afterwards.
func (i *Instance) Close(ctx context.Context) error {
	i.registries.Clear()
	i.cache.Clear()
	return i.guest.Close(ctx)
}
