package dispatch

import (
	"context"
	"sync"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/hostmem"
	"github.com/wippyai/guest-bridge/wire"

	"go.uber.org/zap"
)

// Deferred is the result an async producer returns before its value exists.
// The producer settles it exactly once with Resolve or Reject; later calls
// are ignored.
type Deferred struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolve settles the deferred with a value.
func (d *Deferred) Resolve(value any) {
	d.once.Do(func() {
		d.value = value
		close(d.done)
	})
}

// Reject settles the deferred with a failure.
func (d *Deferred) Reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// pendingCall is one dispatched async invoke awaiting settlement. The return
// hint is kept so the eventual value can be validated and encoded exactly as
// a synchronous result would be.
type pendingCall struct {
	hint wire.Hint
}

// Bridge carries async results back into the guest. Each watched call gets a
// goroutine that waits for settlement, encodes the outcome into the
// single-reply format, copies it into a fresh guest allocation, and invokes
// the guest's callback export with the payload pointer.
//
// Two locks are in play. mu covers the pending map. exclusive is the
// dispatcher's batch mutex: encoding mints registry handles, interns
// strings, and writes guest memory, so it must never overlap a running
// batch. Neither lock is held across the callback into the guest; the guest
// may react to a delivery by dispatching a fresh batch.
type Bridge struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	pending   map[uint64]*pendingCall
	sink      wire.Sink
	exclusive *sync.Mutex
	accessor  *hostmem.Accessor
	exports   guestbridge.GuestExports
}

// NewBridge creates a bridge delivering through the given accessor and guest
// exports. The encoding sink and the batch mutex are bound later by the
// dispatcher that owns the registries.
func NewBridge(accessor *hostmem.Accessor, exports guestbridge.GuestExports) *Bridge {
	return &Bridge{
		pending:  make(map[uint64]*pendingCall),
		accessor: accessor,
		exports:  exports,
	}
}

func (b *Bridge) bindSink(d *Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = d
	b.exclusive = &d.mu
}

// Watch registers a pending call for the callback handle and spawns its
// settlement waiter. The entry is removed only when the deferred settles;
// there is no cancellation path.
func (b *Bridge) Watch(ctx context.Context, callback uint64, hint wire.Hint, d *Deferred) {
	b.mu.Lock()
	b.pending[callback] = &pendingCall{hint: hint}
	b.mu.Unlock()

	// Delivery outlives the batch that dispatched the call.
	ctx = context.WithoutCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-d.done
		b.settle(ctx, callback, d.value, d.err)
	}()
}

// Pending returns the number of calls awaiting settlement.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Drain blocks until every outstanding call has settled and delivered, or
// the context expires. Draining never cancels producers.
func (b *Bridge) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle encodes one outcome and delivers it to the guest callback. Failures
// past this point are logged and swallowed: a misbehaving guest callback
// must never take the host down.
func (b *Bridge) settle(ctx context.Context, callback uint64, value any, cause error) {
	b.mu.Lock()
	pc, ok := b.pending[callback]
	if ok {
		delete(b.pending, callback)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	ptr, ok := b.encodePayload(ctx, callback, pc.hint, value, cause)
	if !ok {
		return
	}

	// No lock is held here: the callback can dispatch a fresh batch, which
	// takes the batch mutex itself.
	if err := b.exports.InvokeCallback(ctx, callback, ptr); err != nil {
		Logger().Warn("guest callback failed",
			zap.Uint64("callback", callback),
			zap.Error(err))
	}
}

// encodePayload encodes one outcome and copies it into a fresh guest
// allocation, all under the batch mutex.
func (b *Bridge) encodePayload(ctx context.Context, callback uint64, hint wire.Hint, value any, cause error) (uint32, bool) {
	b.exclusive.Lock()
	defer b.exclusive.Unlock()

	buf := wire.NewBuffer()
	switch {
	case cause != nil:
		wire.AppendErrorReply(buf, wire.ErrCodeProducerRejected)
		Logger().Debug("async producer rejected",
			zap.Uint64("callback", callback),
			zap.Error(cause))
	default:
		values, err := hint.ResolveResult(ctx, b.sink, value)
		if err != nil {
			Logger().Warn("async result encoding failed",
				zap.Uint64("callback", callback),
				zap.Error(err))
			buf.Reset()
			wire.AppendErrorReply(buf, wire.ErrCodeEncodeFailed)
		} else {
			wire.AppendSingleReply(buf, values)
		}
	}

	_, ptr, err := b.accessor.Write(ctx, buf.Bytes())
	if err != nil {
		Logger().Warn("async payload allocation failed",
			zap.Uint64("callback", callback),
			zap.Error(err))

		// Fall back to the smallest possible payload so the guest still
		// learns the call is dead.
		fallback := wire.NewBuffer()
		wire.AppendErrorReply(fallback, wire.ErrCodeDeliveryFailed)
		if _, ptr, err = b.accessor.Write(ctx, fallback.Bytes()); err != nil {
			Logger().Error("async delivery abandoned",
				zap.Uint64("callback", callback),
				zap.Error(err))
			return 0, false
		}
	}
	return ptr, true
}
