package engine

import (
	"context"
	"testing"

	"github.com/wippyai/guest-bridge/dispatch"
	"github.com/wippyai/guest-bridge/text"
)

func TestDispatcherContextPlumbing(t *testing.T) {
	d := dispatch.New(dispatch.Config{
		Registries: dispatch.NewRegistries(),
		Cache:      text.NewCache(),
	})

	ctx := WithDispatcher(context.Background(), d, nil)
	st, ok := batchStateFrom(ctx)
	if !ok {
		t.Fatal("dispatcher not recoverable from context")
	}
	if st.dispatcher != d {
		t.Fatal("wrong dispatcher in context")
	}

	if _, ok := batchStateFrom(context.Background()); ok {
		t.Fatal("bare context must not carry a dispatcher")
	}
}
