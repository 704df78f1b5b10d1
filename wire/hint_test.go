package wire

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/guest-bridge/errors"
)

func parseHint(t *testing.T, h Hint) Hint {
	t.Helper()
	w := new(StreamWriter).Hint(h)
	got, next, err := ParseHint(newSource(w, nil), 0)
	if err != nil {
		t.Fatalf("ParseHint failed: %v", err)
	}
	if next != len(w.Ops) {
		t.Fatalf("cursor = %d, want %d", next, len(w.Ops))
	}
	return got
}

func TestParseHint_None(t *testing.T) {
	got := parseHint(t, Hint{Arity: ArityNone})
	if got.Arity != ArityNone || len(got.States) != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseHint_Single(t *testing.T) {
	got := parseHint(t, Hint{
		Arity:  AritySingle,
		States: []State{{Accepted: []Tag{TagBool}}},
	})
	if got.Arity != AritySingle || len(got.States) != 1 {
		t.Fatalf("got %+v", got)
	}
	if len(got.States[0].Accepted) != 1 || got.States[0].Accepted[0] != TagBool {
		t.Fatalf("state = %+v", got.States[0])
	}
}

func TestParseHint_List(t *testing.T) {
	got := parseHint(t, Hint{
		Arity:  ArityList,
		States: []State{{Accepted: []Tag{TagS8, TagS16, TagS32}}},
	})
	if got.Arity != ArityList {
		t.Fatalf("arity = %v", got.Arity)
	}
	if len(got.States[0].Accepted) != 3 {
		t.Fatalf("accepted = %v", got.States[0].Accepted)
	}
}

func TestParseHint_Multi(t *testing.T) {
	got := parseHint(t, Hint{
		Arity: ArityMulti,
		States: []State{
			{Accepted: []Tag{TagBool}},
			{Accepted: []Tag{TagU8, TagU32}},
			{Accepted: []Tag{TagCachedText}},
		},
	})
	if got.Arity != ArityMulti || len(got.States) != 3 {
		t.Fatalf("got %+v", got)
	}
	if got.States[1].Accepted[1] != TagU32 {
		t.Fatalf("state[1] = %+v", got.States[1])
	}
}

func TestParseHint_Errors(t *testing.T) {
	// Missing HintStart.
	w := new(StreamWriter).Byte(0).Byte(HintStop)
	if _, _, err := ParseHint(newSource(w, nil), 0); err == nil {
		t.Fatal("expected framing error")
	}

	// Unknown arity.
	w = new(StreamWriter).Byte(HintStart).Byte(9).Byte(HintStop)
	if _, _, err := ParseHint(newSource(w, nil), 0); err == nil {
		t.Fatal("expected arity error")
	}

	// State arity out of range.
	w = new(StreamWriter).Byte(HintStart).Byte(byte(AritySingle)).Byte(5).Byte(HintStop)
	if _, _, err := ParseHint(newSource(w, nil), 0); err == nil {
		t.Fatal("expected state arity error")
	}

	// Single hint without a state.
	w = new(StreamWriter).Byte(HintStart).Byte(byte(AritySingle)).Byte(HintStop)
	_, _, err := ParseHint(newSource(w, nil), 0)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindArityMismatch {
		t.Fatalf("wrong error: %v", err)
	}

	// Truncated before HintStop.
	w = new(StreamWriter).Byte(HintStart).Byte(byte(ArityNone))
	if _, _, err := ParseHint(newSource(w, nil), 0); err == nil {
		t.Fatal("expected truncation error")
	}
}
