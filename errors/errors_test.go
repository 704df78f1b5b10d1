package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(PhaseDecode, KindOutOfBounds).
		Path("op[1]", "arg[0]").
		Detail("range [10, 20) exceeds buffer size 12").
		Build()

	got := err.Error()
	if !strings.HasPrefix(got, "[decode] out_of_bounds at op[1].arg[0]:") {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestError_CauseChain(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(PhaseCallback, KindAllocation, cause, "write payload")

	if !strings.Contains(err.Error(), "caused by: boom") {
		t.Fatalf("cause missing from message: %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to match the cause")
	}
}

func TestError_Is(t *testing.T) {
	a := Framing(PhaseDispatch, 0, 0x00, 0x42)
	b := &Error{Phase: PhaseDispatch, Kind: KindFraming}

	if !stderrors.Is(a, b) {
		t.Fatal("same phase+kind should match")
	}

	c := &Error{Phase: PhaseDecode, Kind: KindFraming}
	if stderrors.Is(a, c) {
		t.Fatal("different phase should not match")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		kind Kind
	}{
		{Framing(PhaseDispatch, 3, 0xFF, 0x01), KindFraming},
		{Truncated(PhaseDecode, 5, 8, 2), KindFraming},
		{UnknownTag(PhaseDecode, 7, 0x63), KindUnknownTag},
		{UnknownTier(PhaseDecode, 8, 9), KindUnknownTag},
		{StaleHandle(PhaseRegistry, 0xdeadbeef), KindStaleHandle},
		{OutOfBounds(PhaseMemory, nil, 100, 50, 120), KindOutOfBounds},
		{InvalidUTF8(PhaseText, []byte{0xff, 0xfe}), KindInvalidUTF8},
		{InvalidUTF16(PhaseText, "odd byte length"), KindInvalidUTF16},
		{InvalidEncoding(PhaseText, 7), KindInvalidEncoding},
		{Overflow(PhaseEncode, 1<<40, "32-bit slot"), KindOverflow},
		{AllocationFailed(PhaseMemory, 64, nil), KindAllocation},
		{ArityMismatch(PhaseValidate, "expected no value"), KindArityMismatch},
		{TypeMismatch(PhaseValidate, nil, "no accepted tag matches bool"), KindTypeMismatch},
		{NotFound(PhaseHost, "function", "add"), KindNotFound},
		{Unsupported(PhaseDecode, "128-bit view arrays"), KindUnsupported},
	}

	for _, tt := range tests {
		if tt.err.Kind != tt.kind {
			t.Errorf("constructor produced kind %q, want %q", tt.err.Kind, tt.kind)
		}
		if tt.err.Error() == "" {
			t.Errorf("empty message for kind %q", tt.kind)
		}
	}
}
