package text

import (
	"context"
	"testing"

	"github.com/wippyai/guest-bridge/errors"
)

func TestDecode_UTF8(t *testing.T) {
	s, err := Decode([]byte("héllo"), UTF8)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s != "héllo" {
		t.Fatalf("got %q", s)
	}
}

func TestDecode_InvalidUTF8(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xfe, 0xfd}, UTF8)
	if err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
	var e *errors.Error
	if !errorsAs(err, &e) || e.Kind != errors.KindInvalidUTF8 {
		t.Fatalf("wrong error: %v", err)
	}
}

func TestDecode_UTF16(t *testing.T) {
	// "hi☃" as little-endian UTF-16 code units.
	data := []byte{0x68, 0x00, 0x69, 0x00, 0x03, 0x26}
	s, err := Decode(data, UTF16)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s != "hi☃" {
		t.Fatalf("got %q", s)
	}
}

func TestDecode_UTF16SurrogatePair(t *testing.T) {
	// U+1F600 as a surrogate pair D83D DE00.
	data := []byte{0x3D, 0xD8, 0x00, 0xDE}
	s, err := Decode(data, UTF16)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s != "\U0001F600" {
		t.Fatalf("got %q", s)
	}
}

func TestDecode_UTF16OddLength(t *testing.T) {
	_, err := Decode([]byte{0x68, 0x00, 0x69}, UTF16)
	if err == nil {
		t.Fatal("expected error for odd-length UTF-16")
	}
}

func TestDecode_UnknownEncoding(t *testing.T) {
	_, err := Decode([]byte("x"), Encoding(7))
	if err == nil {
		t.Fatal("expected error for unknown encoding indicator")
	}
	var e *errors.Error
	if !errorsAs(err, &e) || e.Kind != errors.KindInvalidEncoding {
		t.Fatalf("wrong error: %v", err)
	}
}

type fakeWriter struct {
	data []byte
	fail bool
}

func (w *fakeWriter) Write(_ context.Context, data []byte) (uint64, uint32, error) {
	if w.fail {
		return 0, 0, errors.AllocationFailed(errors.PhaseMemory, uint32(len(data)), nil)
	}
	w.data = append([]byte(nil), data...)
	return 42, 1024, nil
}

func TestEncode(t *testing.T) {
	w := &fakeWriter{}
	handle, ptr, err := Encode(context.Background(), w, "payload")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if handle != 42 || ptr != 1024 {
		t.Fatalf("got handle=%d ptr=%d", handle, ptr)
	}
	if string(w.data) != "payload" {
		t.Fatalf("written bytes = %q", w.data)
	}
}

func TestEncode_AllocationFailure(t *testing.T) {
	w := &fakeWriter{fail: true}
	_, _, err := Encode(context.Background(), w, "payload")
	if err == nil {
		t.Fatal("expected allocation error")
	}
}

// errorsAs avoids importing both stdlib errors and the local package under
// clashing names in every test.
func errorsAs(err error, target *(*errors.Error)) bool {
	for err != nil {
		if e, ok := err.(*errors.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
