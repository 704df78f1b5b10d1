package text

import (
	"context"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/wippyai/guest-bridge/errors"
)

// Encoding selects how raw guest bytes are interpreted as text. Only the two
// declared values are legal; anything else is a hard error.
type Encoding uint32

const (
	UTF8  Encoding = 0
	UTF16 Encoding = 1
)

// MemoryWriter copies bytes into a fresh guest allocation and returns the
// allocation handle plus the start pointer. Implemented by hostmem.Accessor.
type MemoryWriter interface {
	Write(ctx context.Context, data []byte) (handle uint64, ptr uint32, err error)
}

// Decode produces a host-native string from raw guest bytes. UTF-16 input is
// little-endian code units; an odd byte length is rejected.
func Decode(data []byte, encoding Encoding) (string, error) {
	switch encoding {
	case UTF8:
		if !utf8.Valid(data) {
			return "", errors.InvalidUTF8(errors.PhaseText, data)
		}
		return string(data), nil

	case UTF16:
		if len(data)%2 != 0 {
			return "", errors.InvalidUTF16(errors.PhaseText, "odd byte length for UTF-16 data")
		}
		units := make([]uint16, len(data)/2)
		for i := range units {
			units[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
		}
		return string(utf16.Decode(units)), nil

	default:
		return "", errors.InvalidEncoding(errors.PhaseText, uint32(encoding))
	}
}

// Encode copies the UTF-8 bytes of s into a fresh guest allocation and
// returns the allocation handle and start pointer for the guest to read.
func Encode(ctx context.Context, w MemoryWriter, s string) (uint64, uint32, error) {
	handle, ptr, err := w.Write(ctx, []byte(s))
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseText, errors.KindAllocation, err, "encode string into guest memory")
	}
	return handle, ptr, nil
}
