package wire

import (
	"math"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/arena"
	"github.com/wippyai/guest-bridge/errors"
	"github.com/wippyai/guest-bridge/text"
)

// Source carries the buffers one batch decodes against: the operations
// buffer the cursor walks, the text buffer that (start, length) regions
// index, the guest memory that typed array payloads point into, and the
// string cache for cached-text ids.
type Source struct {
	Ops    []byte
	Text   []byte
	Memory guestbridge.Memory
	Cache  *text.Cache
}

// Cursor readers. All multibyte integers are little-endian. Every reader
// validates the remaining length before slicing; a corrupt length field is
// the only failure mode of a sequential decoder.

func (s *Source) ReadByte(cursor int) (byte, int, error) {
	if cursor >= len(s.Ops) {
		return 0, 0, errors.Truncated(errors.PhaseDecode, cursor, 1, len(s.Ops)-cursor)
	}
	return s.Ops[cursor], cursor + 1, nil
}

func (s *Source) ReadBytes(cursor, n int) ([]byte, int, error) {
	if cursor+n > len(s.Ops) {
		return nil, 0, errors.Truncated(errors.PhaseDecode, cursor, n, len(s.Ops)-cursor)
	}
	return s.Ops[cursor : cursor+n], cursor + n, nil
}

func (s *Source) ReadU32(cursor int) (uint32, int, error) {
	b, next, err := s.ReadBytes(cursor, 4)
	if err != nil {
		return 0, 0, err
	}
	return leU32(b), next, nil
}

func (s *Source) ReadU64(cursor int) (uint64, int, error) {
	b, next, err := s.ReadBytes(cursor, 8)
	if err != nil {
		return 0, 0, err
	}
	return leU64(b), next, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	return uint64(leU32(b)) | uint64(leU32(b[4:]))<<32
}

// TextRegion validates a (start, length) pair against the text buffer and
// returns the slice.
func (s *Source) TextRegion(start, length uint32) ([]byte, error) {
	if uint64(start)+uint64(length) > uint64(len(s.Text)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"text"}, uint64(start), uint64(length), uint64(len(s.Text)))
	}
	return s.Text[start : start+length], nil
}

// DecodeValue decodes exactly one tagged value starting at cursor and
// returns the value plus the cursor position after it. Decoding is purely
// sequential; there is no random access or backtracking.
func DecodeValue(s *Source, cursor int) (any, int, error) {
	tagByte, cursor, err := s.ReadByte(cursor)
	if err != nil {
		return nil, 0, err
	}
	tag := Tag(tagByte)

	switch {
	case tag == TagNull:
		return nil, cursor, nil

	case tag == TagUndefined:
		return Undefined{}, cursor, nil

	case tag == TagBool:
		b, next, err := s.ReadByte(cursor)
		if err != nil {
			return nil, 0, err
		}
		return b != 0, next, nil

	case tag == TagTextUTF8 || tag == TagTextUTF16 || tag == TagInternText:
		return s.decodeText(tag, cursor)

	case tag == TagCachedText:
		id, next, err := s.ReadU32(cursor)
		if err != nil {
			return nil, 0, err
		}
		str, ok := s.Cache.Lookup(id)
		if !ok {
			return nil, 0, errors.New(errors.PhaseDecode, errors.KindNotFound).
				Detail("cached text id %d not interned", id).
				Value(id).
				Build()
		}
		return str, next, nil

	case tag.IsInteger():
		return s.decodeInteger(tag, cursor)

	case tag == TagF32:
		bits, next, err := s.ReadU32(cursor)
		if err != nil {
			return nil, 0, err
		}
		return math.Float32frombits(bits), next, nil

	case tag == TagF64:
		bits, next, err := s.ReadU64(cursor)
		if err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(bits), next, nil

	case tag == TagExternRef:
		raw, next, err := s.ReadU64(cursor)
		if err != nil {
			return nil, 0, err
		}
		return ExternRef(arena.Handle(raw)), next, nil

	case tag == TagObjectRef:
		raw, next, err := s.ReadU64(cursor)
		if err != nil {
			return nil, 0, err
		}
		return ObjectRef(arena.Handle(raw)), next, nil

	case tag.IsArray():
		return s.decodeArray(tag, cursor)

	default:
		return nil, 0, errors.UnknownTag(errors.PhaseDecode, cursor-1, tagByte)
	}
}

func (s *Source) decodeText(tag Tag, cursor int) (any, int, error) {
	start, cursor, err := s.ReadU32(cursor)
	if err != nil {
		return nil, 0, err
	}
	length, cursor, err := s.ReadU32(cursor)
	if err != nil {
		return nil, 0, err
	}

	raw, err := s.TextRegion(start, length)
	if err != nil {
		return nil, 0, err
	}

	encoding := text.UTF8
	if tag == TagTextUTF16 {
		encoding = text.UTF16
	}
	str, err := text.Decode(raw, encoding)
	if err != nil {
		return nil, 0, err
	}

	if tag == TagInternText {
		s.Cache.Intern(str)
	}
	return str, cursor, nil
}

func (s *Source) decodeInteger(tag Tag, cursor int) (any, int, error) {
	tierByte, cursor, err := s.ReadByte(cursor)
	if err != nil {
		return nil, 0, err
	}
	tier := Tier(tierByte)

	width := tier.width(tag)
	if width < 0 {
		return nil, 0, errors.UnknownTier(errors.PhaseDecode, cursor-1, tierByte)
	}

	// 128-bit logical values: the full encoding is 16 bytes (lo, hi);
	// narrow tiers extend from a 64-bit-or-smaller payload.
	if tag == TagS128 || tag == TagU128 {
		return s.decode128(tag, cursor, width)
	}

	payload, cursor, err := s.ReadBytes(cursor, width)
	if err != nil {
		return nil, 0, err
	}

	bits := extend(payload, tag.IsSigned())

	switch tag {
	case TagS8:
		return int8(bits), cursor, nil
	case TagU8:
		return uint8(bits), cursor, nil
	case TagS16:
		return int16(bits), cursor, nil
	case TagU16:
		return uint16(bits), cursor, nil
	case TagS32:
		return int32(bits), cursor, nil
	case TagU32:
		return uint32(bits), cursor, nil
	case TagS64:
		return int64(bits), cursor, nil
	default: // TagU64
		return bits, cursor, nil
	}
}

func (s *Source) decode128(tag Tag, cursor, width int) (any, int, error) {
	var lo, hi uint64

	if width == 16 {
		var err error
		lo, cursor, err = s.ReadU64(cursor)
		if err != nil {
			return nil, 0, err
		}
		hi, cursor, err = s.ReadU64(cursor)
		if err != nil {
			return nil, 0, err
		}
	} else {
		payload, next, err := s.ReadBytes(cursor, width)
		if err != nil {
			return nil, 0, err
		}
		cursor = next
		lo = extend(payload, tag.IsSigned())
		if tag.IsSigned() && int64(lo) < 0 {
			hi = math.MaxUint64
		}
	}

	if tag == TagS128 {
		return S128{Lo: lo, Hi: int64(hi)}, cursor, nil
	}
	return U128{Lo: lo, Hi: hi}, cursor, nil
}

// extend widens a little-endian payload to 64 bits, sign-extending when
// signed.
func extend(payload []byte, signed bool) uint64 {
	var bits uint64
	for i, b := range payload {
		bits |= uint64(b) << (8 * i)
	}
	if signed && len(payload) < 8 {
		shift := uint(64 - 8*len(payload))
		bits = uint64(int64(bits<<shift) >> shift)
	}
	return bits
}

func (s *Source) decodeArray(tag Tag, cursor int) (any, int, error) {
	ptr, cursor, err := s.ReadU32(cursor)
	if err != nil {
		return nil, 0, err
	}
	byteLen, cursor, err := s.ReadU32(cursor)
	if err != nil {
		return nil, 0, err
	}

	elem := tag.ArrayElem()
	if byteLen%uint32(elem.Size()) != 0 {
		return nil, 0, errors.InvalidData(errors.PhaseDecode, []string{"array"},
			"byte length not a multiple of element size")
	}

	data, err := s.Memory.Read(ptr, byteLen)
	if err != nil {
		return nil, 0, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "array region exceeds guest memory")
	}

	shared := tag.IsArrayView()
	if !shared {
		data = append([]byte(nil), data...)
	}
	return &TypedArray{Elem: elem, Data: data, Shared: shared}, cursor, nil
}

// DecodeArgs decodes one framed argument list: ArgsBegin, then per argument
// a tagged value closed by ArgEnd, terminated by ArgsStop.
func DecodeArgs(s *Source, cursor int) ([]any, int, error) {
	marker, cursor, err := s.ReadByte(cursor)
	if err != nil {
		return nil, 0, err
	}
	if marker != ArgsBegin {
		return nil, 0, errors.Framing(errors.PhaseDecode, cursor-1, ArgsBegin, marker)
	}

	var args []any
	for {
		next, cur, err := s.ReadByte(cursor)
		if err != nil {
			return nil, 0, err
		}
		if next == ArgsStop {
			return args, cur, nil
		}

		// Not the stop marker: the byte is the start of a tagged value.
		var value any
		value, cursor, err = DecodeValue(s, cursor)
		if err != nil {
			return nil, 0, err
		}

		marker, cursor, err = s.ReadByte(cursor)
		if err != nil {
			return nil, 0, err
		}
		if marker != ArgEnd {
			return nil, 0, errors.Framing(errors.PhaseDecode, cursor-1, ArgEnd, marker)
		}
		args = append(args, value)
	}
}
