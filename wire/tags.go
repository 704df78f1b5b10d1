package wire

// Stream markers and operation ids. The operations buffer must open with
// OpsBegin and close with OpsStop; each operation is closed with OpEnd
// before the next operation id is read.
const (
	OpsBegin byte = 0x00
	OpEnd    byte = 0xFE
	OpsStop  byte = 0xFF

	OpMakeFunction byte = 1
	OpInvoke       byte = 2
	OpInvokeAsync  byte = 3

	ArgsBegin byte = 0x02
	ArgEnd    byte = 0x03
	ArgsStop  byte = 0x04

	ReplyBegin byte = 100
	ReplyEnd   byte = 101
	GroupStart byte = 111
	GroupStop  byte = 222
	HintStart  byte = 200
	HintStop   byte = 201
)

// Tag identifies the type of one tagged value. Tag values start above
// ArgsStop so the argument-list state machine never confuses a tag with a
// framing marker.
type Tag uint8

const (
	TagNull      Tag = 5
	TagUndefined Tag = 6
	TagBool      Tag = 7

	// Text payloads: (start u32, length u32) into the text buffer, or a
	// cache id. InternText decodes the region and interns it as a side
	// effect.
	TagTextUTF8   Tag = 8
	TagTextUTF16  Tag = 9
	TagCachedText Tag = 10
	TagInternText Tag = 11

	// Integer tags carry a width-quantization tier byte after the tag.
	TagS8   Tag = 12
	TagU8   Tag = 13
	TagS16  Tag = 14
	TagU16  Tag = 15
	TagS32  Tag = 16
	TagU32  Tag = 17
	TagS64  Tag = 18
	TagU64  Tag = 19
	TagS128 Tag = 20
	TagU128 Tag = 21

	TagF32 Tag = 22
	TagF64 Tag = 23

	TagExternRef Tag = 24
	TagObjectRef Tag = 25

	// Typed array payloads: (ptr u32, byte-length u32) into guest linear
	// memory. The copy family duplicates bytes immediately; the view family
	// aliases guest memory until the next guest call.
	TagArrayU8Copy  Tag = 26
	TagArrayS8Copy  Tag = 27
	TagArrayU16Copy Tag = 28
	TagArrayS16Copy Tag = 29
	TagArrayU32Copy Tag = 30
	TagArrayS32Copy Tag = 31
	TagArrayU64Copy Tag = 32
	TagArrayS64Copy Tag = 33
	TagArrayF32Copy Tag = 34
	TagArrayF64Copy Tag = 35

	TagArrayU8View  Tag = 36
	TagArrayS8View  Tag = 37
	TagArrayU16View Tag = 38
	TagArrayS16View Tag = 39
	TagArrayU32View Tag = 40
	TagArrayS32View Tag = 41
	TagArrayU64View Tag = 42
	TagArrayS64View Tag = 43
	TagArrayF32View Tag = 44
	TagArrayF64View Tag = 45

	// TagErrorCode appears in reply streams only; in argument streams it is
	// rejected as an unknown tag.
	TagErrorCode Tag = 46
)

// Tier selects the actual encoded width of a logical integer. Narrow
// encodings keep common small values compact without a variable-length
// scheme; the decoder sign- or zero-extends back to the logical width.
type Tier uint8

const (
	TierNone      Tier = 0 // full logical width
	TierEight     Tier = 1
	TierSixteen   Tier = 2
	TierThirtyTwo Tier = 3
	TierSixtyFour Tier = 4
)

// Arity identifies the shape of a return hint.
type Arity uint8

const (
	ArityNone   Arity = 0
	AritySingle Arity = 1
	ArityList   Arity = 2
	ArityMulti  Arity = 3
)

func (a Arity) String() string {
	switch a {
	case ArityNone:
		return "none"
	case AritySingle:
		return "single"
	case ArityList:
		return "list"
	case ArityMulti:
		return "multi"
	}
	return "unknown"
}

// Async error codes carried in the TagErrorCode slot of a failure reply.
const (
	ErrCodeProducerRejected uint32 = 1
	ErrCodeEncodeFailed     uint32 = 2
	ErrCodeDeliveryFailed   uint32 = 3
)

// IsInteger reports whether the tag is one of the width-quantized integer
// tags.
func (t Tag) IsInteger() bool {
	return t >= TagS8 && t <= TagU128
}

// IsSigned reports whether an integer tag is signed.
func (t Tag) IsSigned() bool {
	switch t {
	case TagS8, TagS16, TagS32, TagS64, TagS128:
		return true
	}
	return false
}

// IsArray reports whether the tag is a typed array tag (either family).
func (t Tag) IsArray() bool {
	return t >= TagArrayU8Copy && t <= TagArrayF64View
}

// IsArrayView reports whether the tag is a zero-copy array tag.
func (t Tag) IsArrayView() bool {
	return t >= TagArrayU8View && t <= TagArrayF64View
}

// logicalWidth returns the full payload width in bytes for an integer tag.
func (t Tag) logicalWidth() int {
	switch t {
	case TagS8, TagU8:
		return 1
	case TagS16, TagU16:
		return 2
	case TagS32, TagU32:
		return 4
	case TagS64, TagU64:
		return 8
	case TagS128, TagU128:
		return 16
	}
	return 0
}

// width returns the encoded byte width a tier selects, or -1 when the tier
// is unknown or wider than the tag's logical width.
func (tier Tier) width(tag Tag) int {
	logical := tag.logicalWidth()
	var w int
	switch tier {
	case TierNone:
		return logical
	case TierEight:
		w = 1
	case TierSixteen:
		w = 2
	case TierThirtyTwo:
		w = 4
	case TierSixtyFour:
		w = 8
	default:
		return -1
	}
	if w > logical {
		return -1
	}
	return w
}

// ArrayElem returns the element kind of an array tag.
func (t Tag) ArrayElem() ElemKind {
	if !t.IsArray() {
		return 0
	}
	base := t - TagArrayU8Copy
	if t.IsArrayView() {
		base = t - TagArrayU8View
	}
	return ElemKind(base)
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

var tagNames = map[Tag]string{
	TagNull:         "null",
	TagUndefined:    "undefined",
	TagBool:         "bool",
	TagTextUTF8:     "text-utf8",
	TagTextUTF16:    "text-utf16",
	TagCachedText:   "cached-text",
	TagInternText:   "intern-text",
	TagS8:           "s8",
	TagU8:           "u8",
	TagS16:          "s16",
	TagU16:          "u16",
	TagS32:          "s32",
	TagU32:          "u32",
	TagS64:          "s64",
	TagU64:          "u64",
	TagS128:         "s128",
	TagU128:         "u128",
	TagF32:          "f32",
	TagF64:          "f64",
	TagExternRef:    "extern-ref",
	TagObjectRef:    "object-ref",
	TagArrayU8Copy:  "array-u8",
	TagArrayS8Copy:  "array-s8",
	TagArrayU16Copy: "array-u16",
	TagArrayS16Copy: "array-s16",
	TagArrayU32Copy: "array-u32",
	TagArrayS32Copy: "array-s32",
	TagArrayU64Copy: "array-u64",
	TagArrayS64Copy: "array-s64",
	TagArrayF32Copy: "array-f32",
	TagArrayF64Copy: "array-f64",
	TagArrayU8View:  "view-u8",
	TagArrayS8View:  "view-s8",
	TagArrayU16View: "view-u16",
	TagArrayS16View: "view-s16",
	TagArrayU32View: "view-u32",
	TagArrayS32View: "view-s32",
	TagArrayU64View: "view-u64",
	TagArrayS64View: "view-s64",
	TagArrayF32View: "view-f32",
	TagArrayF64View: "view-f64",
	TagErrorCode:    "error-code",
}
