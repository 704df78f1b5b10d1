package wire

import (
	"context"
	"math"
	"reflect"
	"strconv"

	"github.com/wippyai/guest-bridge/arena"
	"github.com/wippyai/guest-bridge/errors"
)

// Sink supplies the side effects result encoding needs: interning strings,
// allocating guest memory for raw text, and minting registry handles for
// functions and plain objects. Implemented by the dispatcher.
type Sink interface {
	// InternString returns the cache id for s.
	InternString(s string) uint32
	// AllocString copies the UTF-8 bytes of s into a fresh guest allocation.
	AllocString(ctx context.Context, s string) (ptr, length uint32, err error)
	// StoreFunc registers a callable value and returns its handle. ok is
	// false when v is not callable.
	StoreFunc(v any) (arena.Handle, bool)
	// StoreObject registers an arbitrary value in the generic-object
	// registry.
	StoreObject(v any) arena.Handle
}

// Encoded is one resolved reply value: the type tag the guest will see plus
// its fixed 8-byte payload slot.
type Encoded struct {
	Tag  Tag
	Slot uint64
}

// ResolveResult validates result against the hint and produces the encoded
// (tag, slot) pairs: none for ArityNone, one for AritySingle, one per
// element or position for List and Multi. Every emitted value carries its
// resolved tag so the guest's decoder never consults the original hint.
func (h Hint) ResolveResult(ctx context.Context, sink Sink, result any) ([]Encoded, error) {
	switch h.Arity {
	case ArityNone:
		if !isAbsent(result) {
			return nil, errors.ArityMismatch(errors.PhaseValidate, "hint expects no value")
		}
		return nil, nil

	case AritySingle:
		enc, err := resolveOne(ctx, sink, h.States[0].Accepted, result, "result")
		if err != nil {
			return nil, err
		}
		return []Encoded{enc}, nil

	case ArityList:
		elems, err := asSlice(result)
		if err != nil {
			return nil, err
		}
		out := make([]Encoded, 0, len(elems))
		for i, v := range elems {
			enc, err := resolveOne(ctx, sink, h.States[0].Accepted, v, "result["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out = append(out, enc)
		}
		return out, nil

	default: // ArityMulti
		elems, err := asSlice(result)
		if err != nil {
			return nil, err
		}
		if len(elems) != len(h.States) {
			return nil, errors.ArityMismatch(errors.PhaseValidate,
				"multi hint expects "+strconv.Itoa(len(h.States))+" values, got "+strconv.Itoa(len(elems)))
		}
		out := make([]Encoded, 0, len(elems))
		for i, v := range elems {
			enc, err := resolveOne(ctx, sink, h.States[i].Accepted, v, "result["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out = append(out, enc)
		}
		return out, nil
	}
}

// Validate checks the result's shape and type matching against the hint
// without minting handles, interning strings, or touching guest memory.
// Used by fire-and-forget dispatch, where results are validated but
// discarded.
func (h Hint) Validate(result any) error {
	switch h.Arity {
	case ArityNone:
		if !isAbsent(result) {
			return errors.ArityMismatch(errors.PhaseValidate, "hint expects no value")
		}
		return nil

	case AritySingle:
		_, err := matchTag(h.States[0].Accepted, result, "result")
		return err

	case ArityList:
		elems, err := asSlice(result)
		if err != nil {
			return err
		}
		for i, v := range elems {
			if _, err := matchTag(h.States[0].Accepted, v, "result["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		return nil

	default: // ArityMulti
		elems, err := asSlice(result)
		if err != nil {
			return err
		}
		if len(elems) != len(h.States) {
			return errors.ArityMismatch(errors.PhaseValidate,
				"multi hint expects "+strconv.Itoa(len(h.States))+" values, got "+strconv.Itoa(len(elems)))
		}
		for i, v := range elems {
			if _, err := matchTag(h.States[i].Accepted, v, "result["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		return nil
	}
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	_, undef := v.(Undefined)
	return undef
}

func asSlice(result any) ([]any, error) {
	if result == nil {
		return nil, nil
	}
	if vs, ok := result.([]any); ok {
		return vs, nil
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.ArityMismatch(errors.PhaseValidate, "hint expects a sequence result")
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func resolveOne(ctx context.Context, sink Sink, accepted []Tag, v any, path string) (Encoded, error) {
	tag, err := matchTag(accepted, v, path)
	if err != nil {
		return Encoded{}, err
	}
	slot, err := encodeSlot(ctx, sink, tag, v)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Tag: tag, Slot: slot}, nil
}

// matchTag picks the first accepted tag that matches the runtime value's
// actual kind. The guest orders accepted numeric tags smallest-first, so
// first-match also yields the smallest representation that fits.
func matchTag(accepted []Tag, v any, path string) (Tag, error) {
	for _, tag := range accepted {
		if matches(tag, v) {
			return tag, nil
		}
	}
	return 0, errors.TypeMismatch(errors.PhaseValidate, []string{path},
		"no accepted tag matches value kind "+kindName(v))
}

func matches(tag Tag, v any) bool {
	switch val := v.(type) {
	case nil:
		return tag == TagNull
	case Undefined:
		return tag == TagUndefined
	case bool:
		return tag == TagBool
	case string:
		return tag == TagCachedText || tag == TagTextUTF8
	case ExternRef:
		return tag == TagExternRef
	case ObjectRef:
		return tag == TagObjectRef
	case float32:
		return floatMatches(tag, float64(val))
	case float64:
		return floatMatches(tag, val)
	case S128:
		// 128-bit returns must quantize to 64 bits or fewer.
		if val.Hi != int64(val.Lo)>>63 {
			return false
		}
		return intMatches(tag, int64(val.Lo)) || tag == TagS128
	case U128:
		if val.Hi != 0 {
			return false
		}
		return uintMatches(tag, val.Lo) || tag == TagU128
	case *TypedArray:
		return false // array returns are not slot-encodable
	}

	if i, ok := asInt64(v); ok {
		return intMatches(tag, i)
	}
	if u, ok := asUint64(v); ok {
		return uintMatches(tag, u)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		return tag == TagExternRef
	}
	// Anything else is a plain object.
	return tag == TagObjectRef
}

func intMatches(tag Tag, v int64) bool {
	switch tag {
	case TagS8:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case TagU8:
		return v >= 0 && v <= math.MaxUint8
	case TagS16:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case TagU16:
		return v >= 0 && v <= math.MaxUint16
	case TagS32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	case TagU32:
		return v >= 0 && v <= math.MaxUint32
	case TagS64, TagS128:
		return true
	case TagU64, TagU128:
		return v >= 0
	case TagF32:
		return float64(float32(v)) == float64(v) && int64(float32(v)) == v
	case TagF64:
		return int64(float64(v)) == v
	}
	return false
}

func uintMatches(tag Tag, v uint64) bool {
	if v <= math.MaxInt64 {
		return intMatches(tag, int64(v))
	}
	// Values above MaxInt64 only fit unsigned 64-bit slots.
	return tag == TagU64 || tag == TagU128
}

func floatMatches(tag Tag, v float64) bool {
	switch tag {
	case TagF64:
		return true
	case TagF32:
		f32 := float32(v)
		return float64(f32) == v || math.IsNaN(v)
	case TagS8, TagU8, TagS16, TagU16, TagS32, TagU32, TagS64, TagU64, TagS128, TagU128:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
		if v < 0 {
			if v < math.MinInt64 {
				return false
			}
			return intMatches(tag, int64(v))
		}
		if v > math.MaxUint64 {
			return false
		}
		return uintMatches(tag, uint64(v))
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch i := v.(type) {
	case int:
		return int64(i), true
	case int8:
		return int64(i), true
	case int16:
		return int64(i), true
	case int32:
		return int64(i), true
	case int64:
		return i, true
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	switch u := v.(type) {
	case uint:
		return uint64(u), true
	case uint8:
		return uint64(u), true
	case uint16:
		return uint64(u), true
	case uint32:
		return uint64(u), true
	case uint64:
		return u, true
	case uintptr:
		return uint64(u), true
	}
	return 0, false
}

// encodeSlot produces the fixed 8-byte payload for a value under its
// resolved tag.
func encodeSlot(ctx context.Context, sink Sink, tag Tag, v any) (uint64, error) {
	switch tag {
	case TagNull, TagUndefined:
		return 0, nil

	case TagBool:
		if v.(bool) {
			return 1, nil
		}
		return 0, nil

	case TagCachedText:
		return uint64(sink.InternString(v.(string))), nil

	case TagTextUTF8:
		ptr, length, err := sink.AllocString(ctx, v.(string))
		if err != nil {
			return 0, errors.Wrap(errors.PhaseEncode, errors.KindAllocation, err, "allocate reply string")
		}
		return uint64(ptr)<<32 | uint64(length), nil

	case TagExternRef:
		if ref, ok := v.(ExternRef); ok {
			return uint64(ref), nil
		}
		h, ok := sink.StoreFunc(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEncode, nil, "value is not callable")
		}
		return uint64(h), nil

	case TagObjectRef:
		if ref, ok := v.(ObjectRef); ok {
			return uint64(ref), nil
		}
		return uint64(sink.StoreObject(v)), nil

	case TagF32:
		return uint64(math.Float32bits(float32(numericAsFloat(v)))), nil

	case TagF64:
		return math.Float64bits(numericAsFloat(v)), nil

	case TagErrorCode:
		return uint64(v.(uint32)), nil

	default: // integer tags
		return numericBits(v)
	}
}

// numericAsFloat widens any numeric value already known to match a float
// tag into a float64.
func numericAsFloat(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case S128:
		return float64(int64(n.Lo))
	case U128:
		return float64(n.Lo)
	}
	if i, ok := asInt64(v); ok {
		return float64(i)
	}
	if u, ok := asUint64(v); ok {
		return float64(u)
	}
	return 0
}

// numericBits produces sign/zero-extended 64-bit payload bits for any
// numeric value already known to fit.
func numericBits(v any) (uint64, error) {
	if i, ok := asInt64(v); ok {
		return uint64(i), nil
	}
	if u, ok := asUint64(v); ok {
		return u, nil
	}
	switch n := v.(type) {
	case float32:
		return uint64(int64(n)), nil
	case float64:
		if n >= 0 {
			return uint64(n), nil
		}
		return uint64(int64(n)), nil
	case S128:
		return n.Lo, nil
	case U128:
		return n.Lo, nil
	}
	return 0, errors.TypeMismatch(errors.PhaseEncode, nil, "value is not numeric")
}


func kindName(v any) string {
	if v == nil {
		return "null"
	}
	if _, ok := v.(Undefined); ok {
		return "undefined"
	}
	return reflect.TypeOf(v).String()
}

