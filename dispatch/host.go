package dispatch

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/guest-bridge/errors"
)

// Host is the interface for struct-based host modules. All exported methods
// (except Namespace) are registered as guest-invokable functions under
// "<namespace>.<kebab-case-method>".
type Host interface {
	// Namespace returns the name prefix for the host's functions.
	Namespace() string
}

// Compiler produces a callable from the function source name carried by a
// register-function operation. The default compiler resolves names against
// the host registry; evaluating source text is a pluggable capability, not
// something the dispatcher does itself.
type Compiler interface {
	Compile(source string) (Func, error)
}

// HostRegistry maps function names to host-side callables. Arbitrary Go
// functions are adapted through reflection at registration time, so lookup
// and invocation stay reflection-free on the hot path apart from argument
// conversion.
type HostRegistry struct {
	funcs map[string]Func
	mu    sync.RWMutex
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]Func),
	}
}

// RegisterFunc registers a single function under name. fn may be a Func or
// any Go function; see adaptFunc for the accepted shapes.
func (r *HostRegistry) RegisterFunc(name string, fn any) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}

	adapted, err := adaptFunc(fn)
	if err != nil {
		return errors.Registration(errors.PhaseHost, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = adapted
	return nil
}

// RegisterHost registers every exported method of h under its namespace.
func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}

		name := ns + "." + toKebabCase(method.Name)
		adapted, err := adaptFunc(rv.Method(i).Interface())
		if err != nil {
			return errors.Registration(errors.PhaseHost, name, err)
		}
		r.funcs[name] = adapted
	}
	return nil
}

// Resolve looks up a registered function by name.
func (r *HostRegistry) Resolve(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Compile implements Compiler by resolving the source name against the
// registry.
func (r *HostRegistry) Compile(source string) (Func, error) {
	if fn, ok := r.Resolve(source); ok {
		return fn, nil
	}
	return nil, errors.NotFound(errors.PhaseRegistry, "host function", source)
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// adaptFunc converts an arbitrary Go function into a Func. The function may
// take a leading context.Context, may be variadic, and may return nothing, a
// value, an error, or (value, error). Arguments are converted to the
// declared parameter types; a non-convertible argument fails the call with a
// type mismatch.
func adaptFunc(fn any) (Func, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "handler cannot be nil")
	}
	switch f := fn.(type) {
	case Func:
		return f, nil
	case func(context.Context, []any) (any, error):
		return f, nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Value(reflect.TypeOf(fn).String()).
			Detail("handler must be a function").
			Build()
	}

	rt := rv.Type()
	if rt.NumOut() > 2 {
		return nil, errors.InvalidInput(errors.PhaseHost, "handler returns more than two values")
	}
	if rt.NumOut() == 2 && rt.Out(1) != errType {
		return nil, errors.InvalidInput(errors.PhaseHost, "handler's second result must be error")
	}

	wantCtx := rt.NumIn() > 0 && rt.In(0) == ctxType

	return func(ctx context.Context, args []any) (any, error) {
		fixed := rt.NumIn()
		if wantCtx {
			fixed--
		}
		if rt.IsVariadic() {
			if len(args) < fixed-1 {
				return nil, errors.ArityMismatch(errors.PhaseDispatch, "too few arguments for variadic handler")
			}
		} else if len(args) != fixed {
			return nil, errors.ArityMismatch(errors.PhaseDispatch, "argument count does not match handler signature")
		}

		in := make([]reflect.Value, 0, len(args)+1)
		if wantCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, arg := range args {
			pi := i
			if wantCtx {
				pi++
			}
			var pt reflect.Type
			if rt.IsVariadic() && pi >= rt.NumIn()-1 {
				pt = rt.In(rt.NumIn() - 1).Elem()
			} else {
				pt = rt.In(pi)
			}
			av, err := convertArg(arg, pt, i)
			if err != nil {
				return nil, err
			}
			in = append(in, av)
		}

		out := rv.Call(in)
		switch rt.NumOut() {
		case 0:
			return nil, nil
		case 1:
			if rt.Out(0) == errType {
				if out[0].IsNil() {
					return nil, nil
				}
				return nil, out[0].Interface().(error)
			}
			return out[0].Interface(), nil
		default:
			var callErr error
			if !out[1].IsNil() {
				callErr = out[1].Interface().(error)
			}
			return out[0].Interface(), callErr
		}
	}, nil
}

func convertArg(arg any, pt reflect.Type, pos int) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseDispatch,
			[]string{"args", strconv.Itoa(pos)}, "null argument for non-nilable parameter "+pt.String())
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(pt) {
		return av, nil
	}
	if av.Type().ConvertibleTo(pt) && isNumericConversion(av.Type(), pt) {
		return av.Convert(pt), nil
	}
	return reflect.Value{}, errors.TypeMismatch(errors.PhaseDispatch,
		[]string{"args", strconv.Itoa(pos)},
		"cannot use "+av.Type().String()+" as "+pt.String())
}

// isNumericConversion limits reflect.Convert to number-to-number widening;
// anything lossy across kinds (string to int etc.) stays a mismatch.
func isNumericConversion(from, to reflect.Type) bool {
	return isNumericKind(from.Kind()) && isNumericKind(to.Kind())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}


// toKebabCase converts PascalCase to kebab-case.
// Handles acronyms: GetHTTPURL -> get-http-url
func toKebabCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('-')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1 // -1 because loop will increment
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
