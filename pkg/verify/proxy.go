package verify

import (
	"reflect"

	"github.com/pkg/errors"
)

// ProxyFactory manufactures fresh SymbolicValues for a Go type, the way
// CrossHair's proxy registry manufactures a symbolic proxy from a Python
// type annotation (spec.md §4.3). It is bound to one StateSpace so every
// symbol it creates shares that StateSpace's solver and name counter.
type ProxyFactory struct {
	ss    *StateSpace
	byType map[reflect.Type]ProxyBuilder
}

// ProxyBuilder constructs a fresh SymbolicValue of type t under name, given a
// StateSpace to allocate solver symbols from. Registered per reflect.Kind via
// RegisterProxyBuilder for builtin kinds, and per reflect.Type on one
// ProxyFactory via RegisterType.
type ProxyBuilder func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error)

var globalBuilders = map[reflect.Kind]ProxyBuilder{}

// RegisterProxyBuilder installs the builder used for every reflect.Type
// whose Kind matches k, across every ProxyFactory. Builtin scalar and
// container kinds are registered in init(); embedders needing a different
// strategy for an existing Kind, or support for reflect.Struct/Interface
// user types, register per-ProxyFactory overrides via RegisterType instead.
func RegisterProxyBuilder(k reflect.Kind, b ProxyBuilder) {
	globalBuilders[k] = b
}

func newProxyFactory(ss *StateSpace) *ProxyFactory {
	return &ProxyFactory{ss: ss, byType: make(map[reflect.Type]ProxyBuilder)}
}

// RegisterType overrides the builder used for exactly t on this factory,
// taking precedence over the Kind-level global builder. Nothing in this
// package calls it; it is the hook for an embedder's own constructors.
func (f *ProxyFactory) RegisterType(t reflect.Type, b ProxyBuilder) {
	f.byType[t] = b
}

// FreshOfType manufactures a new SymbolicValue of Go type t under name,
// preferring a per-type override and falling back to the Kind-level global
// builder. A builder's error (e.g. a class invariant that raised while
// constructing a struct field) propagates rather than being silently
// replaced by a bogus zero-valued proxy — the caller decides, via the
// Exception Filter, whether that means discarding the path or surfacing a
// genuine failure.
func (f *ProxyFactory) FreshOfType(t reflect.Type, name string) (SymbolicValue, error) {
	if t == nil {
		return SymbolicValue{Kind: KindOpaque}, nil
	}
	if b, ok := f.byType[t]; ok {
		return b(f.ss, t, name)
	}
	if b, ok := globalBuilders[t.Kind()]; ok {
		return b(f.ss, t, name)
	}
	return SymbolicValue{Kind: KindOpaque, GoType: t, Concrete: reflect.Zero(t).Interface()}, nil
}

// FreshReceiverOfType is FreshOfType's receiver-position counterpart (spec.md
// §4.3/§4.4): for a struct Go type it builds the Class Proxy Builder's
// receiver path directly — no subtype forking, and an invariant that raises
// surfaces rather than being suppressed into an ignore-attempt, since "the
// point of analysis is to surface invariant violations on the receiver".
// Non-struct receivers (an embedder's unusual method set) fall back to the
// ordinary FreshOfType path.
func (f *ProxyFactory) FreshReceiverOfType(t reflect.Type, name string) (SymbolicValue, error) {
	if t != nil && t.Kind() == reflect.Struct {
		return NewReceiverStructProxy(f.ss, t, name)
	}
	return f.FreshOfType(t, name)
}

// NewBool returns a fresh symbolic bool bound to a new solver term.
func NewBool(ss *StateSpace, name string) SymbolicValue {
	return SymbolicValue{Kind: KindBool, T: ss.Fresh(name, SortBool), GoType: reflect.TypeOf(false)}
}

// NewInt returns a fresh symbolic int bound to a new solver term.
func NewInt(ss *StateSpace, name string) SymbolicValue {
	return SymbolicValue{Kind: KindInt, T: ss.Fresh(name, SortInt), GoType: reflect.TypeOf(0)}
}

// NewFloat returns a fresh symbolic float bound to a new solver term.
func NewFloat(ss *StateSpace, name string) SymbolicValue {
	return SymbolicValue{Kind: KindFloat, T: ss.Fresh(name, SortFloat), GoType: reflect.TypeOf(0.0)}
}

// NewCallable returns a KindCallable proxy for a func type: each invocation
// yields a fresh symbolic result of the declared first return type, the way
// a contracted callee's effect is modeled without running a body.
func NewCallable(ss *StateSpace, t reflect.Type, name string) SymbolicValue {
	var retType reflect.Type
	if t.Kind() == reflect.Func && t.NumOut() > 0 {
		retType = t.Out(0)
	}
	return SymbolicValue{
		Kind:   KindCallable,
		GoType: t,
		Call: func(ss *StateSpace, args []SymbolicValue) (SymbolicValue, error) {
			return ss.Factory().FreshOfType(retType, ss.FreshName(name+"_ret"))
		},
	}
}

// NewString returns a fresh symbolic string bound to a new solver term.
func NewString(ss *StateSpace, name string) SymbolicValue {
	return SymbolicValue{Kind: KindString, T: ss.Fresh(name, SortString), GoType: reflect.TypeOf("")}
}

// NewOpaque wraps a concrete Go value the engine declines to proxy further
// (e.g. a value of a type with no registered builder).
func NewOpaque(v any) SymbolicValue {
	var t reflect.Type
	if v != nil {
		t = reflect.TypeOf(v)
	}
	return SymbolicValue{Kind: KindOpaque, GoType: t, Concrete: v}
}

// NewBoundedList returns a fresh KindList proxy whose length is itself a
// nondeterministic decision (spec.md §4.3's tractable simplification of
// CrossHair's unbounded symbolic sequences): before each of up to maxLen
// elements a fresh bool is branched on, a true answer adds one element and
// the first false answer ends the list. Each element is independently fresh.
func NewBoundedList(ss *StateSpace, elemType reflect.Type, maxLen int, name string) (SymbolicValue, error) {
	out := SymbolicValue{Kind: KindList, ElemType: elemType, GoType: reflect.SliceOf(elemType)}
	for i := 0; i < maxLen; i++ {
		more := NewBool(ss, ss.FreshName(name+"_has"))
		take, err := more.Branch(ss)
		if err != nil {
			return SymbolicValue{}, errors.Wrap(err, "verify: bounded list length decision")
		}
		if !take {
			break
		}
		elem, err := ss.Factory().FreshOfType(elemType, ss.FreshName(name+"_elem"))
		if err != nil {
			return SymbolicValue{}, err
		}
		out.Elems = append(out.Elems, elem)
	}
	return out, nil
}

// NewBoundedSet is NewBoundedList's Set-kind counterpart.
func NewBoundedSet(ss *StateSpace, elemType reflect.Type, maxLen int, name string) (SymbolicValue, error) {
	list, err := NewBoundedList(ss, elemType, maxLen, name)
	if err != nil {
		return SymbolicValue{}, err
	}
	list.Kind = KindSet
	list.GoType = reflect.MapOf(elemType, reflect.TypeOf(struct{}{}))
	return list, nil
}

func init() {
	RegisterProxyBuilder(reflect.Bool, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		return NewBool(ss, name), nil
	})
	for _, k := range []reflect.Kind{
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
	} {
		RegisterProxyBuilder(k, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
			v := NewInt(ss, name)
			v.GoType = t
			return v, nil
		})
	}
	for _, k := range []reflect.Kind{reflect.Float32, reflect.Float64} {
		RegisterProxyBuilder(k, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
			v := NewFloat(ss, name)
			v.GoType = t
			return v, nil
		})
	}
	RegisterProxyBuilder(reflect.String, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		return NewString(ss, name), nil
	})
	RegisterProxyBuilder(reflect.Func, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		return NewCallable(ss, t, name), nil
	})
	RegisterProxyBuilder(reflect.Interface, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		if subs := classes.subtypes[t]; len(subs) > 0 {
			return newSubtypeProxy(ss, t, subs, name)
		}
		return SymbolicValue{Kind: KindOpaque, GoType: t}, nil
	})
	RegisterProxyBuilder(reflect.Slice, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		return NewBoundedList(ss, t.Elem(), 3, name)
	})
	RegisterProxyBuilder(reflect.Array, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		out := SymbolicValue{Kind: KindTuple, ElemType: t.Elem(), GoType: t}
		for i := 0; i < t.Len(); i++ {
			elem, err := ss.Factory().FreshOfType(t.Elem(), ss.FreshName(name))
			if err != nil {
				return SymbolicValue{}, err
			}
			out.Elems = append(out.Elems, elem)
		}
		return out, nil
	})
	RegisterProxyBuilder(reflect.Map, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		out := SymbolicValue{Kind: KindMap, KeyType: t.Key(), ElemType: t.Elem(), GoType: t}
		n := 2
		for i := 0; i < n; i++ {
			more := NewBool(ss, ss.FreshName(name+"_has"))
			take, err := more.Branch(ss)
			if err != nil {
				return SymbolicValue{}, err
			}
			if !take {
				break
			}
			k, err := ss.Factory().FreshOfType(t.Key(), ss.FreshName(name+"_key"))
			if err != nil {
				return SymbolicValue{}, err
			}
			v, err := ss.Factory().FreshOfType(t.Elem(), ss.FreshName(name+"_val"))
			if err != nil {
				return SymbolicValue{}, err
			}
			out.Pairs = append(out.Pairs, KV{Key: k, Val: v})
		}
		return out, nil
	})
	RegisterProxyBuilder(reflect.Struct, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		return NewStructProxy(ss, t, name)
	})
	RegisterProxyBuilder(reflect.Ptr, func(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
		elem, err := ss.Factory().FreshOfType(t.Elem(), name)
		if err != nil {
			return SymbolicValue{}, err
		}
		return SymbolicValue{Kind: KindStruct, GoType: t, Fields: map[string]SymbolicValue{"__elem__": elem}, Ref: ss.newHeapRef()}, nil
	})
}
