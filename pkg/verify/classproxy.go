package verify

import (
	"reflect"
)

// classRegistry holds ClassConditions supplied by the embedder (standing in
// for the external contract parser's per-class output), keyed by the
// concrete Go type they describe, plus any registered subtypes for
// enum/subclass forking (spec.md §4.3's Class Proxy Builder).
type classRegistry struct {
	conditions map[reflect.Type]*ClassConditions
	subtypes   map[reflect.Type][]reflect.Type
}

var classes = &classRegistry{
	conditions: make(map[reflect.Type]*ClassConditions),
	subtypes:   make(map[reflect.Type][]reflect.Type),
}

// RegisterClass installs cc for its Type, so struct proxies built for that
// type carry its invariants.
func RegisterClass(cc *ClassConditions) {
	classes.conditions[cc.Type] = cc
}

// RegisterSubtype declares that sub is one of the possible concrete Go types
// standing in for an interface or base struct typ, for the Class Proxy
// Builder's enum/subclass forking: a proxy requested for typ nondeterministic
// -ally picks one registered subtype per StateSpace fork, the same way a
// bounded-length container picks its length.
func RegisterSubtype(typ, sub reflect.Type) {
	classes.subtypes[typ] = append(classes.subtypes[typ], sub)
}

// NewStructProxy manufactures a KindStruct SymbolicValue for t for a
// non-receiver position (a plain argument, a field, a container element):
// one fresh field proxy per exported field (unexported fields are left
// out of Fields), picking among registered
// subtypes if any are declared, and asserting any registered class
// invariants so every further decision on this value is consistent with
// them. An invariant that raises discards the whole path (spec.md §4.4: "if
// the invariant raises or is falsified, discard the path") rather than
// surfacing as an ordinary error, since an argument that cannot be built
// into a valid instance carries no information about the function under
// test.
func NewStructProxy(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
	return buildStructProxy(ss, t, name, false)
}

// NewReceiverStructProxy is NewStructProxy's receiver-position counterpart
// (spec.md §4.4's "For the receiver position ('self'): do not pick a
// subtype, do enforce class invariants"): it skips subtype forking and, on a
// raising invariant, propagates the raw error instead of discarding the
// path, since "the point of analysis is to surface invariant violations on
// the receiver" rather than silently hide them.
func NewReceiverStructProxy(ss *StateSpace, t reflect.Type, name string) (SymbolicValue, error) {
	return buildStructProxy(ss, t, name, true)
}

func buildStructProxy(ss *StateSpace, t reflect.Type, name string, forReceiver bool) (SymbolicValue, error) {
	if !forReceiver {
		if subs := classes.subtypes[t]; len(subs) > 0 {
			return newSubtypeProxy(ss, t, subs, name)
		}
	}

	out := SymbolicValue{Kind: KindStruct, GoType: t, Fields: make(map[string]SymbolicValue), Ref: ss.newHeapRef()}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		field, err := ss.Factory().FreshOfType(f.Type, ss.FreshName(name+"."+f.Name))
		if err != nil {
			return SymbolicValue{}, err
		}
		out.Fields[f.Name] = field
	}

	if cc, ok := classes.conditions[t]; ok {
		frame := &CallFrame{Args: map[string]SymbolicValue{"self": out}}
		for _, inv := range cc.Invariants {
			val, err := inv.Eval(ss, frame)
			if err != nil {
				if forReceiver {
					return SymbolicValue{}, err
				}
				return SymbolicValue{}, &IgnoreAttempt{Cause: err}
			}
			if val.Kind == KindBool && val.T != nil {
				ss.Assert(val.T)
			}
		}
	}
	return out, nil
}

// newSubtypeProxy picks among typ's registered concrete subtypes via a chain
// of forks. Each decision asks "skip this subtype?", so the false-first bias
// settles on the earliest-registered subtype in a fresh tree — the same
// declared-type-first preference the enum case uses.
func newSubtypeProxy(ss *StateSpace, typ reflect.Type, subs []reflect.Type, name string) (SymbolicValue, error) {
	for i, sub := range subs {
		last := i == len(subs)-1
		if !last {
			pick := NewBool(ss, ss.FreshName(name+"_past_"+sub.Name()))
			skipped, err := pick.Branch(ss)
			if err != nil {
				return SymbolicValue{}, err
			}
			if skipped {
				continue
			}
		}
		v, err := NewStructProxy(ss, sub, name)
		if err != nil {
			return SymbolicValue{}, err
		}
		v.GoType = typ
		return v, nil
	}
	return SymbolicValue{Kind: KindOpaque, GoType: typ}, nil
}

// NewTypeProxy builds a KindType proxy: a symbolic choice of concrete type
// bounded by bound, for parameters whose value is itself a type. The bound
// is visited before its registered subtypes, matching the declared-type-
// first bias every other enumerated choice in the engine uses. Realize
// reports the chosen reflect.Type.
func NewTypeProxy(ss *StateSpace, bound reflect.Type, name string) (SymbolicValue, error) {
	candidates := append([]reflect.Type{bound}, classes.subtypes[bound]...)
	for i, cand := range candidates {
		last := i == len(candidates)-1
		if !last {
			pick := NewBool(ss, ss.FreshName(name+"_past_"+cand.Name()))
			skipped, err := pick.Branch(ss)
			if err != nil {
				return SymbolicValue{}, err
			}
			if skipped {
				continue
			}
		}
		return SymbolicValue{Kind: KindType, GoType: bound, Concrete: cand}, nil
	}
	return SymbolicValue{Kind: KindType, GoType: bound, Concrete: bound}, nil
}

// InvariantsFor returns the registered class invariants for t, or nil if t
// carries none.
func InvariantsFor(t reflect.Type) []Condition {
	if cc, ok := classes.conditions[t]; ok {
		return cc.Invariants
	}
	return nil
}

// MethodConditions returns the registered Conditions for method name on type
// t, or nil if either the type or the method is unregistered.
func MethodConditions(t reflect.Type, method string) *Conditions {
	cc, ok := classes.conditions[t]
	if !ok {
		return nil
	}
	return cc.Methods[method]
}
