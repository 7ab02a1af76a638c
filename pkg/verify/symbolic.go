package verify

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// SymbolicKind tags the variant a SymbolicValue currently holds. This is the
// tagged-variant representation design note §9 calls for in place of
// per-value dynamic dispatch: operator semantics live on the dispatch table
// below, keyed by (left kind, right kind, op), rather than on methods spread
// across many concrete proxy types.
type SymbolicKind int

const (
	KindBool SymbolicKind = iota
	KindInt
	KindFloat
	KindString
	KindList
	KindSet
	KindTuple
	KindMap
	KindCallable
	KindType
	KindStruct
	KindOpaque // concrete value the engine declines to proxy further
)

func (k SymbolicKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindTuple:
		return "tuple"
	case KindMap:
		return "map"
	case KindCallable:
		return "callable"
	case KindType:
		return "type"
	case KindStruct:
		return "struct"
	default:
		return "opaque"
	}
}

// HeapRef is an opaque handle identifying a symbolic heap object within a
// StateSpace, used so dictionaries and sets keyed by objects can alias
// correctly instead of comparing by Go pointer identity.
type HeapRef struct {
	id int
}

// KV is one key/value pair of a KindMap SymbolicValue.
type KV struct {
	Key SymbolicValue
	Val SymbolicValue
}

// CallableFunc is the shape of a KindCallable SymbolicValue's invocation: it
// receives the StateSpace it is bound to and the symbolic arguments, and
// returns a symbolic result (or an error, e.g. if invoked during framework
// scope on a value that requires forking).
type CallableFunc func(ss *StateSpace, args []SymbolicValue) (SymbolicValue, error)

// SymbolicValue is the Proxy Value of spec.md §3: any value carrying the
// capability to report its nominal semantic type (HasPyType), realize a
// concrete counterexample (CanRealize), and forget its contents after an
// opaque mutating call (CanForget). The zero value is not meaningful;
// always construct via the New* helpers in proxy.go.
type SymbolicValue struct {
	Kind SymbolicKind
	T    Term // scalar backing term for Bool/Int/Float/String

	Elems []SymbolicValue // List/Set/Tuple elements
	Pairs []KV            // Map entries

	ElemType  reflect.Type // declared element type (List/Set), or value type (Map)
	KeyType   reflect.Type // declared key type (Map)
	GoType    reflect.Type // nominal semantic type this proxy stands in for

	Fields map[string]SymbolicValue // Struct field values, keyed by field name
	Call   CallableFunc             // Callable invocation

	Ref      *HeapRef
	Concrete any // backing concrete value for KindOpaque, or a realized cache
}

// PyType implements HasPyType: the nominal semantic type this value stands
// in for (e.g. the user's declared parameter type), not the Go
// representation type of the proxy itself.
func (v SymbolicValue) PyType() reflect.Type { return v.GoType }

// Realize implements CanRealize: extract a concrete counterexample value
// from the solver's model (or, for KindOpaque, return the backing concrete
// value directly).
func (v SymbolicValue) Realize(ss *StateSpace) (any, error) {
	switch v.Kind {
	case KindBool, KindInt, KindFloat, KindString:
		if v.T == nil {
			return nil, errors.New("verify: realize called on scalar proxy with no backing term")
		}
		return ss.ModelValue(v.T)
	case KindList, KindTuple, KindSet:
		out := make([]any, 0, len(v.Elems))
		for _, e := range v.Elems {
			c, err := e.Realize(ss)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	case KindMap:
		out := make(map[any]any, len(v.Pairs))
		for _, kv := range v.Pairs {
			k, err := kv.Key.Realize(ss)
			if err != nil {
				return nil, err
			}
			val, err := kv.Val.Realize(ss)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	case KindStruct:
		out := make(map[string]any, len(v.Fields))
		for name, f := range v.Fields {
			c, err := f.Realize(ss)
			if err != nil {
				return nil, err
			}
			out[name] = c
		}
		return out, nil
	case KindType:
		return v.Concrete, nil
	case KindOpaque:
		return v.Concrete, nil
	default:
		return nil, errors.Errorf("verify: realize unsupported for kind %s", v.Kind)
	}
}

// Forget implements CanForget: reset the value's contents to a fresh
// symbolic value of the same nominal type, as the Short-Circuit Controller
// does to a declared-mutable argument after substituting a callee's effect.
func (v SymbolicValue) Forget(ss *StateSpace) (SymbolicValue, error) {
	return ss.Factory().FreshOfType(v.GoType, ss.FreshName("forgotten"))
}

// Branch implements the engine's use of a KindBool value as a decision: it
// consults the StateSpace's fork logic and asserts the taken branch's
// predicate (or its negation) into the solver.
func (v SymbolicValue) Branch(ss *StateSpace) (bool, error) {
	if v.Kind != KindBool {
		return false, errors.Errorf("verify: branch requires a bool proxy, got %s", v.Kind)
	}
	if v.T == nil {
		return false, errors.New("verify: branch requires a backing term")
	}
	return ss.Fork(v.T)
}

// --- operator dispatch table (design note §9) ---

// Op names a symbolic operator. Kept as a small closed set matching what the
// Call Driver and container proxies actually need; an embedder extending the
// set registers additional dispatch entries via RegisterOp.
type Op string

const (
	OpAdd    Op = "add"
	OpSub    Op = "sub"
	OpFDiv   Op = "floordiv"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpEq     Op = "eq"
	OpAnd    Op = "and"
	OpOr     Op = "or"
	OpNot    Op = "not"
	OpIn     Op = "in"
	OpUnion  Op = "union"
	OpLen    Op = "len"
)

type dispatchKey struct {
	op    Op
	left  SymbolicKind
	right SymbolicKind
}

type dispatchFunc func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error)

var dispatchTable = map[dispatchKey]dispatchFunc{}

// RegisterOp installs (or overrides) the implementation of op for the given
// operand kinds. Built-in scalar/container operators are registered in
// init(); embedders extending the symbolic type system with new kinds
// register their own entries the same way.
func RegisterOp(op Op, left, right SymbolicKind, fn dispatchFunc) {
	dispatchTable[dispatchKey{op, left, right}] = fn
}

// Dispatch invokes the registered operator for op over args' kinds, or
// returns an unsupported-operation error the Exception Filter recognizes as
// a proxy-incompatibility (see exception.go).
func Dispatch(ss *StateSpace, op Op, args ...SymbolicValue) (SymbolicValue, error) {
	var left, right SymbolicKind
	left = args[0].Kind
	if len(args) > 1 {
		right = args[1].Kind
	} else {
		right = left
	}
	fn, ok := dispatchTable[dispatchKey{op, left, right}]
	if !ok {
		return SymbolicValue{}, &UnsupportedOperationError{
			Op: string(op), Left: left, Right: right,
		}
	}
	return fn(ss, args...)
}

// UnsupportedOperationError marks an operator/kind combination the engine
// cannot encode. The Exception Filter treats this as proxy-incompatibility
// with a non-instrumented operation (§4.5 item 3): it bubbles out as an
// unknown verdict rather than a counterexample.
type UnsupportedOperationError struct {
	Op          string
	Left, Right SymbolicKind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("verify: unsupported operation %q for %s, %s", e.Op, e.Left, e.Right)
}

func init() {
	RegisterOp(OpAdd, KindInt, KindInt, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return intBinOp(ss, args[0], args[1], func(a, b Term) Term { return ss.solver.(arithTermBuilder).Add(a, b) })
	})
	RegisterOp(OpSub, KindInt, KindInt, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return intBinOp(ss, args[0], args[1], func(a, b Term) Term { return ss.solver.(arithTermBuilder).Sub(a, b) })
	})
	RegisterOp(OpFDiv, KindInt, KindInt, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return intBinOp(ss, args[0], args[1], func(a, b Term) Term { return ss.solver.(arithTermBuilder).FloorDiv(a, b) })
	})
	RegisterOp(OpLt, KindInt, KindInt, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Lt(x, y) }))
	RegisterOp(OpLte, KindInt, KindInt, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Lte(x, y) }))
	RegisterOp(OpGt, KindInt, KindInt, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Gt(x, y) }))
	RegisterOp(OpGte, KindInt, KindInt, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Gte(x, y) }))
	RegisterOp(OpEq, KindInt, KindInt, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Eq(x, y) }))
	RegisterOp(OpEq, KindString, KindString, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Eq(x, y) }))

	RegisterOp(OpAdd, KindFloat, KindFloat, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return floatBinOp(ss, args[0], args[1], func(a, b Term) Term { return ss.solver.(arithTermBuilder).Add(a, b) })
	})
	RegisterOp(OpSub, KindFloat, KindFloat, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return floatBinOp(ss, args[0], args[1], func(a, b Term) Term { return ss.solver.(arithTermBuilder).Sub(a, b) })
	})
	RegisterOp(OpLt, KindFloat, KindFloat, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Lt(x, y) }))
	RegisterOp(OpLte, KindFloat, KindFloat, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Lte(x, y) }))
	RegisterOp(OpGt, KindFloat, KindFloat, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Gt(x, y) }))
	RegisterOp(OpGte, KindFloat, KindFloat, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Gte(x, y) }))
	RegisterOp(OpEq, KindFloat, KindFloat, cmpOp(func(b arithTermBuilder, x, y Term) Term { return b.Eq(x, y) }))

	RegisterOp(OpAnd, KindBool, KindBool, boolOp(func(b arithTermBuilder, x, y Term) Term { return b.And(x, y) }))
	RegisterOp(OpOr, KindBool, KindBool, boolOp(func(b arithTermBuilder, x, y Term) Term { return b.Or(x, y) }))
	RegisterOp(OpEq, KindBool, KindBool, boolOp(func(b arithTermBuilder, x, y Term) Term { return b.Eq(x, y) }))
	RegisterOp(OpNot, KindBool, KindBool, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		a := args[0]
		b := ss.solver.(arithTermBuilder)
		return SymbolicValue{Kind: KindBool, T: b.Not(a.T), GoType: reflect.TypeOf(false)}, nil
	})

	RegisterOp(OpIn, KindString, KindSet, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return containerMembership(ss, args[0], args[1])
	})
	RegisterOp(OpIn, KindInt, KindList, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return containerMembership(ss, args[0], args[1])
	})
	RegisterOp(OpIn, KindString, KindList, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return containerMembership(ss, args[0], args[1])
	})
	RegisterOp(OpUnion, KindSet, KindSet, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		a, bset := args[0], args[1]
		out := SymbolicValue{Kind: KindSet, ElemType: a.ElemType, GoType: a.GoType}
		out.Elems = append(out.Elems, a.Elems...)
		out.Elems = append(out.Elems, bset.Elems...)
		return out, nil
	})

	// Bounded containers carry a concrete length once their construction
	// decisions are taken, so len is a constant of the current path.
	for _, k := range []SymbolicKind{KindList, KindSet, KindTuple} {
		RegisterOp(OpLen, k, k, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
			return ss.ConstInt(len(args[0].Elems))
		})
	}
	RegisterOp(OpLen, KindMap, KindMap, func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		return ss.ConstInt(len(args[0].Pairs))
	})
}

// arithTermBuilder is implemented by SolverFacade backends that support
// building compound boolean/arithmetic terms out of simpler ones (the
// reference backend does; a real SMT facade typically would too via its own
// expression builder reachable from the same handle).
type arithTermBuilder interface {
	Add(a, b Term) Term
	Sub(a, b Term) Term
	FloorDiv(a, b Term) Term
	Lt(a, b Term) Term
	Lte(a, b Term) Term
	Gt(a, b Term) Term
	Gte(a, b Term) Term
	Eq(a, b Term) Term
	And(a, b Term) Term
	Or(a, b Term) Term
	Not(a Term) Term
	ConstInt(n int) Term
	ConstBool(b bool) Term
	ConstFloat(f float64) Term
}

func intBinOp(ss *StateSpace, a, b SymbolicValue, combine func(a, b Term) Term) (SymbolicValue, error) {
	return SymbolicValue{Kind: KindInt, T: combine(a.T, b.T), GoType: reflect.TypeOf(0)}, nil
}

func floatBinOp(ss *StateSpace, a, b SymbolicValue, combine func(a, b Term) Term) (SymbolicValue, error) {
	return SymbolicValue{Kind: KindFloat, T: combine(a.T, b.T), GoType: reflect.TypeOf(0.0)}, nil
}

func cmpOp(combine func(b arithTermBuilder, x, y Term) Term) dispatchFunc {
	return func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		builder := ss.solver.(arithTermBuilder)
		return SymbolicValue{Kind: KindBool, T: combine(builder, args[0].T, args[1].T), GoType: reflect.TypeOf(false)}, nil
	}
}

func boolOp(combine func(b arithTermBuilder, x, y Term) Term) dispatchFunc {
	return func(ss *StateSpace, args ...SymbolicValue) (SymbolicValue, error) {
		builder := ss.solver.(arithTermBuilder)
		return SymbolicValue{Kind: KindBool, T: combine(builder, args[0].T, args[1].T), GoType: reflect.TypeOf(false)}, nil
	}
}

// containerMembership builds a disjunction over "elem == e" for every e in
// container's Elems; an empty container returns the disjunction's identity
// element, the constant False, rather than leaving membership unconstrained.
func containerMembership(ss *StateSpace, elem, container SymbolicValue) (SymbolicValue, error) {
	builder := ss.solver.(arithTermBuilder)
	if len(container.Elems) == 0 {
		return SymbolicValue{Kind: KindBool, T: builder.ConstBool(false), GoType: reflect.TypeOf(false)}, nil
	}
	var acc Term
	for _, e := range container.Elems {
		eq, err := Dispatch(ss, OpEq, elem, e)
		if err != nil {
			return SymbolicValue{}, err
		}
		if acc == nil {
			acc = eq.T
		} else {
			acc = builder.Or(acc, eq.T)
		}
	}
	return SymbolicValue{Kind: KindBool, T: acc, GoType: reflect.TypeOf(false)}, nil
}
