package verify

import (
	"reflect"
	"time"
)

// Position identifies a source location a Condition or AnalysisMessage is
// attributed to. The engine never computes these itself; they are supplied
// by the contract parser (or, for programmatically-built Conditions, by the
// embedder).
type Position struct {
	File   string
	Line   int
	Column int
}

// VariadicKind classifies how the trailing parameter of a Signature absorbs
// extra arguments. Go has no native keyword-variadic parameters; Keyword is
// only reachable when an embedder explicitly tags a trailing map parameter
// as one (see Signature.Variadic).
type VariadicKind int

const (
	VariadicNone VariadicKind = iota
	VariadicPositional
	VariadicKeyword
)

// Param describes one parameter of a function's resolved Signature.
type Param struct {
	Name string
	Type reflect.Type
}

// Signature is the resolved shape of a function under analysis, standing in
// for what an external contract parser would report alongside a Condition.
type Signature struct {
	Receiver  *Param // nil unless this is a method
	Params    []Param
	Return    reflect.Type // nil if the function returns nothing
	Variadic  VariadicKind
	ElemType  reflect.Type // element type of a positional-variadic tail, or value type of a keyword-variadic tail
	FuncValue reflect.Value
}

// Condition is a compiled predicate tied to a source location. Predicates
// receive the active StateSpace and the CallFrame carrying the current
// symbolic arguments/return/old-snapshot, and report a SymbolicValue (a
// symbolic bool, ordinarily) or an error if evaluation raised.
type Condition struct {
	Eval       func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error)
	Pos        Position
	ExprText   string
	ContextTag string
}

// Conditions bundles every contract fact the Call Driver needs about one
// function: its preconditions, its independently-analyzed postconditions,
// the set of exception types it declares it may raise, which arguments it
// permits to mutate, and its resolved Signature.
type Conditions struct {
	Pre         []Condition
	Post        []Condition
	Raises      []reflect.Type
	MutableArgs map[string]bool
	AllMutable  *bool // nullable sentinel: nil means "consult MutableArgs per-arg"
	Sig         Signature

	// Impl is the function under test, expressed directly over the proxy
	// algebra. Go has no operator overloading, so unlike CrossHair's native
	// monkey-patched objects, a function cannot be symbolically executed by
	// calling it with ordinary Go argument types substituted for proxies —
	// it must be authored (or adapted) to operate on SymbolicValue/CallFrame
	// directly. Sig still describes the function's nominal shape for proxy
	// construction and reporting.
	Impl func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error)
}

// IsMutable reports whether the named argument is permitted to be mutated by
// the function body, applying the AllMutable sentinel first.
func (c *Conditions) IsMutable(name string) bool {
	if c.AllMutable != nil {
		return *c.AllMutable
	}
	return c.MutableArgs[name]
}

// ClassConditions bundles per-method Conditions and class invariants for a
// user-defined type, as the external contract parser would report them.
type ClassConditions struct {
	Type       reflect.Type
	Invariants []Condition
	Methods    map[string]*Conditions
}

// Options configures one verification run. Per spec.md §6, the recognized
// options are per-condition timeout, per-path timeout, report-all, plus a
// transient deadline and an optional statistics bag set by the engine.
type Options struct {
	PerConditionTimeout time.Duration
	PerPathTimeout      time.Duration
	ReportAll           bool

	// Deadline is transient: set by the Call Driver for each iteration to the
	// per-path deadline, capped by the per-condition deadline. Embedders
	// should leave it zero.
	Deadline time.Time

	// Stats, if non-nil, accumulates run counters (iterations, forks,
	// confirmed paths) for diagnostics. Optional.
	Stats *StatsCounter

	// Patches, if non-nil, replaces the Call Driver's default Patch Manager
	// scope (spec.md §4.8 step 3) for the duration of each iteration's call
	// protocol. An embedder registers additional scoped replacements here
	// (e.g. redirecting a builtin the function under test calls into a
	// symbolic-aware stand-in); the built-in "in symbolic mode" patch is
	// always installed alongside them. Leave nil to use the package default.
	Patches *PatchManager
}

// DefaultOptions returns the documented defaults: 1.5s per-condition budget,
// 0.75s per-path budget, confirmations not reported.
func DefaultOptions() Options {
	return Options{
		PerConditionTimeout: 1500 * time.Millisecond,
		PerPathTimeout:      750 * time.Millisecond,
		ReportAll:           false,
	}
}

// StatsCounter accumulates run-wide counters. Fields are only meaningful
// after a Call Driver loop completes; callers should not read them
// concurrently with an in-flight run.
type StatsCounter struct {
	Iterations     int
	Forks          int
	ConfirmedPaths int
}

// CallFrame carries the per-call context a Condition's predicate closure
// needs: the symbolic arguments (keyed by parameter name), the symbolic
// return value (the zero SymbolicValue until the function has returned), and the pre-call
// snapshot bound to __old__.
type CallFrame struct {
	Args   map[string]SymbolicValue
	Return SymbolicValue
	Old    map[string]SymbolicValue
}
