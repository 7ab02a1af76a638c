package verify

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

var (
	reflectTypeInt   = reflect.TypeOf(0)
	reflectTypeBool  = reflect.TypeOf(false)
	reflectTypeFloat = reflect.TypeOf(0.0)
)

// ErrForkInFrameworkScope is returned by Fork/ForkWithConfirmOrElse when
// called while the State Space is marked as running engine-internal code
// (see FrameworkScope). Engine bookkeeping, such as deep-copying __old__,
// must never consume a branch of the user's search tree. Conditions are
// evaluated outside FrameworkScope and may fork.
var ErrForkInFrameworkScope = errors.New("verify: fork attempted while running framework code")

// StateSpace is the per-iteration owner of solver context, fresh-name
// counter, and position within one postcondition's persistent SearchTree
// (spec.md §4.2). A StateSpace is discarded at the end of its iteration; the
// SearchTree node it leaves behind persists for the next one.
type StateSpace struct {
	solver        SolverFacade
	cursor        *treeNode
	path          []*treeNode
	names         map[string]int
	deadline      time.Time
	solverTimeout time.Duration
	opts          Options

	runningFrameworkCode bool
	forks                int
	heapCount            int
	factory              *ProxyFactory
}

func newStateSpace(root *treeNode, solver SolverFacade, opts Options) *StateSpace {
	ss := &StateSpace{
		solver:        solver,
		cursor:        root,
		names:         make(map[string]int),
		deadline:      opts.Deadline,
		solverTimeout: opts.PerPathTimeout / 2,
		opts:          opts,
	}
	ss.factory = newProxyFactory(ss)
	return ss
}

// Factory returns the Proxy Factory bound to this StateSpace.
func (ss *StateSpace) Factory() *ProxyFactory { return ss.factory }

// FreshName returns a debug-friendly, uniquified name with the given prefix.
func (ss *StateSpace) FreshName(prefix string) string {
	n := ss.names[prefix]
	ss.names[prefix] = n + 1
	if n == 0 {
		return prefix
	}
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Context returns a context bound to this StateSpace's per-path deadline,
// falling back to context.Background when no deadline was configured.
func (ss *StateSpace) Context() (context.Context, context.CancelFunc) {
	if ss.deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), ss.deadline)
}

// Assert forwards a hard constraint to the solver.
func (ss *StateSpace) Assert(t Term) { ss.solver.Assert(t) }

// Push opens a solver checkpoint.
func (ss *StateSpace) Push() { ss.solver.Push() }

// Pop discards the most recent solver checkpoint.
func (ss *StateSpace) Pop() { ss.solver.Pop() }

// Check runs a bounded satisfiability check under the StateSpace's per-path
// deadline and, within it, a per-check solver budget of half the per-path
// timeout (spec.md §4.8).
func (ss *StateSpace) Check() (Satisfiability, error) {
	ctx, cancel := ss.Context()
	defer cancel()
	if ss.solverTimeout > 0 {
		var cancelCheck context.CancelFunc
		ctx, cancelCheck = context.WithTimeout(ctx, ss.solverTimeout)
		defer cancelCheck()
	}
	return ss.solver.Check(ctx)
}

// ModelValue extracts a concrete value for t from the solver's last
// satisfiable Check.
func (ss *StateSpace) ModelValue(t Term) (any, error) {
	return ss.solver.Model(t)
}

// newHeapRef issues the next stable heap handle for a symbolic object built
// within this StateSpace; equality of handles is equality of heap identity,
// so aliased proxies compare equal without chasing Go pointers.
func (ss *StateSpace) newHeapRef() *HeapRef {
	ss.heapCount++
	return &HeapRef{id: ss.heapCount}
}

// Fresh allocates a new solver-side symbol under a uniquified name.
func (ss *StateSpace) Fresh(prefix string, sort Sort) Term {
	return ss.solver.Fresh(ss.FreshName(prefix), sort)
}

// ConstInt returns a symbolic int proxy bound to the literal constant n,
// rather than a free variable — for conditions that need to compare against
// a fixed value (spec.md Conditions frequently do, e.g. "result >= 0").
func (ss *StateSpace) ConstInt(n int) (SymbolicValue, error) {
	builder, ok := ss.solver.(arithTermBuilder)
	if !ok {
		return SymbolicValue{}, errors.New("verify: solver facade does not implement arithTermBuilder, cannot build constants")
	}
	return SymbolicValue{Kind: KindInt, T: builder.ConstInt(n), GoType: reflectTypeInt}, nil
}

// ConstFloat is ConstInt's floating-point counterpart.
func (ss *StateSpace) ConstFloat(f float64) (SymbolicValue, error) {
	builder, ok := ss.solver.(arithTermBuilder)
	if !ok {
		return SymbolicValue{}, errors.New("verify: solver facade does not implement arithTermBuilder, cannot build constants")
	}
	return SymbolicValue{Kind: KindFloat, T: builder.ConstFloat(f), GoType: reflectTypeFloat}, nil
}

// ConstBool is ConstInt's boolean counterpart.
func (ss *StateSpace) ConstBool(b bool) (SymbolicValue, error) {
	builder, ok := ss.solver.(arithTermBuilder)
	if !ok {
		return SymbolicValue{}, errors.New("verify: solver facade does not implement arithTermBuilder, cannot build constants")
	}
	return SymbolicValue{Kind: KindBool, T: builder.ConstBool(b), GoType: reflectTypeBool}, nil
}

// FrameworkScope marks the StateSpace as running engine-internal code for
// the duration of fn: any Fork within fn fails with ErrForkInFrameworkScope
// instead of silently consuming a tree branch. Nested calls are supported.
func (ss *StateSpace) FrameworkScope(fn func() error) error {
	prev := ss.runningFrameworkCode
	ss.runningFrameworkCode = true
	defer func() { ss.runningFrameworkCode = prev }()
	return fn()
}

// RunningFrameworkCode reports whether the StateSpace is currently inside a
// FrameworkScope call.
func (ss *StateSpace) RunningFrameworkCode() bool { return ss.runningFrameworkCode }

// Fork is the generic binary decision primitive (spec.md §4.2): it consults
// the current Search-Tree node, takes the unexplored branch (false preferred
// over true), extends the solver's assertion stack with pred (or its
// negation) for the chosen branch, advances the StateSpace's cursor, and
// returns which branch was taken.
func (ss *StateSpace) Fork(pred Term) (bool, error) {
	branch, err := ss.forkTree()
	if err != nil {
		return false, err
	}
	builder, ok := ss.solver.(arithTermBuilder)
	if !ok {
		return false, errors.New("verify: solver facade does not implement arithTermBuilder, cannot assert fork predicate")
	}
	if branch {
		ss.solver.Assert(pred)
	} else {
		ss.solver.Assert(builder.Not(pred))
	}
	return branch, nil
}

// ForkWithConfirmOrElse is the Short-Circuit Controller's biased decision
// primitive: it consults the tree exactly like Fork, but asserts no
// predicate, since the choice (intercept the call vs. let it proceed) is an
// engine-internal nondeterministic control decision invisible to the
// program under analysis. p is advisory only in this reference
// implementation; branch order still follows the tree's false-first bias.
func (ss *StateSpace) ForkWithConfirmOrElse(p float64) (bool, error) {
	return ss.forkTree()
}

// forkTree descends one level into the persistent SearchTree from the
// current cursor, creating children on demand, and records the visited
// ancestor so Bubble can walk back up it.
func (ss *StateSpace) forkTree() (bool, error) {
	if ss.runningFrameworkCode {
		return false, ErrForkInFrameworkScope
	}
	n := ss.cursor
	n.mu.Lock()
	var branch bool
	switch {
	case n.left == nil:
		n.left = &treeNode{}
		branch = false
	case !n.left.isExhausted():
		branch = false
	case n.right == nil:
		n.right = &treeNode{}
		branch = true
	case !n.right.isExhausted():
		branch = true
	default:
		n.mu.Unlock()
		return false, errors.New("verify: fork called on a fully exhausted node")
	}
	child := n.left
	if branch {
		child = n.right
	}
	n.mu.Unlock()

	ss.path = append(ss.path, n)
	ss.cursor = child
	ss.forks++
	if ss.opts.Stats != nil {
		ss.opts.Stats.Forks++
	}
	return branch, nil
}

// Bubble records analysis as the outcome of the leaf reached by this
// StateSpace's iteration, then walks back up the recorded path recomputing
// each ancestor's aggregate status. It returns the root's resulting status
// and whether the whole tree is now exhausted.
func (ss *StateSpace) Bubble(analysis CallAnalysis) (NodeStatus, bool) {
	ss.cursor.mu.Lock()
	ss.cursor.leaf = true
	ss.cursor.status = leafStatus(analysis)
	ss.cursor.mu.Unlock()

	for i := len(ss.path) - 1; i >= 0; i-- {
		n := ss.path[i]
		n.mu.Lock()
		n.status = n.aggregateLocked()
		n.mu.Unlock()
	}

	root := ss.cursor
	if len(ss.path) > 0 {
		root = ss.path[0]
	}
	root.mu.Lock()
	defer root.mu.Unlock()
	return root.aggregateLocked(), root.exhaustedLocked()
}

// leafStatus maps a CallAnalysis's outcome onto the terminal NodeStatus for
// the tree position it was reached at. KindPreconditionUnsatisfiable is
// deliberately NOT refuted: a precondition can contradict along one
// particular combination of earlier fork choices without the function under
// test being wrong, so this leaf must not dominate the whole tree's verdict
// the way an actual counterexample does (spec.md §3's "refuted" is reserved
// for a subtree that contains a counterexample). It maps to StatusVacuous, a
// distinct non-terminal-for-confirmation-purposes status: the search keeps
// exploring the remaining branches, and a sibling branch that does reach the
// body and confirms is reported as Confirmed rather than diluted into
// "cannot confirm". Only if the entire tree is Vacuous (every branch's
// precondition was unsatisfiable) does the Call Driver fall back to "unable
// to meet precondition" via its deepest-failing-precondition tracking
// (calldriver.go).
func leafStatus(a CallAnalysis) NodeStatus {
	switch a.Status {
	case KindConfirmed:
		return StatusConfirmed
	case KindPostconditionFail, KindPostconditionError, KindExecutionError, KindSyntaxError:
		return StatusRefuted
	case KindPreconditionUnsatisfiable:
		return StatusVacuous
	default: // KindCannotConfirm and any ignored/empty outcome
		return StatusExhausted
	}
}
