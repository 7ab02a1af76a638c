package verify

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

// attemptCall runs exactly one iteration of spec.md §4.9's per-call
// protocol for a single postcondition: generate fresh symbolic arguments,
// assume the preconditions, snapshot __old__, run the implementation,
// check the declared-immutable arguments for mutation, and check the
// target postcondition's universality along this path.
//
// precDepth receives how many preconditions were successfully assumed
// before either exhausting the list or hitting an unsatisfiable prefix, so
// the Call Driver can track the deepest failing precondition across
// iterations (spec.md §4.9's diagnostic for "no instantiation satisfies the
// preconditions").
func attemptCall(ss *StateSpace, cond *Conditions, postIndex int) (analysis CallAnalysis, precDepth int, skip bool, err error) {
	if cond.Impl == nil {
		return CallAnalysis{}, 0, false, errors.New("verify: Conditions.Impl is nil, nothing to execute")
	}
	if postIndex < 0 || postIndex >= len(cond.Post) {
		return CallAnalysis{}, 0, false, errors.Errorf("verify: postcondition index %d out of range", postIndex)
	}

	args, ferr := FreshArgs(ss, cond.Sig)
	if ferr != nil {
		out, propagate := filterOrPropagate(ferr, cond.Raises)
		if propagate != nil {
			return CallAnalysis{}, 0, false, errors.Wrap(propagate, "verify: generating fresh arguments")
		}
		if out.Skip {
			return CallAnalysis{}, 0, true, nil
		}
		return CallAnalysis{Status: out.Status, Reason: out.Reason}, 0, false, nil
	}
	frame := &CallFrame{Args: args}

	for i, pre := range cond.Pre {
		val, evalErr := pre.Eval(ss, frame)
		if evalErr != nil {
			out, propagate := filterOrPropagate(evalErr, cond.Raises)
			if propagate != nil {
				return CallAnalysis{}, i, false, propagate
			}
			if out.Skip {
				return CallAnalysis{}, i, true, nil
			}
			if out.Status == KindExecutionError {
				// An exception while evaluating a precondition fails that
				// precondition (spec.md §4.9 step 3); it is not evidence
				// against the function body, which never ran.
				return CallAnalysis{
					Status:    KindPreconditionUnsatisfiable,
					Reason:    "precondition raised: " + out.Reason,
					FailedPre: &cond.Pre[i],
				}, i, false, nil
			}
			return CallAnalysis{Status: out.Status, Reason: out.Reason, FailedPre: &cond.Pre[i]}, i, false, nil
		}
		if val.Kind != KindBool || val.T == nil {
			return CallAnalysis{}, i, false, errors.Errorf("verify: precondition %q did not evaluate to a bool", pre.ExprText)
		}
		ss.Assert(val.T)
		sat, checkErr := ss.Check()
		if checkErr != nil {
			if budgetExceeded(checkErr) {
				return unexploredPathAnalysis(), i, false, nil
			}
			return CallAnalysis{}, i, false, errors.Wrap(checkErr, "verify: checking precondition satisfiability")
		}
		if sat == Unsat {
			return CallAnalysis{Status: KindPreconditionUnsatisfiable, FailedPre: &cond.Pre[i],
				Reason: fmt.Sprintf("preconditions unsatisfiable after %q", pre.ExprText)}, i, false, nil
		}
	}
	precDepth = len(cond.Pre)

	old := make(map[string]SymbolicValue, len(frame.Args))
	if scopeErr := ss.FrameworkScope(func() error {
		for name, v := range frame.Args {
			old[name] = deepCopySymbolic(v)
		}
		return nil
	}); scopeErr != nil {
		return CallAnalysis{}, precDepth, false, scopeErr
	}
	frame.Old = old

	ret, callErr := runImpl(cond.Impl, ss, frame)
	if callErr != nil {
		out, propagate := filterOrPropagate(callErr, cond.Raises)
		if propagate != nil {
			return CallAnalysis{}, precDepth, false, propagate
		}
		if out.Skip {
			return CallAnalysis{}, precDepth, true, nil
		}
		analysis := CallAnalysis{Status: out.Status, Reason: out.Reason}
		if out.Status == KindExecutionError {
			analysis.Messages = errorMessages(ss, KindExecutionError, cond.Post[postIndex], frame, callErr)
		}
		return analysis, precDepth, false, nil
	}
	frame.Return = ret

	for _, name := range sortedArgNames(frame.Args) {
		if cond.IsMutable(name) {
			continue
		}
		if before, ok := old[name]; ok && !deepEqSymbolic(before, frame.Args[name]) {
			reason := fmt.Sprintf("argument %q was mutated but is not declared mutable", name)
			return CallAnalysis{
				Status: KindPostconditionError,
				Reason: reason,
				Messages: []AnalysisMessage{{
					Kind:     KindPostconditionError,
					Text:     reason,
					Pos:      cond.Post[postIndex].Pos,
					HasRepr:  true,
					CondText: cond.Post[postIndex].ExprText,
				}},
			}, precDepth, false, nil
		}
	}

	post := cond.Post[postIndex]
	val, evalErr := post.Eval(ss, frame)
	if evalErr != nil {
		out, propagate := filterOrPropagate(evalErr, cond.Raises)
		if propagate != nil {
			return CallAnalysis{}, precDepth, false, propagate
		}
		if out.Skip {
			return CallAnalysis{}, precDepth, true, nil
		}
		analysis := CallAnalysis{Status: out.Status, Reason: out.Reason}
		if out.Status == KindExecutionError {
			// An exception inside the postcondition itself is a
			// postcondition-error, not an execution error of the body.
			analysis.Status = KindPostconditionError
			analysis.Messages = errorMessages(ss, KindPostconditionError, post, frame, evalErr)
		}
		return analysis, precDepth, false, nil
	}
	if val.Kind != KindBool || val.T == nil {
		return CallAnalysis{}, precDepth, false, errors.Errorf("verify: postcondition %q did not evaluate to a bool", post.ExprText)
	}

	builder, ok := ss.solver.(arithTermBuilder)
	if !ok {
		return CallAnalysis{}, precDepth, false, errors.New("verify: solver facade does not implement arithTermBuilder")
	}
	ss.Push()
	ss.Assert(builder.Not(val.T))
	sat, checkErr := ss.Check()
	if checkErr != nil {
		ss.Pop()
		if budgetExceeded(checkErr) {
			return unexploredPathAnalysis(), precDepth, false, nil
		}
		return CallAnalysis{}, precDepth, false, errors.Wrap(checkErr, "verify: checking postcondition universality")
	}
	switch sat {
	case Unsat:
		ss.Pop()
		return CallAnalysis{Status: KindConfirmed}, precDepth, false, nil
	case Sat:
		msgs := counterexampleMessages(ss, post, frame)
		ss.Pop()
		return CallAnalysis{Status: KindPostconditionFail, Reason: "counterexample found", Messages: msgs}, precDepth, false, nil
	default:
		ss.Pop()
		return CallAnalysis{Status: KindCannotConfirm, Reason: "solver returned unknown"}, precDepth, false, nil
	}
}

// runImpl invokes impl, converting a Go panic into an error so the Exception
// Filter can classify it exactly like a returned error (mirroring how a
// contract-checked call can raise in the source language).
func runImpl(impl func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error), ss *StateSpace, frame *CallFrame) (ret SymbolicValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = errors.Errorf("verify: panic in function under test: %v", r)
			}
		}
	}()
	return impl(ss, frame)
}

func filterOrPropagate(err error, declaredRaises []reflect.Type) (FilterOutcome, error) {
	out := Filter(err, declaredRaises)
	if out.Propagate {
		return out, err
	}
	return out, nil
}

// budgetExceeded reports whether a solver Check failed because the per-path
// (or per-check) budget ran out, which spec.md §4.2 converts into the
// "unexplored path" signal rather than an engine error.
func budgetExceeded(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// unexploredPathAnalysis is the iteration outcome for a path abandoned on
// budget: unknown, never counted as confirmed (spec.md §5).
func unexploredPathAnalysis() CallAnalysis {
	return CallAnalysis{Status: KindCannotConfirm, Reason: (&UnexploredPathSignal{Reason: "per-path budget exhausted"}).Error()}
}

func sortedArgNames(args map[string]SymbolicValue) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// counterexampleMessages realizes frame's arguments and return value under
// the solver's current (satisfiable-for-Not-postcondition) model and builds
// a single AnalysisMessage describing the failure at post's source
// position.
func counterexampleMessages(ss *StateSpace, post Condition, frame *CallFrame) []AnalysisMessage {
	text, hasRepr := inputDescription("falsifies "+post.ExprText, ss, frame)
	return []AnalysisMessage{{
		Kind:     KindPostconditionFail,
		Text:     text,
		Pos:      post.Pos,
		HasRepr:  hasRepr,
		CondText: post.ExprText,
	}}
}

// errorMessages builds the single AnalysisMessage for an exception raised by
// the function body (execution-error) or by the postcondition itself
// (postcondition-error), rendering the triggering inputs when a model is
// available (spec.md §4.9 step 5's get_input_description).
func errorMessages(ss *StateSpace, kind MessageKind, post Condition, frame *CallFrame, cause error) []AnalysisMessage {
	text, hasRepr := inputDescription(cause.Error(), ss, frame)
	return []AnalysisMessage{{
		Kind:      kind,
		Text:      text,
		Pos:       post.Pos,
		HasRepr:   hasRepr,
		CondText:  post.ExprText,
		Traceback: fmt.Sprintf("%+v", cause),
	}}
}

// inputDescription appends "name=value" for each argument, in name order so
// repeated runs render identically, querying the solver for a model first.
// Arguments that cannot be realized (no satisfiable model, an opaque kind)
// are skipped and the message is flagged as having no usable representation.
func inputDescription(prefix string, ss *StateSpace, frame *CallFrame) (string, bool) {
	hasRepr := true
	if sat, err := ss.Check(); err != nil || sat != Sat {
		return prefix, false
	}
	text := prefix
	for _, name := range sortedArgNames(frame.Args) {
		c, err := frame.Args[name].Realize(ss)
		if err != nil {
			hasRepr = false
			continue
		}
		text += fmt.Sprintf(" %s=%v", name, c)
	}
	return text, hasRepr
}

// deepCopySymbolic returns a SymbolicValue whose container fields (Elems,
// Pairs, Fields) are independent of v's, so later in-place mutation of the
// live argument can be detected by structural inequality against this
// snapshot (the Go analogue of CrossHair's copy.deepcopy for __old__).
func deepCopySymbolic(v SymbolicValue) SymbolicValue {
	out := v
	// A snapshot is a distinct heap object: it must never compare equal to
	// the live value by handle identity, only structurally.
	out.Ref = nil
	if v.Elems != nil {
		out.Elems = make([]SymbolicValue, len(v.Elems))
		for i, e := range v.Elems {
			out.Elems[i] = deepCopySymbolic(e)
		}
	}
	if v.Pairs != nil {
		out.Pairs = make([]KV, len(v.Pairs))
		for i, kv := range v.Pairs {
			out.Pairs[i] = KV{Key: deepCopySymbolic(kv.Key), Val: deepCopySymbolic(kv.Val)}
		}
	}
	if v.Fields != nil {
		out.Fields = make(map[string]SymbolicValue, len(v.Fields))
		for k, f := range v.Fields {
			out.Fields[k] = deepCopySymbolic(f)
		}
	}
	return out
}

// deepEqSymbolic structurally compares two SymbolicValues for the mutation
// check: scalars compare by backing Term identity (a reassigned proxy gets
// a new Term, which is exactly the signal a mutation-in-place-vs-rebind
// check needs), containers compare element-wise.
func deepEqSymbolic(a, b SymbolicValue) bool {
	return deepEqSymbolicVisited(a, b, make(map[[2]uintptr]bool))
}

// deepEqSymbolicVisited carries the set of (a's Fields map address, b's
// Fields map address) pairs already being compared higher up the call
// stack, so a self-referential Struct (a field aliasing its own containing
// value through a shared map) reports equal instead of recursing forever.
func deepEqSymbolicVisited(a, b SymbolicValue, seen map[[2]uintptr]bool) bool {
	if a.Ref != nil && a.Ref == b.Ref {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool, KindInt, KindFloat, KindString:
		return a.T == b.T
	case KindType:
		return a.Concrete == b.Concrete
	case KindOpaque:
		return fmt.Sprintf("%v", a.Concrete) == fmt.Sprintf("%v", b.Concrete)
	case KindList, KindTuple, KindSet:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !deepEqSymbolicVisited(a.Elems[i], b.Elems[i], seen) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Pairs) != len(b.Pairs) {
			return false
		}
		for i := range a.Pairs {
			if !deepEqSymbolicVisited(a.Pairs[i].Key, b.Pairs[i].Key, seen) || !deepEqSymbolicVisited(a.Pairs[i].Val, b.Pairs[i].Val, seen) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		if a.Fields != nil && b.Fields != nil {
			key := mapPairKey(a.Fields, b.Fields)
			if seen[key] {
				return true
			}
			seen[key] = true
		}
		for k, av := range a.Fields {
			bv, ok := b.Fields[k]
			if !ok || !deepEqSymbolicVisited(av, bv, seen) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func mapPairKey(a, b map[string]SymbolicValue) [2]uintptr {
	return [2]uintptr{reflect.ValueOf(a).Pointer(), reflect.ValueOf(b).Pointer()}
}
