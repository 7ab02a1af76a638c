package verify

import (
	"reflect"
)

// excPriority is the Exception Filter's five-tier classification order
// (spec.md §4.5): checked top to bottom, first match wins.
type excPriority int

const (
	excIgnoreAttempt excPriority = iota
	excDeclaredOrNotImplemented
	excProxyIncompatibility
	excInternalSignal
	excOther
)

// IgnoreAttempt marks a path the engine should discard with an empty Call
// Analysis: a nested postcondition failure surfacing through unrelated
// machinery, or any other signal that carries no information about the
// function under test.
type IgnoreAttempt struct{ Cause error }

func (e *IgnoreAttempt) Error() string { return "verify: ignored attempt: " + e.Cause.Error() }
func (e *IgnoreAttempt) Unwrap() error { return e.Cause }

// NotImplementedSignal marks a function body that explicitly declined to
// handle the given symbolic input (the Go analogue of raising
// NotImplementedError): treated as a confirming, not refuting, outcome.
type NotImplementedSignal struct{ Reason string }

func (e *NotImplementedSignal) Error() string { return "verify: not implemented: " + e.Reason }

// UnexploredPathSignal marks a deliberately abandoned path (deadline
// exceeded mid-call, or a short-circuited builtin declining to model an
// operation): converts to an "unknown" Call Analysis rather than a verdict.
type UnexploredPathSignal struct{ Reason string }

func (e *UnexploredPathSignal) Error() string { return "verify: unexplored path: " + e.Reason }

// isInternalSignal marks control-flow errors the engine itself raises and
// must always propagate rather than classify as a user-code failure: it
// matches only ErrForkInFrameworkScope itself, not an error wrapping it.
func isInternalSignal(err error) bool {
	return err == ErrForkInFrameworkScope
}

// classify implements the Exception Filter's priority order for one error
// surfaced while evaluating a Condition or running function body code.
// declaredRaises is the function's Conditions.Raises list.
func classify(err error, declaredRaises []reflect.Type) excPriority {
	if err == nil {
		return excOther
	}
	var ignore *IgnoreAttempt
	if as(err, &ignore) {
		return excIgnoreAttempt
	}
	var notImpl *NotImplementedSignal
	if as(err, &notImpl) {
		return excDeclaredOrNotImplemented
	}
	if errType := reflect.TypeOf(err); errType != nil {
		for _, declared := range declaredRaises {
			if errType == declared || (declared.Kind() == reflect.Interface && errType.Implements(declared)) {
				return excDeclaredOrNotImplemented
			}
		}
	}
	var unsupported *UnsupportedOperationError
	if as(err, &unsupported) {
		return excProxyIncompatibility
	}
	if isInternalSignal(err) {
		return excInternalSignal
	}
	var unexplored *UnexploredPathSignal
	if as(err, &unexplored) {
		return excInternalSignal
	}
	return excOther
}

// as is a small local stand-in for errors.As over the four signal types
// below. Only the *IgnoreAttempt case follows the Unwrap chain; the other
// cases match err itself and do not look inside wrapped errors.
func as(err error, target any) bool {
	type unwrapper interface{ Unwrap() error }
	switch t := target.(type) {
	case **IgnoreAttempt:
		for e := err; e != nil; {
			if v, ok := e.(*IgnoreAttempt); ok {
				*t = v
				return true
			}
			u, ok := e.(unwrapper)
			if !ok {
				return false
			}
			e = u.Unwrap()
		}
	case **NotImplementedSignal:
		if v, ok := err.(*NotImplementedSignal); ok {
			*t = v
			return true
		}
	case **UnsupportedOperationError:
		if v, ok := err.(*UnsupportedOperationError); ok {
			*t = v
			return true
		}
	case **UnexploredPathSignal:
		if v, ok := err.(*UnexploredPathSignal); ok {
			*t = v
			return true
		}
	}
	return false
}

// FilterOutcome is the Call Analysis fragment the Exception Filter produces
// for one classified error, ready for the Call Driver to merge into its
// iteration result.
type FilterOutcome struct {
	Skip      bool // true: discard this iteration entirely (ignore-attempt)
	Propagate bool // true: re-raise err rather than record any verdict
	Status    MessageKind
	Reason    string
}

// Filter applies the Exception Filter's classification to err, returning
// what the Call Driver should record for this iteration. Internal signals
// are never swallowed into a verdict: the Call Driver must propagate them to
// its own caller (they mark an engine-level condition, e.g. a framework-
// scope fork violation, not a fact about the function under test).
func Filter(err error, declaredRaises []reflect.Type) FilterOutcome {
	switch classify(err, declaredRaises) {
	case excIgnoreAttempt:
		return FilterOutcome{Skip: true}
	case excDeclaredOrNotImplemented:
		return FilterOutcome{Status: KindConfirmed, Reason: "declared exception or not-implemented: " + err.Error()}
	case excProxyIncompatibility:
		return FilterOutcome{Status: KindCannotConfirm, Reason: err.Error()}
	case excInternalSignal:
		var unexplored *UnexploredPathSignal
		if as(err, &unexplored) {
			return FilterOutcome{Status: KindCannotConfirm, Reason: err.Error()}
		}
		return FilterOutcome{Propagate: true, Reason: err.Error()}
	default:
		return FilterOutcome{Status: KindExecutionError, Reason: err.Error()}
	}
}
