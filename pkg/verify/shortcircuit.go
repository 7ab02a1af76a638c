package verify

import "reflect"

// ShortCircuitController decides, for one call site reachable from
// engine-internal code (a callee invoked while evaluating a contract, or a
// nested call the embedder marked as a short-circuit candidate), whether to
// intercept the call with a fresh symbolic substitution instead of actually
// running it (spec.md §4.7). It is heavily biased toward letting calls
// proceed: intercepting trades soundness within that call for the search
// tree's overall tractability, so it should only happen occasionally.
type ShortCircuitController struct {
	// InterceptBias is the probability ForkWithConfirmOrElse is asked to
	// weight toward interception. 0.05 matches spec.md's documented 95/5
	// split.
	InterceptBias float64
}

// NewShortCircuitController returns a controller with the documented 95/5
// bias.
func NewShortCircuitController() *ShortCircuitController {
	return &ShortCircuitController{InterceptBias: 0.05}
}

// Consider decides whether to intercept a call to a function with the given
// return type and declared-mutable argument names, given the concrete
// arguments about to be passed. On interception it returns a fresh symbolic
// substitution for the return value and "forgets" every mutable argument's
// contents in place (matching CrossHair's treatment of opaque native calls:
// once intercepted, the callee's side effects on mutable arguments are
// modeled as "anything consistent with its declared type", not replayed).
func (c *ShortCircuitController) Consider(ss *StateSpace, returnType reflect.Type, args map[string]SymbolicValue, mutable func(name string) bool) (intercepted bool, result SymbolicValue, err error) {
	if ss.RunningFrameworkCode() {
		return false, SymbolicValue{}, nil
	}
	intercept, err := ss.ForkWithConfirmOrElse(c.InterceptBias)
	if err != nil {
		return false, SymbolicValue{}, err
	}
	if !intercept {
		return false, SymbolicValue{}, nil
	}

	for name, v := range args {
		if mutable(name) {
			forgotten, ferr := v.Forget(ss)
			if ferr != nil {
				return false, SymbolicValue{}, ferr
			}
			args[name] = forgotten
		}
	}

	fresh, err := ss.Factory().FreshOfType(returnType, ss.FreshName("shortcircuit_ret"))
	if err != nil {
		return false, SymbolicValue{}, err
	}
	return true, fresh, nil
}
