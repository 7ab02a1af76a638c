package verify

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// refTerm is the reference backend's Term: a small expression tree over
// bounded-integer and boolean variables. This stands in for an SMT solver's
// AST node (spec.md explicitly places the real solver out of scope); the
// reference backend instead enumerates bounded-domain assignments by
// backtracking, the same search discipline the teacher's DFSSearch/domain.go
// pair apply to finite-domain logic variables.
type refTerm struct {
	sort Sort
	op   refOp
	kids []*refTerm

	// leaf fields, valid when op == refLeafVar or refLeafConst
	varName string
	constB  bool
	constI  int
	constF  float64
	constS  string
}

func (t *refTerm) Sort() Sort { return t.sort }

type refOp int

const (
	refLeafVar refOp = iota
	refLeafConst
	refAdd
	refSub
	refFloorDiv
	refLt
	refLte
	refGt
	refGte
	refEq
	refAnd
	refOr
	refNot
)

// refIntDomain, refFloatDomain and refStringDomain are the bounded domains the reference backend searches over for
// each variable, mirroring the teacher's BitSetDomain idea at a much smaller
// scale: enough values to distinguish typical contract counterexamples
// without needing an unbounded integer domain.
var refIntDomain = []int{-2, -1, 0, 1, 2, 3, 5, 10}
var refFloatDomain = []float64{-2.5, -1, 0, 0.5, 1, 2.5}
var refStringDomain = []string{"", "a", "ab", "x"}

// RefSolver is the reference SolverFacade implementation (spec.md §4.2,
// §6): a bounded-domain backtracking search over every free variable's
// domain, checking every asserted term's concrete evaluation at each
// candidate assignment. It is intentionally simple rather than complete —
// exactly the tradeoff spec.md's Non-goals accept by placing a real SMT
// solver out of scope.
type RefSolver struct {
	vars    []*refTerm
	scopes  [][]*refTerm // assertion stack; scopes[0] is the root scope
	model   map[string]any
	counter int
}

// NewRefSolver returns an empty reference solver with one (root) scope.
func NewRefSolver() *RefSolver {
	return &RefSolver{scopes: [][]*refTerm{nil}}
}

func (s *RefSolver) Fresh(prefix string, sort Sort) Term {
	s.counter++
	t := &refTerm{sort: sort, op: refLeafVar, varName: fmt.Sprintf("%s#%d", prefix, s.counter)}
	s.vars = append(s.vars, t)
	return t
}

func (s *RefSolver) Assert(t Term) {
	top := len(s.scopes) - 1
	s.scopes[top] = append(s.scopes[top], t.(*refTerm))
}

func (s *RefSolver) Push() {
	s.scopes = append(s.scopes, nil)
}

func (s *RefSolver) Pop() {
	if len(s.scopes) == 1 {
		return
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// Check performs a bounded backtracking search over every free variable's
// domain for an assignment satisfying every asserted term across every
// scope, honoring ctx for cancellation. It stores the first satisfying
// assignment found as the current model.
func (s *RefSolver) Check(ctx context.Context) (Satisfiability, error) {
	var asserted []*refTerm
	for _, scope := range s.scopes {
		asserted = append(asserted, scope...)
	}
	assignment := make(map[string]any, len(s.vars))
	ok, err := s.search(ctx, asserted, s.vars, 0, assignment)
	if err != nil {
		return SolverUnknown, err
	}
	if !ok {
		return Unsat, nil
	}
	s.model = assignment
	return Sat, nil
}

func (s *RefSolver) search(ctx context.Context, asserted []*refTerm, vars []*refTerm, i int, assignment map[string]any) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	if i == len(vars) {
		for _, t := range asserted {
			v, err := evalRefTerm(t, assignment)
			if err != nil {
				return false, err
			}
			if b, ok := v.(bool); !ok || !b {
				return false, nil
			}
		}
		return true, nil
	}
	v := vars[i]
	for _, candidate := range domainFor(v.sort) {
		assignment[v.varName] = candidate
		ok, err := s.search(ctx, asserted, vars, i+1, assignment)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	delete(assignment, v.varName)
	return false, nil
}

func domainFor(sort Sort) []any {
	switch sort {
	case SortBool:
		return []any{false, true}
	case SortFloat:
		out := make([]any, len(refFloatDomain))
		for i, v := range refFloatDomain {
			out[i] = v
		}
		return out
	case SortString:
		out := make([]any, len(refStringDomain))
		for i, v := range refStringDomain {
			out[i] = v
		}
		return out
	default:
		out := make([]any, len(refIntDomain))
		for i, v := range refIntDomain {
			out[i] = v
		}
		return out
	}
}

func (s *RefSolver) Model(t Term) (any, error) {
	rt := t.(*refTerm)
	if s.model == nil {
		return nil, errors.New("verify: model requested before a satisfiable Check")
	}
	return evalRefTerm(rt, s.model)
}

// evalRefTerm concretely evaluates t given a full variable assignment,
// exactly the check a real solver performs internally; the reference
// backend exposes it directly since it has no opaque solver core to call
// out to.
func evalRefTerm(t *refTerm, assignment map[string]any) (any, error) {
	switch t.op {
	case refLeafConst:
		switch t.sort {
		case SortBool:
			return t.constB, nil
		case SortFloat:
			return t.constF, nil
		case SortString:
			return t.constS, nil
		default:
			return t.constI, nil
		}
	case refLeafVar:
		v, ok := assignment[t.varName]
		if !ok {
			return nil, errors.Errorf("verify: no assignment for variable %s", t.varName)
		}
		return v, nil
	}

	vals := make([]any, len(t.kids))
	for i, k := range t.kids {
		v, err := evalRefTerm(k, assignment)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	switch t.op {
	case refAdd:
		if eitherFloat(vals[0], vals[1]) {
			return asFloat(vals[0]) + asFloat(vals[1]), nil
		}
		return asInt(vals[0]) + asInt(vals[1]), nil
	case refSub:
		if eitherFloat(vals[0], vals[1]) {
			return asFloat(vals[0]) - asFloat(vals[1]), nil
		}
		return asInt(vals[0]) - asInt(vals[1]), nil
	case refFloorDiv:
		b := asInt(vals[1])
		if b == 0 {
			return nil, errors.New("verify: division by zero in reference solver model")
		}
		return floorDiv(asInt(vals[0]), b), nil
	case refLt:
		if eitherFloat(vals[0], vals[1]) {
			return asFloat(vals[0]) < asFloat(vals[1]), nil
		}
		return asInt(vals[0]) < asInt(vals[1]), nil
	case refLte:
		if eitherFloat(vals[0], vals[1]) {
			return asFloat(vals[0]) <= asFloat(vals[1]), nil
		}
		return asInt(vals[0]) <= asInt(vals[1]), nil
	case refGt:
		if eitherFloat(vals[0], vals[1]) {
			return asFloat(vals[0]) > asFloat(vals[1]), nil
		}
		return asInt(vals[0]) > asInt(vals[1]), nil
	case refGte:
		if eitherFloat(vals[0], vals[1]) {
			return asFloat(vals[0]) >= asFloat(vals[1]), nil
		}
		return asInt(vals[0]) >= asInt(vals[1]), nil
	case refEq:
		return vals[0] == vals[1], nil
	case refAnd:
		return asBool(vals[0]) && asBool(vals[1]), nil
	case refOr:
		return asBool(vals[0]) || asBool(vals[1]), nil
	case refNot:
		return !asBool(vals[0]), nil
	default:
		return nil, errors.Errorf("verify: reference solver cannot evaluate op %d", t.op)
	}
}

func asInt(v any) int {
	i, _ := v.(int)
	return i
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func eitherFloat(a, b any) bool {
	_, af := a.(float64)
	_, bf := b.(float64)
	return af || bf
}

// asFloat widens an int operand so mixed int/float comparisons evaluate in
// float arithmetic, mirroring how a real solver coerces sorts.
func asFloat(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return float64(asInt(v))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// --- arithTermBuilder ---

func bin(sort Sort, op refOp, a, b Term) Term {
	return &refTerm{sort: sort, op: op, kids: []*refTerm{a.(*refTerm), b.(*refTerm)}}
}

// numSort picks the compound term's numeric sort: float dominates int.
func numSort(a, b Term) Sort {
	if a.Sort() == SortFloat || b.Sort() == SortFloat {
		return SortFloat
	}
	return SortInt
}

func (s *RefSolver) Add(a, b Term) Term      { return bin(numSort(a, b), refAdd, a, b) }
func (s *RefSolver) Sub(a, b Term) Term      { return bin(numSort(a, b), refSub, a, b) }
func (s *RefSolver) FloorDiv(a, b Term) Term { return bin(SortInt, refFloorDiv, a, b) }
func (s *RefSolver) Lt(a, b Term) Term       { return bin(SortBool, refLt, a, b) }
func (s *RefSolver) Lte(a, b Term) Term      { return bin(SortBool, refLte, a, b) }
func (s *RefSolver) Gt(a, b Term) Term       { return bin(SortBool, refGt, a, b) }
func (s *RefSolver) Gte(a, b Term) Term      { return bin(SortBool, refGte, a, b) }
func (s *RefSolver) Eq(a, b Term) Term       { return bin(SortBool, refEq, a, b) }
func (s *RefSolver) And(a, b Term) Term      { return bin(SortBool, refAnd, a, b) }
func (s *RefSolver) Or(a, b Term) Term       { return bin(SortBool, refOr, a, b) }
func (s *RefSolver) Not(a Term) Term {
	return &refTerm{sort: SortBool, op: refNot, kids: []*refTerm{a.(*refTerm)}}
}

func (s *RefSolver) ConstInt(n int) Term {
	return &refTerm{sort: SortInt, op: refLeafConst, constI: n}
}

func (s *RefSolver) ConstBool(b bool) Term {
	return &refTerm{sort: SortBool, op: refLeafConst, constB: b}
}

func (s *RefSolver) ConstFloat(f float64) Term {
	return &refTerm{sort: SortFloat, op: refLeafConst, constF: f}
}

var _ SolverFacade = (*RefSolver)(nil)
var _ arithTermBuilder = (*RefSolver)(nil)
