package verify

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ContractProvider is the parser boundary (spec.md §6): resolving a
// function's Conditions, or a class's ClassConditions, is explicitly out of
// scope for this engine — an embedder supplies them, the way a real
// contract-text parser would after reading source annotations.
type ContractProvider interface {
	ConditionsForFunc(fn any, selfType reflect.Type) (*Conditions, error)
	ConditionsForClass(cls reflect.Type) (*ClassConditions, error)
}

// SubclassIndex is a subclass-discovery interface for embedders (spec.md
// §4.3, §6). Nothing in this package calls it: the Class Proxy Builder reads
// only the package-global subtype registry that RegisterSubtype fills.
type SubclassIndex interface {
	SubclassesOf(t reflect.Type) []reflect.Type
}

// MapContractProvider is a minimal, in-memory ContractProvider: an
// embedder (or the demo CLI) registers Conditions/ClassConditions by name up
// front rather than parsing them from source. This is the provider the
// Non-goals expect to be "supplied", not a general-purpose registry.
type MapContractProvider struct {
	byFunc  map[string]*Conditions
	byClass map[reflect.Type]*ClassConditions
}

// NewMapContractProvider returns an empty provider.
func NewMapContractProvider() *MapContractProvider {
	return &MapContractProvider{
		byFunc:  make(map[string]*Conditions),
		byClass: make(map[reflect.Type]*ClassConditions),
	}
}

// Register associates name with cond, for later lookup via Named.
func (p *MapContractProvider) Register(name string, cond *Conditions) {
	p.byFunc[name] = cond
}

// RegisterClassConditions associates cc.Type with cc, and mirrors it into
// the package-global class registry so NewStructProxy picks up its
// invariants.
func (p *MapContractProvider) RegisterClassConditions(cc *ClassConditions) {
	p.byClass[cc.Type] = cc
	RegisterClass(cc)
}

// Named looks up a previously Registered Conditions by name.
func (p *MapContractProvider) Named(name string) (*Conditions, error) {
	c, ok := p.byFunc[name]
	if !ok {
		return nil, errors.Errorf("verify: no registered conditions named %q", name)
	}
	return c, nil
}

// ConditionsForFunc implements ContractProvider by identity lookup: fn must
// be the same function as the Sig.FuncValue of a Conditions passed to
// Register (selfType is accepted for interface conformance but unused by
// this simple provider).
func (p *MapContractProvider) ConditionsForFunc(fn any, selfType reflect.Type) (*Conditions, error) {
	fv := reflect.ValueOf(fn).Pointer()
	for _, c := range p.byFunc {
		if reflect.ValueOf(c.Sig.FuncValue.Interface()).Pointer() == fv {
			return c, nil
		}
	}
	return nil, errors.New("verify: no registered conditions for function")
}

// ConditionsForClass implements ContractProvider.
func (p *MapContractProvider) ConditionsForClass(cls reflect.Type) (*ClassConditions, error) {
	cc, ok := p.byClass[cls]
	if !ok {
		return nil, errors.Errorf("verify: no registered class conditions for %s", cls)
	}
	return cc, nil
}

// Engine ties a ContractProvider to RunConditions, the way a demo CLI or an
// embedding test harness uses the package end to end.
type Engine struct {
	Provider  ContractProvider
	Options   Options
	NewSolver NewSolverFunc
	Log       *logrus.Entry
}

// NewEngine returns an Engine with DefaultOptions and the reference solver,
// ready for a provider to be attached.
func NewEngine(provider ContractProvider) *Engine {
	return &Engine{Provider: provider, Options: DefaultOptions(), NewSolver: DefaultNewSolver, Log: logrus.NewEntry(logrus.StandardLogger())}
}

// VerifyNamed resolves name through a MapContractProvider-shaped lookup and
// runs every one of its postconditions independently, returning the
// aggregated CallTreeAnalysis.
func (e *Engine) VerifyNamed(ctx context.Context, name string) (CallTreeAnalysis, error) {
	named, ok := e.Provider.(interface {
		Named(string) (*Conditions, error)
	})
	if !ok {
		return CallTreeAnalysis{}, errors.New("verify: provider does not support name-based lookup")
	}
	cond, err := named.Named(name)
	if err != nil {
		return CallTreeAnalysis{}, err
	}
	return RunConditions(cond, e.Options, e.NewSolver, e.Log.WithField("func", name)), nil
}
