package verify

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubleNonNegative(n int) int { return n * 2 }

func TestMapContractProvider_NamedLookup(t *testing.T) {
	p := NewMapContractProvider()
	cond := &Conditions{Sig: Signature{FuncValue: reflect.ValueOf(doubleNonNegative)}}
	p.Register("double", cond)

	got, err := p.Named("double")
	require.NoError(t, err)
	assert.Same(t, cond, got)

	_, err = p.Named("missing")
	assert.Error(t, err)
}

func TestMapContractProvider_ConditionsForFuncByIdentity(t *testing.T) {
	p := NewMapContractProvider()
	cond := &Conditions{Sig: Signature{FuncValue: reflect.ValueOf(doubleNonNegative)}}
	p.Register("double", cond)

	got, err := p.ConditionsForFunc(doubleNonNegative, nil)
	require.NoError(t, err)
	assert.Same(t, cond, got)
}

func TestMapContractProvider_RegisterClassConditionsMirrorsIntoGlobalRegistry(t *testing.T) {
	type widget struct{ N int }
	typ := reflect.TypeOf(widget{})
	p := NewMapContractProvider()
	cc := &ClassConditions{Type: typ}
	p.RegisterClassConditions(cc)
	defer delete(classes.conditions, typ)

	got, err := p.ConditionsForClass(typ)
	require.NoError(t, err)
	assert.Same(t, cc, got)

	fromGlobal, ok := classes.conditions[typ]
	require.True(t, ok)
	assert.Same(t, cc, fromGlobal)
}

func TestEngine_VerifyNamed_ConfirmsSimplePostcondition(t *testing.T) {
	sig, err := ReflectSignature(doubleNonNegative, []string{"n"})
	require.NoError(t, err)

	provider := NewMapContractProvider()
	provider.Register("double", &Conditions{
		Sig: sig,
		Pre: []Condition{{
			ExprText: "n >= 0",
			Eval: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
				zero, err := ss.ConstInt(0)
				if err != nil {
					return SymbolicValue{}, err
				}
				return Dispatch(ss, OpGte, frame.Args["n"], zero)
			},
		}},
		Post: []Condition{{
			ExprText: "_ >= n",
			Eval: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
				return Dispatch(ss, OpGte, frame.Return, frame.Args["n"])
			},
		}},
		Impl: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
			return Dispatch(ss, OpAdd, frame.Args["n"], frame.Args["n"])
		},
	})

	eng := NewEngine(provider)
	result, err := eng.VerifyNamed(context.Background(), "double")
	require.NoError(t, err)
	assert.Equal(t, KindConfirmed, result.Status)
}

func TestEngine_VerifyNamed_UnknownNameErrors(t *testing.T) {
	eng := NewEngine(NewMapContractProvider())
	_, err := eng.VerifyNamed(context.Background(), "nope")
	assert.Error(t, err)
}
