package verify

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTriple(a, b int, rest ...string) int { return a + b + len(rest) }

func TestReflectSignature_NamesParamsAndDetectsVariadicTail(t *testing.T) {
	sig, err := ReflectSignature(addTriple, []string{"a", "b", "rest"})
	require.NoError(t, err)
	require.Len(t, sig.Params, 3)
	assert.Equal(t, "a", sig.Params[0].Name)
	assert.Equal(t, "b", sig.Params[1].Name)
	assert.Equal(t, "rest", sig.Params[2].Name)
	assert.Equal(t, VariadicPositional, sig.Variadic)
	assert.Equal(t, reflect.TypeOf(""), sig.ElemType)
	assert.Equal(t, reflect.TypeOf(0), sig.Return)
}

func TestReflectSignature_DefaultsToPositionalNamesWhenNoneSupplied(t *testing.T) {
	sig, err := ReflectSignature(func(int, string) bool { return false }, nil)
	require.NoError(t, err)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, "arg_a", sig.Params[0].Name)
	assert.Equal(t, "arg_b", sig.Params[1].Name)
}

func TestReflectSignature_RejectsNonFunc(t *testing.T) {
	_, err := ReflectSignature(42, nil)
	assert.Error(t, err)
}

func TestFreshArgs_BuildsOneProxyPerParam(t *testing.T) {
	ss := newTestSpace(t)
	sig := Signature{Params: []Param{
		{Name: "a", Type: reflect.TypeOf(0)},
		{Name: "b", Type: reflect.TypeOf(false)},
	}}
	args, err := FreshArgs(ss, sig)
	require.NoError(t, err)
	require.Contains(t, args, "a")
	require.Contains(t, args, "b")
	assert.Equal(t, KindInt, args["a"].Kind)
	assert.Equal(t, KindBool, args["b"].Kind)
}

func TestFreshArgs_ReceiverBecomesNamedArg(t *testing.T) {
	ss := newTestSpace(t)
	sig := Signature{
		Receiver: &Param{Name: "self", Type: reflect.TypeOf(0)},
		Params:   []Param{{Name: "n", Type: reflect.TypeOf(0)}},
	}
	args, err := FreshArgs(ss, sig)
	require.NoError(t, err)
	assert.Contains(t, args, "self")
	assert.Contains(t, args, "n")
}

func TestFreshArgs_VariadicTailBecomesBoundedList(t *testing.T) {
	ss := newTestSpace(t)
	sig := Signature{
		Params: []Param{
			{Name: "a", Type: reflect.TypeOf(0)},
			{Name: "rest", Type: reflect.TypeOf("")},
		},
		Variadic: VariadicPositional,
		ElemType: reflect.TypeOf(""),
	}
	args, err := FreshArgs(ss, sig)
	require.NoError(t, err)
	require.Contains(t, args, "rest")
	assert.Equal(t, KindList, args["rest"].Kind)
}
